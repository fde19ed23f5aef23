package dynamo

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"stealthcompany.com/wardbook/internal/kv"
)

// exprBuilder allocates placeholder names and values shared by every
// expression of one request
type exprBuilder struct {
	names  map[string]string
	values map[string]types.AttributeValue
	byAttr map[string]string
	nv     int
}

func newExprBuilder() *exprBuilder {
	return &exprBuilder{
		names:  map[string]string{},
		values: map[string]types.AttributeValue{},
		byAttr: map[string]string{},
	}
}

func (b *exprBuilder) name(attr string) string {
	if p, ok := b.byAttr[attr]; ok {
		return p
	}
	p := fmt.Sprintf("#n%d", len(b.byAttr))
	b.byAttr[attr] = p
	b.names[p] = attr
	return p
}

func (b *exprBuilder) value(av types.AttributeValue) string {
	p := fmt.Sprintf(":v%d", b.nv)
	b.nv++
	b.values[p] = av
	return p
}

func (b *exprBuilder) marshal(v any) (string, error) {
	av, err := marshalValue(v)
	if err != nil {
		return "", err
	}
	return b.value(av), nil
}

// condition compiles a condition tree into a ConditionExpression
func (b *exprBuilder) condition(c *kv.Condition) (string, error) {
	switch c.Op {
	case kv.OpExists:
		return fmt.Sprintf("attribute_exists(%s)", b.name(c.Attr)), nil
	case kv.OpNotExists:
		return fmt.Sprintf("attribute_not_exists(%s)", b.name(c.Attr)), nil
	case kv.OpEquals, kv.OpLessThan, kv.OpGreaterThan:
		v, err := b.marshal(c.Value)
		if err != nil {
			return "", err
		}
		op := "="
		switch c.Op {
		case kv.OpLessThan:
			op = "<"
		case kv.OpGreaterThan:
			op = ">"
		}
		return fmt.Sprintf("%s %s %s", b.name(c.Attr), op, v), nil
	case kv.OpAnd, kv.OpOr:
		parts := make([]string, 0, len(c.Terms))
		for _, t := range c.Terms {
			p, err := b.condition(t)
			if err != nil {
				return "", err
			}
			parts = append(parts, p)
		}
		sep := " AND "
		if c.Op == kv.OpOr {
			sep = " OR "
		}
		return "(" + strings.Join(parts, sep) + ")", nil
	}
	return "", fmt.Errorf("dynamo: unsupported condition operator %d", c.Op)
}

// update compiles an Update into an UpdateExpression. Attribute order is
// sorted so the generated expression is deterministic.
func (b *exprBuilder) update(u kv.Update) (string, error) {
	var set, remove, add, del []string

	for _, a := range sortedKeys(u.Set) {
		v, err := b.marshal(u.Set[a])
		if err != nil {
			return "", err
		}
		set = append(set, fmt.Sprintf("%s = %s", b.name(a), v))
	}
	for _, a := range sortedKeys(u.SetIfAbsent) {
		v, err := b.marshal(u.SetIfAbsent[a])
		if err != nil {
			return "", err
		}
		n := b.name(a)
		set = append(set, fmt.Sprintf("%s = if_not_exists(%s, %s)", n, n, v))
	}
	removeAttrs := append([]string(nil), u.Remove...)
	sort.Strings(removeAttrs)
	for _, a := range removeAttrs {
		remove = append(remove, b.name(a))
	}
	for _, a := range sortedKeys(u.Increment) {
		v := b.value(&types.AttributeValueMemberN{Value: fmt.Sprintf("%d", u.Increment[a])})
		add = append(add, fmt.Sprintf("%s %s", b.name(a), v))
	}
	for _, a := range sortedKeys(u.AddToSet) {
		if len(u.AddToSet[a]) == 0 {
			continue
		}
		v := b.value(&types.AttributeValueMemberSS{Value: u.AddToSet[a]})
		add = append(add, fmt.Sprintf("%s %s", b.name(a), v))
	}
	for _, a := range sortedKeys(u.DeleteFromSet) {
		if len(u.DeleteFromSet[a]) == 0 {
			continue
		}
		v := b.value(&types.AttributeValueMemberSS{Value: u.DeleteFromSet[a]})
		del = append(del, fmt.Sprintf("%s %s", b.name(a), v))
	}

	var clauses []string
	if len(set) > 0 {
		clauses = append(clauses, "SET "+strings.Join(set, ", "))
	}
	if len(remove) > 0 {
		clauses = append(clauses, "REMOVE "+strings.Join(remove, ", "))
	}
	if len(add) > 0 {
		clauses = append(clauses, "ADD "+strings.Join(add, ", "))
	}
	if len(del) > 0 {
		clauses = append(clauses, "DELETE "+strings.Join(del, ", "))
	}
	if len(clauses) == 0 {
		return "", fmt.Errorf("dynamo: empty update expression")
	}
	return strings.Join(clauses, " "), nil
}

func (b *exprBuilder) attributeNames() map[string]string {
	if len(b.names) == 0 {
		return nil
	}
	return b.names
}

func (b *exprBuilder) attributeValues() map[string]types.AttributeValue {
	if len(b.values) == 0 {
		return nil
	}
	return b.values
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// marshalValue maps []string onto a string set; everything else goes through
// attributevalue
func marshalValue(v any) (types.AttributeValue, error) {
	if ss, ok := v.([]string); ok {
		return &types.AttributeValueMemberSS{Value: ss}, nil
	}
	av, err := attributevalue.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("dynamo: marshal value: %w", err)
	}
	return av, nil
}

// marshalItem converts an item to its wire form. Empty string sets are
// dropped because DynamoDB rejects them.
func marshalItem(item kv.Item) (map[string]types.AttributeValue, error) {
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		if ss, ok := v.([]string); ok && len(ss) == 0 {
			continue
		}
		av, err := marshalValue(v)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", k, err)
		}
		out[k] = av
	}
	return out, nil
}

func unmarshalItem(av map[string]types.AttributeValue) (kv.Item, error) {
	if len(av) == 0 {
		return nil, nil
	}
	var item kv.Item
	if err := attributevalue.UnmarshalMap(av, &item); err != nil {
		return nil, fmt.Errorf("dynamo: unmarshal item: %w", err)
	}
	return item, nil
}

func keyOf(key kv.Key) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		kv.AttrPK: &types.AttributeValueMemberS{Value: key.PK},
		kv.AttrSK: &types.AttributeValueMemberS{Value: key.SK},
	}
}
