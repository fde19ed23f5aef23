// Package dynamo implements kv.Store on a single DynamoDB table keyed by
// pk (hash) and sk (range), with one global secondary index per
// classification attribute.
package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"

	"stealthcompany.com/wardbook/internal/kv"
)

// API is the subset of the DynamoDB client the store calls
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Store is the DynamoDB kv.Store engine
type Store struct {
	client API
	table  string
}

// NewClient builds a DynamoDB client from the default AWS credential chain.
// endpoint overrides the service URL (DynamoDB Local, LocalStack).
func NewClient(ctx context.Context, region, endpoint string) (*dynamodb.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

// NewStore creates the engine for the given table
func NewStore(client API, table string) *Store {
	return &Store{client: client, table: table}
}

// IndexName returns the GSI serving a classification attribute
func IndexName(attr string) string {
	return attr + "-index"
}

func (s *Store) Get(ctx context.Context, key kv.Key) (kv.Item, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            keyOf(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item %s/%s: %w", key.PK, key.SK, err)
	}
	item, err := unmarshalItem(out.Item)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, kv.ErrNotFound
	}
	return item, nil
}

func (s *Store) Put(ctx context.Context, item kv.Item, cond *kv.Condition) error {
	av, err := marshalItem(item)
	if err != nil {
		return err
	}
	in := &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      av,
	}
	if cond != nil {
		b := newExprBuilder()
		expr, err := b.condition(cond)
		if err != nil {
			return err
		}
		in.ConditionExpression = aws.String(expr)
		in.ExpressionAttributeNames = b.attributeNames()
		in.ExpressionAttributeValues = b.attributeValues()
	}

	if _, err := s.client.PutItem(ctx, in); err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return kv.ErrPreconditionFailed
		}
		key := item.Key()
		return fmt.Errorf("put item %s/%s: %w", key.PK, key.SK, err)
	}
	return nil
}

// Update always adds an item-exists guard so it never creates, and asks for
// the old image on condition failure to tell NotFound from PreconditionFailed
func (s *Store) Update(ctx context.Context, key kv.Key, upd kv.Update, cond *kv.Condition) (kv.Item, error) {
	if err := upd.Validate(); err != nil {
		return nil, err
	}
	b := newExprBuilder()
	updateExpr, err := b.update(upd)
	if err != nil {
		return nil, err
	}
	condExpr, err := b.condition(kv.And(kv.ItemExists(), cond))
	if err != nil {
		return nil, err
	}

	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                           aws.String(s.table),
		Key:                                 keyOf(key),
		UpdateExpression:                    aws.String(updateExpr),
		ConditionExpression:                 aws.String(condExpr),
		ExpressionAttributeNames:            b.attributeNames(),
		ExpressionAttributeValues:           b.attributeValues(),
		ReturnValues:                        types.ReturnValueAllNew,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			if len(ccf.Item) == 0 {
				return nil, kv.ErrNotFound
			}
			return nil, kv.ErrPreconditionFailed
		}
		return nil, fmt.Errorf("update item %s/%s: %w", key.PK, key.SK, err)
	}
	return unmarshalItem(out.Attributes)
}

// pager drives one paginated DynamoDB read. It reads limit+1 items so a full
// page reports a resume key only when another item actually follows.
type pager func(ctx context.Context, start map[string]types.AttributeValue) ([]map[string]types.AttributeValue, map[string]types.AttributeValue, error)

func collect(ctx context.Context, limit int, start map[string]types.AttributeValue, next pager) (kv.Page, error) {
	var page kv.Page
	for {
		rows, last, err := next(ctx, start)
		if err != nil {
			return kv.Page{}, err
		}
		for _, row := range rows {
			item, err := unmarshalItem(row)
			if err != nil {
				return kv.Page{}, err
			}
			if limit > 0 && len(page.Items) == limit {
				k := page.Items[limit-1].Key()
				page.Next = &k
				return page, nil
			}
			page.Items = append(page.Items, item)
		}
		if len(last) == 0 {
			return page, nil
		}
		start = last
	}
}

func startKey(after *kv.Key, extra map[string]string) map[string]types.AttributeValue {
	if after == nil {
		return nil
	}
	k := keyOf(*after)
	for attr, v := range extra {
		k[attr] = &types.AttributeValueMemberS{Value: v}
	}
	return k
}

func pageLimit(limit int) *int32 {
	if limit <= 0 {
		return nil
	}
	return aws.Int32(int32(limit + 1))
}

func (s *Store) QueryPrefix(ctx context.Context, q kv.PrefixQuery) (kv.Page, error) {
	b := newExprBuilder()
	pk, err := b.marshal(q.PK)
	if err != nil {
		return kv.Page{}, err
	}
	keyCond := fmt.Sprintf("%s = %s", b.name(kv.AttrPK), pk)
	if q.SKPrefix != "" {
		prefix, err := b.marshal(q.SKPrefix)
		if err != nil {
			return kv.Page{}, err
		}
		keyCond += fmt.Sprintf(" AND begins_with(%s, %s)", b.name(kv.AttrSK), prefix)
	}

	return collect(ctx, q.Limit, startKey(q.After, nil), func(ctx context.Context, start map[string]types.AttributeValue) ([]map[string]types.AttributeValue, map[string]types.AttributeValue, error) {
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(s.table),
			KeyConditionExpression:    aws.String(keyCond),
			ExpressionAttributeNames:  b.attributeNames(),
			ExpressionAttributeValues: b.attributeValues(),
			ScanIndexForward:          aws.Bool(!q.Descending),
			ExclusiveStartKey:         start,
			Limit:                     pageLimit(q.Limit),
			ConsistentRead:            aws.Bool(true),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("query %s: %w", q.PK, err)
		}
		return out.Items, out.LastEvaluatedKey, nil
	})
}

func (s *Store) QueryIndex(ctx context.Context, q kv.IndexQuery) (kv.Page, error) {
	b := newExprBuilder()
	v, err := b.marshal(q.Value)
	if err != nil {
		return kv.Page{}, err
	}
	keyCond := fmt.Sprintf("%s = %s", b.name(q.Index), v)

	log.Debug().
		Str("index", IndexName(q.Index)).
		Str("value", q.Value).
		Msg("Querying classification index")

	return collect(ctx, q.Limit, startKey(q.After, map[string]string{q.Index: q.Value}), func(ctx context.Context, start map[string]types.AttributeValue) ([]map[string]types.AttributeValue, map[string]types.AttributeValue, error) {
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(s.table),
			IndexName:                 aws.String(IndexName(q.Index)),
			KeyConditionExpression:    aws.String(keyCond),
			ExpressionAttributeNames:  b.attributeNames(),
			ExpressionAttributeValues: b.attributeValues(),
			ExclusiveStartKey:         start,
			Limit:                     pageLimit(q.Limit),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("query index %s: %w", IndexName(q.Index), err)
		}
		return out.Items, out.LastEvaluatedKey, nil
	})
}

// Scan filters a full-table scan; results come back in table order rather
// than primary-key order
func (s *Store) Scan(ctx context.Context, q kv.ScanQuery) (kv.Page, error) {
	b := newExprBuilder()
	var filters []string
	if q.PKPrefix != "" {
		p, err := b.marshal(q.PKPrefix)
		if err != nil {
			return kv.Page{}, err
		}
		filters = append(filters, fmt.Sprintf("begins_with(%s, %s)", b.name(kv.AttrPK), p))
	}
	if q.SK != "" {
		v, err := b.marshal(q.SK)
		if err != nil {
			return kv.Page{}, err
		}
		filters = append(filters, fmt.Sprintf("%s = %s", b.name(kv.AttrSK), v))
	}
	var filter *string
	if len(filters) > 0 {
		expr := filters[0]
		for _, f := range filters[1:] {
			expr += " AND " + f
		}
		filter = aws.String(expr)
	}

	return collect(ctx, q.Limit, startKey(q.After, nil), func(ctx context.Context, start map[string]types.AttributeValue) ([]map[string]types.AttributeValue, map[string]types.AttributeValue, error) {
		out, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:                 aws.String(s.table),
			FilterExpression:          filter,
			ExpressionAttributeNames:  b.attributeNames(),
			ExpressionAttributeValues: b.attributeValues(),
			ExclusiveStartKey:         start,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("scan %s: %w", q.PKPrefix, err)
		}
		return out.Items, out.LastEvaluatedKey, nil
	})
}
