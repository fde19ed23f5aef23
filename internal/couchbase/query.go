package couchbase

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/couchbase/gocb/v2"
	"github.com/rs/zerolog/log"

	"stealthcompany.com/wardbook/internal/kv"
)

var attrName = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// statement is a parameterized N1QL query
type statement struct {
	query  string
	params map[string]interface{}
	limit  int
}

// prefixUpperBound returns the smallest string greater than every string with
// the given prefix, so prefix matches become index-friendly range scans
func prefixUpperBound(prefix string) string {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			return string(b[:i+1])
		}
	}
	return ""
}

// fetchLimit reads one extra row so a full page can report whether more follow
func fetchLimit(limit int) string {
	if limit <= 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d", limit+1)
}

func buildPrefixQuery(keyspace string, q kv.PrefixQuery) statement {
	params := map[string]interface{}{"pk": q.PK}
	where := []string{"d.pk = $pk"}

	if q.SKPrefix != "" {
		params["lo"] = q.SKPrefix
		where = append(where, "d.sk >= $lo")
		if hi := prefixUpperBound(q.SKPrefix); hi != "" {
			params["hi"] = hi
			where = append(where, "d.sk < $hi")
		}
	}

	order := "ASC"
	if q.After != nil {
		params["after"] = q.After.SK
		if q.Descending {
			where = append(where, "d.sk < $after")
		} else {
			where = append(where, "d.sk > $after")
		}
	}
	if q.Descending {
		order = "DESC"
	}

	return statement{
		query: fmt.Sprintf("SELECT d.* FROM %s AS d WHERE %s ORDER BY d.sk %s%s",
			keyspace, strings.Join(where, " AND "), order, fetchLimit(q.Limit)),
		params: params,
		limit:  q.Limit,
	}
}

func buildIndexQuery(keyspace string, q kv.IndexQuery) (statement, error) {
	if !attrName.MatchString(q.Index) {
		return statement{}, fmt.Errorf("invalid index attribute %q", q.Index)
	}
	params := map[string]interface{}{"value": q.Value}
	where := []string{fmt.Sprintf("d.`%s` = $value", q.Index)}
	where = appendKeyset(where, params, q.After)

	return statement{
		query: fmt.Sprintf("SELECT d.* FROM %s AS d WHERE %s ORDER BY d.pk, d.sk%s",
			keyspace, strings.Join(where, " AND "), fetchLimit(q.Limit)),
		params: params,
		limit:  q.Limit,
	}, nil
}

func buildScanQuery(keyspace string, q kv.ScanQuery) statement {
	params := map[string]interface{}{}
	where := []string{"d.pk IS VALUED"}
	if q.PKPrefix != "" {
		params["lo"] = q.PKPrefix
		where = append(where, "d.pk >= $lo")
		if hi := prefixUpperBound(q.PKPrefix); hi != "" {
			params["hi"] = hi
			where = append(where, "d.pk < $hi")
		}
	}
	if q.SK != "" {
		params["sk"] = q.SK
		where = append(where, "d.sk = $sk")
	}
	where = appendKeyset(where, params, q.After)

	return statement{
		query: fmt.Sprintf("SELECT d.* FROM %s AS d WHERE %s ORDER BY d.pk, d.sk%s",
			keyspace, strings.Join(where, " AND "), fetchLimit(q.Limit)),
		params: params,
		limit:  q.Limit,
	}
}

// appendKeyset resumes a (pk, sk) ordered result after the given key
func appendKeyset(where []string, params map[string]interface{}, after *kv.Key) []string {
	if after == nil {
		return where
	}
	params["after_pk"] = after.PK
	params["after_sk"] = after.SK
	return append(where, "(d.pk > $after_pk OR (d.pk = $after_pk AND d.sk > $after_sk))")
}

// run executes a statement with request_plus consistency so a listing issued
// right after a write observes it
func (dm *DocumentManager) run(ctx context.Context, st statement) (kv.Page, error) {
	start := time.Now()
	rows, err := dm.conn.GetCluster().Query(st.query, &gocb.QueryOptions{
		Context:         ctx,
		NamedParameters: st.params,
		ScanConsistency: gocb.QueryScanConsistencyRequestPlus,
	})
	if err != nil {
		log.Error().
			Err(err).
			Str("query", st.query).
			Msg("Query failed")
		return kv.Page{}, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var page kv.Page
	for rows.Next() {
		var item kv.Item
		if err := rows.Row(&item); err != nil {
			return kv.Page{}, fmt.Errorf("failed to decode query row: %w", err)
		}
		page.Items = append(page.Items, item)
	}
	if err := rows.Err(); err != nil {
		return kv.Page{}, fmt.Errorf("query iteration failed: %w", err)
	}

	if st.limit > 0 && len(page.Items) > st.limit {
		page.Items = page.Items[:st.limit]
		last := page.Items[st.limit-1].Key()
		page.Next = &last
	}

	log.Debug().
		Str("query", st.query).
		Int("resultCount", len(page.Items)).
		Dur("duration", time.Since(start)).
		Msg("Query executed")
	return page, nil
}

func (dm *DocumentManager) QueryPrefix(ctx context.Context, q kv.PrefixQuery) (kv.Page, error) {
	return dm.run(ctx, buildPrefixQuery(dm.conn.Keyspace(), q))
}

func (dm *DocumentManager) QueryIndex(ctx context.Context, q kv.IndexQuery) (kv.Page, error) {
	st, err := buildIndexQuery(dm.conn.Keyspace(), q)
	if err != nil {
		return kv.Page{}, err
	}
	return dm.run(ctx, st)
}

func (dm *DocumentManager) Scan(ctx context.Context, q kv.ScanQuery) (kv.Page, error) {
	return dm.run(ctx, buildScanQuery(dm.conn.Keyspace(), q))
}
