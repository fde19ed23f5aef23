package dal

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"

	"stealthcompany.com/wardbook/internal/codec"
	"stealthcompany.com/wardbook/internal/kv"
	"stealthcompany.com/wardbook/internal/model"
	"stealthcompany.com/wardbook/pkg/apperrors"
)

// ChecklistModel owns the transition checklist definitions. Reads go through
// a short-lived cache; a write on another instance becomes visible here once
// the cached entry expires.
type ChecklistModel struct {
	*base
	cache *cache.Cache
}

// ChecklistInput is the body of an upsert
type ChecklistInput struct {
	From       model.Stage
	To         model.Stage
	EntryItems []string
	ExitItems  []string
}

// newChecklistModel caches definitions for ttl; a non-positive ttl disables the cache
func newChecklistModel(b *base, ttl time.Duration) *ChecklistModel {
	m := &ChecklistModel{base: b}
	if ttl > 0 {
		m.cache = cache.New(ttl, 2*ttl)
	}
	return m
}

func checklistCacheKey(from, to model.Stage) string {
	return string(from) + "->" + string(to)
}

func validateTransition(from, to model.Stage) error {
	if !from.Valid() {
		return apperrors.Validation("invalid_from", fmt.Sprintf("unknown workflow state %q", from))
	}
	if !to.Valid() {
		return apperrors.Validation("invalid_to", fmt.Sprintf("unknown workflow state %q", to))
	}
	if from == to {
		return apperrors.Validation("invalid_transition", "from and to must differ")
	}
	return nil
}

// Get returns the checklist of one transition
func (m *ChecklistModel) Get(ctx context.Context, from, to model.Stage) (*model.Checklist, error) {
	if err := validateTransition(from, to); err != nil {
		return nil, err
	}
	ck := checklistCacheKey(from, to)
	if m.cache != nil {
		if v, ok := m.cache.Get(ck); ok {
			return v.(*model.Checklist), nil
		}
	}

	it, err := m.store.Get(ctx, codec.ChecklistKey(from, to))
	if err != nil {
		return nil, translate(err, "checklist", ck)
	}
	c := codec.ChecklistFromItem(it)
	if m.cache != nil {
		m.cache.SetDefault(ck, c)
	}
	return c, nil
}

// Put replaces the checklist of one transition. Definitions are
// configuration, so the last writer wins.
func (m *ChecklistModel) Put(ctx context.Context, in ChecklistInput, actor string) (*model.Checklist, error) {
	if err := validateTransition(in.From, in.To); err != nil {
		return nil, err
	}
	entry, err := cleanItems("entryItems", in.EntryItems)
	if err != nil {
		return nil, err
	}
	exit, err := cleanItems("exitItems", in.ExitItems)
	if err != nil {
		return nil, err
	}

	c := &model.Checklist{
		From:       in.From,
		To:         in.To,
		EntryItems: entry,
		ExitItems:  exit,
		UpdatedBy:  actor,
		UpdatedAt:  m.now(),
	}
	ck := checklistCacheKey(in.From, in.To)
	if err := m.store.Put(ctx, codec.ChecklistToItem(c), nil); err != nil {
		return nil, translate(err, "checklist", ck)
	}
	if m.cache != nil {
		m.cache.SetDefault(ck, c)
	}

	log.Info().Str("transition", ck).Str("actor", actor).Msg("Checklist saved")
	return c, nil
}

// List returns every checklist ordered by workflow position
func (m *ChecklistModel) List(ctx context.Context) ([]*model.Checklist, error) {
	var (
		out   []*model.Checklist
		after *kv.Key
	)
	for {
		page, err := m.store.QueryPrefix(ctx, kv.PrefixQuery{
			PK:       codec.ChecklistPK,
			SKPrefix: codec.TransitionPrefix,
			Limit:    m.opts.MaxPageSize,
			After:    after,
		})
		if err != nil {
			return nil, translate(err, "checklists", "all")
		}
		for _, it := range page.Items {
			out = append(out, codec.ChecklistFromItem(it))
		}
		if page.Next == nil {
			break
		}
		after = page.Next
	}

	sort.Slice(out, func(i, j int) bool {
		if a, b := out[i].From.Index(), out[j].From.Index(); a != b {
			return a < b
		}
		return out[i].To.Index() < out[j].To.Index()
	})
	if out == nil {
		out = []*model.Checklist{}
	}
	return out, nil
}

// cleanItems trims items and rejects blanks
func cleanItems(field string, items []string) ([]string, error) {
	out := make([]string, 0, len(items))
	for _, s := range items {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, apperrors.Validation("invalid_"+field, field+" must not contain blank entries")
		}
		out = append(out, s)
	}
	return out, nil
}
