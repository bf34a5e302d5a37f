// Package retrieval narrows a free-form message to a short list of menu candidates.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"unicode/utf8"

	"maitred/internal/models"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"
)

const (
	// DefaultLimit caps the candidate list when the caller passes no limit
	DefaultLimit = 20
	// MinWeight is the exact/synonym score above which the fuzzy layer is skipped for an item
	MinWeight = 0.5
)

// Catalog is the part of the menu source the retriever reads
type Catalog interface {
	MenuVersion(ctx context.Context, tenantID string) (int, error)
	GetActiveMenuItems(ctx context.Context, tenantID string) ([]models.MenuItem, error)
	GetSynonyms(ctx context.Context, tenantID string) ([]models.MenuSynonym, error)
}

// Retriever finds menu candidates in customer text. Safe for concurrent use.
type Retriever struct {
	catalog      Catalog
	cache        *lru.Cache
	defaultLimit int
	log          zerolog.Logger
}

// New creates a retriever caching up to cacheSize tenant indexes
func New(catalog Catalog, cacheSize, defaultLimit int, log zerolog.Logger) (*Retriever, error) {
	if cacheSize <= 0 {
		cacheSize = 128
	}
	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create index cache: %w", err)
	}
	return &Retriever{
		catalog:      catalog,
		cache:        cache,
		defaultLimit: defaultLimit,
		log:          log.With().Str("component", "retrieval").Logger(),
	}, nil
}

// Retrieve returns up to limit candidates ordered by score desc, shorter matched phrase, item id
func (r *Retriever) Retrieve(ctx context.Context, tenantID, text string, limit int) ([]Candidate, error) {
	idx, err := r.Index(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = r.defaultLimit
	}
	return idx.Search(text, limit), nil
}

// Index returns the cached index of the tenant's current menu version, building it on a miss
func (r *Retriever) Index(ctx context.Context, tenantID string) (*Index, error) {
	version, err := r.catalog.MenuVersion(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("menu version for %s: %w", tenantID, err)
	}

	key := fmt.Sprintf("%s@%d", tenantID, version)
	if cached, ok := r.cache.Get(key); ok {
		return cached.(*Index), nil
	}

	items, err := r.catalog.GetActiveMenuItems(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("menu items for %s: %w", tenantID, err)
	}
	synonyms, err := r.catalog.GetSynonyms(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("synonyms for %s: %w", tenantID, err)
	}

	idx := BuildIndex(tenantID, version, items, synonyms)
	r.cache.Add(key, idx)
	r.log.Debug().
		Str("tenant", tenantID).
		Int("version", version).
		Int("items", idx.Size()).
		Msg("built menu index")
	return idx, nil
}

// Search runs the exact, synonym and fuzzy layers against text
func (idx *Index) Search(text string, limit int) []Candidate {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}

	best := make(map[string]Candidate)
	consider := func(c Candidate) {
		cur, ok := best[c.MenuItemID]
		if !ok || better(c, cur) {
			best[c.MenuItemID] = c
		}
	}

	for _, p := range idx.names {
		if containsSequence(tokens, p.tokens) {
			consider(idx.candidate(p, 1, MatchExact))
		}
	}
	for _, p := range idx.synonyms {
		if containsSequence(tokens, p.tokens) {
			consider(idx.candidate(p, p.weight, MatchSynonym))
		}
	}

	for _, p := range idx.names {
		if cur, ok := best[p.itemID]; ok && cur.Score >= MinWeight {
			continue
		}
		score := fuzzyScore(p.tokens, tokens)
		if score >= minFuzzyScore {
			consider(idx.candidate(p, score, MatchFuzzy))
		}
	}

	out := make([]Candidate, 0, len(best))
	for _, c := range best {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return better(out[i], out[j])
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (idx *Index) candidate(p phrase, score float64, mt MatchType) Candidate {
	return Candidate{
		MenuItemID:    p.itemID,
		Name:          idx.items[p.itemID].Name,
		MatchedPhrase: p.text,
		Score:         score,
		MatchType:     mt,
	}
}

// better is the total order used for dedup and ranking
func better(a, b Candidate) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	la, lb := utf8.RuneCountInString(a.MatchedPhrase), utf8.RuneCountInString(b.MatchedPhrase)
	if la != lb {
		return la < lb
	}
	if a.MenuItemID != b.MenuItemID {
		return a.MenuItemID < b.MenuItemID
	}
	return a.MatchType < b.MatchType
}
