package search

import (
	"context"
	"path"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/Alexander-D-Karpov/streamplayer/pkg/types"
)

// ResourceLister is the part of the resource store the engine needs.
type ResourceLister interface {
	ListResources(ctx context.Context) ([]types.ResourceInfo, error)
	SearchResources(ctx context.Context, query string, limit int) ([]types.ResourceInfo, error)
}

type Engine struct {
	store ResourceLister
}

func NewEngine(store ResourceLister) *Engine {
	return &Engine{store: store}
}

// Search combines the store's substring matches with fuzzy matches over all keys.
func (e *Engine) Search(ctx context.Context, query string, limit int) ([]types.ResourceInfo, error) {
	if query == "" {
		return e.store.ListResources(ctx)
	}

	direct, err := e.store.SearchResources(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	all, err := e.store.ListResources(ctx)
	if err != nil {
		return nil, err
	}

	keys := make([]string, len(all))
	byKey := make(map[string]types.ResourceInfo, len(all))
	for i, info := range all {
		keys[i] = info.Key
		byKey[info.Key] = info
	}

	var fuzzyResults []types.ResourceInfo
	for _, key := range Rank(query, keys) {
		fuzzyResults = append(fuzzyResults, byKey[key])
	}

	results := mergeResources(direct, fuzzyResults)
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

type scoredName struct {
	Name  string
	Score float64
}

// Rank orders the names that resemble query, best match first. Names that do
// not resemble it at all are left out.
func Rank(query string, names []string) []string {
	var scored []scoredName
	queryLower := strings.ToLower(query)

	for _, name := range names {
		score := 0.0
		nameLower := strings.ToLower(name)
		base := path.Base(nameLower)

		if base == queryLower || nameLower == queryLower {
			score += 20.0
		}

		if strings.Contains(nameLower, queryLower) {
			score += 10.0
		}

		if fuzzy.MatchNormalizedFold(query, name) {
			score += 5.0
		}

		distance := fuzzy.LevenshteinDistance(queryLower, base)
		if distance <= len(queryLower)/2 {
			score += float64(len(queryLower) - distance)
		}

		if score > 0 {
			scored = append(scored, scoredName{Name: name, Score: score})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	result := make([]string, 0, len(scored))
	for _, s := range scored {
		result = append(result, s.Name)
	}
	return result
}

// FoldedMatch returns the candidate that spells name once case and
// diacritics are folded away. Names that differ in any other character do
// not match.
func FoldedMatch(name string, candidates []string) (string, bool) {
	for _, c := range candidates {
		if strings.EqualFold(c, name) {
			return c, true
		}
	}
	for _, c := range candidates {
		// subsequence both ways means the normalized names are equal
		if fuzzy.MatchNormalizedFold(name, c) && fuzzy.MatchNormalizedFold(c, name) {
			return c, true
		}
	}
	return "", false
}

func mergeResources(a, b []types.ResourceInfo) []types.ResourceInfo {
	seen := make(map[string]bool)
	var result []types.ResourceInfo

	for _, r := range a {
		if !seen[r.Key] {
			result = append(result, r)
			seen[r.Key] = true
		}
	}
	for _, r := range b {
		if !seen[r.Key] {
			result = append(result, r)
			seen[r.Key] = true
		}
	}
	return result
}
