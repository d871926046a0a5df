// Package matcher decides whether a candidate skeleton duplicates a template already in the library.
package matcher

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"bigbio/internal/library/model"
)

// ExactScore is the score of a signature match.
const ExactScore = 1.0

// Corpus is the template index the matcher searches. Implementations own the similarity measure; scores
// are in [0,1], higher meaning more similar.
type Corpus interface {
	FindExactTemplateMatches(ctx context.Context, sig string) ([]model.TemplateMatch, error)
	FindFuzzyTemplateMatches(ctx context.Context, text string, limit int) ([]model.TemplateMatch, error)
}

// Matcher decides whether a candidate skeleton duplicates an existing template.
type Matcher struct {
	Threshold  float64
	FuzzyLimit int
}

// New returns a Matcher. A fuzzyLimit below 1 is raised to 1.
func New(threshold float64, fuzzyLimit int) *Matcher {
	if fuzzyLimit < 1 {
		fuzzyLimit = 1
	}
	return &Matcher{Threshold: threshold, FuzzyLimit: fuzzyLimit}
}

// IsDuplicate applies the promotion rule: any exact match, or a fuzzy score at or above the threshold.
func (m *Matcher) IsDuplicate(best *model.TemplateMatch, exact bool) bool {
	if best == nil {
		return false
	}
	return exact || best.Score >= m.Threshold
}

// BestMatch checks the exact index first and only falls back to the fuzzy index when it is empty.
func (m *Matcher) BestMatch(ctx context.Context, corpus Corpus, c model.Candidate) (*model.TemplateMatch, bool, error) {
	exact, err := corpus.FindExactTemplateMatches(ctx, c.SkeletonSig)
	if err != nil {
		return nil, false, fmt.Errorf("exact template lookup: %w", err)
	}
	if best := bestExact(exact); best != nil {
		return best, true, nil
	}

	fuzzy, err := corpus.FindFuzzyTemplateMatches(ctx, c.SkeletonText, m.FuzzyLimit)
	if err != nil {
		return nil, false, fmt.Errorf("fuzzy template lookup: %w", err)
	}
	fuzzy = Rank(fuzzy, m.FuzzyLimit)
	if len(fuzzy) == 0 {
		return nil, false, nil
	}
	best := fuzzy[0]
	return &best, false, nil
}

// FindAll runs both lookups concurrently and returns every match. Exact matches carry ExactScore.
func (m *Matcher) FindAll(ctx context.Context, corpus Corpus, c model.Candidate) (model.MatchResult, error) {
	var exact, fuzzy []model.TemplateMatch

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		exact, err = corpus.FindExactTemplateMatches(gCtx, c.SkeletonSig)
		if err != nil {
			return fmt.Errorf("exact template lookup: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		fuzzy, err = corpus.FindFuzzyTemplateMatches(gCtx, c.SkeletonText, m.FuzzyLimit)
		if err != nil {
			return fmt.Errorf("fuzzy template lookup: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return model.MatchResult{}, err
	}

	for i := range exact {
		exact[i].Score = ExactScore
	}
	if exact == nil {
		exact = []model.TemplateMatch{}
	}
	return model.MatchResult{Exact: exact, Fuzzy: Rank(fuzzy, m.FuzzyLimit)}, nil
}

// Decide picks the best match of a MatchResult the same way BestMatch does.
func (m *Matcher) Decide(r model.MatchResult) (*model.TemplateMatch, bool) {
	if best := bestExact(r.Exact); best != nil {
		return best, true
	}
	ranked := Rank(r.Fuzzy, m.FuzzyLimit)
	if len(ranked) == 0 {
		return nil, false
	}
	best := ranked[0]
	return &best, false
}

// Rank orders matches by score descending, then library item ID ascending, and keeps the top limit.
// The input slice is not modified.
func Rank(matches []model.TemplateMatch, limit int) []model.TemplateMatch {
	out := append([]model.TemplateMatch{}, matches...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].LibraryItemID < out[j].LibraryItemID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// bestExact returns the first exact match (the store orders them oldest first) with ExactScore.
func bestExact(exact []model.TemplateMatch) *model.TemplateMatch {
	if len(exact) == 0 {
		return nil
	}
	best := exact[0]
	best.Score = ExactScore
	return &best
}
