// Package score ranks the candidate entities of each tag by label
// similarity and entity ranking.
package score

import (
	"context"
	"math"
	"slices"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
	"go.uber.org/zap"

	"github.com/cognicore/fstlink/pkg/fstlink/entity"
)

// DefaultMaxSuggestions is used when Options.MaxSuggestions is not set.
const DefaultMaxSuggestions = 3

// maxRankingSpread bounds the score change of a tie group.
const maxRankingSpread = 0.1

// Options configures a Scorer.
type Options struct {
	CaseSensitive  bool
	MaxSuggestions int
	// MinMatchScore drops matches scoring below it.
	MinMatchScore float64
	// RankEqualScores orders equally scored matches by entity ranking.
	RankEqualScores bool
	// IncludeSimilarScores keeps suggestions beyond MaxSuggestions that
	// score as high as the first one cut.
	IncludeSimilarScores bool
	TypeFilter           TypeFilter
	// TypeMappings maps entity types to output categories.
	TypeMappings map[string]string
	// DefaultType is the category when no type maps.
	DefaultType string
	// NETypeMappings maps named entity types to accepted entity types.
	NETypeMappings map[string][]string
	Logger         *zap.Logger
}

// NETypes returns the named entity types covering a span. A non-nil
// NETypes replaces the type filter with the named entity type mappings.
type NETypes func(start, end int) []string

// Stats counts the matches seen by one Score call.
type Stats struct {
	Matches      int
	TypeFiltered int
	LoadFailed   int
	BelowMin     int
	DroppedTags  int
}

// Scorer is safe for concurrent use.
type Scorer struct {
	opts Options
	log  *zap.Logger
}

// New creates a scorer.
func New(opts Options) *Scorer {
	if opts.MaxSuggestions <= 0 {
		opts.MaxSuggestions = DefaultMaxSuggestions
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Scorer{opts: opts, log: log.Named("score")}
}

// Options returns the effective options.
func (s *Scorer) Options() Options { return s.opts }

// Score sets the suggestions of every tag and returns the tags that kept
// at least one, in span order.
func (s *Scorer) Score(ctx context.Context, text string, tags []*entity.Tag, ne NETypes) ([]*entity.Tag, Stats) {
	var stats Stats
	out := make([]*entity.Tag, 0, len(tags))
	for _, tag := range tags {
		suggestions := s.scoreTag(ctx, text, tag, ne, &stats)
		if len(suggestions) == 0 {
			stats.DroppedTags++
			continue
		}
		tag.Suggestions = suggestions
		tag.Score = suggestions[0].Score
		out = append(out, tag)
	}
	slices.SortFunc(out, entity.Compare)
	return out, stats
}

func (s *Scorer) scoreTag(ctx context.Context, text string, tag *entity.Tag, ne NETypes, stats *Stats) []*entity.Match {
	tag.Anchor = text[tag.Start:tag.End]
	anchor := tag.Anchor
	if !s.opts.CaseSensitive {
		anchor = strings.ToLower(anchor)
	}
	anchorLen := utf8.RuneCountInString(anchor)

	var neTypes []string
	if ne != nil {
		neTypes = ne(tag.Start, tag.End)
	}

	suggestions := make([]*entity.Match, 0, len(tag.Matches()))
	for _, m := range tag.Matches() {
		stats.Matches++
		doc, err := m.Document(ctx)
		if err != nil {
			stats.LoadFailed++
			s.log.Debug("skipping match", zap.Uint32("doc", m.DocID), zap.Error(err))
			continue
		}
		var filtered bool
		if ne != nil {
			filtered = filteredByNamedEntity(s.opts.NETypeMappings, doc.Types, neTypes)
		} else {
			filtered = s.opts.TypeFilter.Filtered(doc.Types)
		}
		if filtered {
			stats.TypeFiltered++
			continue
		}
		label, distance, ok := s.closestLabel(anchor, doc.Labels)
		if !ok {
			continue
		}
		if distance == 0 {
			m.Score = 1
		} else {
			length := max(anchorLen, utf8.RuneCountInString(label))
			m.Score = 1 - float64(distance)/float64(length)
		}
		m.Label = label
		if m.Score < s.opts.MinMatchScore {
			stats.BelowMin++
			continue
		}
		suggestions = append(suggestions, m)
	}
	if len(suggestions) < 2 {
		return suggestions
	}

	sortByScore(suggestions)
	limit := s.opts.MaxSuggestions
	if s.opts.IncludeSimilarScores && len(suggestions) > limit+1 {
		cut := suggestions[limit].Score
		n := limit + 1
		for n < len(suggestions) && suggestions[n].Score >= cut {
			n++
		}
		limit = n
	}
	if s.opts.RankEqualScores {
		adaptScores(suggestions)
	}
	if len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}
	return suggestions
}

// closestLabel returns the label with the smallest edit distance to
// anchor and the distance.
func (s *Scorer) closestLabel(anchor string, labels []string) (string, int, bool) {
	best, distance := "", math.MaxInt
	for _, label := range labels {
		cmp := label
		if !s.opts.CaseSensitive {
			cmp = strings.ToLower(label)
		}
		if d := matchr.Levenshtein(anchor, cmp); d < distance {
			best, distance = label, d
			if d == 0 {
				break
			}
		}
	}
	return best, distance, distance != math.MaxInt
}

func sortByScore(ms []*entity.Match) {
	sort.SliceStable(ms, func(i, j int) bool { return ms[i].Score > ms[j].Score })
}

// compareRanking orders matches by entity ranking, highest first; matches
// without ranking sort last.
func compareRanking(a, b *entity.Match) int {
	ra, oka := ranking(a)
	rb, okb := ranking(b)
	switch {
	case !oka && !okb:
		return 0
	case !oka:
		return 1
	case !okb:
		return -1
	case ra > rb:
		return -1
	case ra < rb:
		return 1
	}
	return 0
}

func ranking(m *entity.Match) (float64, bool) {
	doc, ok := m.Loaded()
	if !ok || !doc.HasRanking {
		return 0, false
	}
	return doc.Ranking, true
}

// adaptScores separates runs of equal scores by entity ranking. ms must be
// sorted by score.
func adaptScores(ms []*entity.Match) {
	var run []*entity.Match
	score := math.Inf(1)
	for _, m := range ms {
		if m.Score == score {
			run = append(run, m)
			continue
		}
		if len(run) > 1 {
			adaptRun(run, m.Score)
		}
		score = m.Score
		run = append(run[:0], m)
	}
	if len(run) > 1 {
		adaptRun(run, 0)
	}
	sortByScore(ms)
}

// adaptRun lowers the scores of a run of equally scored matches in
// ranking order. The total change stays below both maxRankingSpread and
// the distance to next, the score following the run. Matches ranked equal
// to their predecessor take its score.
func adaptRun(run []*entity.Match, next float64) {
	score := run[0].Score
	step := math.Min(maxRankingSpread, score-next) / float64(len(run))
	slices.SortStableFunc(run, compareRanking)
	for i := 1; i < len(run); i++ {
		score -= step
		if compareRanking(run[i-1], run[i]) != 0 {
			run[i].Score = score
		} else {
			run[i].Score = run[i-1].Score
		}
	}
}

// Categories maps the types of the best scored suggestions to output
// categories, falling back to the default type.
func (s *Scorer) Categories(suggestions []*entity.Match) []string {
	if len(suggestions) == 0 {
		return nil
	}
	seen := make(map[string]struct{})
	top := suggestions[0].Score
	for _, m := range suggestions {
		if m.Score < top {
			break
		}
		doc, ok := m.Loaded()
		if !ok {
			continue
		}
		for _, t := range doc.Types {
			if c, ok := s.opts.TypeMappings[t]; ok {
				seen[c] = struct{}{}
			}
		}
	}
	if len(seen) == 0 {
		if s.opts.DefaultType == "" {
			return nil
		}
		return []string{s.opts.DefaultType}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
