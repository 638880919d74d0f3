package kb

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/ticketmind/backend/internal/storage/models"
	"github.com/ticketmind/backend/pkg/logger"
	"github.com/ticketmind/backend/pkg/textutil"
)

// ErrUnavailable signals that the article store could not be reached. Callers
// treat it as non-fatal and degrade to an empty candidate set.
var ErrUnavailable = errors.New("knowledge base unavailable")

const (
	titleWeight     = 10.0
	bodyWeight      = 2.0
	popularityScale = 0.5

	excerptWindow = 300
	excerptLead   = 100

	queryTimeout = 5 * time.Second
)

// Corpus is the read-only contract over the host's knowledge base.
type Corpus interface {
	QueryByKeywords(ctx context.Context, keywords []string, limit int) ([]models.Article, error)
	QueryByCategory(ctx context.Context, categoryID int64, limit int) ([]models.Article, error)
	Popular(ctx context.Context, limit int) ([]models.Article, error)
	CanView(a models.Article) bool
}

// Candidate is an article scored against a keyword set. Candidates live only
// for the duration of one search; persistence keeps article ids only.
type Candidate struct {
	ID         int64
	Title      string
	Body       string
	Views      int64
	Relevance  float64
	Confidence int
	Excerpt    string
}

type Searcher struct {
	corpus Corpus
}

func NewSearcher(corpus Corpus) *Searcher {
	return &Searcher{corpus: corpus}
}

// SearchByKeywords scores viewable articles matching any keyword and returns
// up to limit of them, most relevant first. An empty keyword set is an empty
// result, not an error.
func (s *Searcher) SearchByKeywords(ctx context.Context, keywords []string, limit int) ([]Candidate, error) {
	if len(keywords) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	articles, err := s.corpus.QueryByKeywords(ctx, keywords, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	candidates := s.rank(articles, keywords, true)
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	logger.Debug("Keyword search completed",
		zap.Strings("keywords", keywords),
		zap.Int("results", len(candidates)),
	)

	return candidates, nil
}

// SearchByCategory returns up to limit viewable articles from one category.
// When keywords are supplied the results are scored and re-ranked against
// them; otherwise the store's popularity order is kept.
func (s *Searcher) SearchByCategory(ctx context.Context, categoryID int64, limit int, keywords []string) ([]Candidate, error) {
	if categoryID <= 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	articles, err := s.corpus.QueryByCategory(ctx, categoryID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	candidates := s.rank(articles, keywords, len(keywords) > 0)
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// SearchCombined merges keyword and category results. Keyword hits win on
// duplicate ids; the merged set is re-sorted by relevance and truncated to
// limit.
func (s *Searcher) SearchCombined(ctx context.Context, keywords []string, categoryID int64, limit int) ([]Candidate, error) {
	merged, err := s.SearchByKeywords(ctx, keywords, limit)
	if err != nil {
		return nil, err
	}

	if categoryID > 0 {
		byCategory, err := s.SearchByCategory(ctx, categoryID, limit, keywords)
		if err != nil {
			return nil, err
		}

		seen := make(map[int64]bool, len(merged))
		for _, c := range merged {
			seen[c.ID] = true
		}
		for _, c := range byCategory {
			if !seen[c.ID] {
				merged = append(merged, c)
			}
		}

		sortByRelevance(merged)
		if len(merged) > limit {
			merged = merged[:limit]
		}
	}

	return merged, nil
}

// Popular returns the most viewed articles the caller may see, with a leading
// excerpt instead of a keyword window.
func (s *Searcher) Popular(ctx context.Context, limit int) ([]Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	articles, err := s.corpus.Popular(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var candidates []Candidate
	for _, a := range articles {
		if !s.corpus.CanView(a) {
			continue
		}
		candidates = append(candidates, Candidate{
			ID:      a.ID,
			Title:   a.Title,
			Body:    a.Body,
			Views:   a.Views,
			Excerpt: textutil.Truncate(textutil.StripMarkup(a.Body), 200),
		})
	}
	return candidates, nil
}

func (s *Searcher) rank(articles []models.Article, keywords []string, sorted bool) []Candidate {
	var candidates []Candidate
	for _, a := range articles {
		if !s.corpus.CanView(a) {
			continue
		}
		score := Score(a, keywords)
		candidates = append(candidates, Candidate{
			ID:         a.ID,
			Title:      a.Title,
			Body:       a.Body,
			Views:      a.Views,
			Relevance:  score,
			Confidence: Confidence(score, len(keywords)),
			Excerpt:    Excerpt(a.Body, keywords),
		})
	}

	if sorted {
		sortByRelevance(candidates)
	}
	return candidates
}

// Score is the additive lexical relevance of an article for a keyword set:
// 10 per title occurrence and 2 per body occurrence of each keyword, plus
// 0.5*ln(views+1) as a popularity tie-breaker.
func Score(a models.Article, keywords []string) float64 {
	titleLower := strings.ToLower(a.Title)
	bodyLower := strings.ToLower(a.Body)

	var score float64
	for _, kw := range keywords {
		kw = strings.ToLower(kw)
		if kw == "" {
			continue
		}
		score += float64(strings.Count(titleLower, kw)) * titleWeight
		score += float64(strings.Count(bodyLower, kw)) * bodyWeight
	}

	score += popularityScale * math.Log(float64(a.Views)+1)
	return score
}

// Confidence normalizes a score against the ideal of one title match per
// keyword, capped to [0, 100]. An empty keyword set has no confidence.
func Confidence(score float64, keywordCount int) int {
	if keywordCount == 0 {
		return 0
	}
	pct := int(math.Round(100 * score / (titleWeight * float64(keywordCount))))
	if pct > 100 {
		return 100
	}
	if pct < 0 {
		return 0
	}
	return pct
}

// Excerpt returns a window of up to 300 characters of the stripped body,
// starting 100 characters before the earliest keyword occurrence. Without a
// keyword hit it is the leading 300 characters. Ellipses mark truncation.
func Excerpt(body string, keywords []string) string {
	stripped := textutil.StripMarkup(body)
	lower := strings.ToLower(stripped)
	runes := []rune(stripped)

	pos := -1
	for _, kw := range keywords {
		kw = strings.ToLower(kw)
		if kw == "" {
			continue
		}
		if idx := strings.Index(lower, kw); idx >= 0 {
			runeIdx := utf8.RuneCountInString(lower[:idx])
			if pos < 0 || runeIdx < pos {
				pos = runeIdx
			}
		}
	}

	start := 0
	if pos > excerptLead {
		start = pos - excerptLead
	}

	end := start + excerptWindow
	if end > len(runes) {
		end = len(runes)
	}

	excerpt := string(runes[start:end])
	if start > 0 {
		excerpt = "..." + excerpt
	}
	if end < len(runes) {
		excerpt += "..."
	}
	return excerpt
}

func sortByRelevance(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Relevance > candidates[j].Relevance
	})
}
