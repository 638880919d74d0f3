package record

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/ticketmind/backend/pkg/logger"
	"github.com/ticketmind/backend/pkg/textutil"
)

const (
	maxKeywords     = 10
	minTokenLength  = 3
	timelineEntries = 5
	timelineMaxLen  = 200
)

// Category identifies the record's classification in the host taxonomy.
type Category struct {
	ID   int64
	Name string
}

// TimelineEntry is one markup-stripped, truncated activity excerpt.
type TimelineEntry struct {
	Content string
	Date    time.Time
}

// Context is the structured view of a record handed to the prompt compiler.
// It is derived on every request and never persisted.
type Context struct {
	ID          int64
	Kind        string
	Title       string
	Description string
	Status      string
	Priority    string
	Category    Category
	Keywords    []string
	Symptoms    []string
	Timeline    []TimelineEntry
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "that": true,
	"this": true, "from": true, "have": true, "been": true, "were": true,
	"will": true, "your": true, "they": true, "them": true, "then": true,
	"than": true, "when": true, "where": true, "what": true, "which": true,
	"about": true, "after": true, "before": true, "into": true, "over": true,
	"would": true, "could": true, "should": true, "please": true, "there": true,
	"some": true, "also": true, "just": true, "only": true, "very": true,
}

// symptomRules is applied in order against the lowercased description; every
// matching label is reported, none is exclusive.
var symptomRules = []struct {
	label   string
	pattern *regexp.Regexp
}{
	{"error", regexp.MustCompile(`error|fail|crash|broken|exception`)},
	{"slowness", regexp.MustCompile(`slow|lag|freez|hang|stuck|unresponsive`)},
	{"not working", regexp.MustCompile(`not work|won't open|does not open|not load|cannot open|stopped`)},
	{"access denied", regexp.MustCompile(`access denied|permission denied|no permission|blocked|forbidden`)},
	{"authentication", regexp.MustCompile(`password|login|log in|sign in|authentication|credential`)},
	{"printer", regexp.MustCompile(`printer|printing|print job`)},
	{"network", regexp.MustCompile(`network|internet|connection|wifi|vpn`)},
	{"email", regexp.MustCompile(`email|e-mail|mailbox|outlook`)},
}

var statusNames = map[int]string{
	1: "New",
	2: "Processing (assigned)",
	3: "Processing (planned)",
	4: "Pending",
	5: "Solved",
	6: "Closed",
}

var priorityNames = map[int]string{
	1: "Very low",
	2: "Low",
	3: "Medium",
	4: "High",
	5: "Very high",
	6: "Major",
}

// Analyzer builds a complete Context for a record, or fails; there is no
// partial extraction.
type Analyzer struct {
	provider Provider
}

func NewAnalyzer(provider Provider) *Analyzer {
	return &Analyzer{provider: provider}
}

// Extract loads the record, enforces the host's view gate, and derives the
// structured context. Inaccessible and missing records are indistinguishable.
func (a *Analyzer) Extract(ctx context.Context, id int64, kind string) (*Context, error) {
	r, err := a.provider.Load(ctx, id, kind)
	if err != nil {
		return nil, err
	}
	if !a.provider.CanView(r) {
		return nil, ErrNotFound
	}

	description := textutil.StripMarkup(r.Content)

	rc := &Context{
		ID:          r.ID,
		Kind:        r.Kind,
		Title:       r.Title,
		Description: description,
		Status:      statusName(r.Status),
		Priority:    priorityName(r.Priority),
		Category:    Category{ID: r.CategoryID, Name: categoryName(r.CategoryName)},
		Keywords:    ExtractKeywords(r.Title + " " + r.Content),
		Symptoms:    extractSymptoms(description),
	}

	followups, err := a.provider.Followups(ctx, id, kind, timelineEntries)
	if err != nil {
		return nil, err
	}
	for _, f := range followups {
		rc.Timeline = append(rc.Timeline, TimelineEntry{
			Content: textutil.Truncate(textutil.StripMarkup(f.Content), timelineMaxLen),
			Date:    f.CreatedAt,
		})
	}

	logger.Debug("Record context extracted",
		zap.Int64("record_id", id),
		zap.String("kind", kind),
		zap.Int("keywords", len(rc.Keywords)),
		zap.Strings("symptoms", rc.Symptoms),
	)

	return rc, nil
}

// ExtractKeywords derives the ranked keyword list for a record: markup
// stripped, lowercased, whitespace-tokenized, short tokens and stopwords
// dropped, ordered by descending frequency with ties broken by first
// occurrence, capped at ten.
func ExtractKeywords(text string) []string {
	words := tokenize(text)

	counts := make(map[string]int, len(words))
	var order []string
	for _, w := range words {
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	if len(order) > maxKeywords {
		order = order[:maxKeywords]
	}
	return order
}

// MessageKeywords derives search keywords from a single chat message:
// the same token filter, deduplicated in order of appearance, unranked.
func MessageKeywords(message string) []string {
	words := tokenize(message)

	seen := make(map[string]bool, len(words))
	var keywords []string
	for _, w := range words {
		if !seen[w] {
			seen[w] = true
			keywords = append(keywords, w)
		}
	}
	return keywords
}

func tokenize(text string) []string {
	text = strings.ToLower(textutil.StripMarkup(text))

	var kept []string
	for _, w := range strings.Fields(text) {
		if utf8.RuneCountInString(w) <= minTokenLength || stopwords[w] {
			continue
		}
		kept = append(kept, w)
	}
	return kept
}

func extractSymptoms(description string) []string {
	text := strings.ToLower(description)

	var symptoms []string
	for _, rule := range symptomRules {
		if rule.pattern.MatchString(text) {
			symptoms = append(symptoms, rule.label)
		}
	}
	return symptoms
}

func statusName(code int) string {
	if name, ok := statusNames[code]; ok {
		return name
	}
	return "Unknown"
}

func priorityName(code int) string {
	if name, ok := priorityNames[code]; ok {
		return name
	}
	return "Unknown"
}

func categoryName(name string) string {
	if name == "" {
		return "Uncategorized"
	}
	return name
}
