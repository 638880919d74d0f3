package ai

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/ticketmind/backend/internal/storage/models"
)

// SourcesMarker prefixes the machine-readable citation block the model is
// instructed to append when it answers from general knowledge.
const SourcesMarker = "[SOURCES]"

var sourcesPattern = regexp.MustCompile(`(?s)\[SOURCES\]\s*(\[.*?\])`)

// ExtractSources splits a model reply into visible text and the citation list
// encoded after the SourcesMarker. The marker and its array are removed from
// the text even when the array does not parse; a reply without the marker is
// returned untouched. Running the result through ExtractSources again is a
// no-op.
func ExtractSources(text string) (string, []models.Source) {
	m := sourcesPattern.FindStringSubmatchIndex(text)
	if m == nil {
		return text, nil
	}

	cleaned := strings.TrimSpace(text[:m[0]] + text[m[1]:])

	var raw []models.Source
	if err := json.Unmarshal([]byte(text[m[2]:m[3]]), &raw); err != nil {
		return cleaned, nil
	}

	sources := make([]models.Source, 0, len(raw))
	for _, s := range raw {
		if s.Title == "" && s.URL == "" {
			continue
		}
		s.Title = sanitizeText(s.Title)
		s.URL = sanitizeText(s.URL)
		sources = append(sources, s)
	}
	if len(sources) == 0 {
		return cleaned, nil
	}
	return cleaned, sources
}
