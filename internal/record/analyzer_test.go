package record

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketmind/backend/internal/storage/models"
)

type fakeProvider struct {
	record    *models.Record
	loadErr   error
	viewable  bool
	followups []models.Followup
	fuErr     error
}

func (f *fakeProvider) Load(_ context.Context, _ int64, _ string) (*models.Record, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.record, nil
}

func (f *fakeProvider) CanView(_ *models.Record) bool {
	return f.viewable
}

func (f *fakeProvider) Followups(_ context.Context, _ int64, _ string, _ int) ([]models.Followup, error) {
	return f.followups, f.fuErr
}

func TestExtractBuildsCompleteContext(t *testing.T) {
	provider := &fakeProvider{
		record: &models.Record{
			ID:           42,
			Kind:         KindTicket,
			Title:        "Printer not working",
			Content:      "<p>The printer shows an <b>error</b> and the print job is stuck.</p>",
			Status:       2,
			Priority:     4,
			CategoryID:   7,
			CategoryName: "Hardware",
		},
		viewable: true,
		followups: []models.Followup{
			{Content: "<div>Restarted the spooler, no change.</div>", CreatedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
		},
	}

	rc, err := NewAnalyzer(provider).Extract(context.Background(), 42, KindTicket)
	require.NoError(t, err)

	assert.Equal(t, int64(42), rc.ID)
	assert.Equal(t, "Printer not working", rc.Title)
	assert.Equal(t, "The printer shows an error and the print job is stuck.", rc.Description)
	assert.Equal(t, "Processing (assigned)", rc.Status)
	assert.Equal(t, "High", rc.Priority)
	assert.Equal(t, "Hardware", rc.Category.Name)
	assert.Contains(t, rc.Keywords, "printer")
	assert.Contains(t, rc.Symptoms, "error")
	assert.Contains(t, rc.Symptoms, "printer")
	require.Len(t, rc.Timeline, 1)
	assert.Equal(t, "Restarted the spooler, no change.", rc.Timeline[0].Content)
}

func TestExtractHidesInaccessibleRecords(t *testing.T) {
	provider := &fakeProvider{
		record:   &models.Record{ID: 1, Kind: KindTicket, Title: "Secret"},
		viewable: false,
	}

	_, err := NewAnalyzer(provider).Extract(context.Background(), 1, KindTicket)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExtractPropagatesLoadError(t *testing.T) {
	provider := &fakeProvider{loadErr: ErrNotFound}

	_, err := NewAnalyzer(provider).Extract(context.Background(), 99, KindTicket)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExtractFailsWhenFollowupsFail(t *testing.T) {
	provider := &fakeProvider{
		record:   &models.Record{ID: 1, Kind: KindProblem, Title: "Outage"},
		viewable: true,
		fuErr:    errors.New("disk read failed"),
	}

	_, err := NewAnalyzer(provider).Extract(context.Background(), 1, KindProblem)
	assert.Error(t, err)
}

func TestExtractNamesUnknownCodes(t *testing.T) {
	provider := &fakeProvider{
		record:   &models.Record{ID: 3, Kind: KindTicket, Title: "Odd", Status: 99, Priority: 0},
		viewable: true,
	}

	rc, err := NewAnalyzer(provider).Extract(context.Background(), 3, KindTicket)
	require.NoError(t, err)
	assert.Equal(t, "Unknown", rc.Status)
	assert.Equal(t, "Unknown", rc.Priority)
	assert.Equal(t, "Uncategorized", rc.Category.Name)
}

func TestExtractKeywordsRanksByFrequency(t *testing.T) {
	text := "network outage network printer network printer outage switch"

	got := ExtractKeywords(text)

	require.NotEmpty(t, got)
	assert.Equal(t, "network", got[0])
	assert.Equal(t, []string{"network", "outage", "printer", "switch"}, got)
}

func TestExtractKeywordsBreaksTiesByFirstOccurrence(t *testing.T) {
	got := ExtractKeywords("alpha beta gamma")

	assert.Equal(t, []string{"alpha", "beta", "gamma"}, got)
}

func TestExtractKeywordsFiltersShortTokensAndStopwords(t *testing.T) {
	got := ExtractKeywords("the VPN is down and this would not connect")

	assert.NotContains(t, got, "the")
	assert.NotContains(t, got, "and")
	assert.NotContains(t, got, "this")
	assert.NotContains(t, got, "would")
	assert.NotContains(t, got, "vpn")
	assert.Contains(t, got, "down")
	assert.Contains(t, got, "connect")
}

func TestExtractKeywordsCapsAtTen(t *testing.T) {
	text := "aaaa bbbb cccc dddd eeee ffff gggg hhhh iiii jjjj kkkk llll"

	got := ExtractKeywords(text)

	assert.Len(t, got, 10)
}

func TestMessageKeywordsDeduplicatesInOrder(t *testing.T) {
	got := MessageKeywords("printer jammed again printer paper jammed")

	assert.Equal(t, []string{"printer", "jammed", "again", "paper"}, got)
}

func TestMessageKeywordsEmptyMessage(t *testing.T) {
	assert.Empty(t, MessageKeywords("   "))
}

func TestValidKind(t *testing.T) {
	assert.True(t, ValidKind(KindTicket))
	assert.True(t, ValidKind(KindProblem))
	assert.False(t, ValidKind("change"))
	assert.False(t, ValidKind(""))
}
