package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ticketmind/backend/internal/ai"
	"github.com/ticketmind/backend/internal/kb"
	"github.com/ticketmind/backend/internal/record"
	"github.com/ticketmind/backend/internal/storage/models"
)

func ticketContext() *record.Context {
	return &record.Context{
		ID:          12,
		Kind:        record.KindTicket,
		Title:       "Printer offline",
		Description: "The office printer stopped responding this morning.",
		Status:      "New",
		Priority:    "High",
		Category:    record.Category{ID: 3, Name: "Hardware"},
		Keywords:    []string{"printer", "offline", "office", "morning", "responding", "spooler"},
		Symptoms:    []string{"printer", "not working"},
		Timeline: []record.TimelineEntry{
			{Content: "Power cycled the device, still offline."},
		},
	}
}

func TestTicketAnalysisCarriesContextAndSources(t *testing.T) {
	b := NewBuilder("You are a support assistant.")
	candidates := []kb.Candidate{
		{ID: 7, Title: "Printer offline checklist", Confidence: 85, Excerpt: "Check the network cable first."},
	}

	p := b.TicketAnalysis(ticketContext(), candidates, false)

	assert.True(t, strings.HasPrefix(p, "You are a support assistant."))
	assert.Contains(t, p, "# TICKET ANALYSIS")
	assert.Contains(t, p, "**Title:** Printer offline")
	assert.Contains(t, p, "**Category:** Hardware")
	assert.Contains(t, p, "**Detected symptoms:** printer, not working")
	assert.Contains(t, p, "### Source 1: Printer offline checklist (Relevance: 85%)")
	assert.Contains(t, p, "Check the network cable first.")
	assert.Contains(t, p, AnalysisRefusal)
	assert.Contains(t, p, "Power cycled the device")
}

func TestTicketAnalysisCapsKeywordsAtFive(t *testing.T) {
	b := NewBuilder("sys")

	p := b.TicketAnalysis(ticketContext(), nil, false)

	assert.Contains(t, p, "**Keywords:** printer, offline, office, morning, responding\n")
	assert.NotContains(t, p, "spooler")
}

func TestTicketAnalysisNotesDegradedRetrieval(t *testing.T) {
	b := NewBuilder("sys")

	p := b.TicketAnalysis(ticketContext(), nil, true)

	assert.Contains(t, p, "knowledge base could not be reached")
	assert.NotContains(t, p, "### Source")
}

func TestProblemAnalysisRequiresSourcesBlock(t *testing.T) {
	b := NewBuilder("sys")

	p := b.ProblemAnalysis(ticketContext())

	assert.Contains(t, p, "# INCIDENT ANALYSIS")
	assert.Contains(t, p, "general technical knowledge")
	assert.Contains(t, p, ai.SourcesMarker)
	assert.Contains(t, p, "MUST add a section introduced by the marker")
}

func TestTicketChatKeepsLastFiveTurns(t *testing.T) {
	b := NewBuilder("sys")
	history := []models.Turn{
		{Message: "first", IsBot: false},
		{Message: "second", IsBot: true},
		{Message: "third", IsBot: false},
		{Message: "fourth", IsBot: true},
		{Message: "fifth", IsBot: false},
		{Message: "sixth", IsBot: true},
		{Message: "seventh", IsBot: false},
	}

	p := b.TicketChat("still broken", history, nil, false)

	assert.NotContains(t, p, "first")
	assert.NotContains(t, p, "second")
	assert.Contains(t, p, "User: third")
	assert.Contains(t, p, "Assistant: fourth")
	assert.Contains(t, p, "User: seventh")
	assert.Contains(t, p, "**New user message:** still broken")
	assert.Contains(t, p, ChatRefusal)
}

func TestTicketChatListsMessageScopedSources(t *testing.T) {
	b := NewBuilder("sys")
	candidates := []kb.Candidate{
		{Title: "Spooler restart", Confidence: 60, Excerpt: "Run services.msc and restart the spooler."},
	}

	p := b.TicketChat("printer again", nil, candidates, false)

	assert.Contains(t, p, "1. Spooler restart (Relevance: 60%)")
	assert.Contains(t, p, "Run services.msc and restart the spooler.")
}

func TestProblemChatUsesExpertRole(t *testing.T) {
	b := NewBuilder("sys")
	history := []models.Turn{{Message: "what happened?", IsBot: false}, {Message: "checking", IsBot: true}}

	p := b.ProblemChat("disk is full", history)

	assert.Contains(t, p, "senior IT expert")
	assert.Contains(t, p, "Expert: checking")
	assert.Contains(t, p, ai.SourcesMarker)
	assert.Contains(t, p, "If you cite links or documentation")
}
