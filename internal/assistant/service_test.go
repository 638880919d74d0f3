package assistant

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketmind/backend/internal/ai"
	"github.com/ticketmind/backend/internal/kb"
	"github.com/ticketmind/backend/internal/prompt"
	"github.com/ticketmind/backend/internal/record"
	"github.com/ticketmind/backend/internal/storage/models"
	"github.com/ticketmind/backend/pkg/config"
)

type fakeExtractor struct {
	rc  *record.Context
	err error
}

func (f *fakeExtractor) Extract(_ context.Context, id int64, kind string) (*record.Context, error) {
	if f.err != nil {
		return nil, f.err
	}
	rc := *f.rc
	rc.ID = id
	rc.Kind = kind
	return &rc, nil
}

type fakeRetriever struct {
	combined []kb.Candidate
	byKw     []kb.Candidate
	err      error
}

func (f *fakeRetriever) SearchCombined(_ context.Context, _ []string, _ int64, _ int) ([]kb.Candidate, error) {
	return f.combined, f.err
}

func (f *fakeRetriever) SearchByKeywords(_ context.Context, _ []string, _ int) ([]kb.Candidate, error) {
	return f.byKw, f.err
}

type fakeStore struct {
	turns     []*models.Turn
	history   []models.Turn
	feedbacks []*models.Feedback
	appendErr error
}

func (f *fakeStore) AppendTurn(_ context.Context, turn *models.Turn) (int64, error) {
	if f.appendErr != nil {
		return 0, f.appendErr
	}
	f.turns = append(f.turns, turn)
	return int64(len(f.turns)), nil
}

func (f *fakeStore) History(_ context.Context, _ int64, _ string, _ int) ([]models.Turn, error) {
	return f.history, nil
}

func (f *fakeStore) AppendFeedback(_ context.Context, fb *models.Feedback) (int64, error) {
	f.feedbacks = append(f.feedbacks, fb)
	return int64(len(f.feedbacks)), nil
}

type fakeModel struct {
	text        string
	err         error
	configured  bool
	generateCnt int
	chatCnt     int
	lastPrompt  string
}

func (f *fakeModel) Generate(_ context.Context, prompt string, _ ai.Options) (*ai.Response, error) {
	f.generateCnt++
	f.lastPrompt = prompt
	if f.err != nil {
		return nil, f.err
	}
	return &ai.Response{Text: f.text}, nil
}

func (f *fakeModel) Chat(_ context.Context, messages []ai.Message, _ ai.Options) (*ai.Response, error) {
	f.chatCnt++
	if len(messages) > 0 {
		f.lastPrompt = messages[len(messages)-1].Content
	}
	if f.err != nil {
		return nil, f.err
	}
	return &ai.Response{Text: f.text}, nil
}

func (f *fakeModel) IsConfigured() bool { return f.configured }

func (f *fakeModel) TestConnection(_ context.Context) bool { return f.configured }

func (f *fakeModel) RequiresRemoteCredentials() bool { return true }

type fixture struct {
	service   *Service
	extractor *fakeExtractor
	retriever *fakeRetriever
	store     *fakeStore
	model     *fakeModel
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := &config.Config{
		Assistant: config.AssistantConfig{
			Enabled:            true,
			Provider:           ai.ProviderCloud,
			SystemPrompt:       "You are a support assistant.",
			MaxSuggestions:     5,
			RelevanceThreshold: 12.0,
			HistoryLimit:       10,
		},
	}

	extractor := &fakeExtractor{rc: &record.Context{
		Title:       "Printer offline",
		Description: "The printer stopped responding.",
		Keywords:    []string{"printer", "offline"},
		Category:    record.Category{ID: 3, Name: "Hardware"},
	}}
	retriever := &fakeRetriever{}
	store := &fakeStore{}
	model := &fakeModel{text: "Try restarting the print spooler.", configured: true}

	providers := ai.NewRegistry()
	providers.Register(ai.ProviderCloud, model)

	svc := NewService(cfg, extractor, retriever, store,
		prompt.NewBuilder(cfg.Assistant.SystemPrompt), providers)

	return &fixture{service: svc, extractor: extractor, retriever: retriever, store: store, model: model}
}

func TestAnalyzeTicketRecordsConversation(t *testing.T) {
	f := newFixture(t)
	f.retriever.combined = []kb.Candidate{
		{ID: 1, Title: "Spooler fix", Relevance: 30, Confidence: 90},
		{ID: 2, Title: "Weak match", Relevance: 5, Confidence: 10},
	}

	result, err := f.service.Analyze(context.Background(), 9, 42, record.KindTicket)
	require.NoError(t, err)

	assert.Equal(t, "Try restarting the print spooler.", result.Answer)
	require.Len(t, result.Suggestions, 1)
	assert.Equal(t, int64(1), result.Suggestions[0].ID)
	assert.False(t, result.Degraded)

	require.Len(t, f.store.turns, 2)
	assert.Equal(t, "Initial ticket analysis", f.store.turns[0].Message)
	assert.False(t, f.store.turns[0].IsBot)
	assert.True(t, f.store.turns[1].IsBot)
	assert.Equal(t, []int64{1}, f.store.turns[1].ArticleIDs)
	assert.Equal(t, result.TurnID, int64(2))
}

func TestAnalyzeCapsSuggestions(t *testing.T) {
	f := newFixture(t)
	for i := 1; i <= 8; i++ {
		f.retriever.combined = append(f.retriever.combined, kb.Candidate{
			ID: int64(i), Relevance: 50 - float64(i),
		})
	}

	result, err := f.service.Analyze(context.Background(), 9, 42, record.KindTicket)
	require.NoError(t, err)

	assert.Len(t, result.Suggestions, 5)
}

func TestAnalyzeDegradesWhenRetrievalFails(t *testing.T) {
	f := newFixture(t)
	f.retriever.err = fmt.Errorf("%w: connection refused", kb.ErrUnavailable)

	result, err := f.service.Analyze(context.Background(), 9, 42, record.KindTicket)
	require.NoError(t, err)

	assert.True(t, result.Degraded)
	assert.Empty(t, result.Suggestions)
	assert.NotEmpty(t, result.Answer)
	assert.Len(t, f.store.turns, 2)
}

func TestAnalyzeProblemExtractsSources(t *testing.T) {
	f := newFixture(t)
	f.model.text = "Check the RAID controller.\n[SOURCES] [{\"title\":\"RAID docs\",\"url\":\"https://docs\",\"score\":90}]"

	result, err := f.service.Analyze(context.Background(), 9, 7, record.KindProblem)
	require.NoError(t, err)

	assert.Equal(t, "Check the RAID controller.", result.Answer)
	require.Len(t, result.Sources, 1)
	assert.Equal(t, "RAID docs", result.Sources[0].Title)
	require.Len(t, f.store.turns, 2)
	assert.Equal(t, result.Sources, f.store.turns[1].Sources)
}

func TestAnalyzeSkipsUnconfiguredProvider(t *testing.T) {
	f := newFixture(t)
	f.model.configured = false

	result, err := f.service.Analyze(context.Background(), 9, 42, record.KindTicket)
	require.NoError(t, err)

	assert.Equal(t, NotConfiguredMessage, result.Answer)
	assert.Zero(t, f.model.generateCnt)
	assert.Empty(t, f.store.turns)
}

func TestAnalyzeRejectsUnknownKind(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Analyze(context.Background(), 9, 42, "change")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAnalyzePropagatesNotFound(t *testing.T) {
	f := newFixture(t)
	f.extractor.err = record.ErrNotFound

	_, err := f.service.Analyze(context.Background(), 9, 404, record.KindTicket)
	assert.ErrorIs(t, err, record.ErrNotFound)
	assert.Empty(t, f.store.turns)
}

func TestAnalyzeDisabled(t *testing.T) {
	f := newFixture(t)
	f.service.cfg.Enabled = false

	_, err := f.service.Analyze(context.Background(), 9, 42, record.KindTicket)
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	f := newFixture(t)

	for _, msg := range []string{"", "   ", "\n\t"} {
		_, err := f.service.Chat(context.Background(), 9, 42, record.KindTicket, msg)
		assert.ErrorIs(t, err, ErrInvalidInput)
	}
	assert.Empty(t, f.store.turns)
	assert.Zero(t, f.model.chatCnt)
}

func TestChatRecordsUserTurnThenReply(t *testing.T) {
	f := newFixture(t)
	f.retriever.byKw = []kb.Candidate{{ID: 4, Title: "Spooler", Confidence: 70}}

	result, err := f.service.Chat(context.Background(), 9, 42, record.KindTicket, "printer is jammed")
	require.NoError(t, err)

	assert.Equal(t, "Try restarting the print spooler.", result.Answer)
	require.Len(t, f.store.turns, 2)
	assert.Equal(t, "printer is jammed", f.store.turns[0].Message)
	assert.False(t, f.store.turns[0].IsBot)
	assert.True(t, f.store.turns[1].IsBot)
	assert.Equal(t, []int64{4}, f.store.turns[1].ArticleIDs)
	assert.Equal(t, 1, f.model.chatCnt)
}

func TestChatKeepsUserTurnOnProviderFailure(t *testing.T) {
	f := newFixture(t)
	f.model.err = ai.ErrUnavailable

	_, err := f.service.Chat(context.Background(), 9, 42, record.KindTicket, "still broken")
	assert.ErrorIs(t, err, ai.ErrUnavailable)

	require.Len(t, f.store.turns, 1)
	assert.False(t, f.store.turns[0].IsBot)
}

func TestChatProblemExtractsSources(t *testing.T) {
	f := newFixture(t)
	f.model.text = "Run fsck.\n[SOURCES] [{\"title\":\"fsck man page\",\"url\":\"https://man\"}]"

	result, err := f.service.Chat(context.Background(), 9, 7, record.KindProblem, "disk errors everywhere")
	require.NoError(t, err)

	assert.Equal(t, "Run fsck.", result.Answer)
	require.Len(t, result.Sources, 1)
}

func TestFeedbackValidatesTurnID(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Feedback(context.Background(), 0, true, "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	id, err := f.service.Feedback(context.Background(), 5, false, "did not help")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	require.Len(t, f.store.feedbacks, 1)
	assert.False(t, f.store.feedbacks[0].WasHelpful)
}

func TestHistoryValidatesKind(t *testing.T) {
	f := newFixture(t)
	f.store.history = []models.Turn{{Message: "hello"}}

	_, err := f.service.History(context.Background(), 42, "bogus", 0)
	assert.ErrorIs(t, err, ErrInvalidInput)

	turns, err := f.service.History(context.Background(), 42, record.KindTicket, 0)
	require.NoError(t, err)
	assert.Len(t, turns, 1)
}

func TestProviderHealthReportsRegisteredBackends(t *testing.T) {
	f := newFixture(t)

	statuses := f.service.ProviderHealth(context.Background())

	require.Len(t, statuses, 1)
	assert.Equal(t, ai.ProviderCloud, statuses[0].Name)
	assert.True(t, statuses[0].Active)
	assert.True(t, statuses[0].Configured)
	assert.True(t, statuses[0].Reachable)
}

func TestFriendlyMapping(t *testing.T) {
	msg, ok := Friendly(ai.ErrUnavailable)
	assert.True(t, ok)
	assert.Equal(t, UnreachableMessage, msg)

	msg, ok = Friendly(errors.New("dial tcp 127.0.0.1:11434: connection refused"))
	assert.True(t, ok)
	assert.Equal(t, UnreachableMessage, msg)

	_, ok = Friendly(errors.New("context deadline exceeded"))
	assert.True(t, ok)

	_, ok = Friendly(errors.New("syntax error"))
	assert.False(t, ok)

	_, ok = Friendly(nil)
	assert.False(t, ok)
}
