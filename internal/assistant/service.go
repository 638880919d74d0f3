package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ticketmind/backend/internal/ai"
	"github.com/ticketmind/backend/internal/kb"
	"github.com/ticketmind/backend/internal/metrics"
	"github.com/ticketmind/backend/internal/prompt"
	"github.com/ticketmind/backend/internal/record"
	"github.com/ticketmind/backend/internal/storage/models"
	"github.com/ticketmind/backend/pkg/config"
	"github.com/ticketmind/backend/pkg/logger"
)

var (
	// ErrInvalidInput marks caller mistakes: blank messages, unknown
	// record kinds, non-positive identifiers.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDisabled is returned when the assistant feature is switched off.
	ErrDisabled = errors.New("assistant disabled")
)

// UnreachableMessage is shown to end users instead of transport errors when
// the model backend cannot be reached.
const UnreachableMessage = "The assistant service is unreachable right now. Please try again in a few minutes."

// NotConfiguredMessage is a success-shaped reply used when the configured
// provider misses required parameters; no model call is attempted.
const NotConfiguredMessage = "The assistant is not fully configured yet. Please ask an administrator to finish the provider setup."

const (
	combinedSearchLimit = 10
	chatSearchLimit     = 3
)

// Extractor produces the structured context for a record.
type Extractor interface {
	Extract(ctx context.Context, id int64, kind string) (*record.Context, error)
}

// Retriever is the slice of the knowledge base searcher the service uses.
type Retriever interface {
	SearchCombined(ctx context.Context, keywords []string, categoryID int64, limit int) ([]kb.Candidate, error)
	SearchByKeywords(ctx context.Context, keywords []string, limit int) ([]kb.Candidate, error)
}

// Store persists conversation turns and feedback.
type Store interface {
	AppendTurn(ctx context.Context, turn *models.Turn) (int64, error)
	History(ctx context.Context, recordID int64, recordType string, limit int) ([]models.Turn, error)
	AppendFeedback(ctx context.Context, fb *models.Feedback) (int64, error)
}

// AnalyzeResult is the outcome of a one-shot record analysis.
type AnalyzeResult struct {
	Answer      string          `json:"answer"`
	Suggestions []kb.Candidate  `json:"suggestions,omitempty"`
	Sources     []models.Source `json:"sources,omitempty"`
	Degraded    bool            `json:"degraded,omitempty"`
	TurnID      int64           `json:"turn_id,omitempty"`
}

// ChatResult is the outcome of one conversational exchange.
type ChatResult struct {
	Answer   string          `json:"answer"`
	Sources  []models.Source `json:"sources,omitempty"`
	Degraded bool            `json:"degraded,omitempty"`
	TurnID   int64           `json:"turn_id,omitempty"`
}

// ProviderStatus reports one registered backend for the health endpoint.
type ProviderStatus struct {
	Name        string `json:"name"`
	Active      bool   `json:"active"`
	Configured  bool   `json:"configured"`
	Reachable   bool   `json:"reachable"`
	NeedsAPIKey bool   `json:"needs_api_key"`
}

// Service orchestrates context extraction, retrieval, prompt compilation,
// model calls, and conversation persistence.
type Service struct {
	cfg       config.AssistantConfig
	gen       ai.Options
	extractor Extractor
	retriever Retriever
	store     Store
	prompts   *prompt.Builder
	providers *ai.Registry
}

func NewService(cfg *config.Config, extractor Extractor, retriever Retriever, store Store, prompts *prompt.Builder, providers *ai.Registry) *Service {
	return &Service{
		cfg: cfg.Assistant,
		gen: ai.Options{
			Temperature:     cfg.Generation.Temperature,
			TopK:            cfg.Generation.TopK,
			TopP:            cfg.Generation.TopP,
			MaxOutputTokens: cfg.Generation.MaxOutputTokens,
		},
		extractor: extractor,
		retriever: retriever,
		store:     store,
		prompts:   prompts,
		providers: providers,
	}
}

func (s *Service) Enabled() bool {
	return s.cfg.Enabled
}

// Analyze runs the full pipeline for a record and seeds its conversation
// with a marker turn plus the assistant's reply.
func (s *Service) Analyze(ctx context.Context, userID, recordID int64, kind string) (*AnalyzeResult, error) {
	if !s.cfg.Enabled {
		return nil, ErrDisabled
	}
	if !record.ValidKind(kind) {
		return nil, fmt.Errorf("%w: unknown record kind %q", ErrInvalidInput, kind)
	}

	start := time.Now()
	reqID := uuid.NewString()
	logger.Info("Analyze requested",
		zap.String("request_id", reqID),
		zap.Int64("record_id", recordID),
		zap.String("kind", kind),
		zap.Int64("user_id", userID))

	rc, err := s.extractor.Extract(ctx, recordID, kind)
	if err != nil {
		metrics.AssistTotal.WithLabelValues("analyze", "error").Inc()
		return nil, err
	}

	provider, err := s.providers.Get(s.cfg.Provider)
	if err != nil {
		metrics.AssistTotal.WithLabelValues("analyze", "error").Inc()
		return nil, err
	}
	if !provider.IsConfigured() {
		logger.Warn("Provider not configured, skipping model call",
			zap.String("request_id", reqID),
			zap.String("provider", s.cfg.Provider))
		metrics.AssistTotal.WithLabelValues("analyze", "not_configured").Inc()
		return &AnalyzeResult{Answer: NotConfiguredMessage}, nil
	}

	var (
		suggestions []kb.Candidate
		degraded    bool
		text        string
	)

	switch kind {
	case record.KindTicket:
		suggestions, degraded = s.ticketCandidates(ctx, reqID, rc)
		p := s.prompts.TicketAnalysis(rc, suggestions, degraded)
		resp, err := provider.Generate(ctx, p, s.gen)
		if err != nil {
			return nil, s.providerError("analyze", reqID, err)
		}
		text = resp.Text
	default:
		p := s.prompts.ProblemAnalysis(rc)
		resp, err := provider.Generate(ctx, p, s.gen)
		if err != nil {
			return nil, s.providerError("analyze", reqID, err)
		}
		text = resp.Text
	}

	metrics.ProviderRequests.WithLabelValues(s.cfg.Provider, "ok").Inc()
	answer, sources := ai.ExtractSources(text)

	result := &AnalyzeResult{
		Answer:      answer,
		Suggestions: suggestions,
		Sources:     sources,
		Degraded:    degraded,
	}
	if len(suggestions) > 0 {
		metrics.ConfidenceScore.Observe(float64(suggestions[0].Confidence))
	}

	marker := fmt.Sprintf("Initial %s analysis", kind)
	if _, err := s.store.AppendTurn(ctx, &models.Turn{
		RecordID:   recordID,
		RecordType: kind,
		UserID:     userID,
		Message:    marker,
		IsBot:      false,
	}); err != nil {
		return nil, fmt.Errorf("failed to record analysis request: %w", err)
	}

	turnID, err := s.store.AppendTurn(ctx, &models.Turn{
		RecordID:   recordID,
		RecordType: kind,
		UserID:     userID,
		Message:    answer,
		IsBot:      true,
		ArticleIDs: candidateIDs(suggestions),
		Sources:    sources,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record analysis reply: %w", err)
	}
	result.TurnID = turnID

	metrics.AssistTotal.WithLabelValues("analyze", "ok").Inc()
	metrics.AssistDuration.WithLabelValues("analyze").Observe(time.Since(start).Seconds())
	logger.Info("Analyze completed",
		zap.String("request_id", reqID),
		zap.Int("suggestions", len(suggestions)),
		zap.Bool("degraded", degraded),
		zap.Duration("elapsed", time.Since(start)))
	return result, nil
}

// Chat handles one follow-up message inside a record's conversation. The
// user's message is persisted before the model call; the reply only after a
// successful one.
func (s *Service) Chat(ctx context.Context, userID, recordID int64, kind, message string) (*ChatResult, error) {
	if !s.cfg.Enabled {
		return nil, ErrDisabled
	}
	if !record.ValidKind(kind) {
		return nil, fmt.Errorf("%w: unknown record kind %q", ErrInvalidInput, kind)
	}
	if strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("%w: empty message", ErrInvalidInput)
	}

	start := time.Now()
	reqID := uuid.NewString()

	if _, err := s.extractor.Extract(ctx, recordID, kind); err != nil {
		metrics.AssistTotal.WithLabelValues("chat", "error").Inc()
		return nil, err
	}

	provider, err := s.providers.Get(s.cfg.Provider)
	if err != nil {
		metrics.AssistTotal.WithLabelValues("chat", "error").Inc()
		return nil, err
	}
	if !provider.IsConfigured() {
		metrics.AssistTotal.WithLabelValues("chat", "not_configured").Inc()
		return &ChatResult{Answer: NotConfiguredMessage}, nil
	}

	history, err := s.store.History(ctx, recordID, kind, s.cfg.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	if _, err := s.store.AppendTurn(ctx, &models.Turn{
		RecordID:   recordID,
		RecordType: kind,
		UserID:     userID,
		Message:    message,
		IsBot:      false,
	}); err != nil {
		return nil, fmt.Errorf("failed to record message: %w", err)
	}

	var (
		candidates []kb.Candidate
		degraded   bool
		p          string
	)
	if kind == record.KindTicket {
		keywords := record.MessageKeywords(message)
		candidates, err = s.retriever.SearchByKeywords(ctx, keywords, chatSearchLimit)
		if err != nil {
			if !errors.Is(err, kb.ErrUnavailable) {
				return nil, err
			}
			logger.Warn("Knowledge base unavailable, answering degraded",
				zap.String("request_id", reqID), zap.Error(err))
			metrics.RetrievalDegraded.Inc()
			candidates, degraded = nil, true
		}
		p = s.prompts.TicketChat(message, history, candidates, degraded)
	} else {
		p = s.prompts.ProblemChat(message, history)
	}

	resp, err := provider.Chat(ctx, []ai.Message{{Role: ai.RoleUser, Content: p}}, s.gen)
	if err != nil {
		return nil, s.providerError("chat", reqID, err)
	}

	metrics.ProviderRequests.WithLabelValues(s.cfg.Provider, "ok").Inc()
	answer, sources := ai.ExtractSources(resp.Text)

	turnID, err := s.store.AppendTurn(ctx, &models.Turn{
		RecordID:   recordID,
		RecordType: kind,
		UserID:     userID,
		Message:    answer,
		IsBot:      true,
		ArticleIDs: candidateIDs(candidates),
		Sources:    sources,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record reply: %w", err)
	}

	metrics.AssistTotal.WithLabelValues("chat", "ok").Inc()
	metrics.AssistDuration.WithLabelValues("chat").Observe(time.Since(start).Seconds())
	return &ChatResult{Answer: answer, Sources: sources, Degraded: degraded, TurnID: turnID}, nil
}

// Feedback records a helpfulness vote on an assistant turn. Votes are never
// capped; repeated feedback on the same turn is kept.
func (s *Service) Feedback(ctx context.Context, turnID int64, helpful bool, comment string) (int64, error) {
	if turnID <= 0 {
		return 0, fmt.Errorf("%w: turn id must be positive", ErrInvalidInput)
	}
	id, err := s.store.AppendFeedback(ctx, &models.Feedback{
		TurnID:     turnID,
		WasHelpful: helpful,
		Comment:    comment,
	})
	if err != nil {
		return 0, err
	}
	metrics.UserSatisfaction.WithLabelValues(fmt.Sprintf("%t", helpful)).Inc()
	return id, nil
}

// History returns a record's conversation in chronological order.
func (s *Service) History(ctx context.Context, recordID int64, kind string, limit int) ([]models.Turn, error) {
	if !record.ValidKind(kind) {
		return nil, fmt.Errorf("%w: unknown record kind %q", ErrInvalidInput, kind)
	}
	if limit <= 0 {
		limit = s.cfg.HistoryLimit
	}
	return s.store.History(ctx, recordID, kind, limit)
}

// ProviderHealth probes every registered backend with one live round-trip.
func (s *Service) ProviderHealth(ctx context.Context) []ProviderStatus {
	names := s.providers.Names()
	statuses := make([]ProviderStatus, 0, len(names))
	for _, name := range names {
		p, err := s.providers.Get(name)
		if err != nil {
			continue
		}
		st := ProviderStatus{
			Name:        name,
			Active:      name == s.cfg.Provider,
			Configured:  p.IsConfigured(),
			NeedsAPIKey: p.RequiresRemoteCredentials(),
		}
		if st.Configured {
			st.Reachable = p.TestConnection(ctx)
		}
		statuses = append(statuses, st)
	}
	return statuses
}

func (s *Service) ticketCandidates(ctx context.Context, reqID string, rc *record.Context) ([]kb.Candidate, bool) {
	candidates, err := s.retriever.SearchCombined(ctx, rc.Keywords, rc.Category.ID, combinedSearchLimit)
	if err != nil {
		logger.Warn("Knowledge base unavailable, answering degraded",
			zap.String("request_id", reqID), zap.Error(err))
		metrics.RetrievalDegraded.Inc()
		return nil, true
	}

	relevant := candidates[:0]
	for _, c := range candidates {
		if c.Relevance >= s.cfg.RelevanceThreshold {
			relevant = append(relevant, c)
		}
	}
	if len(relevant) > s.cfg.MaxSuggestions {
		relevant = relevant[:s.cfg.MaxSuggestions]
	}
	metrics.RetrievalResultsCount.Observe(float64(len(relevant)))
	return relevant, false
}

func (s *Service) providerError(op, reqID string, err error) error {
	logger.Error("Provider call failed",
		zap.String("request_id", reqID),
		zap.String("operation", op),
		zap.String("provider", s.cfg.Provider),
		zap.Error(err))
	metrics.AssistTotal.WithLabelValues(op, "provider_error").Inc()
	metrics.ProviderRequests.WithLabelValues(s.cfg.Provider, "error").Inc()
	return err
}

// Friendly translates a pipeline error into a user-facing sentence when the
// failure is a transport problem rather than a caller mistake.
func Friendly(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	if errors.Is(err, ai.ErrUnavailable) {
		return UnreachableMessage, true
	}
	msg := err.Error()
	for _, sig := range []string{"connection refused", "timeout", "deadline exceeded", "no such host"} {
		if strings.Contains(msg, sig) {
			return UnreachableMessage, true
		}
	}
	return "", false
}

func candidateIDs(candidates []kb.Candidate) []int64 {
	if len(candidates) == 0 {
		return nil
	}
	ids := make([]int64, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}
	return ids
}
