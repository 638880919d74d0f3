package record

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ticketmind/backend/internal/storage/models"
	"github.com/ticketmind/backend/internal/storage/sqlite"
)

// ErrNotFound covers both a missing record and one the caller may not see,
// so existence is never leaked through the error.
var ErrNotFound = errors.New("record not found")

const (
	KindTicket  = "ticket"
	KindProblem = "problem"
)

// ValidKind reports whether kind names a supported record type.
func ValidKind(kind string) bool {
	return kind == KindTicket || kind == KindProblem
}

// Provider supplies support records owned by the host system. Authorization
// is the host's concern; CanView exposes its verdict.
type Provider interface {
	Load(ctx context.Context, id int64, kind string) (*models.Record, error)
	CanView(r *models.Record) bool
	Followups(ctx context.Context, id int64, kind string, limit int) ([]models.Followup, error)
}

// SQLProvider serves records from the local store.
type SQLProvider struct {
	db *sqlite.Client
}

func NewSQLProvider(db *sqlite.Client) *SQLProvider {
	return &SQLProvider{db: db}
}

func (p *SQLProvider) Load(ctx context.Context, id int64, kind string) (*models.Record, error) {
	r, err := p.db.GetRecord(ctx, id, kind)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load record: %w", err)
	}
	return r, nil
}

// CanView always passes for the local store; a host-backed provider would
// consult its permission model here.
func (p *SQLProvider) CanView(_ *models.Record) bool {
	return true
}

func (p *SQLProvider) Followups(ctx context.Context, id int64, kind string, limit int) ([]models.Followup, error) {
	return p.db.Followups(ctx, id, kind, limit)
}
