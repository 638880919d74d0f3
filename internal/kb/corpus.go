package kb

import (
	"context"

	"github.com/ticketmind/backend/internal/storage/models"
	"github.com/ticketmind/backend/internal/storage/sqlite"
)

// SQLCorpus adapts the local article tables to the Corpus contract.
type SQLCorpus struct {
	db *sqlite.Client
}

func NewSQLCorpus(db *sqlite.Client) *SQLCorpus {
	return &SQLCorpus{db: db}
}

func (c *SQLCorpus) QueryByKeywords(ctx context.Context, keywords []string, limit int) ([]models.Article, error) {
	return c.db.ArticlesByKeywords(ctx, keywords, limit)
}

func (c *SQLCorpus) QueryByCategory(ctx context.Context, categoryID int64, limit int) ([]models.Article, error) {
	return c.db.ArticlesByCategory(ctx, categoryID, limit)
}

func (c *SQLCorpus) Popular(ctx context.Context, limit int) ([]models.Article, error) {
	return c.db.PopularArticles(ctx, limit)
}

func (c *SQLCorpus) CanView(a models.Article) bool {
	return c.db.CanViewArticle(a)
}
