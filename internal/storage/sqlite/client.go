package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/ticketmind/backend/internal/storage/models"
	"github.com/ticketmind/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Serialize writes through one connection so turn ids are assigned in
	// commit order even under concurrent appends.
	db.SetMaxOpenConns(1)

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		status INTEGER NOT NULL DEFAULT 1,
		priority INTEGER NOT NULL DEFAULT 3,
		category_id INTEGER NOT NULL DEFAULT 0,
		category_name TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_records_kind ON records(kind);

	CREATE TABLE IF NOT EXISTS followups (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		record_id INTEGER NOT NULL,
		kind TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_followups_record ON followups(record_id, kind);

	CREATE TABLE IF NOT EXISTS articles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		body TEXT NOT NULL,
		views INTEGER NOT NULL DEFAULT 0,
		category_id INTEGER NOT NULL DEFAULT 0,
		restricted INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_articles_category ON articles(category_id);
	CREATE INDEX IF NOT EXISTS idx_articles_views ON articles(views);

	CREATE TABLE IF NOT EXISTS conversations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		record_id INTEGER NOT NULL,
		record_type TEXT NOT NULL,
		user_id INTEGER NOT NULL,
		message TEXT NOT NULL,
		is_bot INTEGER NOT NULL,
		article_ids TEXT,
		sources TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_record ON conversations(record_id, record_type, created_at);

	CREATE TABLE IF NOT EXISTS feedback (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id INTEGER NOT NULL,
		was_helpful INTEGER NOT NULL,
		comment TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_feedback_conversation ON feedback(conversation_id);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

// AppendTurn inserts a conversation turn and returns its assigned id. The
// creation timestamp is set to call time; turns are never updated afterwards.
func (c *Client) AppendTurn(ctx context.Context, turn *models.Turn) (int64, error) {
	var articleIDs, sources interface{}

	if len(turn.ArticleIDs) > 0 {
		data, err := json.Marshal(turn.ArticleIDs)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal article refs: %w", err)
		}
		articleIDs = string(data)
	}
	if len(turn.Sources) > 0 {
		data, err := json.Marshal(turn.Sources)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal sources: %w", err)
		}
		sources = string(data)
	}

	query := `
		INSERT INTO conversations (record_id, record_type, user_id, message, is_bot, article_ids, sources, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	isBot := 0
	if turn.IsBot {
		isBot = 1
	}

	res, err := c.db.ExecContext(ctx, query,
		turn.RecordID,
		turn.RecordType,
		turn.UserID,
		turn.Message,
		isBot,
		articleIDs,
		sources,
		time.Now().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to append turn: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read turn id: %w", err)
	}

	logger.Debug("Conversation turn appended",
		zap.Int64("turn_id", id),
		zap.Int64("record_id", turn.RecordID),
		zap.String("record_type", turn.RecordType),
		zap.Bool("is_bot", turn.IsBot),
	)

	return id, nil
}

// History returns the conversation for one record in chronological order.
// A positive limit bounds the result to the most recent turns; zero or a
// negative limit returns the full history.
func (c *Client) History(ctx context.Context, recordID int64, recordType string, limit int) ([]models.Turn, error) {
	query := `
		SELECT id, record_id, record_type, user_id, message, is_bot, article_ids, sources, created_at
		FROM conversations
		WHERE record_id = ? AND record_type = ?
		ORDER BY id DESC
	`
	args := []interface{}{recordID, recordType}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	var turns []models.Turn
	for rows.Next() {
		var t models.Turn
		var isBot int
		var articleIDs, sources sql.NullString
		var createdAt int64

		err := rows.Scan(&t.ID, &t.RecordID, &t.RecordType, &t.UserID, &t.Message, &isBot, &articleIDs, &sources, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		t.IsBot = isBot != 0
		t.CreatedAt = time.Unix(createdAt, 0)
		if articleIDs.Valid {
			json.Unmarshal([]byte(articleIDs.String), &t.ArticleIDs)
		}
		if sources.Valid {
			json.Unmarshal([]byte(sources.String), &t.Sources)
		}

		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history: %w", err)
	}

	// Rows were fetched newest-first to honor the limit; flip to ascending.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}

	return turns, nil
}

// AppendFeedback records a helpfulness vote for a turn. Votes referencing
// deleted turns are kept for audit purposes.
func (c *Client) AppendFeedback(ctx context.Context, fb *models.Feedback) (int64, error) {
	helpful := 0
	if fb.WasHelpful {
		helpful = 1
	}

	res, err := c.db.ExecContext(ctx,
		`INSERT INTO feedback (conversation_id, was_helpful, comment, created_at) VALUES (?, ?, ?, ?)`,
		fb.TurnID,
		helpful,
		fb.Comment,
		time.Now().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to append feedback: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read feedback id: %w", err)
	}

	logger.Info("Feedback stored",
		zap.Int64("feedback_id", id),
		zap.Int64("turn_id", fb.TurnID),
		zap.Bool("was_helpful", fb.WasHelpful),
	)

	return id, nil
}

// GetRecord loads one record by id and kind. A missing row yields
// sql.ErrNoRows for the provider to translate.
func (c *Client) GetRecord(ctx context.Context, id int64, kind string) (*models.Record, error) {
	query := `
		SELECT id, kind, title, content, status, priority, category_id, category_name, created_at
		FROM records
		WHERE id = ? AND kind = ?
	`

	var r models.Record
	var createdAt int64

	err := c.db.QueryRowContext(ctx, query, id, kind).Scan(
		&r.ID, &r.Kind, &r.Title, &r.Content, &r.Status, &r.Priority,
		&r.CategoryID, &r.CategoryName, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	r.CreatedAt = time.Unix(createdAt, 0)
	return &r, nil
}

// Followups returns the most recent activity entries for a record, newest
// first.
func (c *Client) Followups(ctx context.Context, recordID int64, kind string, limit int) ([]models.Followup, error) {
	query := `
		SELECT id, record_id, kind, content, created_at
		FROM followups
		WHERE record_id = ? AND kind = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := c.db.QueryContext(ctx, query, recordID, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get followups: %w", err)
	}
	defer rows.Close()

	var followups []models.Followup
	for rows.Next() {
		var f models.Followup
		var createdAt int64
		if err := rows.Scan(&f.ID, &f.RecordID, &f.Kind, &f.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		f.CreatedAt = time.Unix(createdAt, 0)
		followups = append(followups, f)
	}
	return followups, rows.Err()
}

// ArticlesByKeywords returns articles whose title or body contains any of the
// keywords, most viewed first.
func (c *Client) ArticlesByKeywords(ctx context.Context, keywords []string, limit int) ([]models.Article, error) {
	if len(keywords) == 0 {
		return nil, nil
	}

	var conditions []string
	var args []interface{}
	for _, kw := range keywords {
		conditions = append(conditions, "(title LIKE ? OR body LIKE ?)")
		pattern := "%" + kw + "%"
		args = append(args, pattern, pattern)
	}

	query := fmt.Sprintf(`
		SELECT id, title, body, views, category_id, restricted
		FROM articles
		WHERE %s
		ORDER BY views DESC
		LIMIT ?
	`, strings.Join(conditions, " OR "))
	args = append(args, limit)

	return c.scanArticles(ctx, query, args...)
}

// ArticlesByCategory returns the most viewed articles in a category.
func (c *Client) ArticlesByCategory(ctx context.Context, categoryID int64, limit int) ([]models.Article, error) {
	query := `
		SELECT id, title, body, views, category_id, restricted
		FROM articles
		WHERE category_id = ?
		ORDER BY views DESC
		LIMIT ?
	`
	return c.scanArticles(ctx, query, categoryID, limit)
}

// PopularArticles returns the most viewed articles overall.
func (c *Client) PopularArticles(ctx context.Context, limit int) ([]models.Article, error) {
	query := `
		SELECT id, title, body, views, category_id, restricted
		FROM articles
		ORDER BY views DESC
		LIMIT ?
	`
	return c.scanArticles(ctx, query, limit)
}

func (c *Client) scanArticles(ctx context.Context, query string, args ...interface{}) ([]models.Article, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query articles: %w", err)
	}
	defer rows.Close()

	var articles []models.Article
	for rows.Next() {
		var a models.Article
		var restricted int
		if err := rows.Scan(&a.ID, &a.Title, &a.Body, &a.Views, &a.CategoryID, &restricted); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		a.Restricted = restricted != 0
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

// CanViewArticle is the host-side access gate for knowledge articles.
func (c *Client) CanViewArticle(a models.Article) bool {
	return !a.Restricted
}

// InsertRecord stores a record and returns its id. Used by seeding and tests.
func (c *Client) InsertRecord(ctx context.Context, r *models.Record) (int64, error) {
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	res, err := c.db.ExecContext(ctx, `
		INSERT INTO records (kind, title, content, status, priority, category_id, category_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, r.Kind, r.Title, r.Content, r.Status, r.Priority, r.CategoryID, r.CategoryName, createdAt.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to insert record: %w", err)
	}
	return res.LastInsertId()
}

// InsertFollowup stores an activity entry for a record.
func (c *Client) InsertFollowup(ctx context.Context, f *models.Followup) (int64, error) {
	createdAt := f.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	res, err := c.db.ExecContext(ctx, `
		INSERT INTO followups (record_id, kind, content, created_at)
		VALUES (?, ?, ?, ?)
	`, f.RecordID, f.Kind, f.Content, createdAt.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to insert followup: %w", err)
	}
	return res.LastInsertId()
}

// InsertArticle stores a knowledge article.
func (c *Client) InsertArticle(ctx context.Context, a *models.Article) (int64, error) {
	restricted := 0
	if a.Restricted {
		restricted = 1
	}

	res, err := c.db.ExecContext(ctx, `
		INSERT INTO articles (title, body, views, category_id, restricted)
		VALUES (?, ?, ?, ?, ?)
	`, a.Title, a.Body, a.Views, a.CategoryID, restricted)
	if err != nil {
		return 0, fmt.Errorf("failed to insert article: %w", err)
	}
	return res.LastInsertId()
}
