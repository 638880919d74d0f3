package models

import "time"

// Record is a support item under analysis, either a ticket or a problem.
// Status and priority are stored as host codes and mapped to labels by the
// record provider.
type Record struct {
	ID           int64
	Kind         string
	Title        string
	Content      string
	Status       int
	Priority     int
	CategoryID   int64
	CategoryName string
	CreatedAt    time.Time
}

// Followup is one activity entry on a record's timeline.
type Followup struct {
	ID        int64
	RecordID  int64
	Kind      string
	Content   string
	CreatedAt time.Time
}

// Article is a knowledge base entry. Restricted articles are hidden from the
// assistant regardless of relevance.
type Article struct {
	ID         int64
	Title      string
	Body       string
	Views      int64
	CategoryID int64
	Restricted bool
}

// Source is an external citation reported by the model for open-domain
// answers.
type Source struct {
	Title string  `json:"title"`
	URL   string  `json:"url"`
	Score float64 `json:"score"`
}

// Turn is one message in a record's conversation. Turns are append-only and
// never mutated after creation.
type Turn struct {
	ID         int64
	RecordID   int64
	RecordType string
	UserID     int64
	Message    string
	IsBot      bool
	ArticleIDs []int64
	Sources    []Source
	CreatedAt  time.Time
}

// Feedback is one helpfulness vote on a bot turn. A turn may collect any
// number of entries; no uniqueness is enforced at this layer.
type Feedback struct {
	ID         int64
	TurnID     int64
	WasHelpful bool
	Comment    string
	CreatedAt  time.Time
}
