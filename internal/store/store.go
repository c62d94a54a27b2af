package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/tendly/social-pipeline/internal/model"
)

// DraftFilter specifies criteria for listing drafts. Ordering follows the
// requesting stage: draft-status listings come back oldest-generated-first,
// approved listings oldest-reviewed-first, so repeated runs always make
// forward progress instead of reprocessing the same subset.
type DraftFilter struct {
	Status   model.DraftStatus `json:"status,omitempty"`
	Platform string            `json:"platform,omitempty"`
	Limit    int               `json:"limit,omitempty"`
}

// Transition describes a single draft status change plus the audit entry
// recorded with it. Both rows are applied in one transaction so a reader
// never observes a status change without its audit entry.
type Transition struct {
	Status       model.DraftStatus
	Action       model.AuditAction
	Details      json.RawMessage
	PostURL      string
	PostResponse json.RawMessage
	ErrorMessage string
}

// StatusCount is one row of the per-platform status breakdown.
type StatusCount struct {
	Platform string            `json:"platform"`
	Status   model.DraftStatus `json:"status"`
	Count    int               `json:"count"`
}

// Store defines the persistence contract for the content pipeline. It owns
// the tender, draft and audit tables; no stage holds authoritative state in
// memory across invocations.
type Store interface {
	// Tenders
	InsertTenderIfAbsent(ctx context.Context, t model.Tender) (bool, error)
	GetTender(ctx context.Context, procurementID string) (*model.Tender, error)
	// ListNewTenders reads catalog rows discovered since the cutoff that
	// have not yet been imported, oldest-discovered-first, bounded by limit.
	ListNewTenders(ctx context.Context, since time.Time, limit int) ([]model.Tender, error)

	// Drafts
	UpsertDraft(ctx context.Context, d model.Draft) (*model.Draft, error)
	ListDrafts(ctx context.Context, filter DraftFilter) ([]model.Draft, error)
	UpdateDraftContent(ctx context.Context, draftID, content string) error
	TransitionDraft(ctx context.Context, draftID string, tr Transition) error

	// Audit
	ListAudit(ctx context.Context, draftID string) ([]model.AuditEntry, error)

	// Reporting
	CountByStatus(ctx context.Context) ([]StatusCount, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
