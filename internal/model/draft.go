package model

import (
	"encoding/json"
	"time"
)

// DraftStatus represents where a draft sits in the review/publish lifecycle.
type DraftStatus string

const (
	StatusDraft    DraftStatus = "draft"
	StatusApproved DraftStatus = "approved"
	StatusRejected DraftStatus = "rejected"
	StatusPosted   DraftStatus = "posted"
	StatusFailed   DraftStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
// Rejected, posted and failed drafts are never picked up by any stage again.
func (s DraftStatus) Terminal() bool {
	switch s {
	case StatusRejected, StatusPosted, StatusFailed:
		return true
	}
	return false
}

// Valid reports whether s is one of the five known statuses.
func (s DraftStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusApproved, StatusRejected, StatusPosted, StatusFailed:
		return true
	}
	return false
}

// Draft is one platform-specific social post derived from a single tender.
// Exactly one live draft exists per (procurement_id, platform) pair;
// regeneration overwrites content in place.
type Draft struct {
	ID            string          `json:"id"`
	ProcurementID string          `json:"procurement_id"`
	Platform      string          `json:"platform"`
	Content       string          `json:"content"`
	Hashtags      []string        `json:"hashtags,omitempty"`
	DocumentURL   string          `json:"document_url"`
	CharCount     int             `json:"char_count"`
	Status        DraftStatus     `json:"status"`
	GeneratedAt   time.Time       `json:"generated_at"`
	ReviewedAt    *time.Time      `json:"reviewed_at,omitempty"`
	PostedAt      *time.Time      `json:"posted_at,omitempty"`
	PostURL       string          `json:"post_url,omitempty"`
	PostResponse  json.RawMessage `json:"post_response,omitempty"`
	ErrorMessage  string          `json:"error_message,omitempty"`

	// Joined from the tender row for display; not persisted on the draft.
	TenderTitle string `json:"tender_title,omitempty"`
	TenderRef   string `json:"tender_ref,omitempty"`
}

// AuditAction names the event recorded by an audit entry.
type AuditAction string

const (
	ActionApproved AuditAction = "approved"
	ActionRejected AuditAction = "rejected"
	ActionPosted   AuditAction = "posted"
	ActionFailed   AuditAction = "failed"
)

// AuditEntry is an append-only record of a draft state transition. Entries
// are written in the same transaction as the transition they describe.
type AuditEntry struct {
	ID      string          `json:"id"`
	DraftID string          `json:"draft_id"`
	Action  AuditAction     `json:"action"`
	Details json.RawMessage `json:"details,omitempty"`
	At      time.Time       `json:"at"`
}
