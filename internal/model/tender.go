package model

import "time"

// Tender represents a discovered procurement opportunity. Rows are written
// once when first seen and never mutated afterwards; the procurement ID is
// the natural key that makes ingestion idempotent.
type Tender struct {
	ProcurementID string     `json:"procurement_id"`
	ReferenceNr   string     `json:"reference_nr"`
	Title         string     `json:"title"`
	Organization  string     `json:"organization"`
	Budget        string     `json:"budget,omitempty"`
	Deadline      *time.Time `json:"deadline,omitempty"`
	Category      string     `json:"category,omitempty"`
	Description   string     `json:"description,omitempty"`
	CPVCodes      []string   `json:"cpv_codes,omitempty"`
	DocumentURL   string     `json:"document_url"`
	EstimatedCost *float64   `json:"estimated_cost,omitempty"`
	DiscoveredAt  time.Time  `json:"discovered_at"`
}

// TenderSummary is the canonical intermediate representation handed to the
// summarizer. All external-format quirks (currency formatting, date types)
// are absorbed before this struct is built.
type TenderSummary struct {
	Title        string `json:"title"`
	Organization string `json:"organization"`
	Budget       string `json:"budget"`
	Deadline     string `json:"deadline"`
	Category     string `json:"category"`
	Description  string `json:"description"`
}
