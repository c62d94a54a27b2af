package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/tendly/social-pipeline/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS tender_catalog (
	procurement_id TEXT PRIMARY KEY,
	reference_nr   TEXT NOT NULL DEFAULT '',
	title          TEXT NOT NULL DEFAULT '',
	organization   TEXT NOT NULL DEFAULT '',
	budget         TEXT NOT NULL DEFAULT '',
	deadline       DATETIME,
	category       TEXT NOT NULL DEFAULT '',
	description    TEXT NOT NULL DEFAULT '',
	cpv_codes      TEXT NOT NULL DEFAULT '[]',
	document_url   TEXT NOT NULL DEFAULT '',
	estimated_cost REAL,
	discovered_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS tenders (
	procurement_id TEXT PRIMARY KEY,
	reference_nr   TEXT NOT NULL DEFAULT '',
	title          TEXT NOT NULL DEFAULT '',
	organization   TEXT NOT NULL DEFAULT '',
	budget         TEXT NOT NULL DEFAULT '',
	deadline       DATETIME,
	category       TEXT NOT NULL DEFAULT '',
	description    TEXT NOT NULL DEFAULT '',
	cpv_codes      TEXT NOT NULL DEFAULT '[]',
	document_url   TEXT NOT NULL DEFAULT '',
	estimated_cost REAL,
	discovered_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS drafts (
	id             TEXT PRIMARY KEY,
	procurement_id TEXT NOT NULL REFERENCES tenders(procurement_id),
	platform       TEXT NOT NULL,
	content        TEXT NOT NULL,
	hashtags       TEXT NOT NULL DEFAULT '[]',
	document_url   TEXT NOT NULL DEFAULT '',
	char_count     INTEGER NOT NULL DEFAULT 0,
	status         TEXT NOT NULL DEFAULT 'draft',
	generated_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	reviewed_at    DATETIME,
	posted_at      DATETIME,
	post_url       TEXT,
	post_response  TEXT,
	error_message  TEXT,
	UNIQUE (procurement_id, platform)
);

CREATE TABLE IF NOT EXISTS audit_log (
	id       TEXT PRIMARY KEY,
	draft_id TEXT NOT NULL REFERENCES drafts(id),
	action   TEXT NOT NULL,
	details  TEXT,
	at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_drafts_status ON drafts(status);
CREATE INDEX IF NOT EXISTS idx_drafts_procurement ON drafts(procurement_id);
CREATE INDEX IF NOT EXISTS idx_audit_log_draft ON audit_log(draft_id);
CREATE INDEX IF NOT EXISTS idx_catalog_discovered ON tender_catalog(discovered_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InsertTenderIfAbsent(ctx context.Context, t model.Tender) (bool, error) {
	cpvJSON, err := json.Marshal(t.CPVCodes)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: marshal cpv codes")
	}
	discovered := t.DiscoveredAt
	if discovered.IsZero() {
		discovered = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tenders
			(procurement_id, reference_nr, title, organization, budget, deadline,
			 category, description, cpv_codes, document_url, estimated_cost, discovered_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (procurement_id) DO NOTHING`,
		t.ProcurementID, t.ReferenceNr, t.Title, t.Organization, t.Budget,
		t.Deadline, t.Category, t.Description, string(cpvJSON), t.DocumentURL,
		t.EstimatedCost, discovered,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: insert tender %s", t.ProcurementID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n > 0, nil
}

func (s *SQLiteStore) GetTender(ctx context.Context, procurementID string) (*model.Tender, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT procurement_id, reference_nr, title, organization, budget, deadline,
		        category, description, cpv_codes, document_url, estimated_cost, discovered_at
		 FROM tenders WHERE procurement_id = ?`,
		procurementID,
	)
	t, err := scanTender(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get tender %s", procurementID)
	}
	return t, nil
}

func (s *SQLiteStore) ListNewTenders(ctx context.Context, since time.Time, limit int) ([]model.Tender, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.procurement_id, c.reference_nr, c.title, c.organization, c.budget,
		        c.deadline, c.category, c.description, c.cpv_codes, c.document_url,
		        c.estimated_cost, c.discovered_at
		 FROM tender_catalog c
		 WHERE c.discovered_at >= ?
		   AND c.procurement_id NOT IN (SELECT procurement_id FROM tenders)
		 ORDER BY c.discovered_at ASC
		 LIMIT ?`,
		since, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list new tenders")
	}
	defer rows.Close()

	var tenders []model.Tender
	for rows.Next() {
		t, err := scanTender(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan tender")
		}
		tenders = append(tenders, *t)
	}
	return tenders, eris.Wrap(rows.Err(), "sqlite: list new tenders iterate")
}

func (s *SQLiteStore) UpsertDraft(ctx context.Context, d model.Draft) (*model.Draft, error) {
	id := d.ID
	if id == "" {
		id = uuid.New().String()
	}
	tagsJSON, err := json.Marshal(d.Hashtags)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal hashtags")
	}
	generated := d.GeneratedAt
	if generated.IsZero() {
		generated = time.Now().UTC()
	}
	charCount := len([]rune(d.Content))

	// One live draft per (tender, platform): regeneration overwrites content
	// in place, but never clobbers a draft that already left the DRAFT state.
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO drafts
			(id, procurement_id, platform, content, hashtags, document_url,
			 char_count, status, generated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (procurement_id, platform) DO UPDATE SET
			content      = excluded.content,
			hashtags     = excluded.hashtags,
			document_url = excluded.document_url,
			char_count   = excluded.char_count,
			generated_at = excluded.generated_at
		 WHERE drafts.status = 'draft'`,
		id, d.ProcurementID, d.Platform, d.Content, string(tagsJSON),
		d.DocumentURL, charCount, string(model.StatusDraft), generated,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: upsert draft %s/%s", d.ProcurementID, d.Platform)
	}

	row := s.db.QueryRowContext(ctx,
		draftSelect+` WHERE d.procurement_id = ? AND d.platform = ?`,
		d.ProcurementID, d.Platform,
	)
	out, err := scanDraft(row)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: reload draft %s/%s", d.ProcurementID, d.Platform)
	}
	return out, nil
}

const draftSelect = `
SELECT d.id, d.procurement_id, d.platform, d.content, d.hashtags, d.document_url,
       d.char_count, d.status, d.generated_at, d.reviewed_at, d.posted_at,
       d.post_url, d.post_response, d.error_message, t.title, t.reference_nr
FROM drafts d
JOIN tenders t ON d.procurement_id = t.procurement_id`

func (s *SQLiteStore) ListDrafts(ctx context.Context, filter DraftFilter) ([]model.Draft, error) {
	query := draftSelect + ` WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND d.status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Platform != "" {
		query += ` AND d.platform = ?`
		args = append(args, filter.Platform)
	}

	// Fairness ordering: the review gate walks drafts oldest-generated-first,
	// the executor posts oldest-approved-first so no draft starves.
	if filter.Status == model.StatusApproved {
		query += ` ORDER BY d.reviewed_at ASC`
	} else {
		query += ` ORDER BY d.generated_at ASC`
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list drafts")
	}
	defer rows.Close()

	var drafts []model.Draft
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan draft")
		}
		drafts = append(drafts, *d)
	}
	return drafts, eris.Wrap(rows.Err(), "sqlite: list drafts iterate")
}

func (s *SQLiteStore) UpdateDraftContent(ctx context.Context, draftID, content string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE drafts SET content = ?, char_count = ? WHERE id = ?`,
		content, len([]rune(content)), draftID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update draft content %s", draftID)
	}
	return checkRowsAffected(res, "draft", draftID)
}

func (s *SQLiteStore) TransitionDraft(ctx context.Context, draftID string, tr Transition) error {
	if !tr.Status.Valid() {
		return eris.Errorf("sqlite: invalid draft status %q", tr.Status)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin transition")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	query := `UPDATE drafts SET status = ?`
	args := []any{string(tr.Status)}

	switch tr.Status {
	case model.StatusApproved, model.StatusRejected:
		query += `, reviewed_at = ?`
		args = append(args, now)
	case model.StatusPosted:
		query += `, posted_at = ?, post_url = ?, post_response = ?`
		args = append(args, now, tr.PostURL, nullableJSON(tr.PostResponse))
	case model.StatusFailed:
		query += `, error_message = ?`
		args = append(args, tr.ErrorMessage)
	}
	query += ` WHERE id = ?`
	args = append(args, draftID)

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: transition draft %s", draftID)
	}
	if err := checkRowsAffected(res, "draft", draftID); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO audit_log (id, draft_id, action, details, at) VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), draftID, string(tr.Action), nullableJSON(tr.Details), now,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: append audit %s", draftID)
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit transition")
}

func (s *SQLiteStore) ListAudit(ctx context.Context, draftID string) ([]model.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, draft_id, action, details, at FROM audit_log WHERE draft_id = ? ORDER BY at ASC, id ASC`,
		draftID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list audit")
	}
	defer rows.Close()

	var entries []model.AuditEntry
	for rows.Next() {
		var e model.AuditEntry
		var details sql.NullString
		if err := rows.Scan(&e.ID, &e.DraftID, &e.Action, &details, &e.At); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan audit entry")
		}
		if details.Valid {
			e.Details = json.RawMessage(details.String)
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: list audit iterate")
}

func (s *SQLiteStore) CountByStatus(ctx context.Context) ([]StatusCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT platform, status, COUNT(*) FROM drafts GROUP BY platform, status ORDER BY platform, status`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count by status")
	}
	defer rows.Close()

	var counts []StatusCount
	for rows.Next() {
		var c StatusCount
		if err := rows.Scan(&c.Platform, &c.Status, &c.Count); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan status count")
		}
		counts = append(counts, c)
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: count iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

type scannable interface {
	Scan(dest ...any) error
}

func scanTender(row scannable) (*model.Tender, error) {
	var t model.Tender
	var cpvJSON string
	var deadline sql.NullTime
	var estCost sql.NullFloat64

	err := row.Scan(&t.ProcurementID, &t.ReferenceNr, &t.Title, &t.Organization,
		&t.Budget, &deadline, &t.Category, &t.Description, &cpvJSON,
		&t.DocumentURL, &estCost, &t.DiscoveredAt)
	if err != nil {
		return nil, err
	}
	if deadline.Valid {
		d := deadline.Time
		t.Deadline = &d
	}
	if estCost.Valid {
		c := estCost.Float64
		t.EstimatedCost = &c
	}
	if err := json.Unmarshal([]byte(cpvJSON), &t.CPVCodes); err != nil {
		return nil, eris.Wrap(err, "unmarshal cpv codes")
	}
	return &t, nil
}

func scanDraft(row scannable) (*model.Draft, error) {
	var d model.Draft
	var tagsJSON string
	var reviewedAt, postedAt sql.NullTime
	var postURL, postResponse, errMsg sql.NullString

	err := row.Scan(&d.ID, &d.ProcurementID, &d.Platform, &d.Content, &tagsJSON,
		&d.DocumentURL, &d.CharCount, &d.Status, &d.GeneratedAt,
		&reviewedAt, &postedAt, &postURL, &postResponse, &errMsg,
		&d.TenderTitle, &d.TenderRef)
	if err != nil {
		return nil, err
	}
	if reviewedAt.Valid {
		t := reviewedAt.Time
		d.ReviewedAt = &t
	}
	if postedAt.Valid {
		t := postedAt.Time
		d.PostedAt = &t
	}
	if postURL.Valid {
		d.PostURL = postURL.String
	}
	if postResponse.Valid {
		d.PostResponse = json.RawMessage(postResponse.String)
	}
	if errMsg.Valid {
		d.ErrorMessage = errMsg.String
	}
	if err := json.Unmarshal([]byte(tagsJSON), &d.Hashtags); err != nil {
		return nil, eris.Wrap(err, "unmarshal hashtags")
	}
	return &d, nil
}
