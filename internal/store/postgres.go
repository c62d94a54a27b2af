package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/tendly/social-pipeline/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it
// in unit tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// the hot per-item store operations.
var preparedStatements = map[string]string{
	"insert_tender": `INSERT INTO tenders
		(procurement_id, reference_nr, title, organization, budget, deadline,
		 category, description, cpv_codes, document_url, estimated_cost, discovered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (procurement_id) DO NOTHING`,
	"update_draft_content": `UPDATE drafts SET content = $1, char_count = $2 WHERE id = $3`,
	"insert_audit":         `INSERT INTO audit_log (id, draft_id, action, details, at) VALUES ($1, $2, $3, $4, $5)`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS tender_catalog (
	procurement_id TEXT PRIMARY KEY,
	reference_nr   TEXT NOT NULL DEFAULT '',
	title          TEXT NOT NULL DEFAULT '',
	organization   TEXT NOT NULL DEFAULT '',
	budget         TEXT NOT NULL DEFAULT '',
	deadline       TIMESTAMPTZ,
	category       TEXT NOT NULL DEFAULT '',
	description    TEXT NOT NULL DEFAULT '',
	cpv_codes      JSONB NOT NULL DEFAULT '[]',
	document_url   TEXT NOT NULL DEFAULT '',
	estimated_cost DOUBLE PRECISION,
	discovered_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS tenders (
	procurement_id TEXT PRIMARY KEY,
	reference_nr   TEXT NOT NULL DEFAULT '',
	title          TEXT NOT NULL DEFAULT '',
	organization   TEXT NOT NULL DEFAULT '',
	budget         TEXT NOT NULL DEFAULT '',
	deadline       TIMESTAMPTZ,
	category       TEXT NOT NULL DEFAULT '',
	description    TEXT NOT NULL DEFAULT '',
	cpv_codes      JSONB NOT NULL DEFAULT '[]',
	document_url   TEXT NOT NULL DEFAULT '',
	estimated_cost DOUBLE PRECISION,
	discovered_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS drafts (
	id             UUID PRIMARY KEY,
	procurement_id TEXT NOT NULL REFERENCES tenders(procurement_id),
	platform       TEXT NOT NULL,
	content        TEXT NOT NULL,
	hashtags       JSONB NOT NULL DEFAULT '[]',
	document_url   TEXT NOT NULL DEFAULT '',
	char_count     INTEGER NOT NULL DEFAULT 0,
	status         TEXT NOT NULL DEFAULT 'draft',
	generated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	reviewed_at    TIMESTAMPTZ,
	posted_at      TIMESTAMPTZ,
	post_url       TEXT,
	post_response  JSONB,
	error_message  TEXT,
	UNIQUE (procurement_id, platform)
);

CREATE TABLE IF NOT EXISTS audit_log (
	id       UUID PRIMARY KEY,
	draft_id UUID NOT NULL REFERENCES drafts(id),
	action   TEXT NOT NULL,
	details  JSONB,
	at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_drafts_status ON drafts(status);
CREATE INDEX IF NOT EXISTS idx_drafts_procurement ON drafts(procurement_id);
CREATE INDEX IF NOT EXISTS idx_audit_log_draft ON audit_log(draft_id);
CREATE INDEX IF NOT EXISTS idx_catalog_discovered ON tender_catalog(discovered_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) InsertTenderIfAbsent(ctx context.Context, t model.Tender) (bool, error) {
	cpvJSON, err := json.Marshal(t.CPVCodes)
	if err != nil {
		return false, eris.Wrap(err, "postgres: marshal cpv codes")
	}
	discovered := t.DiscoveredAt
	if discovered.IsZero() {
		discovered = time.Now().UTC()
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO tenders
			(procurement_id, reference_nr, title, organization, budget, deadline,
			 category, description, cpv_codes, document_url, estimated_cost, discovered_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (procurement_id) DO NOTHING`,
		t.ProcurementID, t.ReferenceNr, t.Title, t.Organization, t.Budget,
		t.Deadline, t.Category, t.Description, cpvJSON, t.DocumentURL,
		t.EstimatedCost, discovered,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: insert tender %s", t.ProcurementID)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) GetTender(ctx context.Context, procurementID string) (*model.Tender, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT procurement_id, reference_nr, title, organization, budget, deadline,
		        category, description, cpv_codes, document_url, estimated_cost, discovered_at
		 FROM tenders WHERE procurement_id = $1`,
		procurementID,
	)
	t, err := scanTenderPG(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get tender %s", procurementID)
	}
	return t, nil
}

func (s *PostgresStore) ListNewTenders(ctx context.Context, since time.Time, limit int) ([]model.Tender, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT c.procurement_id, c.reference_nr, c.title, c.organization, c.budget,
		        c.deadline, c.category, c.description, c.cpv_codes, c.document_url,
		        c.estimated_cost, c.discovered_at
		 FROM tender_catalog c
		 WHERE c.discovered_at >= $1
		   AND NOT EXISTS (SELECT 1 FROM tenders t WHERE t.procurement_id = c.procurement_id)
		 ORDER BY c.discovered_at ASC
		 LIMIT $2`,
		since, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list new tenders")
	}
	defer rows.Close()

	var tenders []model.Tender
	for rows.Next() {
		t, err := scanTenderPG(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan tender")
		}
		tenders = append(tenders, *t)
	}
	return tenders, eris.Wrap(rows.Err(), "postgres: list new tenders iterate")
}

func (s *PostgresStore) UpsertDraft(ctx context.Context, d model.Draft) (*model.Draft, error) {
	id := d.ID
	if id == "" {
		id = uuid.New().String()
	}
	tagsJSON, err := json.Marshal(d.Hashtags)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal hashtags")
	}
	generated := d.GeneratedAt
	if generated.IsZero() {
		generated = time.Now().UTC()
	}
	charCount := len([]rune(d.Content))

	_, err = s.pool.Exec(ctx,
		`INSERT INTO drafts
			(id, procurement_id, platform, content, hashtags, document_url,
			 char_count, status, generated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (procurement_id, platform) DO UPDATE SET
			content      = excluded.content,
			hashtags     = excluded.hashtags,
			document_url = excluded.document_url,
			char_count   = excluded.char_count,
			generated_at = excluded.generated_at
		 WHERE drafts.status = 'draft'`,
		id, d.ProcurementID, d.Platform, d.Content, tagsJSON,
		d.DocumentURL, charCount, string(model.StatusDraft), generated,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: upsert draft %s/%s", d.ProcurementID, d.Platform)
	}

	row := s.pool.QueryRow(ctx,
		pgDraftSelect+` WHERE d.procurement_id = $1 AND d.platform = $2`,
		d.ProcurementID, d.Platform,
	)
	out, err := scanDraftPG(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: reload draft %s/%s", d.ProcurementID, d.Platform)
	}
	return out, nil
}

const pgDraftSelect = `
SELECT d.id, d.procurement_id, d.platform, d.content, d.hashtags, d.document_url,
       d.char_count, d.status, d.generated_at, d.reviewed_at, d.posted_at,
       d.post_url, d.post_response, d.error_message, t.title, t.reference_nr
FROM drafts d
JOIN tenders t ON d.procurement_id = t.procurement_id`

func (s *PostgresStore) ListDrafts(ctx context.Context, filter DraftFilter) ([]model.Draft, error) {
	query := pgDraftSelect + ` WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + itoa(len(args))
	}

	if filter.Status != "" {
		query += ` AND d.status = ` + arg(string(filter.Status))
	}
	if filter.Platform != "" {
		query += ` AND d.platform = ` + arg(filter.Platform)
	}

	if filter.Status == model.StatusApproved {
		query += ` ORDER BY d.reviewed_at ASC`
	} else {
		query += ` ORDER BY d.generated_at ASC`
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ` + arg(limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list drafts")
	}
	defer rows.Close()

	var drafts []model.Draft
	for rows.Next() {
		d, err := scanDraftPG(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan draft")
		}
		drafts = append(drafts, *d)
	}
	return drafts, eris.Wrap(rows.Err(), "postgres: list drafts iterate")
}

func (s *PostgresStore) UpdateDraftContent(ctx context.Context, draftID, content string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE drafts SET content = $1, char_count = $2 WHERE id = $3`,
		content, len([]rune(content)), draftID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update draft content %s", draftID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("draft not found: %s", draftID)
	}
	return nil
}

func (s *PostgresStore) TransitionDraft(ctx context.Context, draftID string, tr Transition) error {
	if !tr.Status.Valid() {
		return eris.Errorf("postgres: invalid draft status %q", tr.Status)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin transition")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	now := time.Now().UTC()
	query := `UPDATE drafts SET status = $1`
	args := []any{string(tr.Status)}
	n := 1
	next := func(v any) string {
		n++
		args = append(args, v)
		return "$" + itoa(n)
	}

	switch tr.Status {
	case model.StatusApproved, model.StatusRejected:
		query += `, reviewed_at = ` + next(now)
	case model.StatusPosted:
		query += `, posted_at = ` + next(now)
		query += `, post_url = ` + next(tr.PostURL)
		query += `, post_response = ` + next(nullableJSON(tr.PostResponse))
	case model.StatusFailed:
		query += `, error_message = ` + next(tr.ErrorMessage)
	}
	query += ` WHERE id = ` + next(draftID)

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "postgres: transition draft %s", draftID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("draft not found: %s", draftID)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO audit_log (id, draft_id, action, details, at) VALUES ($1, $2, $3, $4, $5)`,
		uuid.New().String(), draftID, string(tr.Action), nullableJSON(tr.Details), now,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: append audit %s", draftID)
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit transition")
}

func (s *PostgresStore) ListAudit(ctx context.Context, draftID string) ([]model.AuditEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, draft_id, action, details, at FROM audit_log WHERE draft_id = $1 ORDER BY at ASC, id ASC`,
		draftID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list audit")
	}
	defer rows.Close()

	var entries []model.AuditEntry
	for rows.Next() {
		var e model.AuditEntry
		var details []byte
		if err := rows.Scan(&e.ID, &e.DraftID, &e.Action, &details, &e.At); err != nil {
			return nil, eris.Wrap(err, "postgres: scan audit entry")
		}
		if len(details) > 0 {
			e.Details = json.RawMessage(details)
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: list audit iterate")
}

func (s *PostgresStore) CountByStatus(ctx context.Context) ([]StatusCount, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT platform, status, COUNT(*) FROM drafts GROUP BY platform, status ORDER BY platform, status`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count by status")
	}
	defer rows.Close()

	var counts []StatusCount
	for rows.Next() {
		var c StatusCount
		if err := rows.Scan(&c.Platform, &c.Status, &c.Count); err != nil {
			return nil, eris.Wrap(err, "postgres: scan status count")
		}
		counts = append(counts, c)
	}
	return counts, eris.Wrap(rows.Err(), "postgres: count iterate")
}

// helpers

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [8]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

func scanTenderPG(row pgx.Row) (*model.Tender, error) {
	var t model.Tender
	var cpvJSON []byte
	var deadline *time.Time
	var estCost *float64

	err := row.Scan(&t.ProcurementID, &t.ReferenceNr, &t.Title, &t.Organization,
		&t.Budget, &deadline, &t.Category, &t.Description, &cpvJSON,
		&t.DocumentURL, &estCost, &t.DiscoveredAt)
	if err != nil {
		return nil, err
	}
	t.Deadline = deadline
	t.EstimatedCost = estCost
	if len(cpvJSON) > 0 {
		if err := json.Unmarshal(cpvJSON, &t.CPVCodes); err != nil {
			return nil, eris.Wrap(err, "unmarshal cpv codes")
		}
	}
	return &t, nil
}

func scanDraftPG(row pgx.Row) (*model.Draft, error) {
	var d model.Draft
	var tagsJSON []byte
	var reviewedAt, postedAt *time.Time
	var postURL, errMsg *string
	var postResponse []byte

	err := row.Scan(&d.ID, &d.ProcurementID, &d.Platform, &d.Content, &tagsJSON,
		&d.DocumentURL, &d.CharCount, &d.Status, &d.GeneratedAt,
		&reviewedAt, &postedAt, &postURL, &postResponse, &errMsg,
		&d.TenderTitle, &d.TenderRef)
	if err != nil {
		return nil, err
	}
	d.ReviewedAt = reviewedAt
	d.PostedAt = postedAt
	if postURL != nil {
		d.PostURL = *postURL
	}
	if len(postResponse) > 0 {
		d.PostResponse = json.RawMessage(postResponse)
	}
	if errMsg != nil {
		d.ErrorMessage = *errMsg
	}
	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &d.Hashtags); err != nil {
			return nil, eris.Wrap(err, "unmarshal hashtags")
		}
	}
	return &d, nil
}
