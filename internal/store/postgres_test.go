package store

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendly/social-pipeline/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_InsertTenderIfAbsent_Created(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO tenders`).
		WithArgs("100", "REF-100", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	created, err := s.InsertTenderIfAbsent(context.Background(), model.Tender{
		ProcurementID: "100",
		ReferenceNr:   "REF-100",
		Title:         "Road maintenance",
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertTenderIfAbsent_Conflict(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO tenders`).
		WithArgs("100", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	created, err := s.InsertTenderIfAbsent(context.Background(), model.Tender{ProcurementID: "100"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetTender_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM tenders WHERE procurement_id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	got, err := s.GetTender(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateDraftContent_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE drafts SET content = \$1, char_count = \$2 WHERE id = \$3`).
		WithArgs("new content", len([]rune("new content")), "missing-id").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateDraftContent(context.Background(), "missing-id", "new content")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "draft not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_TransitionDraft_ApprovedCommitsStatusAndAudit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE drafts SET status = \$1, reviewed_at = \$2 WHERE id = \$3`).
		WithArgs("approved", pgxmock.AnyArg(), "draft-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO audit_log`).
		WithArgs(pgxmock.AnyArg(), "draft-1", "approved", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := s.TransitionDraft(context.Background(), "draft-1", Transition{
		Status: model.StatusApproved,
		Action: model.ActionApproved,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_TransitionDraft_PostedCarriesResponse(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE drafts SET status = \$1, posted_at = \$2, post_url = \$3, post_response = \$4 WHERE id = \$5`).
		WithArgs("posted", pgxmock.AnyArg(), "https://twitter.com/tendlyeu/status/123", pgxmock.AnyArg(), "draft-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO audit_log`).
		WithArgs(pgxmock.AnyArg(), "draft-1", "posted", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := s.TransitionDraft(context.Background(), "draft-1", Transition{
		Status:       model.StatusPosted,
		Action:       model.ActionPosted,
		PostURL:      "https://twitter.com/tendlyeu/status/123",
		PostResponse: []byte(`{"id": "123"}`),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_TransitionDraft_MissingDraftRollsBack(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE drafts SET status = \$1, reviewed_at = \$2 WHERE id = \$3`).
		WithArgs("approved", pgxmock.AnyArg(), "missing-id").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := s.TransitionDraft(context.Background(), "missing-id", Transition{
		Status: model.StatusApproved,
		Action: model.ActionApproved,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "draft not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_TransitionDraft_InvalidStatus(t *testing.T) {
	s, _ := newMockPostgresStore(t)

	err := s.TransitionDraft(context.Background(), "draft-1", Transition{
		Status: "published",
		Action: model.ActionPosted,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid draft status")
}

func TestPostgresStore_CountByStatus(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT platform, status, COUNT\(\*\) FROM drafts`).
		WillReturnRows(pgxmock.NewRows([]string{"platform", "status", "count"}).
			AddRow("linkedin", "draft", 2).
			AddRow("twitter", "posted", 1))

	counts, err := s.CountByStatus(context.Background())
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, StatusCount{Platform: "linkedin", Status: model.StatusDraft, Count: 2}, counts[0])
	assert.Equal(t, StatusCount{Platform: "twitter", Status: model.StatusPosted, Count: 1}, counts[1])
	assert.NoError(t, mock.ExpectationsWereMet())
}
