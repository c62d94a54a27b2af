package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendly/social-pipeline/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testTender(id string) model.Tender {
	return model.Tender{
		ProcurementID: id,
		ReferenceNr:   "REF-" + id,
		Title:         "Road maintenance " + id,
		Organization:  "Transport Administration",
		Budget:        "EUR 1,500,000",
		Category:      "Construction",
		Description:   "Seasonal road maintenance works.",
		CPVCodes:      []string{"45233141-9"},
		DocumentURL:   "https://tendly.eu/tender/" + id + "-road-maintenance",
		DiscoveredAt:  time.Now().UTC(),
	}
}

// seedCatalog inserts a discovery row directly; catalog rows are written by
// the external scraper, not through the Store interface.
func seedCatalog(t *testing.T, st *SQLiteStore, id string, discoveredAt time.Time) {
	t.Helper()
	_, err := st.db.Exec(
		`INSERT INTO tender_catalog (procurement_id, reference_nr, title, discovered_at)
		 VALUES (?, ?, ?, ?)`,
		id, "REF-"+id, "Tender "+id, discoveredAt,
	)
	require.NoError(t, err)
}

// seedDraft imports a tender and writes its draft, returning the draft ID.
func seedDraft(t *testing.T, st *SQLiteStore, procurementID, platform, content string) string {
	t.Helper()
	ctx := context.Background()
	_, err := st.InsertTenderIfAbsent(ctx, testTender(procurementID))
	require.NoError(t, err)
	d, err := st.UpsertDraft(ctx, model.Draft{
		ProcurementID: procurementID,
		Platform:      platform,
		Content:       content,
	})
	require.NoError(t, err)
	return d.ID
}

// --- Tenders ---

func TestSQLite_InsertTenderIfAbsent_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	created, err := st.InsertTenderIfAbsent(ctx, testTender("100"))
	require.NoError(t, err)
	assert.True(t, created)

	// Second insert with different fields is a no-op.
	dup := testTender("100")
	dup.Title = "Changed title"
	created, err = st.InsertTenderIfAbsent(ctx, dup)
	require.NoError(t, err)
	assert.False(t, created)

	got, err := st.GetTender(ctx, "100")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Road maintenance 100", got.Title)
	assert.Equal(t, []string{"45233141-9"}, got.CPVCodes)
}

func TestSQLite_GetTender_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	got, err := st.GetTender(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_ListNewTenders_AntiJoinAndOrder(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedCatalog(t, st, "1", now.Add(-3*time.Hour))
	seedCatalog(t, st, "2", now.Add(-2*time.Hour))
	seedCatalog(t, st, "3", now.Add(-1*time.Hour))

	// Already imported: must not come back.
	_, err := st.InsertTenderIfAbsent(ctx, testTender("2"))
	require.NoError(t, err)

	tenders, err := st.ListNewTenders(ctx, now.Add(-24*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, tenders, 2)
	assert.Equal(t, "1", tenders[0].ProcurementID)
	assert.Equal(t, "3", tenders[1].ProcurementID)
}

func TestSQLite_ListNewTenders_CutoffAndLimit(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedCatalog(t, st, "old", now.Add(-10*24*time.Hour))
	seedCatalog(t, st, "a", now.Add(-3*time.Hour))
	seedCatalog(t, st, "b", now.Add(-2*time.Hour))
	seedCatalog(t, st, "c", now.Add(-1*time.Hour))

	tenders, err := st.ListNewTenders(ctx, now.Add(-24*time.Hour), 2)
	require.NoError(t, err)
	require.Len(t, tenders, 2)
	assert.Equal(t, "a", tenders[0].ProcurementID)
	assert.Equal(t, "b", tenders[1].ProcurementID)
}

// --- Drafts ---

func TestSQLite_UpsertDraft_RegenerationOverwrites(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	id := seedDraft(t, st, "100", "twitter", "first version")

	d, err := st.UpsertDraft(ctx, model.Draft{
		ProcurementID: "100",
		Platform:      "twitter",
		Content:       "second version",
		Hashtags:      []string{"#Tenders"},
	})
	require.NoError(t, err)

	// Same row, new content.
	assert.Equal(t, id, d.ID)
	assert.Equal(t, "second version", d.Content)
	assert.Equal(t, len([]rune("second version")), d.CharCount)
	assert.Equal(t, model.StatusDraft, d.Status)

	drafts, err := st.ListDrafts(ctx, DraftFilter{Platform: "twitter"})
	require.NoError(t, err)
	assert.Len(t, drafts, 1)
}

func TestSQLite_UpsertDraft_NeverClobbersReviewed(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	id := seedDraft(t, st, "100", "twitter", "approved content")
	require.NoError(t, st.TransitionDraft(ctx, id, Transition{
		Status: model.StatusApproved,
		Action: model.ActionApproved,
	}))

	_, err := st.UpsertDraft(ctx, model.Draft{
		ProcurementID: "100",
		Platform:      "twitter",
		Content:       "regenerated content",
	})
	require.NoError(t, err)

	drafts, err := st.ListDrafts(ctx, DraftFilter{Status: model.StatusApproved})
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, "approved content", drafts[0].Content)
}

func TestSQLite_ListDrafts_OrderedOldestGeneratedFirst(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := st.InsertTenderIfAbsent(ctx, testTender("100"))
	require.NoError(t, err)

	for i, platform := range []string{"linkedin", "twitter"} {
		_, err := st.UpsertDraft(ctx, model.Draft{
			ProcurementID: "100",
			Platform:      platform,
			Content:       "content " + platform,
			GeneratedAt:   now.Add(time.Duration(-i) * time.Hour),
		})
		require.NoError(t, err)
	}

	drafts, err := st.ListDrafts(ctx, DraftFilter{Status: model.StatusDraft})
	require.NoError(t, err)
	require.Len(t, drafts, 2)
	// twitter was generated an hour earlier
	assert.Equal(t, "twitter", drafts[0].Platform)
	assert.Equal(t, "linkedin", drafts[1].Platform)
	assert.Equal(t, "Road maintenance 100", drafts[0].TenderTitle)
	assert.Equal(t, "REF-100", drafts[0].TenderRef)
}

func TestSQLite_ListDrafts_ApprovedOrderedOldestReviewedFirst(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	firstID := seedDraft(t, st, "100", "twitter", "one")
	secondID := seedDraft(t, st, "200", "twitter", "two")

	// Approve in reverse generation order; review order must win.
	require.NoError(t, st.TransitionDraft(ctx, secondID, Transition{
		Status: model.StatusApproved, Action: model.ActionApproved,
	}))
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, st.TransitionDraft(ctx, firstID, Transition{
		Status: model.StatusApproved, Action: model.ActionApproved,
	}))

	drafts, err := st.ListDrafts(ctx, DraftFilter{Status: model.StatusApproved})
	require.NoError(t, err)
	require.Len(t, drafts, 2)
	assert.Equal(t, secondID, drafts[0].ID)
	assert.Equal(t, firstID, drafts[1].ID)
}

func TestSQLite_ListDrafts_PlatformFilter(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	seedDraft(t, st, "100", "twitter", "short")
	_, err := st.UpsertDraft(ctx, model.Draft{
		ProcurementID: "100",
		Platform:      "linkedin",
		Content:       "long",
	})
	require.NoError(t, err)

	drafts, err := st.ListDrafts(ctx, DraftFilter{Platform: "linkedin"})
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, "long", drafts[0].Content)
}

func TestSQLite_UpdateDraftContent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	id := seedDraft(t, st, "100", "twitter", "original")

	require.NoError(t, st.UpdateDraftContent(ctx, id, "edited content"))

	drafts, err := st.ListDrafts(ctx, DraftFilter{})
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, "edited content", drafts[0].Content)
	assert.Equal(t, len([]rune("edited content")), drafts[0].CharCount)
	// An edit is not a transition: no audit entry.
	entries, err := st.ListAudit(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSQLite_UpdateDraftContent_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.UpdateDraftContent(context.Background(), "no-such-draft", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

// --- Transitions ---

func TestSQLite_TransitionDraft_ApprovedWithAudit(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	id := seedDraft(t, st, "100", "twitter", "content")

	details := json.RawMessage(`{"source": "review"}`)
	require.NoError(t, st.TransitionDraft(ctx, id, Transition{
		Status:  model.StatusApproved,
		Action:  model.ActionApproved,
		Details: details,
	}))

	drafts, err := st.ListDrafts(ctx, DraftFilter{Status: model.StatusApproved})
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.NotNil(t, drafts[0].ReviewedAt)
	assert.Nil(t, drafts[0].PostedAt)

	entries, err := st.ListAudit(ctx, id)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.ActionApproved, entries[0].Action)
	assert.JSONEq(t, string(details), string(entries[0].Details))
}

func TestSQLite_TransitionDraft_PostedRecordsResponse(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	id := seedDraft(t, st, "100", "twitter", "content")
	require.NoError(t, st.TransitionDraft(ctx, id, Transition{
		Status: model.StatusApproved, Action: model.ActionApproved,
	}))

	resp := json.RawMessage(`{"success": true, "output": {"value": {"id": "123"}}}`)
	require.NoError(t, st.TransitionDraft(ctx, id, Transition{
		Status:       model.StatusPosted,
		Action:       model.ActionPosted,
		PostURL:      "https://twitter.com/tendlyeu/status/123",
		PostResponse: resp,
	}))

	drafts, err := st.ListDrafts(ctx, DraftFilter{Status: model.StatusPosted})
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.NotNil(t, drafts[0].PostedAt)
	assert.Equal(t, "https://twitter.com/tendlyeu/status/123", drafts[0].PostURL)
	assert.JSONEq(t, string(resp), string(drafts[0].PostResponse))

	entries, err := st.ListAudit(ctx, id)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.ActionApproved, entries[0].Action)
	assert.Equal(t, model.ActionPosted, entries[1].Action)
}

func TestSQLite_TransitionDraft_FailedRecordsError(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	id := seedDraft(t, st, "100", "linkedin", "content")
	require.NoError(t, st.TransitionDraft(ctx, id, Transition{
		Status:       model.StatusFailed,
		Action:       model.ActionFailed,
		ErrorMessage: "tool execution failed",
	}))

	drafts, err := st.ListDrafts(ctx, DraftFilter{Status: model.StatusFailed})
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, "tool execution failed", drafts[0].ErrorMessage)
}

func TestSQLite_TransitionDraft_InvalidStatus(t *testing.T) {
	st := newTestSQLiteStore(t)

	id := seedDraft(t, st, "100", "twitter", "content")
	err := st.TransitionDraft(context.Background(), id, Transition{
		Status: "published", Action: model.ActionPosted,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid draft status")
}

func TestSQLite_TransitionDraft_MissingDraftWritesNoAudit(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	err := st.TransitionDraft(ctx, "no-such-draft", Transition{
		Status: model.StatusApproved, Action: model.ActionApproved,
	})
	require.Error(t, err)

	// The transaction rolled back: nothing landed in the audit log.
	entries, err := st.ListAudit(ctx, "no-such-draft")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// --- Reporting ---

func TestSQLite_CountByStatus(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	seedDraft(t, st, "100", "twitter", "a")
	_, err := st.UpsertDraft(ctx, model.Draft{ProcurementID: "100", Platform: "linkedin", Content: "b"})
	require.NoError(t, err)
	id := seedDraft(t, st, "200", "twitter", "c")
	require.NoError(t, st.TransitionDraft(ctx, id, Transition{
		Status: model.StatusApproved, Action: model.ActionApproved,
	}))

	counts, err := st.CountByStatus(ctx)
	require.NoError(t, err)

	byKey := map[string]int{}
	for _, c := range counts {
		byKey[c.Platform+"/"+string(c.Status)] = c.Count
	}
	assert.Equal(t, 1, byKey["linkedin/draft"])
	assert.Equal(t, 1, byKey["twitter/draft"])
	assert.Equal(t, 1, byKey["twitter/approved"])
}
