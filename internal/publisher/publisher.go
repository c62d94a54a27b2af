// Package publisher implements the final pipeline stage: post approved
// drafts to their platforms, one at a time, with per-item failure isolation.
package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tendly/social-pipeline/internal/model"
	"github.com/tendly/social-pipeline/internal/platform"
	"github.com/tendly/social-pipeline/internal/resolve"
	"github.com/tendly/social-pipeline/internal/store"
	"github.com/tendly/social-pipeline/pkg/arcade"
)

// Params controls a posting run.
type Params struct {
	// Platform restricts the run to one platform key; "" means all.
	Platform string
	// Limit caps items per run.
	Limit int
	// Delay is the pause between consecutive posts. It throttles calls
	// against platform rate limits; bursty posting patterns readily trigger
	// anti-spam defenses.
	Delay time.Duration
	// DryRun suppresses the posting API entirely while still exercising the
	// full state-machine path.
	DryRun bool
}

// Result aggregates a posting run.
type Result struct {
	Posted int `json:"posted"`
	Failed int `json:"failed"`
}

// Publisher is the posting stage.
type Publisher struct {
	store  store.Store
	arcade arcade.Client
	// destination is the configured long-form company page, used only as a
	// URL-resolution fallback.
	destination string
	// sleep is swapped out in tests.
	sleep func(time.Duration)
}

// New creates a Publisher. The arcade client may be nil for dry-run-only use.
func New(st store.Store, client arcade.Client, destination string) *Publisher {
	return &Publisher{
		store:       st,
		arcade:      client,
		destination: destination,
		sleep:       time.Sleep,
	}
}

// CheckAuth verifies the posting provider connections for every platform the
// run will touch. A missing or incomplete authorization is a startup
// configuration error: the stage fails before processing any items.
func (p *Publisher) CheckAuth(ctx context.Context, platformKey string) error {
	for _, plat := range targets(platformKey) {
		status, err := p.arcade.AuthStatus(ctx, plat.AuthProvider())
		if err != nil {
			return eris.Wrapf(err, "publisher: auth check %s", plat.Key())
		}
		if !status.Authorized() {
			return eris.Errorf("publisher: %s not authorized (status %q, visit %s)",
				plat.Label(), status.Status, status.URL)
		}
	}
	return nil
}

func targets(platformKey string) []platform.Platform {
	if platformKey == "" {
		return platform.All()
	}
	p, err := platform.Parse(platformKey)
	if err != nil {
		return nil
	}
	return []platform.Platform{p}
}

// Run posts up to Limit approved drafts, oldest-approved-first. A single
// item's failure marks that item FAILED and the loop continues; the batch is
// never aborted for one bad item.
func (p *Publisher) Run(ctx context.Context, params Params) (*Result, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 5
	}

	drafts, err := p.store.ListDrafts(ctx, store.DraftFilter{
		Status:   model.StatusApproved,
		Platform: params.Platform,
		Limit:    limit,
	})
	if err != nil {
		return nil, eris.Wrap(err, "publisher: list approved drafts")
	}
	if len(drafts) == 0 {
		zap.L().Info("publisher: no approved drafts")
		return &Result{}, nil
	}
	zap.L().Info("publisher: starting run",
		zap.Int("approved", len(drafts)),
		zap.Duration("delay", params.Delay),
		zap.Bool("dry_run", params.DryRun),
	)

	result := &Result{}
	for i, draft := range drafts {
		if p.postOne(ctx, draft, params.DryRun) {
			result.Posted++
		} else {
			result.Failed++
		}

		if i < len(drafts)-1 && params.Delay > 0 && !params.DryRun {
			zap.L().Debug("publisher: waiting", zap.Duration("delay", params.Delay))
			p.sleep(params.Delay)
		}
	}

	zap.L().Info("publisher: done",
		zap.Int("posted", result.Posted),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

// postOne attempts a single draft and commits its terminal state. Returns
// true on success. Every error path is contained here — including a failure
// while recording a failure, which is logged and swallowed so the run
// continues.
func (p *Publisher) postOne(ctx context.Context, draft model.Draft, dryRun bool) bool {
	log := zap.L().With(
		zap.String("draft_id", draft.ID),
		zap.String("platform", draft.Platform),
	)

	plat, err := platform.Parse(draft.Platform)
	if err != nil {
		p.markFailed(ctx, draft.ID, err.Error(), log)
		return false
	}

	if dryRun {
		details := json.RawMessage(`{"dry_run": true}`)
		err := p.store.TransitionDraft(ctx, draft.ID, store.Transition{
			Status:       model.StatusPosted,
			Action:       model.ActionPosted,
			Details:      details,
			PostResponse: details,
		})
		if err != nil {
			log.Error("publisher: dry-run transition failed", zap.Error(err))
			return false
		}
		log.Info("publisher: dry run, would post", zap.String("title", draft.TenderTitle))
		return true
	}

	content := plat.AttachURL(draft.Content, draft.DocumentURL)
	resp, err := p.arcade.ExecuteTool(ctx, arcade.ExecuteRequest{
		ToolName: plat.ToolName(),
		Input:    plat.ToolInput(content),
	})
	if err != nil {
		p.markFailed(ctx, draft.ID, err.Error(), log)
		return false
	}
	if !resp.Success {
		msg := resp.ErrorMessage()
		if msg == "" {
			msg = "unknown posting error"
		}
		p.markFailed(ctx, draft.ID, msg, log)
		return false
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		p.markFailed(ctx, draft.ID, "marshal post response: "+err.Error(), log)
		return false
	}

	postURL := resolve.PostURL(raw, plat, p.destination)
	details, _ := json.Marshal(map[string]any{
		"response": json.RawMessage(raw),
		"post_url": postURL,
	})

	err = p.store.TransitionDraft(ctx, draft.ID, store.Transition{
		Status:       model.StatusPosted,
		Action:       model.ActionPosted,
		Details:      details,
		PostURL:      postURL,
		PostResponse: raw,
	})
	if err != nil {
		// The post went out but the record didn't stick. Surface loudly and
		// fall through to the failure path so the attempt is still audited.
		log.Error("publisher: posted but transition failed", zap.Error(err))
		p.markFailed(ctx, draft.ID, "posted but not recorded: "+err.Error(), log)
		return false
	}

	log.Info("publisher: posted", zap.String("post_url", postURL))
	return true
}

// markFailed records a failed attempt. A secondary store failure here is
// reported but never fatal to the run.
func (p *Publisher) markFailed(ctx context.Context, draftID, errMsg string, log *zap.Logger) {
	log.Warn("publisher: post failed", zap.String("error", errMsg))

	details, _ := json.Marshal(map[string]string{"error": errMsg})
	err := p.store.TransitionDraft(ctx, draftID, store.Transition{
		Status:       model.StatusFailed,
		Action:       model.ActionFailed,
		Details:      details,
		ErrorMessage: errMsg,
	})
	if err != nil {
		log.Error("publisher: failed to record failure", zap.Error(err))
	}
}
