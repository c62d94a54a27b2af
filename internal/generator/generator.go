// Package generator implements the first pipeline stage: import newly
// discovered tenders and write one draft per platform for each.
package generator

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tendly/social-pipeline/internal/model"
	"github.com/tendly/social-pipeline/internal/platform"
	"github.com/tendly/social-pipeline/internal/store"
	"github.com/tendly/social-pipeline/internal/summarizer"
)

// TenderFetcher retrieves a single tender page. Implemented by
// fetcher.TendlyFetcher; faked in tests.
type TenderFetcher interface {
	Fetch(ctx context.Context, url string) (*model.Tender, error)
}

// ContentSummarizer produces platform copy for a tender. Implemented by
// summarizer.Summarizer; faked in tests and unused in dry runs.
type ContentSummarizer interface {
	Summarize(ctx context.Context, p platform.Platform, summary model.TenderSummary) (string, error)
}

// Params controls a generation run. Either URL is set (single-document mode)
// or Days/Limit bound a lookback batch.
type Params struct {
	URL    string
	Days   int
	Limit  int
	DryRun bool
}

// Result aggregates a generation run. One tender failing never aborts the
// batch; it lands in Errors and the loop moves on.
type Result struct {
	Generated int `json:"generated"`
	Errors    int `json:"errors"`
}

// Generator is the draft generation stage.
type Generator struct {
	store      store.Store
	summarizer ContentSummarizer
	fetcher    TenderFetcher
}

// New creates a Generator. summarizer may be nil for dry-run-only use;
// fetcher may be nil when single-URL mode is never exercised.
func New(st store.Store, cs ContentSummarizer, tf TenderFetcher) *Generator {
	return &Generator{store: st, summarizer: cs, fetcher: tf}
}

// Run executes the generation stage and returns per-run counts.
func (g *Generator) Run(ctx context.Context, params Params) (*Result, error) {
	if params.URL != "" {
		return g.runSingle(ctx, params)
	}
	return g.runBatch(ctx, params)
}

func (g *Generator) runSingle(ctx context.Context, params Params) (*Result, error) {
	if g.fetcher == nil {
		return nil, eris.New("generator: no fetcher configured for single-URL mode")
	}
	log := zap.L().With(zap.String("url", params.URL))
	log.Info("generator: fetching single tender")

	tender, err := g.fetcher.Fetch(ctx, params.URL)
	if err != nil {
		return nil, eris.Wrap(err, "generator: fetch tender")
	}

	if err := g.processTender(ctx, *tender, params.DryRun); err != nil {
		return nil, err
	}
	log.Info("generator: done", zap.Int("generated", 1))
	return &Result{Generated: 1}, nil
}

func (g *Generator) runBatch(ctx context.Context, params Params) (*Result, error) {
	days := params.Days
	if days <= 0 {
		days = 7
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	tenders, err := g.store.ListNewTenders(ctx, cutoff, params.Limit)
	if err != nil {
		return nil, eris.Wrap(err, "generator: list new tenders")
	}
	zap.L().Info("generator: fetched new tenders",
		zap.Int("count", len(tenders)),
		zap.Int("lookback_days", days),
	)

	result := &Result{}
	for _, tender := range tenders {
		if err := g.processTender(ctx, tender, params.DryRun); err != nil {
			result.Errors++
			zap.L().Error("generator: tender failed",
				zap.String("procurement_id", tender.ProcurementID),
				zap.Error(err),
			)
			continue
		}
		result.Generated++
	}

	zap.L().Info("generator: done",
		zap.Int("generated", result.Generated),
		zap.Int("errors", result.Errors),
	)
	return result, nil
}

// processTender imports one tender and writes both platform drafts. Import is
// idempotent: a procurement ID already present is left untouched.
func (g *Generator) processTender(ctx context.Context, tender model.Tender, dryRun bool) error {
	created, err := g.store.InsertTenderIfAbsent(ctx, tender)
	if err != nil {
		return eris.Wrap(err, "import tender")
	}
	if !created {
		zap.L().Debug("generator: tender already imported",
			zap.String("procurement_id", tender.ProcurementID),
		)
	}

	summary := BuildSummary(tender)
	docURL := DocumentURL(tender)
	hashtags := summarizer.Hashtags(tender.Category)

	for _, p := range platform.All() {
		var content string
		if dryRun {
			content = placeholder(p, tender.Title)
		} else {
			content, err = g.summarizer.Summarize(ctx, p, summary)
			if err != nil {
				return eris.Wrapf(err, "summarize %s", p.Key())
			}
		}

		draft, err := g.store.UpsertDraft(ctx, model.Draft{
			ProcurementID: tender.ProcurementID,
			Platform:      p.Key(),
			Content:       content,
			Hashtags:      hashtags,
			DocumentURL:   docURL,
		})
		if err != nil {
			return eris.Wrapf(err, "insert %s draft", p.Key())
		}
		zap.L().Debug("generator: draft written",
			zap.String("draft_id", draft.ID),
			zap.String("platform", p.Key()),
			zap.Int("chars", draft.CharCount),
		)
	}
	return nil
}

// placeholder is the dry-run stand-in content. It exercises the exact same
// store write path as real generation without touching the completion service.
func placeholder(p platform.Platform, title string) string {
	return summarizer.Truncate(
		fmt.Sprintf("[DRY RUN] Would generate %s post for: %s", p.Label(), title),
		p.MaxChars(),
	)
}
