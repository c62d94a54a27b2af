// Package pipeline sequences the three content stages. Stages are isolated
// units: one stage failing is recorded and the next still runs, and the
// combined run succeeds only if every executed stage succeeded.
package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/tendly/social-pipeline/internal/generator"
	"github.com/tendly/social-pipeline/internal/publisher"
	"github.com/tendly/social-pipeline/internal/review"
)

// GenerateStage is the draft generation unit.
type GenerateStage interface {
	Run(ctx context.Context, params generator.Params) (*generator.Result, error)
}

// ReviewStage is the interactive review unit.
type ReviewStage interface {
	Run(ctx context.Context) (*review.Summary, error)
}

// PostStage is the publishing unit.
type PostStage interface {
	CheckAuth(ctx context.Context, platformKey string) error
	Run(ctx context.Context, params publisher.Params) (*publisher.Result, error)
}

// Options controls which stages run and with what parameters.
type Options struct {
	Generate generator.Params
	Post     publisher.Params

	SkipGenerate bool
	SkipReview   bool
	SkipPost     bool

	// Headless marks an unattended run. The review gate is interactive and
	// is always skipped when nobody is at the terminal; dry runs imply it.
	Headless bool
}

// StageResult records one stage's outcome.
type StageResult struct {
	Name    string `json:"name"`
	Skipped bool   `json:"skipped"`
	Err     error  `json:"-"`
}

// OK reports whether the stage did not fail (skipped stages count as OK).
func (r StageResult) OK() bool {
	return r.Err == nil
}

// Runner holds the three stage implementations.
type Runner struct {
	generate GenerateStage
	review   ReviewStage
	post     PostStage
}

// NewRunner wires the stages together.
func NewRunner(gen GenerateStage, rev ReviewStage, post PostStage) *Runner {
	return &Runner{generate: gen, review: rev, post: post}
}

// Run executes the configured stages in order and returns their results plus
// the combined success flag.
func (r *Runner) Run(ctx context.Context, opts Options) ([]StageResult, bool) {
	var results []StageResult

	results = append(results, r.runGenerate(ctx, opts))

	skipReview := opts.SkipReview || opts.Headless || opts.Generate.DryRun || opts.Post.DryRun
	results = append(results, r.runReview(ctx, skipReview))

	results = append(results, r.runPost(ctx, opts))

	ok := true
	for _, res := range results {
		if !res.OK() {
			ok = false
		}
		status := "ok"
		switch {
		case res.Skipped:
			status = "skipped"
		case res.Err != nil:
			status = "failed"
		}
		zap.L().Info("pipeline: stage summary",
			zap.String("stage", res.Name),
			zap.String("status", status),
		)
	}
	return results, ok
}

func (r *Runner) runGenerate(ctx context.Context, opts Options) StageResult {
	res := StageResult{Name: "generate"}
	if opts.SkipGenerate {
		res.Skipped = true
		return res
	}

	zap.L().Info("pipeline: running generate stage")
	if _, err := r.generate.Run(ctx, opts.Generate); err != nil {
		zap.L().Error("pipeline: generate stage failed", zap.Error(err))
		res.Err = err
	}
	return res
}

func (r *Runner) runReview(ctx context.Context, skip bool) StageResult {
	res := StageResult{Name: "review"}
	if skip {
		res.Skipped = true
		zap.L().Info("pipeline: skipping interactive review")
		return res
	}

	zap.L().Info("pipeline: running review stage")
	if _, err := r.review.Run(ctx); err != nil {
		zap.L().Error("pipeline: review stage failed", zap.Error(err))
		res.Err = err
	}
	return res
}

func (r *Runner) runPost(ctx context.Context, opts Options) StageResult {
	res := StageResult{Name: "post"}
	if opts.SkipPost {
		res.Skipped = true
		return res
	}

	zap.L().Info("pipeline: running post stage")
	if !opts.Post.DryRun {
		if err := r.post.CheckAuth(ctx, opts.Post.Platform); err != nil {
			zap.L().Error("pipeline: post stage auth failed", zap.Error(err))
			res.Err = err
			return res
		}
	}
	if _, err := r.post.Run(ctx, opts.Post); err != nil {
		zap.L().Error("pipeline: post stage failed", zap.Error(err))
		res.Err = err
	}
	return res
}
