// Package review implements the interactive review gate. One draft at a
// time, oldest-generated-first; every decision is committed before the next
// draft is shown, so an aborted session never loses a decision.
package review

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/tendly/social-pipeline/internal/model"
	"github.com/tendly/social-pipeline/internal/store"
)

// reviewDetails is the audit payload attached to review decisions.
var reviewDetails = json.RawMessage(`{"source": "review"}`)

// Summary tallies a review session.
type Summary struct {
	Approved  int `json:"approved"`
	Rejected  int `json:"rejected"`
	Skipped   int `json:"skipped"`
	Remaining int `json:"remaining"`
}

// Session is one interactive review run.
type Session struct {
	store store.Store
	in    *bufio.Reader
	out   io.Writer
}

// New creates a review session reading decisions from in (normally stdin).
func New(st store.Store, in io.Reader, out io.Writer) *Session {
	return &Session{store: st, in: bufio.NewReader(in), out: out}
}

// Run walks every pending draft and applies the operator's decisions.
func (s *Session) Run(ctx context.Context) (*Summary, error) {
	drafts, err := s.store.ListDrafts(ctx, store.DraftFilter{Status: model.StatusDraft})
	if err != nil {
		return nil, eris.Wrap(err, "review: list drafts")
	}

	summary := &Summary{}
	if len(drafts) == 0 {
		fmt.Fprintln(s.out, "No drafts to review.")
		return summary, nil
	}
	fmt.Fprintf(s.out, "Found %d draft(s) to review.\n", len(drafts))

	total := len(drafts)
	for i, draft := range drafts {
		renderDraft(s.out, draft, i+1, total)

		done, quit, err := s.decide(ctx, &draft, summary)
		if err != nil {
			return summary, err
		}
		if quit {
			summary.Remaining = total - i - 1
			if !done {
				summary.Remaining++
			}
			fmt.Fprintf(s.out, "\nSession: %d approved, %d skipped, %d rejected, %d remaining\n",
				summary.Approved, summary.Skipped, summary.Rejected, summary.Remaining)
			return summary, nil
		}
	}

	fmt.Fprintf(s.out, "\nReview complete: %d approved, %d skipped, %d rejected\n",
		summary.Approved, summary.Skipped, summary.Rejected)
	return summary, nil
}

// decide prompts until the operator makes a terminal choice for this draft.
// done reports whether the draft was decided; quit ends the session.
func (s *Session) decide(ctx context.Context, draft *model.Draft, summary *Summary) (done, quit bool, err error) {
	for {
		fmt.Fprint(s.out, "\n[A]pprove  [E]dit  [S]kip  [R]eject  [Q]uit > ")

		line, readErr := s.in.ReadString('\n')
		if readErr != nil && line == "" {
			// Input closed mid-session: treat like quit. Everything decided
			// so far is already committed.
			return false, true, nil
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "a", "approve":
			err := s.store.TransitionDraft(ctx, draft.ID, store.Transition{
				Status:  model.StatusApproved,
				Action:  model.ActionApproved,
				Details: reviewDetails,
			})
			if err != nil {
				return false, false, eris.Wrapf(err, "review: approve %s", draft.ID)
			}
			summary.Approved++
			fmt.Fprintf(s.out, "Approved draft %s\n", draft.ID)
			return true, false, nil

		case "r", "reject":
			err := s.store.TransitionDraft(ctx, draft.ID, store.Transition{
				Status:  model.StatusRejected,
				Action:  model.ActionRejected,
				Details: reviewDetails,
			})
			if err != nil {
				return false, false, eris.Wrapf(err, "review: reject %s", draft.ID)
			}
			summary.Rejected++
			fmt.Fprintf(s.out, "Rejected draft %s\n", draft.ID)
			return true, false, nil

		case "e", "edit":
			if err := s.edit(ctx, draft); err != nil {
				return false, false, err
			}
			// Content changed but the draft stays pending; prompt again so
			// the operator can approve the edited version.

		case "s", "skip":
			fmt.Fprintln(s.out, "Skipped (stays as draft)")
			summary.Skipped++
			return true, false, nil

		case "q", "quit":
			return false, true, nil

		default:
			fmt.Fprintln(s.out, "Invalid choice. Use A/E/S/R/Q.")
		}
	}
}

// edit replaces the draft's content in place. An edit is not itself an
// auditable transition; the draft stays DRAFT.
func (s *Session) edit(ctx context.Context, draft *model.Draft) error {
	fmt.Fprintln(s.out, "\nEnter new content. Finish with an empty line:")

	var lines []string
	for {
		line, err := s.in.ReadString('\n')
		trimmed := strings.TrimRight(line, "\n")
		if trimmed == "" && len(lines) > 0 {
			break
		}
		if trimmed != "" {
			lines = append(lines, trimmed)
		}
		if err != nil {
			break
		}
	}

	content := strings.TrimSpace(strings.Join(lines, "\n"))
	if content == "" {
		fmt.Fprintln(s.out, "No changes made.")
		return nil
	}

	if err := s.store.UpdateDraftContent(ctx, draft.ID, content); err != nil {
		return eris.Wrapf(err, "review: edit %s", draft.ID)
	}
	draft.Content = content
	draft.CharCount = len([]rune(content))
	fmt.Fprintf(s.out, "Updated content (%d chars)\n", draft.CharCount)
	return nil
}
