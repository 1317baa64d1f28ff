// Package trial executes the trial directive kinds (easy, hint, force-hint)
// as an explicit state machine:
//
//	PENDING -> CANDIDATE_BUILT -> EVALUATED -> {COMMITTED, ROLLED_BACK}
//
// The engine never mutates the archive itself. It prechecks the action list,
// builds the candidate set, asks the evaluator collaborator for a health
// comparison against the pre-trial baseline, and reports a commit-or-rollback
// outcome a downstream applier executes. Partial commits are forbidden.
package trial

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/pkgflow/gatekeeper/pkg/hints"
	"github.com/pkgflow/gatekeeper/pkg/policy"
)

// State is a trial directive's position in the state machine.
type State string

const (
	StatePending        State = "PENDING"
	StateCandidateBuilt State = "CANDIDATE_BUILT"
	StateEvaluated      State = "EVALUATED"
	StateCommitted      State = "COMMITTED"
	StateRolledBack     State = "ROLLED_BACK"
)

// HealthComparison orders post-trial health against the pre-trial baseline.
type HealthComparison int

const (
	Worse  HealthComparison = -1
	Equal  HealthComparison = 0
	Better HealthComparison = 1
)

func (c HealthComparison) String() string {
	switch {
	case c < 0:
		return "worse"
	case c > 0:
		return "better"
	default:
		return "equal"
	}
}

// Evaluator is the external collaborator that owns installability and
// dependency computation. Evaluate may re-run a full installability check and
// can be expensive; callers must serialize trials so it always observes a
// consistent baseline.
type Evaluator interface {
	// ProposeAdditional returns previously-unmigrated items that become
	// eligible once the pending candidates are assumed migrated, using the
	// evaluator's normal acceptance sweep.
	ProposeAdditional(ctx context.Context, pending []hints.MigrationItem) ([]hints.MigrationItem, error)

	// Evaluate compares the health of the candidate set against the
	// pre-trial baseline.
	Evaluate(ctx context.Context, candidates []hints.MigrationItem) (HealthComparison, error)
}

// Baseline is the engine's view of the current pending candidates. The named
// version of every action-list entry must still be the pending candidate for
// its item; anything else is stale.
type Baseline struct {
	// Candidates maps item name to its pending candidate version.
	Candidates map[string]string
	// Migrated marks items that already migrated or were removed this run.
	Migrated map[string]bool
}

// Stale reports whether the reference no longer matches a valid, not-yet-
// applied candidate. Removal requests name what should leave the target
// suite; they are not pending candidates and the precheck does not gate them.
func (b Baseline) Stale(ref hints.ItemRef) (string, bool) {
	if ref.Removal {
		return "", false
	}
	if b.Migrated[ref.Name] {
		return fmt.Sprintf("%s already migrated or removed", ref.Name), true
	}
	pending, ok := b.Candidates[ref.Name]
	if !ok {
		return fmt.Sprintf("%s is not a pending candidate", ref.Name), true
	}
	if !ref.Removal && pending != ref.Version {
		return fmt.Sprintf("version mismatch for %s: hint names %s, candidate is %s",
			ref.Name, ref.Version, pending), true
	}
	return "", false
}

// TrialOutcome is the result of one trial directive.
type TrialOutcome struct {
	ID           string                  `json:"id"`
	Directive    hints.Hint              `json:"directive"`
	State        State                   `json:"state"`
	CandidateSet []hints.MigrationItem   `json:"candidate_set,omitempty"`
	Accepted     bool                    `json:"accepted"`
	Comparison   HealthComparison        `json:"comparison"`
	Diagnostics  []hints.Diagnostic      `json:"diagnostics,omitempty"`
}

// ErrEvaluator wraps failures of the evaluator collaborator. These are run
// errors, not diagnostics: the trial's effect is unknown, not skipped.
var ErrEvaluator = errors.New("evaluator failure")

// Engine runs trial directives against one baseline and policy snapshot.
// It is single-threaded; concurrent trials are the caller's responsibility
// to serialize.
type Engine struct {
	evaluator Evaluator
	policy    *policy.EffectivePolicy
	baseline  Baseline
}

// NewEngine creates a trial engine for one run.
func NewEngine(evaluator Evaluator, pol *policy.EffectivePolicy, baseline Baseline) *Engine {
	return &Engine{evaluator: evaluator, policy: pol, baseline: baseline}
}

// RunTrial executes one trial directive.
//
// Precheck failures reject the whole directive atomically: the outcome stays
// in PENDING with StaleAction diagnostics and no candidate set is built. A
// rolled-back trial restores nothing because nothing was applied; the outcome
// reports the evaluated set so the rejection is reviewable.
func (e *Engine) RunTrial(ctx context.Context, h hints.Hint) (*TrialOutcome, error) {
	switch h.Kind {
	case hints.KindEasy, hints.KindHint, hints.KindForceHint:
	default:
		return nil, fmt.Errorf("trial: %q is not a trial directive", h.Kind)
	}

	out := &TrialOutcome{
		ID:        uuid.New().String(),
		Directive: h,
		State:     StatePending,
	}

	// Precheck: all or nothing, before any candidate set exists.
	var stale []hints.Diagnostic
	for _, ref := range h.Args {
		if msg, isStale := e.baseline.Stale(ref); isStale {
			stale = append(stale, hints.Diagnostic{
				Class:   hints.StaleAction,
				File:    h.File,
				Line:    h.Line,
				Issuer:  h.Issuer,
				Kind:    h.Kind,
				Message: msg,
			})
		}
	}
	if len(stale) > 0 {
		out.Diagnostics = stale
		return out, nil
	}

	if h.Kind == hints.KindForceHint {
		return e.commitForced(out, h)
	}

	candidates := h.Items()
	if h.Kind == hints.KindHint {
		proposed, err := e.evaluator.ProposeAdditional(ctx, candidates)
		if err != nil {
			return nil, fmt.Errorf("trial %s: propose additional: %w: %v", out.ID, ErrEvaluator, err)
		}
		candidates = append(candidates, proposed...)
	}
	out.CandidateSet = candidates
	out.State = StateCandidateBuilt

	cmp, err := e.evaluator.Evaluate(ctx, candidates)
	if err != nil {
		return nil, fmt.Errorf("trial %s: evaluate: %w: %v", out.ID, ErrEvaluator, err)
	}
	out.State = StateEvaluated
	out.Comparison = cmp

	// Ties favor commit.
	if cmp >= Equal {
		out.State = StateCommitted
		out.Accepted = true
	} else {
		out.State = StateRolledBack
		out.Accepted = false
	}
	return out, nil
}

// commitForced handles force-hint: no health evaluation, but only items
// backed by a matching force entry commit; the rest are excluded with a
// diagnostic while covered items still commit.
func (e *Engine) commitForced(out *TrialOutcome, h hints.Hint) (*TrialOutcome, error) {
	var committed []hints.MigrationItem
	for _, ref := range h.Args {
		item := ref.Item()
		if !e.policy.CoveredByForce(item) {
			out.Diagnostics = append(out.Diagnostics, hints.Diagnostic{
				Class:   hints.InsufficientForce,
				File:    h.File,
				Line:    h.Line,
				Issuer:  h.Issuer,
				Kind:    h.Kind,
				Message: fmt.Sprintf("%s needs force hint", item),
			})
			continue
		}
		committed = append(committed, item)
	}

	out.CandidateSet = committed
	out.State = StateCommitted
	out.Accepted = len(committed) > 0
	return out, nil
}
