package trial

import (
	"context"

	"github.com/pkgflow/gatekeeper/pkg/hints"
)

// StaticEvaluator is a canned Evaluator for offline trial runs and tests:
// it proposes a fixed set of additional items and returns a fixed health
// comparison. The real evaluator lives outside this module.
type StaticEvaluator struct {
	Additional []hints.MigrationItem
	Result     HealthComparison
	Err        error
}

func (s StaticEvaluator) ProposeAdditional(_ context.Context, _ []hints.MigrationItem) ([]hints.MigrationItem, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Additional, nil
}

func (s StaticEvaluator) Evaluate(_ context.Context, _ []hints.MigrationItem) (HealthComparison, error) {
	if s.Err != nil {
		return Worse, s.Err
	}
	return s.Result, nil
}
