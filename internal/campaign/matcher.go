package campaign

import (
	"context"

	"beacon/internal/logger"
	pkgerrors "beacon/pkg/errors"
	"beacon/pkg/metrics"
	"beacon/pkg/rules"
)

// Matcher decides which campaigns an event payload triggers.
type Matcher struct {
	logger logger.Logger
}

func NewMatcher(log logger.Logger) *Matcher {
	return &Matcher{logger: log}
}

// Match returns the ids of the campaigns whose rules hold for payload, in
// the order the campaigns were given. A campaign whose rule fails to
// compile or evaluate is logged and left out; it never fails the event.
func (m *Matcher) Match(ctx context.Context, payload map[string]interface{}, campaigns []Campaign) []int64 {
	matched := make([]int64, 0)
	seen := make(map[int64]struct{}, len(campaigns))

	for _, c := range campaigns {
		if _, dup := seen[c.ID]; dup {
			continue
		}

		ok, err := m.evaluate(ctx, payload, c)
		if err != nil {
			metrics.IncRuleEvaluationError(c.Label())
			m.logger.WarnwCtx(ctx, "Campaign rule evaluation failed",
				"campaign_id", c.ID,
				"campaign_name", c.Name,
				"error", err,
			)
			continue
		}
		if !ok {
			continue
		}

		seen[c.ID] = struct{}{}
		matched = append(matched, c.ID)
	}

	return matched
}

func (m *Matcher) evaluate(ctx context.Context, payload map[string]interface{}, c Campaign) (ok bool, err error) {
	if c.RuleErr != nil {
		return false, c.RuleErr
	}

	defer func() {
		if r := recover(); r != nil {
			ok, err = false, pkgerrors.RecoverPanic(r)
		}
	}()

	return rules.CheckContext(ctx, payload, c.Rule)
}
