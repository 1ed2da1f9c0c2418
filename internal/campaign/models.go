package campaign

import (
	"encoding/json"
	"strconv"
	"time"

	"beacon/pkg/rules"
)

type Campaign struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Rules     json.RawMessage `json:"rules"`
	CreatedAt time.Time       `json:"created_at"`

	// Rule is the compiled form of Rules. RuleErr is set instead when the
	// stored tree does not compile; such a campaign never matches.
	Rule    rules.Node `json:"-"`
	RuleErr error      `json:"-"`
}

func (c Campaign) Label() string {
	return strconv.FormatInt(c.ID, 10)
}
