package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// MonthlyPoint counts leads received in one month.
type MonthlyPoint struct {
	Name  string `json:"name"`
	Leads int64  `json:"leads"`
}

// HourlyPoint counts leads received in one hour of the last day.
type HourlyPoint struct {
	Hour  string `json:"hour"`
	Leads int64  `json:"leads"`
}

// ProjectShare is one slice of the leads-by-project breakdown.
type ProjectShare struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

// MonthlyUsage reports the plan quota consumption for the current month.
type MonthlyUsage struct {
	Current int64      `json:"current"`
	Limit   UsageLimit `json:"limit"`
	Percent float64    `json:"percent"`
}

// UnmarshalJSON treats a missing limit key like null: the quota is unknown and
// is shown as unbounded rather than as zero.
func (usage *MonthlyUsage) UnmarshalJSON(data []byte) error {
	type monthlyUsageFields MonthlyUsage
	decoded := monthlyUsageFields{Limit: UnboundedLimit()}
	if decodeErr := json.Unmarshal(data, &decoded); decodeErr != nil {
		return decodeErr
	}
	*usage = MonthlyUsage(decoded)
	return nil
}

// AnalyticsSnapshot is the read-only aggregate rendered by the dashboard.
type AnalyticsSnapshot struct {
	LeadsLast6Months []MonthlyPoint `json:"leadsLast6Months"`
	LeadsLast24Hours []HourlyPoint  `json:"leadsLast24Hours"`
	LeadsByProject   []ProjectShare `json:"leadsByProject"`
	MonthlyUsage     MonthlyUsage   `json:"monthlyUsage"`
}

// UnmarshalJSON keeps the quota unbounded when monthlyUsage is missing.
func (snapshot *AnalyticsSnapshot) UnmarshalJSON(data []byte) error {
	type snapshotFields AnalyticsSnapshot
	decoded := snapshotFields{MonthlyUsage: MonthlyUsage{Limit: UnboundedLimit()}}
	if decodeErr := json.Unmarshal(data, &decoded); decodeErr != nil {
		return decodeErr
	}
	*snapshot = AnalyticsSnapshot(decoded)
	return nil
}

// UsageLimit is a monthly lead quota that may be unbounded.
type UsageLimit struct {
	Value     int64
	Unbounded bool
}

// BoundedLimit constructs a finite quota.
func BoundedLimit(value int64) UsageLimit {
	return UsageLimit{Value: value}
}

// UnboundedLimit constructs the quota of unrestricted plans.
func UnboundedLimit() UsageLimit {
	return UsageLimit{Unbounded: true}
}

var unboundedLimitTokens = map[string]struct{}{
	"infinity":  {},
	"unlimited": {},
	"∞":         {},
}

// UnmarshalJSON accepts numbers, null and the string forms serializers use for infinity.
func (limit *UsageLimit) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*limit = UnboundedLimit()
		return nil
	}

	if trimmed[0] == '"' {
		var text string
		if decodeErr := json.Unmarshal(trimmed, &text); decodeErr != nil {
			return decodeErr
		}
		if _, unbounded := unboundedLimitTokens[strings.ToLower(strings.TrimSpace(text))]; unbounded {
			*limit = UnboundedLimit()
			return nil
		}
		return fmt.Errorf("invalid usage limit %q", text)
	}

	var number float64
	if decodeErr := json.Unmarshal(trimmed, &number); decodeErr != nil {
		return decodeErr
	}
	if math.IsInf(number, 1) {
		*limit = UnboundedLimit()
		return nil
	}
	*limit = BoundedLimit(int64(number))
	return nil
}

// MarshalJSON writes null for unbounded quotas.
func (limit UsageLimit) MarshalJSON() ([]byte, error) {
	if limit.Unbounded {
		return []byte("null"), nil
	}
	return json.Marshal(limit.Value)
}
