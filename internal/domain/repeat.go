package domain

import "encoding/json"

// RepeatKind selects the recurrence strategy for a task.
type RepeatKind string

const (
	RepeatNone    RepeatKind = "none"
	RepeatDaily   RepeatKind = "daily"
	RepeatWeekly  RepeatKind = "weekly"
	RepeatMonthly RepeatKind = "monthly"
	// RepeatCustom is reserved for interval/end-date extensions and
	// intentionally evaluates to no next occurrence.
	RepeatCustom RepeatKind = "custom"
)

// RepeatRule is a value type serialized as a JSON attribute on Task.
//
// Weekdays applies to weekly rules only and uses 1..7 with Sunday as 1.
// DayOfMonth and IsLastDayOfMonth apply to monthly rules only;
// IsLastDayOfMonth takes precedence at evaluation time.
type RepeatRule struct {
	Kind             RepeatKind `json:"kind"`
	Weekdays         []int      `json:"weekdays,omitempty"`
	DayOfMonth       int        `json:"dayOfMonth,omitempty"`
	IsLastDayOfMonth bool       `json:"isLastDayOfMonth,omitempty"`
}

// DecodeRepeatRule parses the serialized form stored on a task.
func DecodeRepeatRule(s string) (RepeatRule, error) {
	var r RepeatRule
	if err := json.Unmarshal([]byte(s), &r); err != nil {
		return RepeatRule{}, err
	}
	return r, nil
}

// Encode returns the serialized form stored on a task.
func (r RepeatRule) Encode() (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
