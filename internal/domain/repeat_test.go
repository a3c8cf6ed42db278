package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepeatRuleRoundTrip(t *testing.T) {
	rule := RepeatRule{Kind: RepeatWeekly, Weekdays: []int{2, 6}}
	encoded, err := rule.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"weekly","weekdays":[2,6]}`, encoded)

	decoded, err := DecodeRepeatRule(encoded)
	require.NoError(t, err)
	assert.Equal(t, rule, decoded)
}

func TestEncodeOmitsUnsetFields(t *testing.T) {
	encoded, err := RepeatRule{Kind: RepeatDaily}.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"daily"}`, encoded)

	encoded, err = RepeatRule{Kind: RepeatMonthly, IsLastDayOfMonth: true}.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"monthly","isLastDayOfMonth":true}`, encoded)
}

func TestDecodeRejectsMalformedRule(t *testing.T) {
	_, err := DecodeRepeatRule("{not json")
	assert.Error(t, err)
}
