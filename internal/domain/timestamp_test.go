package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestampAcceptedForms(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2024-03-01T10:00:00Z", time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"2024-03-01T10:00:00+02:00", time.Date(2024, 3, 1, 10, 0, 0, 0, time.FixedZone("", 2*3600))},
		{"2024-03-01T10:00:00.123456", time.Date(2024, 3, 1, 10, 0, 0, 123456000, time.UTC)},
		{"2024-03-01T10:00:00", time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"2024-03-01 10:00:00", time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		got, err := ParseTimestamp(tc.in)
		require.NoError(t, err, tc.in)
		assert.True(t, got.Equal(tc.want), "%s parsed to %v", tc.in, got)
	}
}

func TestParseTimestampRejectsNonISO(t *testing.T) {
	for _, in := range []string{"", "yesterday", "01/03/2024", "2024-03-01", "1709287200"} {
		_, err := ParseTimestamp(in)
		assert.Error(t, err, in)
	}
}

func TestTimestampMarshalsAsISOText(t *testing.T) {
	ts := Timestamp{Time: time.Date(2024, 3, 1, 10, 0, 0, 500000000, time.UTC)}

	b, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.Equal(t, `"2024-03-01T10:00:00.5Z"`, string(b))
}

func TestTimestampUnmarshalRejectsNumbers(t *testing.T) {
	var ts Timestamp
	assert.Error(t, json.Unmarshal([]byte(`1709287200`), &ts))
}
