package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDescriptorPresets(t *testing.T) {
	t.Parallel()
	// A few arbitrary "now"s, before and after 03:00.
	nows := []time.Time{
		time.Date(2024, 3, 14, 12, 30, 0, 0, time.Local),
		time.Date(2024, 3, 14, 1, 15, 0, 0, time.Local),
		time.Date(2024, 12, 31, 23, 59, 0, 0, time.Local),
	}

	tests := []struct {
		descriptor string
		spec       string
		check      func(t *testing.T, next time.Time)
	}{
		{
			descriptor: "daily",
			spec:       "0 3 * * *",
			check:      func(t *testing.T, next time.Time) {},
		},
		{
			descriptor: "weekly",
			spec:       "0 3 * * 0",
			check: func(t *testing.T, next time.Time) {
				assert.Equal(t, time.Sunday, next.Weekday())
			},
		},
		{
			descriptor: "monthly",
			spec:       "0 3 1 * *",
			check: func(t *testing.T, next time.Time) {
				assert.Equal(t, 1, next.Day())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.descriptor, func(t *testing.T) {
			rule, err := ParseDescriptor(tt.descriptor)
			require.NoError(t, err)
			assert.Equal(t, tt.spec, rule.Spec)
			require.NotNil(t, rule.Schedule)

			for _, now := range nows {
				next := rule.Schedule.Next(now)
				require.True(t, next.After(now), "next %v not after now %v", next, now)
				assert.Equal(t, 3, next.Hour())
				assert.Equal(t, 0, next.Minute())
				tt.check(t, next)
			}
		})
	}
}

func TestParseDescriptorCron(t *testing.T) {
	t.Parallel()
	valid := []string{
		"*/5 * * * *",
		"0 12 * * 1-5",
		"30 4 1,15 * *",
		"  0   3  *  *  0  ", // extra whitespace collapses
	}
	for _, spec := range valid {
		rule, err := ParseDescriptor(spec)
		require.NoError(t, err, "descriptor %q", spec)
		require.NotNil(t, rule.Schedule)
	}
}

func TestParseDescriptorInvalid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		descriptor string
	}{
		{"empty", ""},
		{"two tokens", "x y"},
		{"four tokens", "1 2 3 4"},
		{"six tokens", "1 2 3 4 5 6"},
		{"unknown word", "hourly"},
		{"bad minute field", "61 3 * * *"},
		{"bad dow field", "0 3 * * 8"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDescriptor(tt.descriptor)
			require.Error(t, err)
			assert.True(t, IsValidation(err), "want ValidationError, got %T", err)
		})
	}

	_, err := ParseDescriptor("x y")
	require.EqualError(t, err, "Invalid schedule format")
}
