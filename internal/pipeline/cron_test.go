package pipeline_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steffenmax/arbbot/internal/pipeline"
)

func TestSchedule_Next(t *testing.T) {
	// Wednesday.
	from := time.Date(2026, 3, 11, 10, 17, 42, 0, time.UTC)

	tests := []struct {
		expr string
		want time.Time
	}{
		{"* * * * *", time.Date(2026, 3, 11, 10, 18, 0, 0, time.UTC)},
		{"0 3 * * *", time.Date(2026, 3, 12, 3, 0, 0, 0, time.UTC)},
		{"*/15 * * * *", time.Date(2026, 3, 11, 10, 30, 0, 0, time.UTC)},
		{"0 3 1 * *", time.Date(2026, 4, 1, 3, 0, 0, 0, time.UTC)},
		{"30 9 * * 1-5", time.Date(2026, 3, 12, 9, 30, 0, 0, time.UTC)},
		{"0 0 * * 0", time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"5,45 10 * * *", time.Date(2026, 3, 11, 10, 45, 0, 0, time.UTC)},
		{"0 0 1 1 *", time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			s, err := pipeline.ParseSchedule(tt.expr)
			require.NoError(t, err)
			got, err := s.Next(from)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSchedule_NextIsStrictlyAfter(t *testing.T) {
	s, err := pipeline.ParseSchedule("0 3 * * *")
	require.NoError(t, err)

	at := time.Date(2026, 3, 11, 3, 0, 0, 0, time.UTC)
	got, err := s.Next(at)
	require.NoError(t, err)
	assert.Equal(t, at.Add(24*time.Hour), got)
}

func TestSchedule_NextInHalfHourZone(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	from := time.Date(2026, 3, 11, 10, 17, 0, 0, ist)

	tests := []struct {
		expr string
		want time.Time
	}{
		{"0 12 * * *", time.Date(2026, 3, 11, 12, 0, 0, 0, ist)},
		{"0 * * * *", time.Date(2026, 3, 11, 11, 0, 0, 0, ist)},
		{"0 3 * * *", time.Date(2026, 3, 12, 3, 0, 0, 0, ist)},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			s, err := pipeline.ParseSchedule(tt.expr)
			require.NoError(t, err)
			got, err := s.Next(from)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s, want %s", got, tt.want)
			assert.Equal(t, ist, got.Location())
		})
	}
}

func TestSchedule_Descriptor(t *testing.T) {
	s, err := pipeline.ParseSchedule("@daily")
	require.NoError(t, err)
	assert.Equal(t, "@daily", s.String())

	got, err := s.Next(time.Date(2026, 3, 11, 10, 17, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC), got)
}

func TestParseSchedule_Invalid(t *testing.T) {
	for _, expr := range []string{
		"",
		"* * * *",
		"60 * * * *",
		"* 24 * * *",
		"* * 0 * *",
		"* * * 13 *",
		"* * * * 7",
		"*/0 * * * *",
		"5-1 * * * *",
		"a * * * *",
	} {
		t.Run(expr, func(t *testing.T) {
			_, err := pipeline.ParseSchedule(expr)
			assert.Error(t, err)
		})
	}
}

func TestSchedule_Unsatisfiable(t *testing.T) {
	s, err := pipeline.ParseSchedule("0 0 31 2 *")
	require.NoError(t, err)
	_, err = s.Next(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.Error(t, err)
}
