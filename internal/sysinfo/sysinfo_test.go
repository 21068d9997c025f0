package sysinfo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollect_ReturnsPositiveCounts(t *testing.T) {
	report, err := Collect(context.Background(), t.TempDir())
	require.NoError(t, err)

	assert.Greater(t, report.CPUCount, 0)
	assert.Greater(t, report.DiskTotalBytes, uint64(0))
}

func TestReport_WarnIfTight(t *testing.T) {
	tests := []struct {
		name           string
		freeBytes      uint64
		expectedOutput uint64
		wantWarn       bool
	}{
		{"plenty of room", 10_000_000, 1_000_000, false},
		{"exactly at threshold", 1_500_000, 1_000_000, false},
		{"below threshold", 1_000_000, 1_000_000, true},
		{"far below threshold", 100, 1_000_000, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Report{DiskFreeBytes: tt.freeBytes}
			assert.Equal(t, tt.wantWarn, r.WarnIfTight(tt.expectedOutput))
		})
	}
}
