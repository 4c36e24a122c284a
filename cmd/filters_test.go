package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	got, err := parseTimestamp("2026-08-20T15:04:05Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 20, 15, 4, 5, 0, time.UTC), got.UTC())

	got, err = parseTimestamp("2026-08-20")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC), got)

	got, err = parseTimestamp("")
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	_, err = parseTimestamp("20/08/2026")
	require.Error(t, err)
}

func TestParseWindow(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "", want: 0},
		{in: "90m", want: 90 * time.Minute},
		{in: "12h", want: 12 * time.Hour},
		{in: "7d", want: 7 * 24 * time.Hour},
		{in: "1.5d", want: 36 * time.Hour},
		{in: "xyz", wantErr: true},
		{in: "d", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := parseWindow(tc.in)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseFingerprint(t *testing.T) {
	got, err := parseFingerprint("3735928559")
	require.NoError(t, err)
	assert.Equal(t, uint64(0xdeadbeef), got)

	got, err = parseFingerprint("0xdeadbeef")
	require.NoError(t, err)
	assert.Equal(t, uint64(0xdeadbeef), got)

	_, err = parseFingerprint("not-a-number")
	require.Error(t, err)
}

func resetFilterFlags(t *testing.T) {
	t.Cleanup(func() {
		flagFrom, flagTo, flagLast = "", "", ""
		flagQueryUsers, flagDatabases, flagTables = nil, nil, nil
		flagMinQueryDuration = 0
		flagMinReadRows = 0
		flagMinReadData = ""
	})
}

func TestBuildQueryFilter(t *testing.T) {
	resetFilterFlags(t)
	flagLast = "24h"
	flagQueryUsers = []string{"etl"}
	flagMinReadData = "512MiB"
	flagMinReadRows = 1000

	filter, err := buildQueryFilter()
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, filter.Last)
	assert.Equal(t, []string{"etl"}, filter.Users)
	assert.Equal(t, uint64(512*1024*1024), filter.MinReadBytes)
	assert.Equal(t, uint64(1000), filter.MinReadRows)
}

func TestBuildQueryFilterRejectsBothBounds(t *testing.T) {
	resetFilterFlags(t)
	flagFrom = "2026-08-01"
	flagLast = "24h"

	_, err := buildQueryFilter()
	require.Error(t, err)
}

func TestBuildQueryFilterRejectsBadSize(t *testing.T) {
	resetFilterFlags(t)
	flagLast = "24h"
	flagMinReadData = "a lot"

	_, err := buildQueryFilter()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min-read-data")
}
