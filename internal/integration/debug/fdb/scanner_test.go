package fdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScannerPrompt(t *testing.T) {
	var s Scanner
	s.Feed("Breakpoint 1: file Main.as, line 11\n(fdb) ")

	u, ok := s.Next(false)
	require.True(t, ok)
	assert.Equal(t, "Breakpoint 1: file Main.as, line 11\n", u.Text)
	assert.Equal(t, MarkerPrompt, u.Marker)
	assert.True(t, u.Terminated())
	assert.Equal(t, 0, s.Len())

	_, ok = s.Next(false)
	assert.False(t, ok)
}

func TestScannerConfirm(t *testing.T) {
	var s Scanner
	s.Feed("Do you want to attempt to halt execution? (y or n) ")

	u, ok := s.Next(false)
	require.True(t, ok)
	assert.Equal(t, "Do you want to attempt to halt execution? ", u.Text)
	assert.Equal(t, MarkerConfirm, u.Marker)
}

func TestScannerSeveralUnits(t *testing.T) {
	var s Scanner
	s.Feed("first\n(fdb) second\n(y or n) third")

	u, _ := s.Next(false)
	assert.Equal(t, "first\n", u.Text)
	u, _ = s.Next(false)
	assert.Equal(t, "second\n", u.Text)
	assert.Equal(t, MarkerConfirm, u.Marker)

	_, ok := s.Next(false)
	assert.False(t, ok)
	assert.Equal(t, len("third"), s.Len())
}

func TestScannerSplitMarker(t *testing.T) {
	var s Scanner
	s.Feed("done\n(fd")

	_, ok := s.Next(false)
	assert.False(t, ok)

	// Released text keeps the partial marker buffered.
	u, ok := s.Next(true)
	require.True(t, ok)
	assert.Equal(t, "done\n", u.Text)
	assert.False(t, u.Terminated())

	s.Feed("b) ")
	u, ok = s.Next(false)
	require.True(t, ok)
	assert.Equal(t, "", u.Text)
	assert.Equal(t, MarkerPrompt, u.Marker)
}

func TestScannerOnlyPartialMarker(t *testing.T) {
	var s Scanner
	s.Feed("(y or")

	_, ok := s.Next(true)
	assert.False(t, ok)
}

func TestScannerUnterminated(t *testing.T) {
	var s Scanner
	s.Feed("[trace] tick\n")

	_, ok := s.Next(false)
	assert.False(t, ok)

	u, ok := s.Next(true)
	require.True(t, ok)
	assert.Equal(t, "[trace] tick\n", u.Text)
	assert.Equal(t, MarkerNone, u.Marker)
}

func TestScannerConnectNotices(t *testing.T) {
	for _, notice := range []string{WaitingForPlayerNotice, TryingToConnectNotice} {
		var s Scanner
		s.Feed(notice + "\n")

		u, ok := s.Next(false)
		require.True(t, ok, notice)
		assert.Equal(t, notice+"\n", u.Text)
	}
}

func TestScannerDrain(t *testing.T) {
	var s Scanner
	s.Feed("partial")

	assert.Equal(t, "partial", s.Drain())
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, "", s.Drain())
}

func TestPartialMarkerSuffix(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"text", 0},
		{"text(", 1},
		{"text(fdb)", 5},
		{"text(y or n)", 8},
		{"text(fdb) ", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, partialMarkerSuffix(tt.in), tt.in)
	}
}

func TestMarkerString(t *testing.T) {
	assert.Equal(t, "none", MarkerNone.String())
	assert.Equal(t, "prompt", MarkerPrompt.String())
	assert.Equal(t, "confirm", MarkerConfirm.String())
}
