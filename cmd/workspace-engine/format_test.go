package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFormatSizeHumanizesBytes(t *testing.T) {
	require.Equal(t, "1.0 KiB", formatSize(1024))
	require.Equal(t, "0 B", formatSize(0))
}

func TestFormatTimeHandlesEmptyAndInvalid(t *testing.T) {
	require.Equal(t, "never", formatTime(""))
	require.Equal(t, "not-a-time", formatTime("not-a-time"))
}

func TestFormatTimeFormatsRFC3339(t *testing.T) {
	recent := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)
	require.Contains(t, formatTime(recent), "ago")
}

func TestPrintTableTabsJoinsWithTabs(t *testing.T) {
	var buf bytes.Buffer
	printTableTabs(&buf, []string{"ID", "NAME"}, [][]string{{"1", "alice"}, {"2", "bob"}})

	require.Equal(t, "ID\tNAME\n1\talice\n2\tbob\n", buf.String())
}

func TestPrintRowPadsToColumnWidth(t *testing.T) {
	var buf bytes.Buffer
	printRow(&buf, []string{"a", "bb"}, []int{3, 3})

	require.Equal(t, "a    bb \n", buf.String())
}
