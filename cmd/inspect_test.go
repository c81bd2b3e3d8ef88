package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/jfmyers9/backfill/internal/history"
	"github.com/mattn/go-runewidth"
	"github.com/rs/zerolog"
)

func TestPadToWidth(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		width    int
		expected string
	}{
		{
			name:     "no padding when width is 0",
			input:    "Hello",
			width:    0,
			expected: "Hello",
		},
		{
			name:     "no padding when width is negative",
			input:    "Hello",
			width:    -1,
			expected: "Hello",
		},
		{
			name:     "pad short text with spaces",
			input:    "Hi",
			width:    10,
			expected: "Hi        ",
		},
		{
			name:     "exact width unchanged",
			input:    "Hello",
			width:    5,
			expected: "Hello",
		},
		{
			name:     "truncate long text with ellipsis",
			input:    "This is a very long string that needs truncation",
			width:    20,
			expected: "This is a very lo...",
		},
		{
			name:     "handle emoji correctly",
			input:    "🎵 Music",
			width:    15,
			expected: "🎵 Music       ", // emoji is 2 columns wide
		},
		{
			name:     "truncate emoji text",
			input:    "🎵 This is a very long song title",
			width:    15,
			expected: "🎵 This is a...",
		},
		{
			name:     "handle unicode characters",
			input:    "日本語",
			width:    10,
			expected: "日本語    ",
		},
		{
			name:     "truncate unicode text",
			input:    "日本語とても長いテキスト",
			width:    10,
			expected: "日本語... ", // wide runes leave one column to pad
		},
		{
			name:     "empty string padding",
			input:    "",
			width:    5,
			expected: "     ",
		},
		{
			name:     "minimum width for truncation",
			input:    "Hello",
			width:    3,
			expected: "...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := padToWidth(tt.input, tt.width)
			if result != tt.expected {
				t.Errorf("padToWidth(%q, %d) = %q, expected %q",
					tt.input, tt.width, result, tt.expected)
			}

			if tt.width > 0 {
				resultWidth := runewidth.StringWidth(result)
				if resultWidth != tt.width {
					t.Errorf("padToWidth(%q, %d) produced width %d, expected %d",
						tt.input, tt.width, resultWidth, tt.width)
				}
			}
		})
	}
}

const inspectHistory = `[
	{"master_metadata_album_artist_name": "A", "master_metadata_track_name": "T", "ms_played": 40000},
	{"master_metadata_album_artist_name": "B", "master_metadata_track_name": "U", "ms_played": 5000},
	{"ms_played": 60000},
	{"master_metadata_album_artist_name": "", "master_metadata_track_name": "V", "ms_played": 70000},
	{"master_metadata_album_artist_name": "C", "master_metadata_track_name": "W", "ms_played": "x"}
]`

func parseInspectHistory(t *testing.T) []history.Record {
	t.Helper()
	records, err := history.Parse([]byte(inspectHistory))
	if err != nil {
		t.Fatalf("failed to parse history: %v", err)
	}
	return records
}

func TestRenderInspect(t *testing.T) {
	var buf bytes.Buffer
	renderInspect(&buf, parseInspectHistory(t), 0, 0)
	out := buf.String()

	for _, want := range []string{
		"0  scrobble     A - T",
		"1  too short    B - U",
		"2  malformed    missing master_metadata_album_artist_name, master_metadata_track_name",
		"3  empty field   - V",
		"4  invalid      ms_played: expected a number",
		"scrobble     1",
		"too short    1",
		"malformed    1",
		"empty field  1",
		"invalid      1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderInspectStartIndex(t *testing.T) {
	var buf bytes.Buffer
	renderInspect(&buf, parseInspectHistory(t), 3, 0)
	out := buf.String()

	if strings.Contains(out, "A - T") {
		t.Errorf("rows before the start index were printed:\n%s", out)
	}
	if !strings.Contains(out, "scrobble     0") {
		t.Errorf("totals must only cover rows from the start index:\n%s", out)
	}
}

func TestRenderInspectWidth(t *testing.T) {
	var buf bytes.Buffer
	renderInspect(&buf, parseInspectHistory(t), 0, 24)

	for _, line := range strings.Split(strings.TrimRight(buf.String(), "\n"), "\n") {
		if w := runewidth.StringWidth(line); w > 24 {
			t.Errorf("line %q is %d columns wide", line, w)
		}
	}
	if !strings.Contains(buf.String(), "2  malformed    missi...") {
		t.Errorf("expected the detail column to be truncated:\n%s", buf.String())
	}
}

func TestRenderInspectEmpty(t *testing.T) {
	var buf bytes.Buffer
	renderInspect(&buf, nil, 0, 80)

	want := "\nscrobble     0\ntoo short    0\nmalformed    0\nempty field  0\ninvalid      0\n"
	if buf.String() != want {
		t.Errorf("unexpected output for an empty history:\n%q", buf.String())
	}
}

func TestIndexColumnWidth(t *testing.T) {
	tests := map[int]int{0: 1, 1: 1, 10: 1, 11: 2, 1000: 3, 1001: 4}
	for n, want := range tests {
		if got := indexColumnWidth(n); got != want {
			t.Errorf("indexColumnWidth(%d) = %d, want %d", n, got, want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"info":    zerolog.InfoLevel,
		"warn":    zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"verbose": zerolog.InfoLevel,
	}

	for input, expected := range tests {
		if got := parseLevel(input); got != expected {
			t.Errorf("parseLevel(%q) = %v, expected %v", input, got, expected)
		}
	}
}
