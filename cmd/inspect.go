package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jfmyers9/backfill/internal/history"
	"github.com/jfmyers9/backfill/internal/replay"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
)

var (
	inspectStartIndex int
	inspectWidth      int
)

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect <history_file>",
	Short: "Preview how a history file would be replayed",
	Long: `Classify every entry of a history file without contacting Last.fm.

Each entry is shown with the decision a replay would make for it:
  scrobble     - would be submitted
  too short    - played for under 30 seconds
  malformed    - required fields are missing
  empty field  - artist or track is empty
  invalid      - the entry could not be read

Totals per decision are printed at the end. No credentials are needed.`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().IntVar(&inspectStartIndex, "start-index", 0, "Index to start from")
	inspectCmd.Flags().IntVarP(&inspectWidth, "width", "w", 80, "Table width in columns (0=disabled)")
}

func runInspect(cmd *cobra.Command, args []string) error {
	if inspectStartIndex < 0 {
		return fmt.Errorf("--start-index must not be negative")
	}

	records, err := history.Load(args[0])
	if err != nil {
		return err
	}

	renderInspect(cmd.OutOrStdout(), records, inspectStartIndex, inspectWidth)
	return nil
}

// verdictOrder is the order totals are printed in
var verdictOrder = []replay.Verdict{
	replay.VerdictScrobble,
	replay.VerdictTooShort,
	replay.VerdictMalformed,
	replay.VerdictEmptyField,
	replay.VerdictInvalid,
}

// renderInspect writes one row per record from startIndex followed by totals.
// Rows are cut to width display columns when width > 0.
func renderInspect(w io.Writer, records []history.Record, startIndex, width int) {
	indexWidth := indexColumnWidth(len(records))
	verdictWidth := 0
	for _, v := range verdictOrder {
		verdictWidth = max(verdictWidth, runewidth.StringWidth(v.String()))
	}

	totals := make(map[replay.Verdict]int)
	for i := startIndex; i < len(records); i++ {
		rec := records[i]
		verdict := replay.Qualify(rec)
		totals[verdict]++

		prefix := fmt.Sprintf("%*d  %s  ", indexWidth, rec.Index, padToWidth(verdict.String(), verdictWidth))
		detail := describe(rec, verdict)

		if width > 0 {
			remaining := width - runewidth.StringWidth(prefix)
			if remaining <= 0 {
				fmt.Fprintln(w, runewidth.Truncate(prefix, width, ""))
				continue
			}
			detail = strings.TrimRight(padToWidth(detail, remaining), " ")
		}
		fmt.Fprintln(w, prefix+detail)
	}

	fmt.Fprintln(w)
	for _, v := range verdictOrder {
		fmt.Fprintf(w, "%s  %d\n", padToWidth(v.String(), verdictWidth), totals[v])
	}
}

// indexColumnWidth is the width of the largest index among n records
func indexColumnWidth(n int) int {
	return len(strconv.Itoa(max(n-1, 0)))
}

// describe returns the last column of an inspect row
func describe(rec history.Record, verdict replay.Verdict) string {
	switch verdict {
	case replay.VerdictMalformed:
		return "missing " + strings.Join(rec.Missing, ", ")
	case replay.VerdictInvalid:
		return rec.Err.Error()
	default:
		return rec.Artist + " - " + rec.Track
	}
}

// padToWidth pads or truncates text to a fixed display width.
// Width is measured in display columns, accounting for Unicode characters.
// If width <= 0, returns text unchanged.
// If text is longer than width, truncates with "..." suffix.
func padToWidth(text string, width int) string {
	if width <= 0 {
		return text
	}

	currentWidth := runewidth.StringWidth(text)

	if currentWidth > width {
		ellipsis := "..."
		ellipsisWidth := runewidth.StringWidth(ellipsis)

		if width <= ellipsisWidth {
			return runewidth.Truncate(ellipsis, width, "")
		}

		// Wide runes can leave the cut one column short
		result := runewidth.Truncate(text, width-ellipsisWidth, "") + ellipsis
		if resultWidth := runewidth.StringWidth(result); resultWidth < width {
			return result + strings.Repeat(" ", width-resultWidth)
		}
		return result
	} else if currentWidth < width {
		return text + strings.Repeat(" ", width-currentWidth)
	}

	return text
}
