package replay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

// DefaultDebugLogPath is where malformed records are written unless
// configured otherwise.
const DefaultDebugLogPath = "debug.log"

// DebugLog appends one JSON line per malformed history record. The file is
// opened for each write and closed straight after.
type DebugLog struct {
	path string
}

// NewDebugLog returns a debug log writing to path
func NewDebugLog(path string) *DebugLog {
	if path == "" {
		path = DefaultDebugLogPath
	}
	return &DebugLog{path: path}
}

// Path returns the file the log appends to
func (d *DebugLog) Path() string {
	return d.path
}

// Write appends the record's index, missing keys and raw content.
func (d *DebugLog) Write(index int, raw json.RawMessage, missing []string) error {
	var line bytes.Buffer
	logger := zerolog.New(&line).With().Timestamp().Logger()
	event := logger.Warn().
		Int("index", index).
		Strs("missing", missing)

	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err == nil {
		event = event.RawJSON("record", compact.Bytes())
	} else {
		event = event.Str("record", string(raw))
	}
	event.Msg("missing required fields")

	f, err := os.OpenFile(d.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open debug log: %w", err)
	}

	if _, err := f.Write(line.Bytes()); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write debug log: %w", err)
	}

	return f.Close()
}
