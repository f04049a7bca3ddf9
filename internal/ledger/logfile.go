package ledger

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Delimiter introduces each block of the append log. The on-disk format is
// a flat text file of repeated blocks: the delimiter line followed by the
// pretty-printed JSON of one accepted batch.
const Delimiter = "----- TRANSACTION COMPLETED -----"

// LogFile is the append-only text log of accepted batches. Writes are
// serialized; a write failure is reported to the caller but never
// un-accepts the in-memory record (documented inconsistency window).
type LogFile struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
}

// NewLogFile constructs a log writer for the given path.
func NewLogFile(path string, logger *slog.Logger) *LogFile {
	return &LogFile{path: path, logger: logger}
}

// Append writes one accepted batch to the end of the log.
func (l *LogFile) Append(batch *TransactionBatch) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	doc, err := json.MarshalIndent(batch, "", "  ")
	if err != nil {
		return fmt.Errorf("encode batch %s: %w", batch.TransactionID, err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open ledger log: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%s\n%s\n\n", Delimiter, doc); err != nil {
		return fmt.Errorf("write ledger log entry: %w", err)
	}
	return nil
}

// Read parses every block of the log. Unparseable blocks are skipped with a
// logged warning rather than aborting the load; the caller decides whether
// parsed batches are trusted (they are re-verified through Replay at
// startup).
func (l *LogFile) Read() ([]*TransactionBatch, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	content, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read ledger log: %w", err)
	}

	var out []*TransactionBatch
	for _, block := range strings.Split(string(content), Delimiter) {
		block = strings.TrimSpace(block)
		if block == "" || !strings.HasPrefix(block, "{") {
			continue
		}
		var batch TransactionBatch
		if err := json.Unmarshal([]byte(block), &batch); err != nil {
			l.logger.Warn("skipping unparseable ledger log block", "error", err)
			continue
		}
		out = append(out, &batch)
	}
	return out, nil
}
