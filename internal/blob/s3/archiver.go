package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Osiyomeoh/CoreYield-sub001/internal/domain"
)

// BlobWriter is the narrow upload capability the archiver needs; Writer
// satisfies it.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// LedgerArchiver exports expired tx_ledger rows to object storage as JSONL
// and then removes them from the primary store. Export always happens before
// deletion; a failed upload leaves the rows in place for the next run.
type LedgerArchiver struct {
	writer BlobWriter
	ledger domain.TxLedgerStore
	logger *slog.Logger
}

// NewLedgerArchiver creates a LedgerArchiver.
func NewLedgerArchiver(writer BlobWriter, ledger domain.TxLedgerStore, logger *slog.Logger) *LedgerArchiver {
	return &LedgerArchiver{
		writer: writer,
		ledger: ledger,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

// Archive exports every ledger row created before the cutoff to
// archive/ledger/YYYY-MM.jsonl, deletes the exported rows, and returns the
// row count.
func (a *LedgerArchiver) Archive(ctx context.Context, before time.Time) (int64, error) {
	entries, err := a.ledger.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive ledger query: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(entries)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive ledger marshal: %w", err)
	}

	path := archivePath(before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive ledger upload: %w", err)
	}

	deleted, err := a.ledger.DeleteBefore(ctx, before)
	if err != nil {
		// The archive exists but the rows remain; re-running is safe because
		// the next export overwrites the same key with a superset.
		return 0, fmt.Errorf("s3blob: archive ledger delete: %w", err)
	}

	a.logger.Info("ledger archived",
		slog.String("path", path),
		slog.Int64("rows", deleted),
	)
	return deleted, nil
}

// Run archives on a fixed cadence until ctx is cancelled, keeping retention
// days of history in the primary store.
func (a *LedgerArchiver) Run(ctx context.Context, interval time.Duration, retention time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-retention)
			if _, err := a.Archive(ctx, cutoff); err != nil {
				a.logger.Warn("archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}

// archivePath builds the S3 key partitioned by the year-month of the cutoff:
//
//	archive/ledger/2026-08.jsonl
func archivePath(before time.Time) string {
	return fmt.Sprintf("archive/ledger/%s.jsonl", before.Format("2006-01"))
}

// marshalJSONL serialises records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
