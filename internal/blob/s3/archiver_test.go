package s3blob

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/Osiyomeoh/CoreYield-sub001/internal/domain"
)

type fakeWriter struct {
	puts map[string][]byte
	fail bool
}

func (w *fakeWriter) Put(_ context.Context, path string, data io.Reader, _ string) error {
	if w.fail {
		return errors.New("upload failed")
	}
	buf, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if w.puts == nil {
		w.puts = make(map[string][]byte)
	}
	w.puts[path] = buf
	return nil
}

type fakeLedger struct {
	entries []domain.LedgerEntry
	deleted int64
}

func (l *fakeLedger) Append(context.Context, domain.LedgerEntry) error { return nil }
func (l *fakeLedger) UpdateStatus(context.Context, string, domain.TxStatus, *time.Time) error {
	return nil
}
func (l *fakeLedger) ListByWallet(context.Context, common.Address, domain.ListOpts) ([]domain.LedgerEntry, error) {
	return nil, nil
}

func (l *fakeLedger) ListBefore(_ context.Context, before time.Time) ([]domain.LedgerEntry, error) {
	var out []domain.LedgerEntry
	for _, e := range l.entries {
		if e.CreatedAt.Before(before) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (l *fakeLedger) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	var kept []domain.LedgerEntry
	for _, e := range l.entries {
		if e.CreatedAt.Before(before) {
			l.deleted++
			continue
		}
		kept = append(kept, e)
	}
	l.entries = kept
	return l.deleted, nil
}

var _ domain.TxLedgerStore = (*fakeLedger)(nil)

func entry(id string, age time.Duration) domain.LedgerEntry {
	return domain.LedgerEntry{
		ID:        id,
		Wallet:    common.HexToAddress("0x8888888888888888888888888888888888888888"),
		AssetKey:  "stcore",
		Kind:      domain.TxKindWrap,
		Status:    domain.TxStatusConfirmed,
		CreatedAt: time.Now().UTC().Add(-age),
	}
}

func TestArchiveExportsAndDeletes(t *testing.T) {
	ledger := &fakeLedger{entries: []domain.LedgerEntry{
		entry("old-1", 48*time.Hour),
		entry("old-2", 36*time.Hour),
		entry("fresh", time.Hour),
	}}
	w := &fakeWriter{}
	a := NewLedgerArchiver(w, ledger, slog.New(slog.DiscardHandler))

	cutoff := time.Now().UTC().Add(-24 * time.Hour)
	n, err := a.Archive(context.Background(), cutoff)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	// The fresh row survives in the store.
	require.Len(t, ledger.entries, 1)
	require.Equal(t, "fresh", ledger.entries[0].ID)

	// Exactly one JSONL object at the month-partitioned key.
	require.Len(t, w.puts, 1)
	data, ok := w.puts[archivePath(cutoff)]
	require.True(t, ok)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	var decoded domain.LedgerEntry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &decoded))
	require.Equal(t, "old-1", decoded.ID)
}

func TestArchiveNothingToExport(t *testing.T) {
	ledger := &fakeLedger{entries: []domain.LedgerEntry{entry("fresh", time.Hour)}}
	w := &fakeWriter{}
	a := NewLedgerArchiver(w, ledger, slog.New(slog.DiscardHandler))

	n, err := a.Archive(context.Background(), time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	require.Zero(t, n)
	require.Empty(t, w.puts)
}

func TestFailedUploadKeepsRows(t *testing.T) {
	ledger := &fakeLedger{entries: []domain.LedgerEntry{entry("old", 48*time.Hour)}}
	a := NewLedgerArchiver(&fakeWriter{fail: true}, ledger, slog.New(slog.DiscardHandler))

	_, err := a.Archive(context.Background(), time.Now().UTC())
	require.Error(t, err)
	require.Len(t, ledger.entries, 1)
}
