package postgres

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Osiyomeoh/CoreYield-sub001/internal/domain"
)

// TxLedgerStore implements domain.TxLedgerStore using PostgreSQL. Amounts
// are stored as NUMERIC(78,0), wide enough for any uint256 value.
type TxLedgerStore struct {
	pool *pgxpool.Pool
}

var _ domain.TxLedgerStore = (*TxLedgerStore)(nil)

// NewTxLedgerStore creates a new TxLedgerStore backed by the given pool.
func NewTxLedgerStore(pool *pgxpool.Pool) *TxLedgerStore {
	return &TxLedgerStore{pool: pool}
}

// Append inserts a new ledger row.
func (s *TxLedgerStore) Append(ctx context.Context, e domain.LedgerEntry) error {
	var amount *string
	if e.Amount != nil {
		v := e.Amount.String()
		amount = &v
	}
	const query = `
		INSERT INTO tx_ledger (id, wallet, asset_key, kind, tx_hash, amount, status, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := s.pool.Exec(ctx, query,
		e.ID,
		strings.ToLower(e.Wallet.Hex()),
		e.AssetKey,
		string(e.Kind),
		e.TxHash.Hex(),
		amount,
		string(e.Status),
		e.Message,
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: append ledger entry %s: %w", e.ID, err)
	}
	return nil
}

// UpdateStatus settles a previously appended row.
func (s *TxLedgerStore) UpdateStatus(ctx context.Context, id string, status domain.TxStatus, confirmedAt *time.Time) error {
	const query = `UPDATE tx_ledger SET status = $2, confirmed_at = $3 WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, id, string(status), confirmedAt)
	if err != nil {
		return fmt.Errorf("postgres: update ledger entry %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: ledger entry %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ListByWallet returns a wallet's rows, newest first.
func (s *TxLedgerStore) ListByWallet(ctx context.Context, wallet common.Address, opts domain.ListOpts) ([]domain.LedgerEntry, error) {
	query := `
		SELECT id, wallet, asset_key, kind, tx_hash, amount::TEXT, status, message, created_at, confirmed_at
		FROM tx_ledger WHERE wallet = $1 ORDER BY created_at DESC`
	args := []any{strings.ToLower(wallet.Hex())}
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, opts.Limit)
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", len(args)+1)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list ledger for %s: %w", wallet.Hex(), err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// ListBefore returns every row created before cutoff, oldest first; the
// archiver exports these before deletion.
func (s *TxLedgerStore) ListBefore(ctx context.Context, cutoff time.Time) ([]domain.LedgerEntry, error) {
	const query = `
		SELECT id, wallet, asset_key, kind, tx_hash, amount::TEXT, status, message, created_at, confirmed_at
		FROM tx_ledger WHERE created_at < $1 ORDER BY created_at ASC`
	rows, err := s.pool.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("postgres: list ledger before %s: %w", cutoff, err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// DeleteBefore removes rows older than cutoff and reports how many went.
func (s *TxLedgerStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tx_ledger WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete ledger before %s: %w", cutoff, err)
	}
	return tag.RowsAffected(), nil
}

type pgxRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanEntries(rows pgxRows) ([]domain.LedgerEntry, error) {
	var entries []domain.LedgerEntry
	for rows.Next() {
		var (
			e      domain.LedgerEntry
			wallet string
			kind   string
			txHash string
			amount *string
			status string
		)
		if err := rows.Scan(&e.ID, &wallet, &e.AssetKey, &kind, &txHash, &amount, &status, &e.Message, &e.CreatedAt, &e.ConfirmedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan ledger entry: %w", err)
		}
		e.Wallet = common.HexToAddress(wallet)
		e.Kind = domain.TxKind(kind)
		e.TxHash = common.HexToHash(txHash)
		e.Status = domain.TxStatus(status)
		if amount != nil {
			v, ok := new(big.Int).SetString(*amount, 10)
			if !ok {
				return nil, fmt.Errorf("postgres: ledger entry %s: bad amount %q", e.ID, *amount)
			}
			e.Amount = v
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate ledger entries: %w", err)
	}
	return entries, nil
}
