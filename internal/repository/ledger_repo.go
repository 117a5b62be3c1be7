package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"payments-service/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TxStore is the transactional view handed to Atomic callbacks. Wallet and
// escrow rows fetched through it are row-locked until the surrounding
// database transaction commits, which serializes concurrent ledger
// primitives on the same wallet.
type TxStore interface {
	WalletForUpdate(ctx context.Context, walletID string) (*domain.Wallet, error)
	SaveWallet(ctx context.Context, w *domain.Wallet) error
	SaveTransaction(ctx context.Context, t *domain.Transaction) error
	EscrowForUpdate(ctx context.Context, escrowID string) (*domain.Escrow, error)
	SaveEscrow(ctx context.Context, e *domain.Escrow) error
}

type LedgerStore interface {
	CreateWallet(ctx context.Context, w *domain.Wallet) error
	GetWallet(ctx context.Context, walletID string) (*domain.Wallet, error)
	GetWalletByOwner(ctx context.Context, ownerType domain.OwnerType, ownerID, currency string) (*domain.Wallet, error)
	ListWalletsByOwner(ctx context.Context, ownerType domain.OwnerType, ownerID string) ([]*domain.Wallet, error)

	GetTransaction(ctx context.Context, txID string) (*domain.Transaction, error)
	GetTransactionByProviderRef(ctx context.Context, providerRef string) (*domain.Transaction, error)
	ListWalletTransactions(ctx context.Context, walletID string, limit, offset int) ([]*domain.Transaction, error)

	GetEscrow(ctx context.Context, escrowID string) (*domain.Escrow, error)
	ListEscrowsByParty(ctx context.Context, userID string) ([]*domain.Escrow, error)

	// Atomic runs fn against a single database transaction. Every mutation
	// made through the TxStore becomes visible at once or not at all.
	Atomic(ctx context.Context, fn func(tx TxStore) error) error
}

type ledgerStore struct {
	db *pgxpool.Pool
}

func NewLedgerStore(db *pgxpool.Pool) LedgerStore {
	return &ledgerStore{db: db}
}

const walletColumns = `id, owner_type, owner_id, currency, available, locked, pending, status, created_at, updated_at`

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	var w domain.Wallet
	err := row.Scan(&w.ID, &w.OwnerType, &w.OwnerID, &w.Currency,
		&w.Available, &w.Locked, &w.Pending, &w.Status, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (s *ledgerStore) CreateWallet(ctx context.Context, w *domain.Wallet) error {
	query := `INSERT INTO wallets
		(id, owner_type, owner_id, currency, available, locked, pending, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := s.db.Exec(ctx, query, w.ID, w.OwnerType, w.OwnerID, w.Currency,
		w.Available, w.Locked, w.Pending, w.Status, w.CreatedAt, w.UpdatedAt)
	return err
}

func (s *ledgerStore) GetWallet(ctx context.Context, walletID string) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1`
	return scanWallet(s.db.QueryRow(ctx, query, walletID))
}

func (s *ledgerStore) GetWalletByOwner(ctx context.Context, ownerType domain.OwnerType, ownerID, currency string) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets
		WHERE owner_type = $1 AND owner_id = $2 AND currency = $3`
	return scanWallet(s.db.QueryRow(ctx, query, ownerType, ownerID, currency))
}

func (s *ledgerStore) ListWalletsByOwner(ctx context.Context, ownerType domain.OwnerType, ownerID string) ([]*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets
		WHERE owner_type = $1 AND owner_id = $2 ORDER BY currency`
	rows, err := s.db.Query(ctx, query, ownerType, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var wallets []*domain.Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, err
		}
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}

const transactionColumns = `id, type, status, amount, currency, fees, net_amount,
	source, destination, provider_ref, description, metadata,
	failure_reason, retry_count, next_retry_at, initiated_at, completed_at, failed_at`

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	var fees, source, destination []byte
	err := row.Scan(&t.ID, &t.Type, &t.Status, &t.Amount, &t.Currency, &fees, &t.NetAmount,
		&source, &destination, &t.ProviderRef, &t.Description, &t.Metadata,
		&t.FailureReason, &t.RetryCount, &t.NextRetryAt, &t.InitiatedAt, &t.CompletedAt, &t.FailedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(fees, &t.Fees); err != nil {
		return nil, fmt.Errorf("decode transaction fees: %w", err)
	}
	if err := json.Unmarshal(source, &t.Source); err != nil {
		return nil, fmt.Errorf("decode transaction source: %w", err)
	}
	if err := json.Unmarshal(destination, &t.Destination); err != nil {
		return nil, fmt.Errorf("decode transaction destination: %w", err)
	}
	return &t, nil
}

func (s *ledgerStore) GetTransaction(ctx context.Context, txID string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	return scanTransaction(s.db.QueryRow(ctx, query, txID))
}

func (s *ledgerStore) GetTransactionByProviderRef(ctx context.Context, providerRef string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE provider_ref = $1`
	return scanTransaction(s.db.QueryRow(ctx, query, providerRef))
}

func (s *ledgerStore) ListWalletTransactions(ctx context.Context, walletID string, limit, offset int) ([]*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE source->>'wallet_id' = $1 OR destination->>'wallet_id' = $1
		ORDER BY initiated_at DESC LIMIT $2 OFFSET $3`
	rows, err := s.db.Query(ctx, query, walletID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []*domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

const escrowColumns = `id, transaction_id, amount, currency, payer, payee,
	conditions, disputes, status, release_settings, fees,
	expires_at, created_at, updated_at, released_at, refunded_at`

func scanEscrow(row pgx.Row) (*domain.Escrow, error) {
	var e domain.Escrow
	var payer, payee, conditions, disputes, settings, fees []byte
	err := row.Scan(&e.ID, &e.TransactionID, &e.Amount, &e.Currency, &payer, &payee,
		&conditions, &disputes, &e.Status, &settings, &fees,
		&e.ExpiresAt, &e.CreatedAt, &e.UpdatedAt, &e.ReleasedAt, &e.RefundedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrEscrowNotFound
	}
	if err != nil {
		return nil, err
	}
	for name, pair := range map[string]struct {
		raw []byte
		dst any
	}{
		"payer":            {payer, &e.Payer},
		"payee":            {payee, &e.Payee},
		"conditions":       {conditions, &e.Conditions},
		"disputes":         {disputes, &e.Disputes},
		"release_settings": {settings, &e.ReleaseSettings},
		"fees":             {fees, &e.Fees},
	} {
		if len(pair.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(pair.raw, pair.dst); err != nil {
			return nil, fmt.Errorf("decode escrow %s: %w", name, err)
		}
	}
	return &e, nil
}

func (s *ledgerStore) GetEscrow(ctx context.Context, escrowID string) (*domain.Escrow, error) {
	query := `SELECT ` + escrowColumns + ` FROM escrows WHERE id = $1`
	return scanEscrow(s.db.QueryRow(ctx, query, escrowID))
}

func (s *ledgerStore) ListEscrowsByParty(ctx context.Context, userID string) ([]*domain.Escrow, error) {
	query := `SELECT ` + escrowColumns + ` FROM escrows
		WHERE payer->>'user_id' = $1 OR payee->>'user_id' = $1
		ORDER BY created_at DESC`
	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var escrows []*domain.Escrow
	for rows.Next() {
		e, err := scanEscrow(rows)
		if err != nil {
			return nil, err
		}
		escrows = append(escrows, e)
	}
	return escrows, rows.Err()
}

func (s *ledgerStore) Atomic(ctx context.Context, fn func(tx TxStore) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTxStore{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type pgTxStore struct {
	tx pgx.Tx
}

func (s *pgTxStore) WalletForUpdate(ctx context.Context, walletID string) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1 FOR UPDATE`
	return scanWallet(s.tx.QueryRow(ctx, query, walletID))
}

func (s *pgTxStore) SaveWallet(ctx context.Context, w *domain.Wallet) error {
	query := `UPDATE wallets
		SET available = $1, locked = $2, pending = $3, status = $4, updated_at = $5
		WHERE id = $6`
	tag, err := s.tx.Exec(ctx, query, w.Available, w.Locked, w.Pending, w.Status, w.UpdatedAt, w.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrWalletNotFound
	}
	return nil
}

func (s *pgTxStore) SaveTransaction(ctx context.Context, t *domain.Transaction) error {
	fees, err := json.Marshal(t.Fees)
	if err != nil {
		return err
	}
	source, err := json.Marshal(t.Source)
	if err != nil {
		return err
	}
	destination, err := json.Marshal(t.Destination)
	if err != nil {
		return err
	}
	query := `INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			fees = EXCLUDED.fees,
			net_amount = EXCLUDED.net_amount,
			provider_ref = EXCLUDED.provider_ref,
			metadata = EXCLUDED.metadata,
			failure_reason = EXCLUDED.failure_reason,
			retry_count = EXCLUDED.retry_count,
			next_retry_at = EXCLUDED.next_retry_at,
			completed_at = EXCLUDED.completed_at,
			failed_at = EXCLUDED.failed_at`
	_, err = s.tx.Exec(ctx, query, t.ID, t.Type, t.Status, t.Amount, t.Currency, fees, t.NetAmount,
		source, destination, t.ProviderRef, t.Description, t.Metadata,
		t.FailureReason, t.RetryCount, t.NextRetryAt, t.InitiatedAt, t.CompletedAt, t.FailedAt)
	return err
}

func (s *pgTxStore) EscrowForUpdate(ctx context.Context, escrowID string) (*domain.Escrow, error) {
	query := `SELECT ` + escrowColumns + ` FROM escrows WHERE id = $1 FOR UPDATE`
	return scanEscrow(s.tx.QueryRow(ctx, query, escrowID))
}

func (s *pgTxStore) SaveEscrow(ctx context.Context, e *domain.Escrow) error {
	payer, err := json.Marshal(e.Payer)
	if err != nil {
		return err
	}
	payee, err := json.Marshal(e.Payee)
	if err != nil {
		return err
	}
	conditions, err := json.Marshal(e.Conditions)
	if err != nil {
		return err
	}
	disputes, err := json.Marshal(e.Disputes)
	if err != nil {
		return err
	}
	settings, err := json.Marshal(e.ReleaseSettings)
	if err != nil {
		return err
	}
	fees, err := json.Marshal(e.Fees)
	if err != nil {
		return err
	}
	query := `INSERT INTO escrows
		(id, transaction_id, amount, currency, payer, payee,
		 conditions, disputes, status, release_settings, fees,
		 expires_at, created_at, updated_at, released_at, refunded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			conditions = EXCLUDED.conditions,
			disputes = EXCLUDED.disputes,
			status = EXCLUDED.status,
			release_settings = EXCLUDED.release_settings,
			updated_at = EXCLUDED.updated_at,
			released_at = EXCLUDED.released_at,
			refunded_at = EXCLUDED.refunded_at`
	_, err = s.tx.Exec(ctx, query, e.ID, e.TransactionID, e.Amount, e.Currency, payer, payee,
		conditions, disputes, e.Status, settings, fees,
		e.ExpiresAt, e.CreatedAt, e.UpdatedAt, e.ReleasedAt, e.RefundedAt)
	return err
}
