package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"group-shipment-go/internal/models"
	"group-shipment-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// movement is a signed change to one balance bucket.
type movement struct {
	bucket models.Bucket
	amount decimal.Decimal
	txType string
}

// walletChange is every bucket movement applied to one wallet for a single
// originating entity. It is written as one versioned update plus one
// Transaction row per movement.
type walletChange struct {
	owner          models.WalletOwner
	movements      []movement
	earnedDelta    decimal.Decimal
	withdrawnDelta decimal.Decimal
	referenceType  string
	referenceId    string
	description    string
	mustExist      bool
}

// applyWalletChange atomically updates the wallet balances and records the
// transactions. It must run inside tx. No bucket may end below zero.
func (s *Service) applyWalletChange(ctx context.Context, tx *sql.Tx, c walletChange, now time.Time) ([]models.Transaction, error) {
	zap.L().Debug("Applying wallet change",
		zap.String("owner", c.owner.String()),
		zap.String("reference_type", c.referenceType),
		zap.String("reference_id", c.referenceId),
		zap.Int("movements", len(c.movements)))

	wallet, err := s.getWalletByOwner(ctx, tx, c.owner)
	if errors.Is(err, store.ErrNotFound) && !c.mustExist {
		wallet, err = s.createWallet(ctx, tx, c.owner, now)
	}
	if err != nil {
		return nil, err
	}

	balances := map[models.Bucket]decimal.Decimal{
		models.BucketPending:   wallet.PendingBalance,
		models.BucketAvailable: wallet.AvailableBalance,
		models.BucketLocked:    wallet.LockedBalance,
	}

	transactions := make([]models.Transaction, 0, len(c.movements))
	for _, m := range c.movements {
		before := balances[m.bucket]
		after := before.Add(m.amount)
		if after.IsNegative() {
			return nil, fmt.Errorf("%w: %s %s balance %s cannot cover %s",
				store.ErrInsufficientBalance, c.owner, m.bucket, before.String(), m.amount.Neg().String())
		}
		balances[m.bucket] = after

		transactions = append(transactions, models.Transaction{
			Id:              uuid.New().String(),
			WalletId:        wallet.Id,
			OwnerType:       c.owner.Type,
			OwnerId:         c.owner.Id,
			TransactionType: m.txType,
			Bucket:          m.bucket,
			Amount:          m.amount,
			BalanceBefore:   before,
			BalanceAfter:    after,
			ReferenceType:   c.referenceType,
			ReferenceId:     c.referenceId,
			Description:     c.description,
			CreatedAt:       now,
		})
	}

	totalEarnings := wallet.TotalEarnings.Add(c.earnedDelta)
	totalWithdrawn := wallet.TotalWithdrawn.Add(c.withdrawnDelta)

	// Update wallet (with optimistic locking)
	result, err := tx.ExecContext(ctx, queryUpdateWallet,
		balances[models.BucketPending].String(), balances[models.BucketAvailable].String(),
		balances[models.BucketLocked].String(), totalEarnings.String(), totalWithdrawn.String(),
		now, wallet.Id, wallet.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to update wallet: %w", err)
	}
	n, err := checkAffected(result)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("wallet update failed - %w", store.ErrConcurrentModification)
	}

	for i := range transactions {
		t := &transactions[i]
		_, err := tx.ExecContext(ctx, queryInsertTransaction,
			t.Id, t.WalletId, t.OwnerType, t.OwnerId, t.TransactionType, t.Bucket, t.Amount.String(),
			t.BalanceBefore.String(), t.BalanceAfter.String(), t.ReferenceType, t.ReferenceId, t.Description, t.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to insert transaction: %w", err)
		}
		if err := s.addJournalEntries(ctx, tx, t); err != nil {
			return nil, fmt.Errorf("failed to add journal entries: %w", err)
		}
	}

	zap.L().Info("Wallet updated",
		zap.String("wallet_id", wallet.Id),
		zap.String("owner", c.owner.String()),
		zap.String("pending", balances[models.BucketPending].String()),
		zap.String("available", balances[models.BucketAvailable].String()),
		zap.String("locked", balances[models.BucketLocked].String()))
	return transactions, nil
}

// contraAccount is the other side of the double entry for a transaction type.
func contraAccount(txType string) string {
	switch txType {
	case models.TxEarningCredit, models.TxEarningReversal:
		return "delivered_order_revenue"
	case models.TxClearanceOut, models.TxClearanceIn:
		return "clearance_transit"
	case models.TxPayoutDebit:
		return "payout_settlements"
	default:
		return "payout_reservations"
	}
}

// addJournalEntries creates double-entry bookkeeping entries: a credit to a
// wallet bucket debits the bucket account and credits the contra account,
// a debit does the opposite.
func (s *Service) addJournalEntries(ctx context.Context, tx *sql.Tx, t *models.Transaction) error {
	bucketAccount := fmt.Sprintf("%s_%s_%s", t.OwnerType, t.OwnerId, t.Bucket)
	contra := contraAccount(t.TransactionType)
	amount := t.Amount.Abs()

	entries := []struct {
		accountType  string
		accountId    string
		debitAmount  decimal.Decimal
		creditAmount decimal.Decimal
	}{
		{"wallet_bucket", bucketAccount, amount, decimal.Zero},
		{"contra", contra, decimal.Zero, amount},
	}
	if t.Amount.IsNegative() {
		entries[0].debitAmount, entries[0].creditAmount = decimal.Zero, amount
		entries[1].debitAmount, entries[1].creditAmount = amount, decimal.Zero
	}

	for _, entry := range entries {
		_, err := tx.ExecContext(ctx, queryInsertJournalEntry,
			uuid.New().String(), t.Id, entry.accountType, entry.accountId,
			entry.debitAmount.String(), entry.creditAmount.String(), t.CreatedAt)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) GetWallet(ctx context.Context, owner models.WalletOwner) (*models.Wallet, error) {
	return s.getWalletByOwner(ctx, s.db, owner)
}

func (s *Service) GetWalletById(ctx context.Context, walletId string) (*models.Wallet, error) {
	w, err := scanWallet(s.db.QueryRowContext(ctx, queryGetWalletById, walletId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: wallet %s", store.ErrNotFound, walletId)
		}
		return nil, fmt.Errorf("unable to query wallet: %w", err)
	}
	return w, nil
}

func (s *Service) ListWallets(ctx context.Context) ([]models.Wallet, error) {
	rows, err := s.db.QueryContext(ctx, queryListWallets)
	if err != nil {
		return nil, fmt.Errorf("unable to query wallets: %w", err)
	}
	defer closeRows(rows)

	var wallets []models.Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan wallet row: %w", err)
		}
		wallets = append(wallets, *w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating wallet rows: %w", err)
	}
	return wallets, nil
}

// GetTransactionHistory returns paginated transaction history for a wallet, newest first
func (s *Service) GetTransactionHistory(ctx context.Context, walletId string, limit, offset int) ([]models.Transaction, error) {
	zap.L().Debug("Getting transaction history",
		zap.String("wallet_id", walletId),
		zap.Int("limit", limit),
		zap.Int("offset", offset))

	rows, err := s.db.QueryContext(ctx, queryGetTransactionHistory, walletId, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction history: %w", err)
	}
	defer closeRows(rows)

	var transactions []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *t)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during transaction row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating transaction rows: %w", err)
	}

	return transactions, nil
}

// ReconcileWallet recomputes every bucket from the transaction history and
// compares it with the stored balance.
func (s *Service) ReconcileWallet(ctx context.Context, walletId string) error {
	zap.L().Info("Reconciling wallet", zap.String("wallet_id", walletId))

	wallet, err := s.GetWalletById(ctx, walletId)
	if err != nil {
		return fmt.Errorf("failed to get wallet: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, queryReconcileWallet, walletId)
	if err != nil {
		return fmt.Errorf("failed to read transactions: %w", err)
	}
	defer closeRows(rows)

	calculated := map[models.Bucket]decimal.Decimal{}
	for rows.Next() {
		var bucket models.Bucket
		var amount decimal.Decimal
		if err := rows.Scan(&bucket, &amount); err != nil {
			return fmt.Errorf("failed to scan transaction amount: %w", err)
		}
		calculated[bucket] = calculated[bucket].Add(amount)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating transaction rows: %w", err)
	}

	for _, bucket := range []models.Bucket{models.BucketPending, models.BucketAvailable, models.BucketLocked} {
		current := wallet.Bucket(bucket)
		if !current.Equal(calculated[bucket]) {
			zap.L().Error("Wallet reconciliation failed",
				zap.String("wallet_id", walletId),
				zap.String("bucket", string(bucket)),
				zap.String("current_balance", current.String()),
				zap.String("calculated_balance", calculated[bucket].String()),
				zap.String("difference", current.Sub(calculated[bucket]).String()))
			return fmt.Errorf("%s balance mismatch: current=%s, calculated=%s",
				bucket, current.String(), calculated[bucket].String())
		}
	}

	zap.L().Info("Wallet reconciliation successful",
		zap.String("wallet_id", walletId),
		zap.String("pending", wallet.PendingBalance.String()),
		zap.String("available", wallet.AvailableBalance.String()),
		zap.String("locked", wallet.LockedBalance.String()))
	return nil
}

func (s *Service) getWalletByOwner(ctx context.Context, q querier, owner models.WalletOwner) (*models.Wallet, error) {
	w, err := scanWallet(q.QueryRowContext(ctx, queryGetWalletByOwner, owner.Type, owner.Id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: wallet for %s", store.ErrNotFound, owner)
		}
		return nil, fmt.Errorf("unable to query wallet: %w", err)
	}
	return w, nil
}

// createWallet lazily opens a wallet on first credit.
func (s *Service) createWallet(ctx context.Context, tx *sql.Tx, owner models.WalletOwner, now time.Time) (*models.Wallet, error) {
	id := uuid.New().String()
	if _, err := tx.ExecContext(ctx, queryInsertWallet, id, owner.Type, owner.Id, now, now); err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}

	zap.L().Info("Wallet created", zap.String("wallet_id", id), zap.String("owner", owner.String()))
	return &models.Wallet{
		Id:        id,
		OwnerType: owner.Type,
		OwnerId:   owner.Id,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
