package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"group-shipment-go/internal/models"
	"group-shipment-go/internal/store"

	"go.uber.org/zap"
)

// CreatePayout reserves the amount by moving it from available to locked and
// records the payout, all in one transaction. The wallet update is version
// guarded, so two concurrent requests cannot both spend the same balance.
func (s *Service) CreatePayout(ctx context.Context, p *models.Payout) ([]models.Transaction, error) {
	owner := models.WalletOwner{Type: p.OwnerType, Id: p.OwnerId}
	now := p.RequestedAt.UTC()

	zap.L().Info("Creating payout",
		zap.String("payout_id", p.Id),
		zap.String("owner", owner.String()),
		zap.String("amount", p.Amount.String()))

	var transactions []models.Transaction
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		wallet, err := s.getWalletByOwner(ctx, tx, owner)
		if err != nil {
			return err
		}
		if wallet.AvailableBalance.LessThan(p.Amount) {
			return fmt.Errorf("%w: available balance %s is less than %s",
				store.ErrInsufficientBalance, wallet.AvailableBalance.String(), p.Amount.String())
		}
		p.WalletId = wallet.Id

		transactions, err = s.applyWalletChange(ctx, tx, walletChange{
			owner: owner,
			movements: []movement{
				{bucket: models.BucketAvailable, amount: p.Amount.Neg(), txType: models.TxPayoutReserve},
				{bucket: models.BucketLocked, amount: p.Amount, txType: models.TxPayoutLock},
			},
			referenceType: models.RefPayout,
			referenceId:   p.Id,
			description:   "Payout requested",
			mustExist:     true,
		}, now)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, queryInsertPayout,
			p.Id, p.WalletId, p.OwnerType, p.OwnerId, p.Amount.String(), p.Status, now, now)
		if err != nil {
			return fmt.Errorf("failed to insert payout: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Payout created", zap.String("payout_id", p.Id), zap.String("wallet_id", p.WalletId))
	return transactions, nil
}

func (s *Service) GetPayout(ctx context.Context, payoutId string) (*models.Payout, error) {
	return s.getPayout(ctx, s.db, payoutId)
}

func (s *Service) ListPayouts(ctx context.Context, filter store.PayoutFilter) ([]models.Payout, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, queryListPayouts,
		filter.OwnerType, filter.OwnerType, filter.OwnerId, filter.OwnerId,
		filter.Status, filter.Status, limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("unable to query payouts: %w", err)
	}
	defer closeRows(rows)

	var payouts []models.Payout
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan payout row: %w", err)
		}
		payouts = append(payouts, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payout rows: %w", err)
	}
	return payouts, nil
}

// TransitionPayout moves a payout From -> To and applies the balance effect
// of the target status: COMPLETED debits the locked amount, REJECTED and
// CANCELLED release it back to available, PROCESSING moves nothing.
func (s *Service) TransitionPayout(ctx context.Context, params store.PayoutTransitionParams) (*models.Payout, []models.Transaction, error) {
	now := params.Now.UTC()
	var payout *models.Payout
	var transactions []models.Transaction

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		p, err := s.getPayout(ctx, tx, params.PayoutId)
		if err != nil {
			return err
		}

		var processedAt sql.NullTime
		if params.To != models.PayoutProcessing {
			processedAt = sql.NullTime{Time: now, Valid: true}
		}

		result, err := tx.ExecContext(ctx, queryTransitionPayout,
			params.To, params.SettlementRef, params.Reason, processedAt, now, params.PayoutId, params.From)
		if err != nil {
			return fmt.Errorf("failed to update payout: %w", err)
		}
		n, err := checkAffected(result)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: payout is %s, expected %s", store.ErrInvalidState, p.Status, params.From)
		}

		change := walletChange{
			owner:         models.WalletOwner{Type: p.OwnerType, Id: p.OwnerId},
			referenceType: models.RefPayout,
			referenceId:   p.Id,
			mustExist:     true,
		}
		switch params.To {
		case models.PayoutCompleted:
			change.movements = []movement{{bucket: models.BucketLocked, amount: p.Amount.Neg(), txType: models.TxPayoutDebit}}
			change.withdrawnDelta = p.Amount
			change.description = "Payout settled: " + params.SettlementRef
		case models.PayoutRejected, models.PayoutCancelled:
			change.movements = []movement{
				{bucket: models.BucketLocked, amount: p.Amount.Neg(), txType: models.TxPayoutUnlock},
				{bucket: models.BucketAvailable, amount: p.Amount, txType: models.TxPayoutRelease},
			}
			change.description = fmt.Sprintf("Payout %s", params.To)
			if params.Reason != "" {
				change.description += ": " + params.Reason
			}
		}

		if len(change.movements) > 0 {
			transactions, err = s.applyWalletChange(ctx, tx, change, now)
			if err != nil {
				return err
			}
		}

		payout, err = s.getPayout(ctx, tx, params.PayoutId)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	zap.L().Info("Payout transitioned",
		zap.String("payout_id", payout.Id),
		zap.String("from", string(params.From)),
		zap.String("to", string(payout.Status)))
	return payout, transactions, nil
}

func (s *Service) getPayout(ctx context.Context, q querier, payoutId string) (*models.Payout, error) {
	p, err := scanPayout(q.QueryRowContext(ctx, queryGetPayoutById, payoutId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: payout %s", store.ErrNotFound, payoutId)
		}
		return nil, fmt.Errorf("unable to query payout: %w", err)
	}
	return p, nil
}
