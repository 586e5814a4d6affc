package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"group-shipment-go/internal/models"
	"group-shipment-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PostEarning inserts the earning and credits the pending balance of every
// payable party in one transaction. A second posting for the same parcel
// returns ErrDuplicateOperation and writes nothing.
func (s *Service) PostEarning(ctx context.Context, e *models.Earning) ([]models.Transaction, error) {
	zap.L().Info("Posting earning",
		zap.String("earning_id", e.Id),
		zap.String("parcel_id", e.ParcelId),
		zap.String("order_amount", e.OrderAmount.String()))

	now := e.CreatedAt.UTC()
	var transactions []models.Transaction

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var existingId string
		err := tx.QueryRowContext(ctx, queryCheckEarningExists, e.ParcelId).Scan(&existingId)
		if err == nil {
			return fmt.Errorf("%w: parcel %s already has earning %s", store.ErrDuplicateOperation, e.ParcelId, existingId)
		} else if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to check for existing earning: %w", err)
		}

		_, err = tx.ExecContext(ctx, queryInsertEarning,
			e.Id, e.ParcelId, e.GroupId, e.CompanyId, e.AgentId, e.OrderAmount.String(),
			e.PlatformCommissionRate.String(), e.PlatformCommission.String(), e.CompanyEarning.String(),
			e.AgentCommissionRate.String(), e.AgentEarning.String(), e.CompanyNetEarning.String(),
			e.AgentBonus.String(), e.CustomerTip.String(), e.Status, e.CancelReason,
			nullTime(e.ClearedAt), nullTime(e.CancelledAt), now, e.UpdatedAt.UTC())
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: parcel %s already has an earning", store.ErrDuplicateOperation, e.ParcelId)
			}
			return fmt.Errorf("failed to insert earning: %w", err)
		}

		for _, credit := range e.Credits() {
			txs, err := s.applyWalletChange(ctx, tx, walletChange{
				owner:         credit.Owner,
				movements:     []movement{{bucket: models.BucketPending, amount: credit.Amount, txType: models.TxEarningCredit}},
				earnedDelta:   credit.Amount,
				referenceType: models.RefEarning,
				referenceId:   e.Id,
				description:   fmt.Sprintf("Earning for parcel %s", e.ParcelId),
			}, now)
			if err != nil {
				return fmt.Errorf("failed to credit %s: %w", credit.Owner, err)
			}
			transactions = append(transactions, txs...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Earning posted successfully",
		zap.String("earning_id", e.Id),
		zap.String("parcel_id", e.ParcelId),
		zap.String("platform_commission", e.PlatformCommission.String()),
		zap.String("company_net_earning", e.CompanyNetEarning.String()),
		zap.String("agent_payable", e.AgentPayable().String()))
	return transactions, nil
}

func (s *Service) GetEarning(ctx context.Context, earningId string) (*models.Earning, error) {
	return s.getEarning(ctx, s.db, earningId)
}

func (s *Service) GetEarningByParcel(ctx context.Context, parcelId string) (*models.Earning, error) {
	e, err := scanEarning(s.db.QueryRowContext(ctx, queryGetEarningByParcel, parcelId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: earning for parcel %s", store.ErrNotFound, parcelId)
		}
		return nil, fmt.Errorf("unable to query earning: %w", err)
	}
	return e, nil
}

func (s *Service) ListEarnings(ctx context.Context, filter store.EarningFilter) ([]models.Earning, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	return s.queryEarnings(ctx, queryListEarnings,
		filter.CompanyId, filter.CompanyId, filter.AgentId, filter.AgentId,
		filter.Status, filter.Status, limit, filter.Offset)
}

func (s *Service) ListClearableEarnings(ctx context.Context, createdBefore time.Time, limit int) ([]models.Earning, error) {
	return s.queryEarnings(ctx, queryListClearableEarnings, createdBefore.UTC(), limit)
}

// ClearEarning moves a PENDING earning to CLEARED and every credited amount
// from pending to available.
func (s *Service) ClearEarning(ctx context.Context, earningId string, now time.Time) (*models.Earning, []models.Transaction, error) {
	now = now.UTC()
	var earning *models.Earning
	var transactions []models.Transaction

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		e, err := s.getEarning(ctx, tx, earningId)
		if err != nil {
			return err
		}
		if _, ok := e.Status.Next(models.EarningEventClear); !ok {
			return fmt.Errorf("%w: earning is %s", store.ErrInvalidState, e.Status)
		}

		result, err := tx.ExecContext(ctx, queryClearEarning, now, now, earningId)
		if err != nil {
			return fmt.Errorf("failed to clear earning: %w", err)
		}
		if n, err := checkAffected(result); err != nil {
			return err
		} else if n == 0 {
			return fmt.Errorf("earning %s clearance - %w", earningId, store.ErrConcurrentModification)
		}

		for _, credit := range e.Credits() {
			txs, err := s.applyWalletChange(ctx, tx, walletChange{
				owner: credit.Owner,
				movements: []movement{
					{bucket: models.BucketPending, amount: credit.Amount.Neg(), txType: models.TxClearanceOut},
					{bucket: models.BucketAvailable, amount: credit.Amount, txType: models.TxClearanceIn},
				},
				referenceType: models.RefEarning,
				referenceId:   e.Id,
				description:   fmt.Sprintf("Clearance of earning for parcel %s", e.ParcelId),
				mustExist:     true,
			}, now)
			if err != nil {
				return fmt.Errorf("failed to clear %s: %w", credit.Owner, err)
			}
			transactions = append(transactions, txs...)
		}

		earning, err = s.getEarning(ctx, tx, earningId)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	zap.L().Info("Earning cleared", zap.String("earning_id", earningId), zap.String("parcel_id", earning.ParcelId))
	return earning, transactions, nil
}

// UpdateEarningStatus applies a status change that moves no money (hold, release).
func (s *Service) UpdateEarningStatus(ctx context.Context, earningId string, from, to models.EarningStatus, now time.Time) (*models.Earning, error) {
	result, err := s.db.ExecContext(ctx, queryUpdateEarningStatus, to, now.UTC(), earningId, from)
	if err != nil {
		return nil, fmt.Errorf("unable to update earning status: %w", err)
	}
	n, err := checkAffected(result)
	if err != nil {
		return nil, err
	}

	earning, err := s.getEarning(ctx, s.db, earningId)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: earning is %s, expected %s", store.ErrInvalidState, earning.Status, from)
	}
	return earning, nil
}

// CancelEarning reverses every credit the earning posted with compensating
// transactions: from pending while uncleared, from available once cleared.
func (s *Service) CancelEarning(ctx context.Context, earningId, reason string, now time.Time) (*models.Earning, []models.Transaction, error) {
	now = now.UTC()
	var earning *models.Earning
	var transactions []models.Transaction

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		e, err := s.getEarning(ctx, tx, earningId)
		if err != nil {
			return err
		}
		if _, ok := e.Status.Next(models.EarningEventCancel); !ok {
			return fmt.Errorf("%w: earning is %s", store.ErrInvalidState, e.Status)
		}

		bucket := models.BucketPending
		if e.Status == models.EarningCleared {
			bucket = models.BucketAvailable
		}

		result, err := tx.ExecContext(ctx, queryCancelEarning, reason, now, now, earningId, e.Status)
		if err != nil {
			return fmt.Errorf("failed to cancel earning: %w", err)
		}
		if n, err := checkAffected(result); err != nil {
			return err
		} else if n == 0 {
			return fmt.Errorf("earning %s cancellation - %w", earningId, store.ErrConcurrentModification)
		}

		for _, credit := range e.Credits() {
			txs, err := s.applyWalletChange(ctx, tx, walletChange{
				owner:         credit.Owner,
				movements:     []movement{{bucket: bucket, amount: credit.Amount.Neg(), txType: models.TxEarningReversal}},
				earnedDelta:   credit.Amount.Neg(),
				referenceType: models.RefEarning,
				referenceId:   e.Id,
				description:   fmt.Sprintf("Reversal of earning for parcel %s: %s", e.ParcelId, reason),
				mustExist:     true,
			}, now)
			if err != nil {
				return fmt.Errorf("failed to reverse %s: %w", credit.Owner, err)
			}
			transactions = append(transactions, txs...)
		}

		earning, err = s.getEarning(ctx, tx, earningId)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	zap.L().Info("Earning cancelled",
		zap.String("earning_id", earningId),
		zap.String("parcel_id", earning.ParcelId),
		zap.String("reason", reason))
	return earning, transactions, nil
}

// GetPlatformRevenue sums platform commission of non-cancelled earnings
// created in [from, to).
func (s *Service) GetPlatformRevenue(ctx context.Context, from, to time.Time) (*models.PlatformRevenue, error) {
	rows, err := s.db.QueryContext(ctx, queryPlatformRevenue, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("unable to query platform revenue: %w", err)
	}
	defer closeRows(rows)

	report := &models.PlatformRevenue{
		From:            from.UTC(),
		To:              to.UTC(),
		OrderVolume:     decimal.Zero,
		TotalCommission: decimal.Zero,
	}
	for rows.Next() {
		var orderAmount, commission decimal.Decimal
		if err := rows.Scan(&orderAmount, &commission); err != nil {
			return nil, fmt.Errorf("unable to scan earning amounts: %w", err)
		}
		report.EarningCount++
		report.OrderVolume = report.OrderVolume.Add(orderAmount)
		report.TotalCommission = report.TotalCommission.Add(commission)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating earning rows: %w", err)
	}
	return report, nil
}

func (s *Service) getEarning(ctx context.Context, q querier, earningId string) (*models.Earning, error) {
	e, err := scanEarning(q.QueryRowContext(ctx, queryGetEarningById, earningId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: earning %s", store.ErrNotFound, earningId)
		}
		return nil, fmt.Errorf("unable to query earning: %w", err)
	}
	return e, nil
}

func (s *Service) queryEarnings(ctx context.Context, query string, args ...any) ([]models.Earning, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("unable to query earnings: %w", err)
	}
	defer closeRows(rows)

	var earnings []models.Earning
	for rows.Next() {
		e, err := scanEarning(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan earning row: %w", err)
		}
		earnings = append(earnings, *e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating earning rows: %w", err)
	}
	return earnings, nil
}
