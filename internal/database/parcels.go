package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"group-shipment-go/internal/models"
	"group-shipment-go/internal/store"

	"go.uber.org/zap"
)

// UpsertPaidParcel registers a parcel on payment confirmation, or records the
// new paid amount if the parcel is already known.
func (s *Service) UpsertPaidParcel(ctx context.Context, p *models.Parcel) (*models.Parcel, error) {
	zap.L().Debug("Upserting paid parcel",
		zap.String("parcel_id", p.Id),
		zap.String("customer_id", p.CustomerId),
		zap.String("amount_paid", p.AmountPaid.String()))

	status := p.Status
	if status == "" {
		status = models.ParcelBooked
	}

	_, err := s.db.ExecContext(ctx, queryUpsertPaidParcel,
		p.Id, p.CustomerId, p.CompanyId, p.CustomerPhone, p.OrderAmount.String(), p.AmountPaid.String(),
		p.DiscountPercentage.String(), status, p.CreatedAt.UTC(), p.UpdatedAt.UTC())
	if err != nil {
		zap.L().Error("Failed to upsert parcel", zap.String("parcel_id", p.Id), zap.Error(err))
		return nil, fmt.Errorf("unable to upsert parcel: %w", err)
	}

	return s.getParcel(ctx, s.db, p.Id)
}

func (s *Service) GetParcel(ctx context.Context, parcelId string) (*models.Parcel, error) {
	return s.getParcel(ctx, s.db, parcelId)
}

func (s *Service) ListGroupParcels(ctx context.Context, groupId string) ([]models.Parcel, error) {
	return s.listGroupParcels(ctx, s.db, groupId)
}

// UpdateParcelStatus moves a parcel From -> To. The move only applies while
// the parcel is still in From.
func (s *Service) UpdateParcelStatus(ctx context.Context, params store.ParcelStatusParams) (*models.Parcel, error) {
	if !params.From.CanMoveTo(params.To) {
		return nil, fmt.Errorf("%w: parcel cannot move from %s to %s", store.ErrInvalidState, params.From, params.To)
	}

	now := params.Now.UTC()
	var pickedUpAt, deliveredAt sql.NullTime
	switch params.To {
	case models.ParcelPickedUp:
		pickedUpAt = sql.NullTime{Time: now, Valid: true}
	case models.ParcelDelivered:
		deliveredAt = sql.NullTime{Time: now, Valid: true}
	}

	result, err := s.db.ExecContext(ctx, queryUpdateParcelStatus,
		params.To, nullString(params.AgentId), pickedUpAt, deliveredAt, now, params.ParcelId, params.From)
	if err != nil {
		return nil, fmt.Errorf("unable to update parcel status: %w", err)
	}
	n, err := checkAffected(result)
	if err != nil {
		return nil, err
	}

	parcel, err := s.getParcel(ctx, s.db, params.ParcelId)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: parcel is %s, expected %s", store.ErrInvalidState, parcel.Status, params.From)
	}

	zap.L().Info("Parcel status updated",
		zap.String("parcel_id", parcel.Id),
		zap.String("from", string(params.From)),
		zap.String("to", string(params.To)))
	return parcel, nil
}

func (s *Service) MarkRefundCompleted(ctx context.Context, parcelId string, now time.Time) (*models.Parcel, error) {
	result, err := s.db.ExecContext(ctx, queryMarkRefundCompleted, now.UTC(), parcelId)
	if err != nil {
		return nil, fmt.Errorf("unable to mark refund completed: %w", err)
	}
	n, err := checkAffected(result)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: parcel %s", store.ErrNotFound, parcelId)
	}
	return s.getParcel(ctx, s.db, parcelId)
}

func (s *Service) getParcel(ctx context.Context, q querier, parcelId string) (*models.Parcel, error) {
	p, err := scanParcel(q.QueryRowContext(ctx, queryGetParcelById, parcelId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: parcel %s", store.ErrNotFound, parcelId)
		}
		return nil, fmt.Errorf("unable to query parcel: %w", err)
	}
	return p, nil
}

func (s *Service) listGroupParcels(ctx context.Context, q querier, groupId string) ([]models.Parcel, error) {
	rows, err := q.QueryContext(ctx, queryListGroupParcels, groupId)
	if err != nil {
		return nil, fmt.Errorf("unable to query group parcels: %w", err)
	}
	defer closeRows(rows)

	var parcels []models.Parcel
	for rows.Next() {
		p, err := scanParcel(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan parcel row: %w", err)
		}
		parcels = append(parcels, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating parcel rows: %w", err)
	}
	return parcels, nil
}
