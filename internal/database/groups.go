package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"group-shipment-go/internal/models"
	"group-shipment-go/internal/pricing"
	"group-shipment-go/internal/store"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func (s *Service) CreateGroup(ctx context.Context, g *models.Group) error {
	zap.L().Info("Creating group",
		zap.String("group_id", g.Id),
		zap.String("code", g.Code),
		zap.String("company_id", g.CompanyId),
		zap.Int("target_members", g.TargetMembers))

	var effective sql.NullString
	if g.EffectiveDiscountPercentage != nil {
		effective = nullString(g.EffectiveDiscountPercentage.String())
	}

	_, err := s.db.ExecContext(ctx, queryInsertGroup,
		g.Id, g.Code, g.CompanyId, g.SourceCity, g.SourcePincode, g.TargetCity, g.TargetPincode, g.DepotAddress,
		g.TargetMembers, g.CurrentMembers, g.DiscountPercentage.String(), effective, g.Deadline.UTC(),
		g.Status, nullString(g.PickupAgentId), nullString(g.DeliveryAgentId), nullTime(g.FinalizedAt),
		nullTime(g.DepotArrivedAt), g.DepotProofUrl, nullTime(g.CompletedAt), g.Version,
		g.CreatedAt.UTC(), g.UpdatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: group code %s already exists", store.ErrDuplicateOperation, g.Code)
		}
		return fmt.Errorf("unable to insert group: %w", err)
	}
	return nil
}

func (s *Service) GetGroup(ctx context.Context, groupId string) (*models.Group, error) {
	return s.getGroup(ctx, s.db, groupId)
}

func (s *Service) GetGroupByCode(ctx context.Context, code string) (*models.Group, error) {
	g, err := scanGroup(s.db.QueryRowContext(ctx, queryGetGroupByCode, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: group with code %s", store.ErrNotFound, code)
		}
		return nil, fmt.Errorf("unable to query group by code: %w", err)
	}
	return g, nil
}

func (s *Service) ListOpenGroupsByRoute(ctx context.Context, route models.Route, now time.Time) ([]models.Group, error) {
	return s.queryGroups(ctx, queryListOpenGroupsByRoute, now.UTC(), route.SourcePincode, route.TargetPincode,
		route.SourceCity, route.SourceCity, route.TargetCity, route.TargetCity)
}

func (s *Service) ListExpiredOpenGroups(ctx context.Context, now time.Time, limit int) ([]models.Group, error) {
	return s.queryGroups(ctx, queryListExpiredOpenGroups, now.UTC(), limit)
}

func (s *Service) ListGroupsClosingSoon(ctx context.Context, now, until time.Time, maxSlots int) ([]models.Group, error) {
	return s.queryGroups(ctx, queryListGroupsClosingSoon, now.UTC(), until.UTC(), maxSlots)
}

// JoinGroup increments the member count with a single guarded UPDATE and
// attaches the parcel in the same transaction.
func (s *Service) JoinGroup(ctx context.Context, params store.JoinGroupParams) (*models.Group, error) {
	now := params.Now.UTC()
	var group *models.Group

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, queryJoinGroup, now, now, params.GroupId, now)
		if err != nil {
			return fmt.Errorf("failed to increment members: %w", err)
		}
		n, err := checkAffected(result)
		if err != nil {
			return err
		}
		if n == 0 {
			return s.classifyJoinFailure(ctx, tx, params.GroupId, now)
		}

		group, err = s.getGroup(ctx, tx, params.GroupId)
		if err != nil {
			return err
		}

		result, err = tx.ExecContext(ctx, queryAttachParcel,
			group.Id, group.DiscountPercentage.String(), now, params.ParcelId, params.CustomerId)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: customer %s already has a parcel in group %s",
					store.ErrDuplicateOperation, params.CustomerId, group.Id)
			}
			return fmt.Errorf("failed to attach parcel: %w", err)
		}
		if n, err = checkAffected(result); err != nil {
			return err
		}
		if n == 0 {
			return s.classifyAttachFailure(ctx, tx, params.ParcelId, params.CustomerId)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Parcel joined group",
		zap.String("group_id", group.Id),
		zap.String("parcel_id", params.ParcelId),
		zap.Int("current_members", group.CurrentMembers),
		zap.Int("target_members", group.TargetMembers),
		zap.String("status", string(group.Status)))
	return group, nil
}

func (s *Service) classifyJoinFailure(ctx context.Context, tx *sql.Tx, groupId string, now time.Time) error {
	g, err := s.getGroup(ctx, tx, groupId)
	if err != nil {
		return err
	}
	switch {
	case g.Status == models.GroupFull || (g.Status == models.GroupOpen && g.CurrentMembers >= g.TargetMembers):
		return fmt.Errorf("%w: group already full", store.ErrCapacityExceeded)
	case g.Status != models.GroupOpen:
		return fmt.Errorf("%w: group is %s", store.ErrInvalidState, g.Status)
	case !g.Deadline.After(now):
		return fmt.Errorf("%w: group deadline has passed", store.ErrInvalidState)
	}
	return fmt.Errorf("group %s join - %w", groupId, store.ErrConcurrentModification)
}

func (s *Service) classifyAttachFailure(ctx context.Context, tx *sql.Tx, parcelId, customerId string) error {
	p, err := s.getParcel(ctx, tx, parcelId)
	if err != nil {
		return err
	}
	switch {
	case p.CustomerId != customerId:
		return fmt.Errorf("%w: parcel %s does not belong to customer %s", store.ErrInvalidInput, parcelId, customerId)
	case p.GroupId != "":
		return fmt.Errorf("%w: parcel already belongs to group %s", store.ErrInvalidState, p.GroupId)
	}
	return fmt.Errorf("%w: parcel is %s", store.ErrInvalidState, p.Status)
}

// LeaveGroup detaches a member parcel, decrements the member count and, for a
// PARTIAL group, re-prorates the effective discount for the remaining members.
// A PARTIAL group left with no members becomes EXPIRED. The parcel stays
// BOOKED as a solo shipment and anything paid above its undiscounted price is
// marked for refund.
func (s *Service) LeaveGroup(ctx context.Context, params store.LeaveGroupParams) (*models.Group, *models.Parcel, error) {
	now := params.Now.UTC()
	var group *models.Group
	var parcel *models.Parcel

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, queryLeaveGroup, now, params.GroupId)
		if err != nil {
			return fmt.Errorf("failed to decrement members: %w", err)
		}
		n, err := checkAffected(result)
		if err != nil {
			return err
		}
		if n == 0 {
			g, err := s.getGroup(ctx, tx, params.GroupId)
			if err != nil {
				return err
			}
			if g.Status == models.GroupFull {
				return fmt.Errorf("%w: group is full, reopen it before leaving", store.ErrInvalidState)
			}
			return fmt.Errorf("%w: cannot leave a group that is %s", store.ErrInvalidState, g.Status)
		}

		result, err = tx.ExecContext(ctx, queryDetachParcel, now, params.ParcelId, params.GroupId, params.CustomerId)
		if err != nil {
			return fmt.Errorf("failed to detach parcel: %w", err)
		}
		if n, err = checkAffected(result); err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: parcel %s is not a member of group %s", store.ErrNotFound, params.ParcelId, params.GroupId)
		}

		group, err = s.getGroup(ctx, tx, params.GroupId)
		if err != nil {
			return err
		}
		if group.Status == models.GroupPartial && group.CurrentMembers == 0 {
			if _, err := tx.ExecContext(ctx, queryExpireEmptyGroup, now, group.Id); err != nil {
				return fmt.Errorf("failed to expire empty group: %w", err)
			}
			if group, err = s.getGroup(ctx, tx, params.GroupId); err != nil {
				return err
			}
		} else if group.Status == models.GroupPartial {
			effective := pricing.ProRatedDiscount(group.DiscountPercentage, group.CurrentMembers, group.TargetMembers)
			if _, err := tx.ExecContext(ctx, querySetEffectiveDiscount, effective.String(), now, group.Id); err != nil {
				return fmt.Errorf("failed to update effective discount: %w", err)
			}
			if _, err := tx.ExecContext(ctx, querySetGroupParcelsDiscount, effective.String(), now, group.Id); err != nil {
				return fmt.Errorf("failed to update member discounts: %w", err)
			}
			group.EffectiveDiscountPercentage = &effective
		}

		if parcel, err = s.getParcel(ctx, tx, params.ParcelId); err != nil {
			return err
		}
		if parcel.SoloOverpayment().IsPositive() {
			if _, err := tx.ExecContext(ctx, queryRequestParcelRefund, now, parcel.Id); err != nil {
				return fmt.Errorf("failed to request refund: %w", err)
			}
			parcel.RefundStatus = models.RefundRequested
			parcel.UpdatedAt = now
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	zap.L().Info("Parcel left group",
		zap.String("group_id", group.Id),
		zap.String("parcel_id", parcel.Id),
		zap.Int("current_members", group.CurrentMembers))
	return group, parcel, nil
}

// FinalizeGroup applies a finalization decision with compare-and-swap on the
// OPEN status and the member count the decision was based on.
func (s *Service) FinalizeGroup(ctx context.Context, params store.FinalizeGroupParams) (*store.FinalizeGroupResult, error) {
	now := params.Now.UTC()
	res := &store.FinalizeGroupResult{}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		dissolve := params.To == models.GroupCancelled || params.To == models.GroupExpired

		var effective sql.NullString
		if !dissolve {
			effective = nullString(params.EffectiveDiscount.String())
		}

		result, err := tx.ExecContext(ctx, queryFinalizeGroup,
			params.To, effective, now, now, params.GroupId, params.ExpectedMembers)
		if err != nil {
			return fmt.Errorf("failed to finalize group: %w", err)
		}
		n, err := checkAffected(result)
		if err != nil {
			return err
		}
		if n == 0 {
			g, err := s.getGroup(ctx, tx, params.GroupId)
			if err != nil {
				return err
			}
			if g.Status != models.GroupOpen {
				return fmt.Errorf("%w: group already %s", store.ErrInvalidState, g.Status)
			}
			return fmt.Errorf("group %s members changed to %d - %w", g.Id, g.CurrentMembers, store.ErrConcurrentModification)
		}

		if dissolve {
			members, err := s.listGroupParcels(ctx, tx, params.GroupId)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, queryDetachGroupParcels, now, params.GroupId); err != nil {
				return fmt.Errorf("failed to detach member parcels: %w", err)
			}
			for i := range members {
				members[i].GroupId = ""
				members[i].Status = models.ParcelCancelled
				members[i].DiscountPercentage = decimal.Zero
				if members[i].AmountPaid.IsPositive() {
					members[i].RefundStatus = models.RefundRequested
				}
			}
			res.Detached = members
		} else {
			if _, err := tx.ExecContext(ctx, querySetGroupParcelsDiscount, params.EffectiveDiscount.String(), now, params.GroupId); err != nil {
				return fmt.Errorf("failed to update member discounts: %w", err)
			}
		}

		res.Group, err = s.getGroup(ctx, tx, params.GroupId)
		return err
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Group finalized",
		zap.String("group_id", res.Group.Id),
		zap.String("status", string(res.Group.Status)),
		zap.Int("current_members", res.Group.CurrentMembers),
		zap.Int("target_members", res.Group.TargetMembers),
		zap.Int("detached_parcels", len(res.Detached)))
	return res, nil
}

func (s *Service) ReopenGroup(ctx context.Context, groupId string, now time.Time) (*models.Group, error) {
	var group *models.Group
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.casGroup(ctx, tx, groupId, queryReopenGroup, now.UTC(), groupId); err != nil {
			return err
		}
		var err error
		group, err = s.getGroup(ctx, tx, groupId)
		return err
	})
	if err != nil {
		return nil, err
	}
	return group, nil
}

// AssignGroupAgent sets the pickup or delivery agent. Delivery agents are
// also copied onto every live member parcel so their earnings credit them.
func (s *Service) AssignGroupAgent(ctx context.Context, params store.AssignAgentParams) (*models.Group, error) {
	now := params.Now.UTC()
	query := queryAssignPickupAgent
	if params.Phase == store.PhaseDelivery {
		query = queryAssignDeliveryAgent
	}

	var group *models.Group
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.casGroup(ctx, tx, params.GroupId, query, params.AgentId, params.To, now, params.GroupId, params.From); err != nil {
			return err
		}
		if params.Phase == store.PhaseDelivery {
			if _, err := tx.ExecContext(ctx, queryAssignGroupParcelsAgent, params.AgentId, now, params.GroupId); err != nil {
				return fmt.Errorf("failed to assign agent to parcels: %w", err)
			}
		}
		var err error
		group, err = s.getGroup(ctx, tx, params.GroupId)
		return err
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Agent assigned to group",
		zap.String("group_id", group.Id),
		zap.String("phase", string(params.Phase)),
		zap.String("agent_id", params.AgentId),
		zap.String("status", string(group.Status)))
	return group, nil
}

func (s *Service) CompleteGroupPickup(ctx context.Context, params store.CompletePickupParams) (*models.Group, error) {
	now := params.Now.UTC()
	var group *models.Group

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.casGroup(ctx, tx, params.GroupId, queryCompleteGroupPickup,
			now, params.ProofUrl, now, params.GroupId); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, queryMoveGroupParcelsToDepot, now, now, params.GroupId); err != nil {
			return fmt.Errorf("failed to move parcels to depot: %w", err)
		}
		var err error
		group, err = s.getGroup(ctx, tx, params.GroupId)
		return err
	})
	if err != nil {
		return nil, err
	}
	return group, nil
}

// CompleteGroupDelivery closes a group once every member parcel is delivered.
func (s *Service) CompleteGroupDelivery(ctx context.Context, groupId string, now time.Time) (*models.Group, error) {
	now = now.UTC()
	var group *models.Group

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var undelivered int
		if err := tx.QueryRowContext(ctx, queryCountUndeliveredMembers, groupId).Scan(&undelivered); err != nil {
			return fmt.Errorf("failed to count undelivered parcels: %w", err)
		}
		if undelivered > 0 {
			return fmt.Errorf("%w: %d member parcels not yet delivered", store.ErrInvalidState, undelivered)
		}
		if err := s.casGroup(ctx, tx, groupId, queryCompleteGroupDelivery, now, now, groupId); err != nil {
			return err
		}
		var err error
		group, err = s.getGroup(ctx, tx, groupId)
		return err
	})
	if err != nil {
		return nil, err
	}
	return group, nil
}

// MarkNotified records key once. It reports true only for the first caller.
func (s *Service) MarkNotified(ctx context.Context, key string, now time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx, queryInsertNotificationMark, key, now.UTC())
	if err != nil {
		return false, fmt.Errorf("unable to record notification mark: %w", err)
	}
	n, err := checkAffected(result)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// casGroup runs a status-guarded UPDATE and turns a miss into NotFound or
// InvalidState depending on whether the group exists.
func (s *Service) casGroup(ctx context.Context, tx *sql.Tx, groupId, query string, args ...any) error {
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}
	n, err := checkAffected(result)
	if err != nil {
		return err
	}
	if n == 0 {
		g, err := s.getGroup(ctx, tx, groupId)
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: group is %s", store.ErrInvalidState, g.Status)
	}
	return nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Service) getGroup(ctx context.Context, q querier, groupId string) (*models.Group, error) {
	g, err := scanGroup(q.QueryRowContext(ctx, queryGetGroupById, groupId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: group %s", store.ErrNotFound, groupId)
		}
		return nil, fmt.Errorf("unable to query group: %w", err)
	}
	return g, nil
}

func (s *Service) queryGroups(ctx context.Context, query string, args ...any) ([]models.Group, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("unable to query groups: %w", err)
	}
	defer closeRows(rows)

	var groups []models.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan group row: %w", err)
		}
		groups = append(groups, *g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating group rows: %w", err)
	}
	return groups, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
