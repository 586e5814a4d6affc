// Package groups implements the group registry: creating groups, joining and
// leaving them, and the finalization routine shared by early close and the
// deadline sweep.
package groups

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"group-shipment-go/internal/models"
	"group-shipment-go/internal/notify"
	"group-shipment-go/internal/pricing"
	"group-shipment-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const codeAttempts = 5

// Store is the persistence the registry needs.
type Store interface {
	store.GroupStore
	store.ParcelStore
}

// Refunder asks the payment collaborator to return money to a customer.
type Refunder interface {
	RequestRefund(ctx context.Context, parcelId string, amount decimal.Decimal, reason string) error
}

// CreateParams describes a group a company wants to open.
type CreateParams struct {
	CompanyId          string          `json:"company_id"`
	Route              models.Route    `json:"route"`
	DepotAddress       string          `json:"depot_address"`
	TargetMembers      int             `json:"target_members"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	DeadlineOffset     time.Duration   `json:"deadline_offset"`
}

type Registry struct {
	store    Store
	refunder Refunder
	notifier notify.Notifier
	policy   models.Policy
	now      func() time.Time
}

func NewRegistry(s Store, refunder Refunder, notifier notify.Notifier, policy models.Policy) *Registry {
	return &Registry{
		store:    s,
		refunder: refunder,
		notifier: notifier,
		policy:   policy,
		now:      time.Now,
	}
}

func (r *Registry) Policy() models.Policy {
	return r.policy
}

func (r *Registry) validateCreate(p CreateParams) error {
	switch {
	case p.CompanyId == "":
		return fmt.Errorf("%w: company id is required", store.ErrInvalidInput)
	case p.Route.SourcePincode == "" || p.Route.TargetPincode == "":
		return fmt.Errorf("%w: source and target pincode are required", store.ErrInvalidInput)
	case p.DepotAddress == "":
		return fmt.Errorf("%w: depot address is required", store.ErrInvalidInput)
	case p.TargetMembers < r.policy.MinMembers || p.TargetMembers > r.policy.MaxMembers:
		return fmt.Errorf("%w: target members must be between %d and %d",
			store.ErrInvalidInput, r.policy.MinMembers, r.policy.MaxMembers)
	case p.DiscountPercentage.LessThan(r.policy.MinDiscount) || p.DiscountPercentage.GreaterThan(r.policy.MaxDiscount):
		return fmt.Errorf("%w: discount must be between %s%% and %s%%",
			store.ErrInvalidInput, r.policy.MinDiscount, r.policy.MaxDiscount)
	case p.DeadlineOffset < r.policy.MinDeadlineOffset || p.DeadlineOffset > r.policy.MaxDeadlineOffset:
		return fmt.Errorf("%w: deadline must be between %s and %s from now",
			store.ErrInvalidInput, r.policy.MinDeadlineOffset, r.policy.MaxDeadlineOffset)
	}
	return nil
}

// Create opens a new group under a fresh short code.
func (r *Registry) Create(ctx context.Context, p CreateParams) (*models.Group, error) {
	if err := r.validateCreate(p); err != nil {
		return nil, err
	}

	now := r.now().UTC()
	group := &models.Group{
		Id:                 uuid.New().String(),
		CompanyId:          p.CompanyId,
		SourceCity:         p.Route.SourceCity,
		SourcePincode:      p.Route.SourcePincode,
		TargetCity:         p.Route.TargetCity,
		TargetPincode:      p.Route.TargetPincode,
		DepotAddress:       p.DepotAddress,
		TargetMembers:      p.TargetMembers,
		DiscountPercentage: pricing.RoundMoney(p.DiscountPercentage),
		Deadline:           now.Add(p.DeadlineOffset),
		Status:             models.GroupOpen,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	var err error
	for attempt := 0; attempt < codeAttempts; attempt++ {
		group.Code = newCode()
		err = r.store.CreateGroup(ctx, group)
		if !errors.Is(err, store.ErrDuplicateOperation) {
			break
		}
		zap.L().Warn("Group code collision, retrying", zap.String("code", group.Code))
	}
	if err != nil {
		return nil, err
	}

	zap.L().Info("Group created",
		zap.String("group_id", group.Id),
		zap.String("code", group.Code),
		zap.Time("deadline", group.Deadline))
	return group, nil
}

// newCode returns a short code such as "GS-3F9A1C07".
func newCode() string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "GS-" + strings.ToUpper(id[:8])
}

func (r *Registry) Get(ctx context.Context, groupId string) (*models.Group, error) {
	return r.store.GetGroup(ctx, groupId)
}

func (r *Registry) GetByCode(ctx context.Context, code string) (*models.Group, error) {
	return r.store.GetGroupByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
}

// ListOpen returns the joinable groups on a route.
func (r *Registry) ListOpen(ctx context.Context, route models.Route) ([]models.Group, error) {
	return r.store.ListOpenGroupsByRoute(ctx, route, r.now().UTC())
}

func (r *Registry) Members(ctx context.Context, groupId string) ([]models.Parcel, error) {
	if _, err := r.store.GetGroup(ctx, groupId); err != nil {
		return nil, err
	}
	return r.store.ListGroupParcels(ctx, groupId)
}

// Join attaches a parcel to a group. The capacity check and the increment
// happen in one guarded update, and the group turns FULL on the last slot.
func (r *Registry) Join(ctx context.Context, groupId, parcelId, customerId string) (*models.Group, error) {
	if groupId == "" || parcelId == "" || customerId == "" {
		return nil, fmt.Errorf("%w: group, parcel and customer are required", store.ErrInvalidInput)
	}

	group, err := r.store.JoinGroup(ctx, store.JoinGroupParams{
		GroupId:    groupId,
		ParcelId:   parcelId,
		CustomerId: customerId,
		Now:        r.now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	if group.Status == models.GroupFull {
		r.notifyMembers(ctx, group, notify.EventGroupFull,
			fmt.Sprintf("Group %s is full. Your %s%% discount is locked in.", group.Code, group.DiscountPercentage))
	}
	return group, nil
}

// Leave detaches a parcel from an OPEN or PARTIAL group. The parcel ships
// alone at its undiscounted price; any amount paid above that is refunded.
func (r *Registry) Leave(ctx context.Context, groupId, parcelId, customerId string) (*models.Group, error) {
	current, err := r.store.GetGroup(ctx, groupId)
	if err != nil {
		return nil, err
	}
	if _, ok := current.Status.Next(models.GroupEventMemberLeft); !ok {
		if current.Status == models.GroupFull {
			return nil, fmt.Errorf("%w: group is full, reopen it before leaving", store.ErrInvalidState)
		}
		return nil, fmt.Errorf("%w: cannot leave a group that is %s", store.ErrInvalidState, current.Status)
	}

	group, parcel, err := r.store.LeaveGroup(ctx, store.LeaveGroupParams{
		GroupId:    groupId,
		ParcelId:   parcelId,
		CustomerId: customerId,
		Now:        r.now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	r.refund(ctx, parcel, parcel.SoloOverpayment(), "customer left group "+group.Code)
	if group.Status == models.GroupExpired {
		zap.L().Info("Last member left partial group, group expired", zap.String("group_id", group.Id))
	}
	notify.Send(ctx, r.notifier, notify.Event{
		Type:       notify.EventMemberLeft,
		GroupId:    group.Id,
		ParcelId:   parcel.Id,
		CustomerId: parcel.CustomerId,
		Phone:      parcel.CustomerPhone,
		Message:    fmt.Sprintf("You left group %s. Your parcel %s will ship on its own.", group.Code, parcel.Id),
	})
	return group, nil
}

// Reopen returns a FULL group to OPEN so members can leave again.
func (r *Registry) Reopen(ctx context.Context, groupId string) (*models.Group, error) {
	current, err := r.store.GetGroup(ctx, groupId)
	if err != nil {
		return nil, err
	}
	if _, ok := current.Status.Next(models.GroupEventReopen); !ok {
		return nil, fmt.Errorf("%w: only a full group can be reopened, group is %s", store.ErrInvalidState, current.Status)
	}

	group, err := r.store.ReopenGroup(ctx, groupId, r.now().UTC())
	if err != nil {
		return nil, err
	}

	zap.L().Info("Group reopened", zap.String("group_id", group.Id))
	r.notifyMembers(ctx, group, notify.EventGroupReopened,
		fmt.Sprintf("Group %s has been reopened by the company.", group.Code))
	return group, nil
}

// CloseEarly finalizes an OPEN group before its deadline. The group must be
// at least EarlyCloseThreshold full and always proceeds to handoff.
func (r *Registry) CloseEarly(ctx context.Context, groupId string) (*models.Group, error) {
	group, err := r.store.GetGroup(ctx, groupId)
	if err != nil {
		return nil, err
	}
	if group.Status != models.GroupOpen {
		return nil, fmt.Errorf("%w: cannot close a group that is %s", store.ErrInvalidState, group.Status)
	}
	if group.CurrentMembers == 0 || !pricing.MeetsThreshold(group.CurrentMembers, group.TargetMembers, r.policy.EarlyCloseThreshold) {
		return nil, fmt.Errorf("%w: group has %d of %d members, needs %s%% to close early",
			store.ErrInvalidState, group.CurrentMembers, group.TargetMembers,
			r.policy.EarlyCloseThreshold.Shift(2).String())
	}
	return r.Finalize(ctx, group, true)
}

// Decide returns the finalization event for a group evaluated at its current
// fill, and the effective discount that goes with it.
func Decide(g *models.Group, partialThreshold decimal.Decimal, earlyClose bool) (models.GroupEvent, decimal.Decimal) {
	switch {
	case g.CurrentMembers <= 0:
		return models.GroupEventExpire, decimal.Zero
	case g.CurrentMembers >= g.TargetMembers:
		return models.GroupEventFinalizeFull, g.DiscountPercentage
	case earlyClose || pricing.MeetsThreshold(g.CurrentMembers, g.TargetMembers, partialThreshold):
		return models.GroupEventFinalizePartial,
			pricing.ProRatedDiscount(g.DiscountPercentage, g.CurrentMembers, g.TargetMembers)
	default:
		return models.GroupEventCancel, decimal.Zero
	}
}

// Finalize moves an OPEN group to FULL, PARTIAL, CANCELLED or EXPIRED based
// on its fill. The store applies it only if the group is still OPEN with the
// member count read here, so concurrent sweeps finalize a group once.
func (r *Registry) Finalize(ctx context.Context, g *models.Group, earlyClose bool) (*models.Group, error) {
	event, discount := Decide(g, r.policy.PartialThreshold, earlyClose)
	to, ok := g.Status.Next(event)
	if !ok {
		return nil, fmt.Errorf("%w: cannot %s a group that is %s", store.ErrInvalidState, event, g.Status)
	}

	res, err := r.store.FinalizeGroup(ctx, store.FinalizeGroupParams{
		GroupId:           g.Id,
		To:                to,
		ExpectedMembers:   g.CurrentMembers,
		EffectiveDiscount: discount,
		Now:               r.now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	group := res.Group

	switch group.Status {
	case models.GroupFull:
		r.notifyMembers(ctx, group, notify.EventGroupFull,
			fmt.Sprintf("Group %s closed full. Your %s%% discount applies.", group.Code, group.DiscountPercentage))
	case models.GroupPartial:
		r.notifyMembers(ctx, group, notify.EventGroupPartial,
			fmt.Sprintf("Group %s closed with %d of %d members. Your discount is %s%%.",
				group.Code, group.CurrentMembers, group.TargetMembers, discount.StringFixed(pricing.MoneyPlaces)))
	case models.GroupCancelled:
		for i := range res.Detached {
			p := &res.Detached[i]
			r.refund(ctx, p, p.AmountPaid, "group "+group.Code+" cancelled")
			notify.Send(ctx, r.notifier, notify.Event{
				Type:       notify.EventGroupCancelled,
				GroupId:    group.Id,
				ParcelId:   p.Id,
				CustomerId: p.CustomerId,
				Phone:      p.CustomerPhone,
				Message:    fmt.Sprintf("Group %s did not fill in time and was cancelled. You will be refunded.", group.Code),
			})
		}
	case models.GroupExpired:
		notify.Send(ctx, r.notifier, notify.Event{
			Type:    notify.EventGroupExpired,
			GroupId: group.Id,
			Message: fmt.Sprintf("Group %s expired without members.", group.Code),
		})
	}
	return group, nil
}

func (r *Registry) refund(ctx context.Context, p *models.Parcel, amount decimal.Decimal, reason string) {
	if p.RefundStatus != models.RefundRequested || !amount.IsPositive() {
		return
	}
	if err := r.refunder.RequestRefund(ctx, p.Id, amount, reason); err != nil {
		// refund status stays REQUESTED
		zap.L().Error("Refund request failed",
			zap.String("parcel_id", p.Id),
			zap.String("amount", amount.String()),
			zap.Error(err))
		return
	}
	notify.Send(ctx, r.notifier, notify.Event{
		Type:       notify.EventRefundRequested,
		GroupId:    p.GroupId,
		ParcelId:   p.Id,
		CustomerId: p.CustomerId,
		Message:    fmt.Sprintf("Refund of %s requested: %s", amount.StringFixed(pricing.MoneyPlaces), reason),
	})
}

// notifyMembers sends one event per member parcel, or a single group event
// when the member list cannot be read.
func (r *Registry) notifyMembers(ctx context.Context, g *models.Group, eventType notify.EventType, message string) {
	members, err := r.store.ListGroupParcels(ctx, g.Id)
	if err != nil || len(members) == 0 {
		notify.Send(ctx, r.notifier, notify.Event{Type: eventType, GroupId: g.Id, Message: message})
		return
	}
	for _, p := range members {
		notify.Send(ctx, r.notifier, notify.Event{
			Type:       eventType,
			GroupId:    g.Id,
			ParcelId:   p.Id,
			CustomerId: p.CustomerId,
			Phone:      p.CustomerPhone,
			Message:    message,
		})
	}
}
