// Package handoff coordinates the two-agent model: a pickup agent brings
// member parcels to the depot and a delivery agent takes them to recipients.
// Each confirmed delivery posts that parcel's earning.
package handoff

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"group-shipment-go/internal/earnings"
	"group-shipment-go/internal/models"
	"group-shipment-go/internal/notify"
	"group-shipment-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Store is the persistence the coordinator needs.
type Store interface {
	store.GroupStore
	store.ParcelStore
}

// EarningRecorder posts the earning of a delivered parcel, once per parcel.
type EarningRecorder interface {
	Record(ctx context.Context, p earnings.RecordParams) (*models.Earning, error)
}

// DeliveryParams confirms one parcel as delivered. AgentId is required for
// solo parcels that have no agent yet and must match the group's delivery
// agent for member parcels.
type DeliveryParams struct {
	ParcelId string
	AgentId  string
	Tip      decimal.Decimal
	Bonus    decimal.Decimal
}

type Coordinator struct {
	store    Store
	ledger   EarningRecorder
	notifier notify.Notifier
	now      func() time.Time
}

func NewCoordinator(s Store, ledger EarningRecorder, notifier notify.Notifier) *Coordinator {
	return &Coordinator{
		store:    s,
		ledger:   ledger,
		notifier: notifier,
		now:      time.Now,
	}
}

// RegisterAgent adds an agent to the directory.
func (c *Coordinator) RegisterAgent(ctx context.Context, agent *models.Agent) (*models.Agent, error) {
	agent.Name = strings.TrimSpace(agent.Name)
	if agent.Name == "" || agent.CompanyId == "" {
		return nil, fmt.Errorf("%w: agent name and company are required", store.ErrInvalidInput)
	}
	if agent.Id == "" {
		agent.Id = uuid.New().String()
	}
	agent.CreatedAt = c.now().UTC()
	if err := c.store.CreateAgent(ctx, agent); err != nil {
		return nil, err
	}
	return agent, nil
}

func (c *Coordinator) ListAgents(ctx context.Context, companyId string) ([]models.Agent, error) {
	return c.store.ListAgents(ctx, companyId)
}

// AssignPickupAgent sets or swaps the pickup agent of a FULL or PARTIAL
// group, or of one whose pickup is already in progress.
func (c *Coordinator) AssignPickupAgent(ctx context.Context, groupId, agentId string) (*models.Group, error) {
	return c.assign(ctx, groupId, agentId, store.PhasePickup, models.GroupEventAssignPickup, notify.EventPickupAssigned)
}

// AssignDeliveryAgent sets or swaps the delivery agent once the parcels are
// at the depot.
func (c *Coordinator) AssignDeliveryAgent(ctx context.Context, groupId, agentId string) (*models.Group, error) {
	return c.assign(ctx, groupId, agentId, store.PhaseDelivery, models.GroupEventAssignDelivery, notify.EventDeliveryAssigned)
}

func (c *Coordinator) assign(ctx context.Context, groupId, agentId string, phase store.AgentPhase,
	event models.GroupEvent, eventType notify.EventType) (*models.Group, error) {
	group, err := c.store.GetGroup(ctx, groupId)
	if err != nil {
		return nil, err
	}
	next, ok := group.Status.Next(event)
	if !ok {
		return nil, fmt.Errorf("%w: cannot assign a %s agent to a group that is %s", store.ErrInvalidState, phase, group.Status)
	}

	agent, err := c.availableAgent(ctx, agentId, group.CompanyId)
	if err != nil {
		return nil, err
	}

	updated, err := c.store.AssignGroupAgent(ctx, store.AssignAgentParams{
		GroupId: groupId,
		Phase:   phase,
		AgentId: agent.Id,
		From:    group.Status,
		To:      next,
		Now:     c.now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	notify.Send(ctx, c.notifier, notify.Event{
		Type:    eventType,
		GroupId: updated.Id,
		AgentId: agent.Id,
		Phone:   agent.Phone,
		Message: fmt.Sprintf("You are the %s agent for group %s (%d parcels, depot %s).",
			phase, updated.Code, updated.CurrentMembers, updated.DepotAddress),
	})
	return updated, nil
}

func (c *Coordinator) availableAgent(ctx context.Context, agentId, companyId string) (*models.Agent, error) {
	if agentId == "" {
		return nil, fmt.Errorf("%w: agent id is required", store.ErrInvalidInput)
	}
	agent, err := c.store.GetAgent(ctx, agentId)
	if err != nil {
		return nil, err
	}
	if agent.CompanyId != companyId {
		return nil, fmt.Errorf("%w: agent %s does not work for company %s", store.ErrInvalidInput, agentId, companyId)
	}
	if !agent.Available {
		return nil, fmt.Errorf("%w: agent %s is not available", store.ErrInvalidState, agentId)
	}
	return agent, nil
}

// MarkParcelPickedUp records that the pickup agent collected one parcel.
func (c *Coordinator) MarkParcelPickedUp(ctx context.Context, parcelId string) (*models.Parcel, error) {
	parcel, err := c.store.GetParcel(ctx, parcelId)
	if err != nil {
		return nil, err
	}
	if parcel.GroupId != "" {
		group, err := c.store.GetGroup(ctx, parcel.GroupId)
		if err != nil {
			return nil, err
		}
		if group.Status != models.GroupPickupInProgress {
			return nil, fmt.Errorf("%w: group pickup is not in progress, group is %s", store.ErrInvalidState, group.Status)
		}
	}

	return c.store.UpdateParcelStatus(ctx, store.ParcelStatusParams{
		ParcelId: parcelId,
		From:     parcel.Status,
		To:       models.ParcelPickedUp,
		Now:      c.now().UTC(),
	})
}

// CompletePickup records depot arrival with its proof photo and moves every
// member parcel to AT_DEPOT.
func (c *Coordinator) CompletePickup(ctx context.Context, groupId, proofUrl string) (*models.Group, error) {
	if strings.TrimSpace(proofUrl) == "" {
		return nil, fmt.Errorf("%w: depot proof is required", store.ErrInvalidInput)
	}
	group, err := c.store.GetGroup(ctx, groupId)
	if err != nil {
		return nil, err
	}
	if _, ok := group.Status.Next(models.GroupEventCompletePickup); !ok {
		return nil, fmt.Errorf("%w: pickup is not in progress, group is %s", store.ErrInvalidState, group.Status)
	}

	updated, err := c.store.CompleteGroupPickup(ctx, store.CompletePickupParams{
		GroupId:  groupId,
		ProofUrl: proofUrl,
		Now:      c.now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Group pickup completed",
		zap.String("group_id", updated.Id),
		zap.String("pickup_agent_id", updated.PickupAgentId))
	notify.Send(ctx, c.notifier, notify.Event{
		Type:    notify.EventPickupCompleted,
		GroupId: updated.Id,
		AgentId: updated.PickupAgentId,
		Message: fmt.Sprintf("Group %s parcels reached the depot.", updated.Code),
	})
	return updated, nil
}

// ConfirmParcelDelivery marks a parcel delivered and posts its earning.
// Confirming an already delivered parcel re-runs the posting, which returns
// the existing earning.
func (c *Coordinator) ConfirmParcelDelivery(ctx context.Context, p DeliveryParams) (*models.Earning, error) {
	parcel, err := c.store.GetParcel(ctx, p.ParcelId)
	if err != nil {
		return nil, err
	}

	if parcel.Status != models.ParcelDelivered {
		agentId := p.AgentId
		if parcel.GroupId != "" {
			group, err := c.store.GetGroup(ctx, parcel.GroupId)
			if err != nil {
				return nil, err
			}
			if group.Status != models.GroupDeliveryInProgress {
				return nil, fmt.Errorf("%w: group delivery is not in progress, group is %s", store.ErrInvalidState, group.Status)
			}
			if agentId != "" && agentId != group.DeliveryAgentId {
				return nil, fmt.Errorf("%w: agent %s is not the delivery agent of group %s", store.ErrInvalidInput, agentId, group.Code)
			}
			agentId = group.DeliveryAgentId
		} else if agentId != "" {
			if _, err := c.availableAgent(ctx, agentId, parcel.CompanyId); err != nil {
				return nil, err
			}
		}

		updated, err := c.store.UpdateParcelStatus(ctx, store.ParcelStatusParams{
			ParcelId: parcel.Id,
			From:     parcel.Status,
			To:       models.ParcelDelivered,
			AgentId:  agentId,
			Now:      c.now().UTC(),
		})
		if errors.Is(err, store.ErrInvalidState) {
			// A concurrent confirmation may have delivered it first.
			current, getErr := c.store.GetParcel(ctx, parcel.Id)
			if getErr != nil || current.Status != models.ParcelDelivered {
				return nil, err
			}
			return c.postEarning(ctx, current, p)
		}
		if err != nil {
			return nil, err
		}
		parcel = updated

		notify.Send(ctx, c.notifier, notify.Event{
			Type:       notify.EventParcelDelivered,
			GroupId:    parcel.GroupId,
			ParcelId:   parcel.Id,
			CustomerId: parcel.CustomerId,
			AgentId:    agentId,
			Phone:      parcel.CustomerPhone,
			Message:    fmt.Sprintf("Your parcel %s has been delivered.", parcel.Id),
		})
	}

	return c.postEarning(ctx, parcel, p)
}

func (c *Coordinator) postEarning(ctx context.Context, parcel *models.Parcel, p DeliveryParams) (*models.Earning, error) {
	earning, err := c.ledger.Record(ctx, earnings.RecordParams{
		Parcel: parcel,
		Tip:    p.Tip,
		Bonus:  p.Bonus,
	})
	if err != nil {
		zap.L().Error("Failed to post earning for delivered parcel",
			zap.String("parcel_id", parcel.Id),
			zap.Error(err))
		return nil, fmt.Errorf("parcel %s delivered but earning not posted: %w", parcel.Id, err)
	}
	return earning, nil
}

// CompleteDelivery closes a group once every member parcel is delivered.
func (c *Coordinator) CompleteDelivery(ctx context.Context, groupId string) (*models.Group, error) {
	group, err := c.store.GetGroup(ctx, groupId)
	if err != nil {
		return nil, err
	}
	if _, ok := group.Status.Next(models.GroupEventCompleteDelivery); !ok {
		return nil, fmt.Errorf("%w: delivery is not in progress, group is %s", store.ErrInvalidState, group.Status)
	}

	updated, err := c.store.CompleteGroupDelivery(ctx, groupId, c.now().UTC())
	if err != nil {
		return nil, err
	}

	zap.L().Info("Group delivery completed", zap.String("group_id", updated.Id))
	notify.Send(ctx, c.notifier, notify.Event{
		Type:    notify.EventGroupCompleted,
		GroupId: updated.Id,
		AgentId: updated.DeliveryAgentId,
		Message: fmt.Sprintf("Group %s has been fully delivered.", updated.Code),
	})
	return updated, nil
}
