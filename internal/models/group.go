/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type GroupStatus string

const (
	GroupOpen               GroupStatus = "OPEN"
	GroupFull               GroupStatus = "FULL"
	GroupPartial            GroupStatus = "PARTIAL"
	GroupPickupInProgress   GroupStatus = "PICKUP_IN_PROGRESS"
	GroupPickupComplete     GroupStatus = "PICKUP_COMPLETE"
	GroupDeliveryInProgress GroupStatus = "DELIVERY_IN_PROGRESS"
	GroupCompleted          GroupStatus = "COMPLETED"
	GroupCancelled          GroupStatus = "CANCELLED"
	GroupExpired            GroupStatus = "EXPIRED"
)

type GroupEvent string

const (
	GroupEventFilled           GroupEvent = "filled"
	GroupEventFinalizePartial  GroupEvent = "finalize_partial"
	GroupEventFinalizeFull     GroupEvent = "finalize_full"
	GroupEventCancel           GroupEvent = "cancel"
	GroupEventExpire           GroupEvent = "expire"
	GroupEventReopen           GroupEvent = "reopen"
	GroupEventMemberLeft       GroupEvent = "member_left"
	GroupEventAssignPickup     GroupEvent = "assign_pickup"
	GroupEventCompletePickup   GroupEvent = "complete_pickup"
	GroupEventAssignDelivery   GroupEvent = "assign_delivery"
	GroupEventCompleteDelivery GroupEvent = "complete_delivery"
)

// groupTransitions is the single source of truth for group status changes.
// A missing (state, event) pair means the event is rejected in that state.
var groupTransitions = map[GroupStatus]map[GroupEvent]GroupStatus{
	GroupOpen: {
		GroupEventFilled:          GroupFull,
		GroupEventFinalizeFull:    GroupFull,
		GroupEventFinalizePartial: GroupPartial,
		GroupEventCancel:          GroupCancelled,
		GroupEventExpire:          GroupExpired,
		GroupEventMemberLeft:      GroupOpen,
	},
	GroupFull: {
		GroupEventReopen:       GroupOpen,
		GroupEventAssignPickup: GroupPickupInProgress,
	},
	GroupPartial: {
		GroupEventMemberLeft:   GroupPartial,
		GroupEventExpire:       GroupExpired,
		GroupEventAssignPickup: GroupPickupInProgress,
	},
	GroupPickupInProgress: {
		// reassignment keeps the phase
		GroupEventAssignPickup:   GroupPickupInProgress,
		GroupEventCompletePickup: GroupPickupComplete,
	},
	GroupPickupComplete: {
		GroupEventAssignDelivery: GroupDeliveryInProgress,
	},
	GroupDeliveryInProgress: {
		GroupEventAssignDelivery:   GroupDeliveryInProgress,
		GroupEventCompleteDelivery: GroupCompleted,
	},
}

// Next returns the status reached by applying event, or false if the
// transition is not allowed.
func (s GroupStatus) Next(event GroupEvent) (GroupStatus, bool) {
	next, ok := groupTransitions[s][event]
	return next, ok
}

func (s GroupStatus) IsTerminal() bool {
	return s == GroupCompleted || s == GroupCancelled || s == GroupExpired
}

// Group is a pooled set of parcels sharing one route and one discount deadline.
type Group struct {
	Id                          string           `db:"id" json:"id"`
	Code                        string           `db:"code" json:"code"`
	CompanyId                   string           `db:"company_id" json:"company_id"`
	SourceCity                  string           `db:"source_city" json:"source_city"`
	SourcePincode               string           `db:"source_pincode" json:"source_pincode"`
	TargetCity                  string           `db:"target_city" json:"target_city"`
	TargetPincode               string           `db:"target_pincode" json:"target_pincode"`
	DepotAddress                string           `db:"depot_address" json:"depot_address"`
	TargetMembers               int              `db:"target_members" json:"target_members"`
	CurrentMembers              int              `db:"current_members" json:"current_members"`
	DiscountPercentage          decimal.Decimal  `db:"discount_percentage" json:"discount_percentage"`
	EffectiveDiscountPercentage *decimal.Decimal `db:"effective_discount_percentage" json:"effective_discount_percentage,omitempty"`
	Deadline                    time.Time        `db:"deadline" json:"deadline"`
	Status                      GroupStatus      `db:"status" json:"status"`
	PickupAgentId               string           `db:"pickup_agent_id" json:"pickup_agent_id,omitempty"`
	DeliveryAgentId             string           `db:"delivery_agent_id" json:"delivery_agent_id,omitempty"`
	FinalizedAt                 *time.Time       `db:"finalized_at" json:"finalized_at,omitempty"`
	DepotArrivedAt              *time.Time       `db:"depot_arrived_at" json:"depot_arrived_at,omitempty"`
	DepotProofUrl               string           `db:"depot_proof_url" json:"depot_proof_url,omitempty"`
	CompletedAt                 *time.Time       `db:"completed_at" json:"completed_at,omitempty"`
	Version                     int64            `db:"version" json:"version"`
	CreatedAt                   time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt                   time.Time        `db:"updated_at" json:"updated_at"`
}

// SlotsLeft is the number of members still needed to fill the group.
func (g *Group) SlotsLeft() int {
	return g.TargetMembers - g.CurrentMembers
}

// Route identifies a source/target pair for group listings.
type Route struct {
	SourceCity    string `json:"source_city"`
	SourcePincode string `json:"source_pincode"`
	TargetCity    string `json:"target_city"`
	TargetPincode string `json:"target_pincode"`
}
