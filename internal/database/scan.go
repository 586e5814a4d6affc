package database

import (
	"database/sql"

	"group-shipment-go/internal/models"

	"github.com/shopspring/decimal"
)

func scanGroup(row rowScanner) (*models.Group, error) {
	var g models.Group
	var effective decimal.NullDecimal
	var pickupAgent, deliveryAgent sql.NullString
	var finalizedAt, depotArrivedAt, completedAt sql.NullTime

	err := row.Scan(&g.Id, &g.Code, &g.CompanyId, &g.SourceCity, &g.SourcePincode, &g.TargetCity, &g.TargetPincode,
		&g.DepotAddress, &g.TargetMembers, &g.CurrentMembers, &g.DiscountPercentage, &effective, &g.Deadline,
		&g.Status, &pickupAgent, &deliveryAgent, &finalizedAt, &depotArrivedAt, &g.DepotProofUrl,
		&completedAt, &g.Version, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if effective.Valid {
		v := effective.Decimal
		g.EffectiveDiscountPercentage = &v
	}
	g.PickupAgentId = pickupAgent.String
	g.DeliveryAgentId = deliveryAgent.String
	g.FinalizedAt = timePtr(finalizedAt)
	g.DepotArrivedAt = timePtr(depotArrivedAt)
	g.CompletedAt = timePtr(completedAt)
	g.Deadline = g.Deadline.UTC()
	return &g, nil
}

func scanParcel(row rowScanner) (*models.Parcel, error) {
	var p models.Parcel
	var groupId, agentId sql.NullString
	var pickedUpAt, deliveredAt sql.NullTime

	err := row.Scan(&p.Id, &p.CustomerId, &p.CompanyId, &p.CustomerPhone, &p.OrderAmount, &p.AmountPaid,
		&p.DiscountPercentage, &groupId, &agentId, &p.Status, &p.RefundStatus, &pickedUpAt, &deliveredAt,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}

	p.GroupId = groupId.String
	p.AgentId = agentId.String
	p.PickedUpAt = timePtr(pickedUpAt)
	p.DeliveredAt = timePtr(deliveredAt)
	return &p, nil
}

func scanAgent(row rowScanner) (*models.Agent, error) {
	var a models.Agent
	if err := row.Scan(&a.Id, &a.Name, &a.Phone, &a.CompanyId, &a.Available, &a.CreatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func scanEarning(row rowScanner) (*models.Earning, error) {
	var e models.Earning
	var clearedAt, cancelledAt sql.NullTime

	err := row.Scan(&e.Id, &e.ParcelId, &e.GroupId, &e.CompanyId, &e.AgentId, &e.OrderAmount,
		&e.PlatformCommissionRate, &e.PlatformCommission, &e.CompanyEarning, &e.AgentCommissionRate,
		&e.AgentEarning, &e.CompanyNetEarning, &e.AgentBonus, &e.CustomerTip, &e.Status, &e.CancelReason,
		&clearedAt, &cancelledAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}

	e.ClearedAt = timePtr(clearedAt)
	e.CancelledAt = timePtr(cancelledAt)
	return &e, nil
}

func scanWallet(row rowScanner) (*models.Wallet, error) {
	var w models.Wallet
	err := row.Scan(&w.Id, &w.OwnerType, &w.OwnerId, &w.PendingBalance, &w.AvailableBalance, &w.LockedBalance,
		&w.TotalEarnings, &w.TotalWithdrawn, &w.Version, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(&t.Id, &t.WalletId, &t.OwnerType, &t.OwnerId, &t.TransactionType, &t.Bucket, &t.Amount,
		&t.BalanceBefore, &t.BalanceAfter, &t.ReferenceType, &t.ReferenceId, &t.Description, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func scanPayout(row rowScanner) (*models.Payout, error) {
	var p models.Payout
	var processedAt sql.NullTime

	err := row.Scan(&p.Id, &p.WalletId, &p.OwnerType, &p.OwnerId, &p.Amount, &p.Status, &p.SettlementRef,
		&p.RejectionReason, &p.RequestedAt, &processedAt, &p.Version, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}

	p.ProcessedAt = timePtr(processedAt)
	return &p, nil
}
