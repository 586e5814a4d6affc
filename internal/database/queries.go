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

package database

const (
	groupColumns = `
		id, code, company_id, source_city, source_pincode, target_city, target_pincode, depot_address,
		target_members, current_members, discount_percentage, effective_discount_percentage, deadline,
		status, pickup_agent_id, delivery_agent_id, finalized_at, depot_arrived_at, depot_proof_url,
		completed_at, version, created_at, updated_at`

	parcelColumns = `
		id, customer_id, company_id, customer_phone, order_amount, amount_paid, discount_percentage,
		group_id, agent_id, status, refund_status, picked_up_at, delivered_at, created_at, updated_at`

	agentColumns = `id, name, phone, company_id, available, created_at`

	earningColumns = `
		id, parcel_id, group_id, company_id, agent_id, order_amount, platform_commission_rate,
		platform_commission, company_earning, agent_commission_rate, agent_earning, company_net_earning,
		agent_bonus, customer_tip, status, cancel_reason, cleared_at, cancelled_at, created_at, updated_at`

	walletColumns = `
		id, owner_type, owner_id, pending_balance, available_balance, locked_balance,
		total_earnings, total_withdrawn, version, created_at, updated_at`

	transactionColumns = `
		id, wallet_id, owner_type, owner_id, transaction_type, bucket, amount, balance_before,
		balance_after, reference_type, reference_id, description, created_at`

	payoutColumns = `
		id, wallet_id, owner_type, owner_id, amount, status, settlement_ref, rejection_reason,
		requested_at, processed_at, version, updated_at`
)

const (
	// Group queries
	queryInsertGroup = `
		INSERT INTO shipment_groups (` + groupColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetGroupById = `
		SELECT ` + groupColumns + `
		FROM shipment_groups
		WHERE id = ?`

	queryGetGroupByCode = `
		SELECT ` + groupColumns + `
		FROM shipment_groups
		WHERE code = ?`

	queryListOpenGroupsByRoute = `
		SELECT ` + groupColumns + `
		FROM shipment_groups
		WHERE status = 'OPEN' AND deadline > ?
		  AND source_pincode = ? AND target_pincode = ?
		  AND (? = '' OR source_city = ?) AND (? = '' OR target_city = ?)
		ORDER BY deadline`

	queryListExpiredOpenGroups = `
		SELECT ` + groupColumns + `
		FROM shipment_groups
		WHERE status = 'OPEN' AND deadline <= ?
		ORDER BY deadline
		LIMIT ?`

	queryListGroupsClosingSoon = `
		SELECT ` + groupColumns + `
		FROM shipment_groups
		WHERE status = 'OPEN' AND deadline > ? AND deadline <= ?
		  AND target_members - current_members BETWEEN 1 AND ?
		ORDER BY deadline`

	// Increment iff the group is still OPEN, has a free slot and its deadline
	// has not passed. Filling the last slot moves it to FULL in the same statement.
	queryJoinGroup = `
		UPDATE shipment_groups
		SET current_members = current_members + 1,
		    status = CASE WHEN current_members + 1 >= target_members THEN 'FULL' ELSE status END,
		    effective_discount_percentage = CASE WHEN current_members + 1 >= target_members
		        THEN discount_percentage ELSE effective_discount_percentage END,
		    finalized_at = CASE WHEN current_members + 1 >= target_members THEN ? ELSE finalized_at END,
		    version = version + 1,
		    updated_at = ?
		WHERE id = ? AND status = 'OPEN' AND current_members < target_members AND deadline > ?`

	queryLeaveGroup = `
		UPDATE shipment_groups
		SET current_members = current_members - 1, version = version + 1, updated_at = ?
		WHERE id = ? AND status IN ('OPEN', 'PARTIAL') AND current_members > 0`

	// A PARTIAL group whose last member left has nothing to hand off.
	queryExpireEmptyGroup = `
		UPDATE shipment_groups
		SET status = 'EXPIRED', effective_discount_percentage = NULL, version = version + 1, updated_at = ?
		WHERE id = ? AND status = 'PARTIAL' AND current_members = 0`

	querySetEffectiveDiscount = `
		UPDATE shipment_groups
		SET effective_discount_percentage = ?, updated_at = ?
		WHERE id = ?`

	queryFinalizeGroup = `
		UPDATE shipment_groups
		SET status = ?, effective_discount_percentage = ?, finalized_at = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND status = 'OPEN' AND current_members = ?`

	queryReopenGroup = `
		UPDATE shipment_groups
		SET status = 'OPEN', effective_discount_percentage = NULL, finalized_at = NULL,
		    version = version + 1, updated_at = ?
		WHERE id = ? AND status = 'FULL'`

	queryAssignPickupAgent = `
		UPDATE shipment_groups
		SET pickup_agent_id = ?, status = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND status = ?`

	queryAssignDeliveryAgent = `
		UPDATE shipment_groups
		SET delivery_agent_id = ?, status = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND status = ?`

	queryCompleteGroupPickup = `
		UPDATE shipment_groups
		SET status = 'PICKUP_COMPLETE', depot_arrived_at = ?, depot_proof_url = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND status = 'PICKUP_IN_PROGRESS'`

	queryCompleteGroupDelivery = `
		UPDATE shipment_groups
		SET status = 'COMPLETED', completed_at = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND status = 'DELIVERY_IN_PROGRESS'`

	queryCountUndeliveredMembers = `
		SELECT COUNT(*)
		FROM parcels
		WHERE group_id = ? AND status != 'DELIVERED'`

	queryInsertNotificationMark = `
		INSERT OR IGNORE INTO notification_marks (mark_key, created_at) VALUES (?, ?)`

	// Parcel queries
	queryUpsertPaidParcel = `
		INSERT INTO parcels (` + parcelColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, NULL, NULL, ?, '', NULL, NULL, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		    amount_paid = excluded.amount_paid,
		    customer_phone = CASE WHEN excluded.customer_phone != '' THEN excluded.customer_phone ELSE parcels.customer_phone END,
		    updated_at = excluded.updated_at`

	queryGetParcelById = `
		SELECT ` + parcelColumns + `
		FROM parcels
		WHERE id = ?`

	queryListGroupParcels = `
		SELECT ` + parcelColumns + `
		FROM parcels
		WHERE group_id = ?
		ORDER BY created_at`

	queryAttachParcel = `
		UPDATE parcels
		SET group_id = ?, discount_percentage = ?, updated_at = ?
		WHERE id = ? AND customer_id = ? AND group_id IS NULL AND status = 'BOOKED'`

	// The parcel stays BOOKED and ships alone at the undiscounted price.
	queryDetachParcel = `
		UPDATE parcels
		SET group_id = NULL, discount_percentage = '0', updated_at = ?
		WHERE id = ? AND group_id = ? AND customer_id = ? AND status = 'BOOKED'`

	queryRequestParcelRefund = `
		UPDATE parcels
		SET refund_status = 'REQUESTED', updated_at = ?
		WHERE id = ?`

	queryDetachGroupParcels = `
		UPDATE parcels
		SET group_id = NULL, discount_percentage = '0', status = 'CANCELLED',
		    refund_status = CASE WHEN amount_paid != '0' THEN 'REQUESTED' ELSE refund_status END,
		    updated_at = ?
		WHERE group_id = ?`

	querySetGroupParcelsDiscount = `
		UPDATE parcels
		SET discount_percentage = ?, updated_at = ?
		WHERE group_id = ?`

	queryAssignGroupParcelsAgent = `
		UPDATE parcels
		SET agent_id = ?, updated_at = ?
		WHERE group_id = ? AND status != 'CANCELLED'`

	queryMoveGroupParcelsToDepot = `
		UPDATE parcels
		SET status = 'AT_DEPOT', picked_up_at = COALESCE(picked_up_at, ?), updated_at = ?
		WHERE group_id = ? AND status IN ('BOOKED', 'PICKED_UP')`

	queryUpdateParcelStatus = `
		UPDATE parcels
		SET status = ?, agent_id = COALESCE(?, agent_id),
		    picked_up_at = COALESCE(?, picked_up_at), delivered_at = COALESCE(?, delivered_at),
		    updated_at = ?
		WHERE id = ? AND status = ?`

	queryMarkRefundCompleted = `
		UPDATE parcels
		SET refund_status = 'COMPLETED', updated_at = ?
		WHERE id = ?`

	// Agent queries
	queryInsertAgent = `
		INSERT INTO agents (` + agentColumns + `) VALUES (?, ?, ?, ?, ?, ?)`

	queryGetAgentById = `
		SELECT ` + agentColumns + `
		FROM agents
		WHERE id = ?`

	queryListAgents = `
		SELECT ` + agentColumns + `
		FROM agents
		WHERE (? = '' OR company_id = ?)
		ORDER BY created_at`

	// Earning queries
	queryCheckEarningExists = `
		SELECT id FROM earnings WHERE parcel_id = ? LIMIT 1`

	queryInsertEarning = `
		INSERT INTO earnings (` + earningColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetEarningById = `
		SELECT ` + earningColumns + `
		FROM earnings
		WHERE id = ?`

	queryGetEarningByParcel = `
		SELECT ` + earningColumns + `
		FROM earnings
		WHERE parcel_id = ?`

	queryListEarnings = `
		SELECT ` + earningColumns + `
		FROM earnings
		WHERE (? = '' OR company_id = ?) AND (? = '' OR agent_id = ?) AND (? = '' OR status = ?)
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?`

	queryListClearableEarnings = `
		SELECT ` + earningColumns + `
		FROM earnings
		WHERE status = 'PENDING' AND created_at <= ?
		ORDER BY created_at
		LIMIT ?`

	queryUpdateEarningStatus = `
		UPDATE earnings
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`

	queryClearEarning = `
		UPDATE earnings
		SET status = 'CLEARED', cleared_at = ?, updated_at = ?
		WHERE id = ? AND status = 'PENDING'`

	queryCancelEarning = `
		UPDATE earnings
		SET status = 'CANCELLED', cancel_reason = ?, cancelled_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`

	queryPlatformRevenue = `
		SELECT order_amount, platform_commission
		FROM earnings
		WHERE status != 'CANCELLED' AND created_at >= ? AND created_at < ?`

	// Wallet queries
	queryGetWalletByOwner = `
		SELECT ` + walletColumns + `
		FROM wallets
		WHERE owner_type = ? AND owner_id = ?`

	queryGetWalletById = `
		SELECT ` + walletColumns + `
		FROM wallets
		WHERE id = ?`

	queryListWallets = `
		SELECT ` + walletColumns + `
		FROM wallets
		ORDER BY owner_type, owner_id`

	queryInsertWallet = `
		INSERT INTO wallets (` + walletColumns + `)
		VALUES (?, ?, ?, '0', '0', '0', '0', '0', 1, ?, ?)`

	queryUpdateWallet = `
		UPDATE wallets
		SET pending_balance = ?, available_balance = ?, locked_balance = ?,
		    total_earnings = ?, total_withdrawn = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`

	queryInsertTransaction = `
		INSERT INTO wallet_transactions (` + transactionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryInsertJournalEntry = `
		INSERT INTO journal_entries (id, transaction_id, account_type, account_id, debit_amount, credit_amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	queryGetTransactionHistory = `
		SELECT ` + transactionColumns + `
		FROM wallet_transactions
		WHERE wallet_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?`

	queryReconcileWallet = `
		SELECT bucket, amount
		FROM wallet_transactions
		WHERE wallet_id = ?`

	// Payout queries
	queryInsertPayout = `
		INSERT INTO payouts (` + payoutColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, '', '', ?, NULL, 1, ?)`

	queryGetPayoutById = `
		SELECT ` + payoutColumns + `
		FROM payouts
		WHERE id = ?`

	queryListPayouts = `
		SELECT ` + payoutColumns + `
		FROM payouts
		WHERE (? = '' OR owner_type = ?) AND (? = '' OR owner_id = ?) AND (? = '' OR status = ?)
		ORDER BY requested_at DESC
		LIMIT ? OFFSET ?`

	queryTransitionPayout = `
		UPDATE payouts
		SET status = ?, settlement_ref = ?, rejection_reason = ?, processed_at = ?,
		    version = version + 1, updated_at = ?
		WHERE id = ? AND status = ?`
)
