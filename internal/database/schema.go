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

import (
	"context"
)

// Money columns are TEXT holding decimal strings; they are never summed in SQL.
const schema = `
	-- Agent directory (read-only for the consolidation core)
	CREATE TABLE IF NOT EXISTS agents (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		phone TEXT NOT NULL DEFAULT '',
		company_id TEXT NOT NULL,
		available BOOLEAN NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_agents_company ON agents(company_id);

	-- Groups (consolidation units)
	CREATE TABLE IF NOT EXISTS shipment_groups (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		company_id TEXT NOT NULL,
		source_city TEXT NOT NULL,
		source_pincode TEXT NOT NULL,
		target_city TEXT NOT NULL,
		target_pincode TEXT NOT NULL,
		depot_address TEXT NOT NULL,
		target_members INTEGER NOT NULL CHECK (target_members > 0),
		current_members INTEGER NOT NULL DEFAULT 0,
		discount_percentage TEXT NOT NULL,
		effective_discount_percentage TEXT,
		deadline TIMESTAMP NOT NULL,
		status TEXT NOT NULL,
		pickup_agent_id TEXT REFERENCES agents(id),
		delivery_agent_id TEXT REFERENCES agents(id),
		finalized_at TIMESTAMP,
		depot_arrived_at TIMESTAMP,
		depot_proof_url TEXT NOT NULL DEFAULT '',
		completed_at TIMESTAMP,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		CHECK (current_members >= 0 AND current_members <= target_members)
	);

	-- Expired-group enumeration
	CREATE INDEX IF NOT EXISTS idx_groups_status_deadline ON shipment_groups(status, deadline);
	CREATE INDEX IF NOT EXISTS idx_groups_route ON shipment_groups(source_pincode, target_pincode, status);

	-- Parcels (only the fields the consolidation core owns)
	CREATE TABLE IF NOT EXISTS parcels (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL,
		company_id TEXT NOT NULL,
		customer_phone TEXT NOT NULL DEFAULT '',
		order_amount TEXT NOT NULL,
		amount_paid TEXT NOT NULL DEFAULT '0',
		discount_percentage TEXT NOT NULL DEFAULT '0',
		group_id TEXT REFERENCES shipment_groups(id),
		agent_id TEXT REFERENCES agents(id),
		status TEXT NOT NULL,
		refund_status TEXT NOT NULL DEFAULT '',
		picked_up_at TIMESTAMP,
		delivered_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	-- One membership per customer per group
	CREATE UNIQUE INDEX IF NOT EXISTS idx_parcels_group_customer ON parcels(group_id, customer_id) WHERE group_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_parcels_group ON parcels(group_id);

	-- Once-only markers for notifications
	CREATE TABLE IF NOT EXISTS notification_marks (
		mark_key TEXT PRIMARY KEY,
		created_at TIMESTAMP NOT NULL
	);

	-- Earnings (one per delivered parcel, ever)
	CREATE TABLE IF NOT EXISTS earnings (
		id TEXT PRIMARY KEY,
		parcel_id TEXT NOT NULL UNIQUE REFERENCES parcels(id),
		group_id TEXT NOT NULL DEFAULT '',
		company_id TEXT NOT NULL,
		agent_id TEXT NOT NULL DEFAULT '',
		order_amount TEXT NOT NULL,
		platform_commission_rate TEXT NOT NULL,
		platform_commission TEXT NOT NULL,
		company_earning TEXT NOT NULL,
		agent_commission_rate TEXT NOT NULL,
		agent_earning TEXT NOT NULL,
		company_net_earning TEXT NOT NULL,
		agent_bonus TEXT NOT NULL DEFAULT '0',
		customer_tip TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL,
		cancel_reason TEXT NOT NULL DEFAULT '',
		cleared_at TIMESTAMP,
		cancelled_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_earnings_status_created ON earnings(status, created_at);
	CREATE INDEX IF NOT EXISTS idx_earnings_company ON earnings(company_id);
	CREATE INDEX IF NOT EXISTS idx_earnings_agent ON earnings(agent_id);

	-- Wallets (current state, hot data)
	CREATE TABLE IF NOT EXISTS wallets (
		id TEXT PRIMARY KEY,
		owner_type TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		pending_balance TEXT NOT NULL DEFAULT '0',
		available_balance TEXT NOT NULL DEFAULT '0',
		locked_balance TEXT NOT NULL DEFAULT '0',
		total_earnings TEXT NOT NULL DEFAULT '0',
		total_withdrawn TEXT NOT NULL DEFAULT '0',
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE(owner_type, owner_id)
	);

	-- Wallet transactions (audit trail, cold data, append-only)
	CREATE TABLE IF NOT EXISTS wallet_transactions (
		id TEXT PRIMARY KEY,
		wallet_id TEXT NOT NULL REFERENCES wallets(id),
		owner_type TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		transaction_type TEXT NOT NULL,
		bucket TEXT NOT NULL,
		amount TEXT NOT NULL,
		balance_before TEXT NOT NULL,
		balance_after TEXT NOT NULL,
		reference_type TEXT NOT NULL,
		reference_id TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_wallet_transactions_wallet ON wallet_transactions(wallet_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_wallet_transactions_reference ON wallet_transactions(reference_type, reference_id);

	-- Double-entry journal for every wallet transaction
	CREATE TABLE IF NOT EXISTS journal_entries (
		id TEXT PRIMARY KEY,
		transaction_id TEXT NOT NULL REFERENCES wallet_transactions(id),
		account_type TEXT NOT NULL,
		account_id TEXT NOT NULL,
		debit_amount TEXT NOT NULL DEFAULT '0',
		credit_amount TEXT NOT NULL DEFAULT '0',
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_journal_transaction_id ON journal_entries(transaction_id);
	CREATE INDEX IF NOT EXISTS idx_journal_account ON journal_entries(account_type, account_id);

	-- Payouts
	CREATE TABLE IF NOT EXISTS payouts (
		id TEXT PRIMARY KEY,
		wallet_id TEXT NOT NULL REFERENCES wallets(id),
		owner_type TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		status TEXT NOT NULL,
		settlement_ref TEXT NOT NULL DEFAULT '',
		rejection_reason TEXT NOT NULL DEFAULT '',
		requested_at TIMESTAMP NOT NULL,
		processed_at TIMESTAMP,
		version INTEGER NOT NULL DEFAULT 1,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payouts_owner ON payouts(owner_type, owner_id);
	CREATE INDEX IF NOT EXISTS idx_payouts_status ON payouts(status);
`

func (s *Service) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}
