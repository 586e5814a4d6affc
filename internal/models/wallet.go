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

type OwnerType string

const (
	OwnerPlatform OwnerType = "PLATFORM"
	OwnerCompany  OwnerType = "COMPANY"
	OwnerAgent    OwnerType = "AGENT"
)

const PlatformOwnerId = "platform"

// WalletOwner identifies a payable party.
type WalletOwner struct {
	Type OwnerType `json:"owner_type"`
	Id   string    `json:"owner_id"`
}

func PlatformOwner() WalletOwner {
	return WalletOwner{Type: OwnerPlatform, Id: PlatformOwnerId}
}

func (o WalletOwner) String() string {
	return string(o.Type) + ":" + o.Id
}

// Balance buckets a Transaction can move.
type Bucket string

const (
	BucketPending   Bucket = "PENDING"
	BucketAvailable Bucket = "AVAILABLE"
	BucketLocked    Bucket = "LOCKED"
)

// Transaction types
const (
	TxEarningCredit   = "earning_credit"
	TxEarningReversal = "earning_reversal"
	TxClearanceOut    = "clearance_out"
	TxClearanceIn     = "clearance_in"
	TxPayoutReserve   = "payout_reserve"
	TxPayoutLock      = "payout_lock"
	TxPayoutRelease   = "payout_release"
	TxPayoutUnlock    = "payout_unlock"
	TxPayoutDebit     = "payout_debit"
)

// Reference types
const (
	RefEarning = "EARNING"
	RefPayout  = "PAYOUT"
	RefRefund  = "REFUND"
)

// Wallet holds one party's running balances (hot data).
// PendingBalance waits for clearance, AvailableBalance is payout-eligible and
// LockedBalance holds funds reserved by open payout requests.
type Wallet struct {
	Id               string          `db:"id" json:"id"`
	OwnerType        OwnerType       `db:"owner_type" json:"owner_type"`
	OwnerId          string          `db:"owner_id" json:"owner_id"`
	PendingBalance   decimal.Decimal `db:"pending_balance" json:"pending_balance"`
	AvailableBalance decimal.Decimal `db:"available_balance" json:"available_balance"`
	LockedBalance    decimal.Decimal `db:"locked_balance" json:"locked_balance"`
	TotalEarnings    decimal.Decimal `db:"total_earnings" json:"total_earnings"`
	TotalWithdrawn   decimal.Decimal `db:"total_withdrawn" json:"total_withdrawn"`
	Version          int64           `db:"version" json:"version"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

func (w *Wallet) Owner() WalletOwner {
	return WalletOwner{Type: w.OwnerType, Id: w.OwnerId}
}

// Bucket returns the balance held in b.
func (w *Wallet) Bucket(b Bucket) decimal.Decimal {
	switch b {
	case BucketPending:
		return w.PendingBalance
	case BucketAvailable:
		return w.AvailableBalance
	case BucketLocked:
		return w.LockedBalance
	}
	return decimal.Zero
}

// Transaction is an immutable ledger entry for a single bucket mutation (cold data).
type Transaction struct {
	Id              string          `db:"id" json:"id"`
	WalletId        string          `db:"wallet_id" json:"wallet_id"`
	OwnerType       OwnerType       `db:"owner_type" json:"owner_type"`
	OwnerId         string          `db:"owner_id" json:"owner_id"`
	TransactionType string          `db:"transaction_type" json:"transaction_type"`
	Bucket          Bucket          `db:"bucket" json:"bucket"`
	Amount          decimal.Decimal `db:"amount" json:"amount"`
	BalanceBefore   decimal.Decimal `db:"balance_before" json:"balance_before"`
	BalanceAfter    decimal.Decimal `db:"balance_after" json:"balance_after"`
	ReferenceType   string          `db:"reference_type" json:"reference_type"`
	ReferenceId     string          `db:"reference_id" json:"reference_id"`
	Description     string          `db:"description" json:"description,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}
