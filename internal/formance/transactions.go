package formance

import (
	"context"
	"fmt"
	"time"

	"group-shipment-go/internal/models"

	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Each wallet Transaction moves one balance bucket, so it is mirrored as a
// transfer between @world and that bucket's account. Metadata is set inside
// the script so the Formance transaction is self-describing.

const numscriptBucketCredit = `vars {
  asset $asset
  number $amount
  account $bucket
  string $tx_type
  string $reference_type
  string $reference_id
  string $wallet_id
}

send [$asset $amount] (
  source = @world
  destination = $bucket
)

set_tx_meta("tx_type", $tx_type)
set_tx_meta("reference_type", $reference_type)
set_tx_meta("reference_id", $reference_id)
set_tx_meta("wallet_id", $wallet_id)
`

const numscriptBucketDebit = `vars {
  asset $asset
  number $amount
  account $bucket
  string $tx_type
  string $reference_type
  string $reference_id
  string $wallet_id
}

send [$asset $amount] (
  source = $bucket allowing unbounded overdraft
  destination = @world
)

set_tx_meta("tx_type", $tx_type)
set_tx_meta("reference_type", $reference_type)
set_tx_meta("reference_id", $reference_id)
set_tx_meta("wallet_id", $wallet_id)
`

// Record mirrors committed wallet transactions. The local transaction id is
// the Formance reference, so replaying a batch is a no-op. It stops at the
// first failure; already mirrored transactions stay recorded.
func (s *Service) Record(ctx context.Context, txs []models.Transaction) error {
	for _, tx := range txs {
		if err := s.recordTransaction(ctx, tx); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) recordTransaction(ctx context.Context, tx models.Transaction) error {
	if tx.Amount.IsZero() {
		return nil
	}

	postTx := shared.V2PostTransaction{
		Reference: strPtr(tx.Id),
		Timestamp: timePtr(tx),
		Script: &shared.V2PostTransactionScript{
			Plain: scriptFor(tx.Amount),
			Vars: map[string]string{
				"asset":          formanceAsset(s.asset),
				"amount":         smallestUnits(tx.Amount.Abs(), s.asset),
				"bucket":         accountAddress(tx.OwnerType, tx.OwnerId, tx.Bucket),
				"tx_type":        tx.TransactionType,
				"reference_type": tx.ReferenceType,
				"reference_id":   tx.ReferenceId,
				"wallet_id":      tx.WalletId,
			},
		},
	}

	_, err := s.client.Ledger.V2.CreateTransaction(ctx, operations.V2CreateTransactionRequest{
		Ledger:            s.ledger,
		V2PostTransaction: postTx,
	})
	if err != nil {
		if isConflictError(err) {
			return nil // idempotent
		}
		return fmt.Errorf("error mirroring transaction %s: %w", tx.Id, err)
	}

	zap.L().Debug("Transaction mirrored in Formance",
		zap.String("tx_id", tx.Id),
		zap.String("tx_type", tx.TransactionType),
		zap.String("amount", tx.Amount.String()))
	return nil
}

func scriptFor(amount decimal.Decimal) string {
	if amount.IsNegative() {
		return numscriptBucketDebit
	}
	return numscriptBucketCredit
}

// smallestUnits converts a currency amount to its integer minor units.
func smallestUnits(amount decimal.Decimal, symbol string) string {
	return amount.Shift(int32(precisionFor(symbol))).BigInt().String()
}

func strPtr(s string) *string { return &s }

func timePtr(tx models.Transaction) *time.Time {
	if tx.CreatedAt.IsZero() {
		return nil
	}
	t := tx.CreatedAt.UTC()
	return &t
}
