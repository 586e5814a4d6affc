package formance

import (
	"context"
	"fmt"
	"math/big"

	"group-shipment-go/internal/models"

	v3 "github.com/formancehq/formance-sdk-go/v3"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var walletBuckets = []models.Bucket{models.BucketPending, models.BucketAvailable, models.BucketLocked}

// BucketBalances returns the mirrored balance of each of the wallet's buckets.
// An account the ledger has never seen has a zero balance.
func (s *Service) BucketBalances(ctx context.Context, w *models.Wallet) (map[models.Bucket]decimal.Decimal, error) {
	fAsset := formanceAsset(s.asset)
	balances := make(map[models.Bucket]decimal.Decimal, len(walletBuckets))
	for _, bucket := range walletBuckets {
		vols, err := s.getAccountVolumes(ctx, accountAddress(w.OwnerType, w.OwnerId, bucket))
		if err != nil {
			return nil, err
		}
		balances[bucket] = bigIntToDecimal(volumeBalance(vols, fAsset), s.asset)
	}
	return balances, nil
}

// Compare checks the wallet's stored balances against the mirror and
// returns the buckets that differ.
func (s *Service) Compare(ctx context.Context, w *models.Wallet) ([]models.Bucket, error) {
	mirrored, err := s.BucketBalances(ctx, w)
	if err != nil {
		return nil, err
	}

	local := map[models.Bucket]decimal.Decimal{
		models.BucketPending:   w.PendingBalance,
		models.BucketAvailable: w.AvailableBalance,
		models.BucketLocked:    w.LockedBalance,
	}
	var diff []models.Bucket
	for _, bucket := range walletBuckets {
		if !local[bucket].Equal(mirrored[bucket]) {
			zap.L().Warn("Mirrored balance differs",
				zap.String("owner", w.Owner().String()),
				zap.String("bucket", string(bucket)),
				zap.String("local", local[bucket].String()),
				zap.String("mirrored", mirrored[bucket].String()))
			diff = append(diff, bucket)
		}
	}
	return diff, nil
}

// ---------- helpers ----------

// getAccountVolumes fetches volumes for a single account via GetAccount (clean GET).
func (s *Service) getAccountVolumes(ctx context.Context, address string) (map[string]shared.V2Volume, error) {
	resp, err := s.client.Ledger.V2.GetAccount(ctx, operations.V2GetAccountRequest{
		Ledger:  s.ledger,
		Address: address,
		Expand:  v3.Pointer("volumes"),
	})
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get account %s: %w", address, err)
	}
	return resp.V2AccountResponse.Data.Volumes, nil
}

// volumeBalance extracts the balance for a specific asset from volumes.
func volumeBalance(vols map[string]shared.V2Volume, fAsset string) *big.Int {
	vol, ok := vols[fAsset]
	if !ok {
		return nil
	}
	if vol.Balance != nil {
		return vol.Balance
	}
	if vol.Input == nil {
		return nil
	}
	result := new(big.Int).Set(vol.Input)
	if vol.Output != nil {
		result.Sub(result, vol.Output)
	}
	return result
}

// bigIntToDecimal converts a *big.Int in smallest-unit to a currency amount.
func bigIntToDecimal(raw *big.Int, symbol string) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -int32(precisionFor(symbol)))
}
