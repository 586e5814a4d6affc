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

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"group-shipment-go/internal/common"
	"group-shipment-go/internal/config"
	"group-shipment-go/internal/formance"
	"group-shipment-go/internal/models"
	"group-shipment-go/internal/payouts"

	"go.uber.org/zap"
)

type walletStats struct {
	totalWallets int
	mismatched   int
	mirrorDrift  int
}

func processWallets(ctx context.Context, report *common.Report, service *payouts.Service, mirror *formance.Service, ownerType models.OwnerType) (walletStats, error) {
	var stats walletStats

	wallets, err := service.Wallets(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to list wallets: %w", err)
	}

	for _, w := range wallets {
		if ownerType != "" && w.OwnerType != ownerType {
			continue
		}
		stats.totalWallets++

		lastTx := ""
		if history, err := service.History(ctx, w.Owner(), 1, 0); err != nil {
			zap.L().Warn("Failed to read wallet history", zap.String("wallet_id", w.Id), zap.Error(err))
		} else if len(history) > 0 {
			lastTx = history[0].Id
		}

		report.Wallet(&w, lastTx)

		if mirror == nil {
			continue
		}
		drift, err := mirror.Compare(ctx, &w)
		if err != nil {
			zap.L().Error("Failed to compare wallet with ledger mirror",
				zap.String("wallet_id", w.Id),
				zap.Error(err))
			continue
		}
		if len(drift) > 0 {
			stats.mirrorDrift++
			names := make([]string, len(drift))
			for i, b := range drift {
				names[i] = string(b)
			}
			fmt.Printf("   ⚠ mirror drift in: %s\n", strings.Join(names, ", "))
		}
	}
	return stats, nil
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ownerFlag := flag.String("owner-type", "", "Filter by owner type: PLATFORM, COMPANY or AGENT (optional)")
	reconcileFlag := flag.Bool("reconcile", false, "Recompute every wallet from its transaction history")
	compareFlag := flag.Bool("compare", false, "Compare balances with the Formance ledger mirror")
	flag.Parse()

	logger.Info("Starting wallet report")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// Read-only report, no notifier or payment client needed
	logger.Info("Connecting to database", zap.String("path", cfg.Database.Path))
	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	var mirror *formance.Service
	if *compareFlag {
		if cfg.Formance.StackURL == "" {
			logger.Fatal("--compare requires FORMANCE_STACK_URL")
		}
		mirror, err = formance.NewService(ctx, cfg.Formance)
		if err != nil {
			logger.Fatal("Failed to connect to Formance", zap.Error(err))
		}
	}

	service := payouts.NewService(dbService, nil, nil, cfg.Policy)

	report := common.NewReport(os.Stdout, common.ReportWidth)
	report.Open("WALLET BALANCE REPORT")

	stats, err := processWallets(ctx, report, service, mirror, models.OwnerType(strings.ToUpper(*ownerFlag)))
	if err != nil {
		logger.Fatal("Failed to build wallet report", zap.Error(err))
	}

	if *reconcileFlag {
		mismatched, err := service.Reconcile(ctx)
		if err != nil {
			logger.Fatal("Failed to reconcile wallets", zap.Error(err))
		}
		stats.mismatched = len(mismatched)
		for _, id := range mismatched {
			fmt.Printf("✗ wallet %s does not match its transaction history\n", id)
		}
	}

	summary := fmt.Sprintf("SUMMARY: %d wallets (%d reconciliation mismatches, %d with mirror drift)",
		stats.totalWallets, stats.mismatched, stats.mirrorDrift)
	report.Close(summary)

	logger.Info("Wallet report completed",
		zap.Int("wallets", stats.totalWallets),
		zap.Int("mismatched", stats.mismatched),
		zap.Int("mirror_drift", stats.mirrorDrift))
}
