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
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"group-shipment-go/internal/common"
	"group-shipment-go/internal/config"
	"group-shipment-go/internal/models"
	"group-shipment-go/internal/payouts"
	"group-shipment-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type payoutCommand struct {
	action        string
	payoutId      string
	owner         models.WalletOwner
	amount        decimal.Decimal
	settlementRef string
	reason        string
	status        models.PayoutStatus
}

func parseAndValidateFlags() (*payoutCommand, error) {
	actionFlag := flag.String("action", "list", "One of: list, request, approve, complete, reject")
	idFlag := flag.String("id", "", "Payout id (approve, complete, reject)")
	ownerTypeFlag := flag.String("owner-type", "", "Wallet owner type: AGENT or COMPANY (request, list)")
	ownerIdFlag := flag.String("owner-id", "", "Wallet owner id (request, list)")
	amountFlag := flag.String("amount", "", "Amount to withdraw (request)")
	refFlag := flag.String("ref", "", "Bank settlement reference (complete)")
	reasonFlag := flag.String("reason", "", "Rejection reason (reject)")
	statusFlag := flag.String("status", "", "Filter by status (list)")
	flag.Parse()

	cmd := &payoutCommand{
		action:        strings.ToLower(*actionFlag),
		payoutId:      *idFlag,
		owner:         models.WalletOwner{Type: models.OwnerType(strings.ToUpper(*ownerTypeFlag)), Id: *ownerIdFlag},
		settlementRef: *refFlag,
		reason:        *reasonFlag,
		status:        models.PayoutStatus(strings.ToUpper(*statusFlag)),
	}

	switch cmd.action {
	case "list":
	case "request":
		if cmd.owner.Type == "" || cmd.owner.Id == "" || *amountFlag == "" {
			return nil, fmt.Errorf("request requires --owner-type, --owner-id and --amount")
		}
		amount, err := decimal.NewFromString(*amountFlag)
		if err != nil {
			return nil, fmt.Errorf("invalid amount format: %w", err)
		}
		cmd.amount = amount
	case "approve", "complete", "reject":
		if cmd.payoutId == "" {
			return nil, fmt.Errorf("%s requires --id", cmd.action)
		}
	default:
		return nil, fmt.Errorf("unknown action %q", cmd.action)
	}
	return cmd, nil
}

func listPayouts(ctx context.Context, service *payouts.Service, cmd *payoutCommand) error {
	list, err := service.List(ctx, store.PayoutFilter{
		OwnerType: cmd.owner.Type,
		OwnerId:   cmd.owner.Id,
		Status:    cmd.status,
	})
	if err != nil {
		return fmt.Errorf("failed to list payouts: %w", err)
	}

	report := common.NewReport(os.Stdout, common.WideReportWidth)
	report.Open("PAYOUTS")
	for i := range list {
		report.Payout(&list[i], i == len(list)-1)
	}
	report.Close(fmt.Sprintf("%d payouts", len(list)))
	return nil
}

func printWallet(ctx context.Context, service *payouts.Service, owner models.WalletOwner) {
	w, err := service.Wallet(ctx, owner)
	if err != nil {
		zap.L().Warn("Failed to read wallet", zap.String("owner", owner.String()), zap.Error(err))
		return
	}
	fmt.Printf("Wallet %s: available %s, locked %s, withdrawn %s\n", owner,
		common.FormatMoney(w.AvailableBalance), common.FormatMoney(w.LockedBalance), common.FormatMoney(w.TotalWithdrawn))
}

func run(ctx context.Context, service *payouts.Service, cmd *payoutCommand) error {
	var (
		payout *models.Payout
		err    error
	)

	switch cmd.action {
	case "list":
		return listPayouts(ctx, service, cmd)
	case "request":
		payout, err = service.Request(ctx, cmd.owner, cmd.amount)
	case "approve":
		payout, err = service.Approve(ctx, cmd.payoutId)
	case "complete":
		payout, err = service.Complete(ctx, cmd.payoutId, cmd.settlementRef)
	case "reject":
		payout, err = service.Reject(ctx, cmd.payoutId, cmd.reason)
	}
	if err != nil {
		return err
	}

	report := common.NewReport(os.Stdout, common.WideReportWidth)
	report.Open("PAYOUT " + strings.ToUpper(cmd.action))
	report.Payout(payout, true)
	report.Rule()
	printWallet(ctx, service, models.WalletOwner{Type: payout.OwnerType, Id: payout.OwnerId})
	return nil
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	cmd, err := parseAndValidateFlags()
	if err != nil {
		zap.L().Fatal("Invalid flags", zap.Error(err))
	}

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	zap.L().Info("Initializing services")
	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	if err := run(ctx, services.Payouts, cmd); err != nil {
		report := common.NewReport(os.Stdout, common.ReportWidth)
		report.Open("PAYOUT FAILED")
		report.Field("Error", err)
		switch {
		case errors.Is(err, store.ErrInsufficientBalance):
			fmt.Println("The wallet does not have enough available balance")
		case errors.Is(err, store.ErrConcurrentModification):
			fmt.Println("The wallet or payout was modified concurrently - please retry")
		}
		report.Rule()
		zap.L().Fatal("Payout command failed", zap.String("action", cmd.action), zap.Error(err))
	}

	zap.L().Info("Payout command completed", zap.String("action", cmd.action))
}
