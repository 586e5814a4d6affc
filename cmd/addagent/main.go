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
	"group-shipment-go/internal/handoff"
	"group-shipment-go/internal/models"
	"group-shipment-go/internal/store"

	"go.uber.org/zap"
)

type registrationStats struct {
	created  int
	existing int
	failed   []string
}

func registerAgent(ctx context.Context, coordinator *handoff.Coordinator, cfg common.AgentConfig) (*models.Agent, error) {
	return coordinator.RegisterAgent(ctx, &models.Agent{
		Id:        cfg.Id,
		Name:      cfg.Name,
		Phone:     cfg.Phone,
		CompanyId: cfg.CompanyId,
		Available: true,
	})
}

func registerRoster(ctx context.Context, coordinator *handoff.Coordinator, roster []common.AgentConfig) registrationStats {
	fmt.Printf("Registering %d agents...\n\n", len(roster))

	stats := registrationStats{failed: []string{}}
	for _, cfg := range roster {
		agent, err := registerAgent(ctx, coordinator, cfg)
		switch {
		case errors.Is(err, store.ErrDuplicateOperation):
			fmt.Printf("✓ %s: Agent already exists\n", cfg.Id)
			stats.existing++
		case err != nil:
			zap.L().Error("Failed to register agent",
				zap.String("name", cfg.Name),
				zap.String("company_id", cfg.CompanyId),
				zap.Error(err))
			fmt.Printf("✗ %s: Failed to register\n", cfg.Name)
			stats.failed = append(stats.failed, cfg.Name)
		default:
			fmt.Printf("✓ %s: %s (%s)\n", agent.Id, agent.Name, agent.CompanyId)
			stats.created++
		}
	}
	return stats
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	nameFlag := flag.String("name", "", "Agent's full name")
	companyFlag := flag.String("company", "", "Courier company id")
	phoneFlag := flag.String("phone", "", "Agent's phone number in E.164 format (optional)")
	idFlag := flag.String("id", "", "Agent id (optional, generated when empty)")
	fileFlag := flag.String("file", "", "YAML roster of agents to register in bulk")
	flag.Parse()

	var roster []common.AgentConfig
	if *fileFlag != "" {
		loaded, err := common.LoadAgentRoster(*fileFlag)
		if err != nil {
			zap.L().Fatal("Failed to load agent roster", zap.Error(err))
		}
		roster = loaded
	} else {
		if *nameFlag == "" || *companyFlag == "" {
			zap.L().Fatal("Both flags are required: --name and --company (or use --file)")
		}
		agent := common.AgentConfig{Id: *idFlag, Name: *nameFlag, Phone: *phoneFlag, CompanyId: *companyFlag}
		if err := common.ValidateAgent(agent); err != nil {
			zap.L().Fatal("Invalid agent", zap.Error(err))
		}
		roster = []common.AgentConfig{agent}
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

	stats := registerRoster(ctx, services.Coordinator, roster)

	report := common.NewReport(os.Stdout, common.ReportWidth)
	report.Open("AGENT REGISTRATION SUMMARY")
	report.Field("Total Agents", len(roster))
	report.Field("Created", stats.created)
	report.Field("Already Existing", stats.existing)
	report.Field("Failed", len(stats.failed))
	if len(stats.failed) > 0 {
		report.Field("Failed Agents", strings.Join(stats.failed, ", "))
	}
	report.Rule()
	fmt.Println()

	if len(stats.failed) > 0 {
		zap.L().Warn("Some agents failed to register",
			zap.Int("created", stats.created),
			zap.Strings("failed", stats.failed))
	} else {
		zap.L().Info("Agent registration completed",
			zap.Int("created", stats.created),
			zap.Int("existing", stats.existing))
	}
}
