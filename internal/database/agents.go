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
	"database/sql"
	"errors"
	"fmt"

	"group-shipment-go/internal/models"
	"group-shipment-go/internal/store"

	"go.uber.org/zap"
)

func (s *Service) CreateAgent(ctx context.Context, agent *models.Agent) error {
	zap.L().Info("Creating agent",
		zap.String("id", agent.Id),
		zap.String("name", agent.Name),
		zap.String("company_id", agent.CompanyId))

	_, err := s.db.ExecContext(ctx, queryInsertAgent,
		agent.Id, agent.Name, agent.Phone, agent.CompanyId, agent.Available, agent.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: agent %s already exists", store.ErrDuplicateOperation, agent.Id)
		}
		zap.L().Error("Failed to insert agent", zap.String("id", agent.Id), zap.Error(err))
		return fmt.Errorf("unable to insert agent: %w", err)
	}

	zap.L().Info("Agent created successfully", zap.String("id", agent.Id), zap.String("name", agent.Name))
	return nil
}

func (s *Service) GetAgent(ctx context.Context, agentId string) (*models.Agent, error) {
	zap.L().Debug("Querying agent by ID", zap.String("agent_id", agentId))

	agent, err := scanAgent(s.db.QueryRowContext(ctx, queryGetAgentById, agentId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: agent %s", store.ErrNotFound, agentId)
		}
		zap.L().Error("Failed to query agent by ID", zap.String("agent_id", agentId), zap.Error(err))
		return nil, fmt.Errorf("unable to query agent by ID: %w", err)
	}
	return agent, nil
}

// ListAgents returns the agents of one company, or all agents when companyId is empty.
func (s *Service) ListAgents(ctx context.Context, companyId string) ([]models.Agent, error) {
	rows, err := s.db.QueryContext(ctx, queryListAgents, companyId, companyId)
	if err != nil {
		zap.L().Error("Failed to query agents", zap.Error(err))
		return nil, fmt.Errorf("unable to query agents: %w", err)
	}
	defer closeRows(rows)

	var agents []models.Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			zap.L().Error("Failed to scan agent row", zap.Error(err))
			return nil, fmt.Errorf("unable to scan agent row: %w", err)
		}
		agents = append(agents, *agent)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during agent row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating agent rows: %w", err)
	}

	zap.L().Info("Retrieved agents", zap.Int("count", len(agents)))
	return agents, nil
}
