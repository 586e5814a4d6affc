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

package api

import (
	"context"
	"fmt"
	"net/http"

	"group-shipment-go/internal/earnings"
	"group-shipment-go/internal/groups"
	"group-shipment-go/internal/handoff"
	"group-shipment-go/internal/models"
	"group-shipment-go/internal/payment"
	"group-shipment-go/internal/payouts"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// HealthChecker reports whether the backing store is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Services are the domain components the HTTP surface exposes.
type Services struct {
	Health      HealthChecker
	Registry    *groups.Registry
	Coordinator *handoff.Coordinator
	Ledger      *earnings.Ledger
	Payouts     *payouts.Service
	Payments    *payment.EventHandler
}

// Server maps HTTP requests onto the domain services
type Server struct {
	registry    *groups.Registry
	coordinator *handoff.Coordinator
	ledger      *earnings.Ledger
	payouts     *payouts.Service
	payments    *payment.EventHandler
	health      HealthChecker
	authUser    string
	authPass    string
}

func NewServer(svc Services, cfg models.ServerConfig) *Server {
	return &Server{
		registry:    svc.Registry,
		coordinator: svc.Coordinator,
		ledger:      svc.Ledger,
		payouts:     svc.Payouts,
		payments:    svc.Payments,
		health:      svc.Health,
		authUser:    cfg.AuthUser,
		authPass:    cfg.AuthPass,
	}
}

func (s *Server) HealthCheck(ctx context.Context) error {
	if err := s.health.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// Router builds the HTTP routes. Operator and collaborator routes sit
// behind basic auth.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		// Groups
		r.Post("/groups", s.createGroup)
		r.Get("/groups", s.listOpenGroups)
		r.Get("/groups/code/{code}", s.getGroupByCode)
		r.Get("/groups/{id}", s.getGroup)
		r.Get("/groups/{id}/members", s.listMembers)
		r.Post("/groups/{id}/join", s.joinGroup)
		r.Post("/groups/{id}/leave", s.leaveGroup)
		r.Post("/groups/{id}/close", s.closeGroupEarly)
		r.Post("/groups/{id}/reopen", s.reopenGroup)

		// Handoff
		r.Post("/groups/{id}/pickup/agent", s.assignPickupAgent)
		r.Post("/groups/{id}/pickup/complete", s.completePickup)
		r.Post("/groups/{id}/delivery/agent", s.assignDeliveryAgent)
		r.Post("/groups/{id}/delivery/complete", s.completeDelivery)
		r.Post("/parcels/{id}/picked-up", s.markPickedUp)
		r.Post("/parcels/{id}/delivered", s.confirmDelivery)
		r.Get("/parcels/{id}/earning", s.getParcelEarning)
		r.Get("/agents", s.listAgents)

		// Wallets & payouts
		r.Get("/wallets/{ownerType}/{ownerId}", s.getWallet)
		r.Get("/wallets/{ownerType}/{ownerId}/transactions", s.getTransactionHistory)
		r.Post("/payouts", s.requestPayout)
		r.Get("/payouts", s.listPayouts)
		r.Get("/payouts/{id}", s.getPayout)
		r.Post("/payouts/{id}/cancel", s.cancelPayout)

		r.Group(func(r chi.Router) {
			r.Use(s.basicAuth)

			r.Post("/agents", s.registerAgent)

			r.Get("/earnings", s.listEarnings)
			r.Get("/earnings/{id}", s.getEarning)
			r.Post("/earnings/{id}/clear", s.clearEarning)
			r.Post("/earnings/{id}/hold", s.holdEarning)
			r.Post("/earnings/{id}/release", s.releaseEarning)
			r.Post("/earnings/{id}/cancel", s.cancelEarning)
			r.Get("/revenue", s.platformRevenue)

			r.Get("/wallets", s.listWallets)
			r.Post("/wallets/reconcile", s.reconcileWallets)
			r.Post("/payouts/{id}/process", s.processPayout)

			r.Post("/webhooks/payment-confirmed", s.paymentConfirmed)
			r.Post("/webhooks/refund-completed", s.refundCompleted)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.HealthCheck(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
