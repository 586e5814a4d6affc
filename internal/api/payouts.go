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
	"net/http"
	"strings"

	"group-shipment-go/internal/models"
	"group-shipment-go/internal/payouts"
	"group-shipment-go/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type payoutRequest struct {
	OwnerType models.OwnerType `json:"owner_type"`
	OwnerId   string           `json:"owner_id"`
	Amount    decimal.Decimal  `json:"amount"`
}

type cancelPayoutRequest struct {
	OwnerType models.OwnerType `json:"owner_type"`
	OwnerId   string           `json:"owner_id"`
}

type processPayoutRequest struct {
	Action        models.PayoutAction `json:"action"`
	SettlementRef string              `json:"settlement_ref"`
	Reason        string              `json:"reason"`
}

// requestPayout reserves funds from a wallet's available balance
func (s *Server) requestPayout(w http.ResponseWriter, r *http.Request) {
	var req payoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}

	owner := models.WalletOwner{Type: models.OwnerType(strings.ToUpper(string(req.OwnerType))), Id: req.OwnerId}
	payout, err := s.payouts.Request(r.Context(), owner, req.Amount)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, payout)
}

func (s *Server) listPayouts(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	q := r.URL.Query()
	list, err := s.payouts.List(r.Context(), store.PayoutFilter{
		OwnerType: models.OwnerType(strings.ToUpper(q.Get("owner_type"))),
		OwnerId:   q.Get("owner_id"),
		Status:    models.PayoutStatus(strings.ToUpper(q.Get("status"))),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if list == nil {
		list = []models.Payout{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) getPayout(w http.ResponseWriter, r *http.Request) {
	payout, err := s.payouts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payout)
}

// cancelPayout lets the requester withdraw a payout that is still REQUESTED
func (s *Server) cancelPayout(w http.ResponseWriter, r *http.Request) {
	var req cancelPayoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}

	requester := models.WalletOwner{Type: models.OwnerType(strings.ToUpper(string(req.OwnerType))), Id: req.OwnerId}
	payout, err := s.payouts.Cancel(r.Context(), chi.URLParam(r, "id"), requester)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payout)
}

// processPayout applies an operator action: APPROVE, COMPLETE or REJECT
func (s *Server) processPayout(w http.ResponseWriter, r *http.Request) {
	var req processPayoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}

	payout, err := s.payouts.Process(r.Context(), payouts.ProcessParams{
		PayoutId:      chi.URLParam(r, "id"),
		Action:        models.PayoutAction(strings.ToUpper(string(req.Action))),
		SettlementRef: req.SettlementRef,
		Reason:        req.Reason,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payout)
}
