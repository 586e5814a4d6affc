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
	"fmt"
	"net/http"
	"strings"

	"group-shipment-go/internal/models"
	"group-shipment-go/internal/store"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// walletOwner reads the owner from the {ownerType}/{ownerId} path segments.
func walletOwner(r *http.Request) (models.WalletOwner, error) {
	owner := models.WalletOwner{
		Type: models.OwnerType(strings.ToUpper(chi.URLParam(r, "ownerType"))),
		Id:   chi.URLParam(r, "ownerId"),
	}
	switch owner.Type {
	case models.OwnerAgent, models.OwnerCompany, models.OwnerPlatform:
	default:
		return owner, fmt.Errorf("%w: unknown wallet owner type %q", store.ErrInvalidInput, owner.Type)
	}
	if owner.Id == "" {
		return owner, fmt.Errorf("%w: wallet owner id is required", store.ErrInvalidInput)
	}
	return owner, nil
}

// getWallet returns the balances of one wallet
func (s *Server) getWallet(w http.ResponseWriter, r *http.Request) {
	owner, err := walletOwner(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	wallet, err := s.payouts.Wallet(r.Context(), owner)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

// listWallets returns every wallet, platform included
func (s *Server) listWallets(w http.ResponseWriter, r *http.Request) {
	wallets, err := s.payouts.Wallets(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if wallets == nil {
		wallets = []models.Wallet{}
	}
	writeJSON(w, http.StatusOK, wallets)
}

// getTransactionHistory returns paginated transaction history for a wallet
func (s *Server) getTransactionHistory(w http.ResponseWriter, r *http.Request) {
	owner, err := walletOwner(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if limit == 0 || limit > 100 {
		limit = 20
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	transactions, err := s.payouts.History(r.Context(), owner, limit, offset)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if transactions == nil {
		transactions = []models.Transaction{}
	}
	writeJSON(w, http.StatusOK, transactions)
}

// reconcileWallets recomputes every wallet from its transactions and
// reports the ones that do not match
func (s *Server) reconcileWallets(w http.ResponseWriter, r *http.Request) {
	mismatched, err := s.payouts.Reconcile(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if len(mismatched) > 0 {
		zap.L().Warn("Wallet reconciliation found mismatches", zap.Strings("wallet_ids", mismatched))
	}
	if mismatched == nil {
		mismatched = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"mismatched": mismatched})
}
