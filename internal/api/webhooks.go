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

	"group-shipment-go/internal/payment"
)

// paymentConfirmed registers a paid parcel reported by the payment collaborator
func (s *Server) paymentConfirmed(w http.ResponseWriter, r *http.Request) {
	var event payment.PaymentConfirmed
	if err := decodeJSON(w, r, &event); err != nil {
		writeDomainError(w, r, err)
		return
	}

	parcel, err := s.payments.HandlePaymentConfirmed(r.Context(), event)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, parcel)
}

// refundCompleted records a refund paid out by the payment collaborator
func (s *Server) refundCompleted(w http.ResponseWriter, r *http.Request) {
	var event payment.RefundCompleted
	if err := decodeJSON(w, r, &event); err != nil {
		writeDomainError(w, r, err)
		return
	}

	parcel, err := s.payments.HandleRefundCompleted(r.Context(), event)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, parcel)
}
