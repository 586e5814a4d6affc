package api

import (
	"net/http"

	"group-shipment-go/internal/handoff"
	"group-shipment-go/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type agentRequest struct {
	AgentId string `json:"agent_id"`
}

type proofRequest struct {
	ProofUrl string `json:"proof_url"`
}

type deliveryRequest struct {
	AgentId string          `json:"agent_id"`
	Tip     decimal.Decimal `json:"tip"`
	Bonus   decimal.Decimal `json:"bonus"`
}

func (s *Server) assignPickupAgent(w http.ResponseWriter, r *http.Request) {
	var req agentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}
	group, err := s.coordinator.AssignPickupAgent(r.Context(), chi.URLParam(r, "id"), req.AgentId)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (s *Server) assignDeliveryAgent(w http.ResponseWriter, r *http.Request) {
	var req agentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}
	group, err := s.coordinator.AssignDeliveryAgent(r.Context(), chi.URLParam(r, "id"), req.AgentId)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (s *Server) completePickup(w http.ResponseWriter, r *http.Request) {
	var req proofRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}
	group, err := s.coordinator.CompletePickup(r.Context(), chi.URLParam(r, "id"), req.ProofUrl)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (s *Server) completeDelivery(w http.ResponseWriter, r *http.Request) {
	group, err := s.coordinator.CompleteDelivery(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (s *Server) markPickedUp(w http.ResponseWriter, r *http.Request) {
	parcel, err := s.coordinator.MarkParcelPickedUp(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, parcel)
}

func (s *Server) confirmDelivery(w http.ResponseWriter, r *http.Request) {
	var req deliveryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}
	earning, err := s.coordinator.ConfirmParcelDelivery(r.Context(), handoff.DeliveryParams{
		ParcelId: chi.URLParam(r, "id"),
		AgentId:  req.AgentId,
		Tip:      req.Tip,
		Bonus:    req.Bonus,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, earning)
}

func (s *Server) registerAgent(w http.ResponseWriter, r *http.Request) {
	var agent models.Agent
	if err := decodeJSON(w, r, &agent); err != nil {
		writeDomainError(w, r, err)
		return
	}
	created, err := s.coordinator.RegisterAgent(r.Context(), &agent)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) listAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := s.coordinator.ListAgents(r.Context(), r.URL.Query().Get("company_id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if agents == nil {
		agents = []models.Agent{}
	}
	writeJSON(w, http.StatusOK, agents)
}
