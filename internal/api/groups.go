package api

import (
	"net/http"
	"time"

	"group-shipment-go/internal/groups"
	"group-shipment-go/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type createGroupRequest struct {
	CompanyId          string          `json:"company_id"`
	Route              models.Route    `json:"route"`
	DepotAddress       string          `json:"depot_address"`
	TargetMembers      int             `json:"target_members"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	DeadlineHours      int             `json:"deadline_hours"`
}

type membershipRequest struct {
	ParcelId   string `json:"parcel_id"`
	CustomerId string `json:"customer_id"`
}

func (s *Server) createGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}

	group, err := s.registry.Create(r.Context(), groups.CreateParams{
		CompanyId:          req.CompanyId,
		Route:              req.Route,
		DepotAddress:       req.DepotAddress,
		TargetMembers:      req.TargetMembers,
		DiscountPercentage: req.DiscountPercentage,
		DeadlineOffset:     time.Duration(req.DeadlineHours) * time.Hour,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, group)
}

func (s *Server) listOpenGroups(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := s.registry.ListOpen(r.Context(), models.Route{
		SourceCity:    q.Get("source_city"),
		SourcePincode: q.Get("source_pincode"),
		TargetCity:    q.Get("target_city"),
		TargetPincode: q.Get("target_pincode"),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if list == nil {
		list = []models.Group{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) getGroup(w http.ResponseWriter, r *http.Request) {
	group, err := s.registry.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (s *Server) getGroupByCode(w http.ResponseWriter, r *http.Request) {
	group, err := s.registry.GetByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (s *Server) listMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.registry.Members(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if members == nil {
		members = []models.Parcel{}
	}
	writeJSON(w, http.StatusOK, members)
}

func (s *Server) joinGroup(w http.ResponseWriter, r *http.Request) {
	var req membershipRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}
	group, err := s.registry.Join(r.Context(), chi.URLParam(r, "id"), req.ParcelId, req.CustomerId)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (s *Server) leaveGroup(w http.ResponseWriter, r *http.Request) {
	var req membershipRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}
	group, err := s.registry.Leave(r.Context(), chi.URLParam(r, "id"), req.ParcelId, req.CustomerId)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (s *Server) closeGroupEarly(w http.ResponseWriter, r *http.Request) {
	group, err := s.registry.CloseEarly(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (s *Server) reopenGroup(w http.ResponseWriter, r *http.Request) {
	group, err := s.registry.Reopen(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}
