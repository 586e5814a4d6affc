package api

import (
	"net/http"
	"strings"

	"group-shipment-go/internal/models"
	"group-shipment-go/internal/store"

	"github.com/go-chi/chi/v5"
)

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) listEarnings(w http.ResponseWriter, r *http.Request) {
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
	list, err := s.ledger.List(r.Context(), store.EarningFilter{
		CompanyId: q.Get("company_id"),
		AgentId:   q.Get("agent_id"),
		Status:    models.EarningStatus(strings.ToUpper(q.Get("status"))),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if list == nil {
		list = []models.Earning{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) getEarning(w http.ResponseWriter, r *http.Request) {
	earning, err := s.ledger.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, earning)
}

func (s *Server) getParcelEarning(w http.ResponseWriter, r *http.Request) {
	earning, err := s.ledger.GetByParcel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, earning)
}

func (s *Server) clearEarning(w http.ResponseWriter, r *http.Request) {
	earning, err := s.ledger.Clear(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, earning)
}

func (s *Server) holdEarning(w http.ResponseWriter, r *http.Request) {
	earning, err := s.ledger.Hold(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, earning)
}

func (s *Server) releaseEarning(w http.ResponseWriter, r *http.Request) {
	earning, err := s.ledger.Release(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, earning)
}

func (s *Server) cancelEarning(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, r, err)
		return
	}
	earning, err := s.ledger.Cancel(r.Context(), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, earning)
}

func (s *Server) platformRevenue(w http.ResponseWriter, r *http.Request) {
	from, err := queryTime(r, "from")
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	to, err := queryTime(r, "to")
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	revenue, err := s.ledger.Revenue(r.Context(), from, to)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, revenue)
}
