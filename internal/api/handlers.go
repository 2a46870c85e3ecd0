package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/punchamoorthee/wastebank/internal/domain"
	"github.com/punchamoorthee/wastebank/internal/identity"
	"github.com/punchamoorthee/wastebank/internal/models"
	"github.com/punchamoorthee/wastebank/internal/scan"
	"github.com/punchamoorthee/wastebank/internal/session"
	"github.com/punchamoorthee/wastebank/internal/store"
)

// --- Auth ---

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decode(r, &req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Email == "" || req.Password == "" {
		h.respondError(w, r, http.StatusUnprocessableEntity, "Email and password are required")
		return
	}

	token, err := h.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, models.TokenResponse{Token: token})
}

// Register adds another operator. Only a logged-in operator may do so.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decode(r, &req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, "Invalid JSON")
		return
	}
	op, err := h.Auth.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusCreated, op)
}

// --- Members ---

func (h *Handler) SearchMembers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")

	var (
		members []domain.Member
		err     error
	)
	if r.URL.Query().Has("q") {
		members, err = h.Directory.Search(r.Context(), q)
	} else {
		members, err = h.Directory.LoadAll(r.Context())
	}
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, members)
}

func (h *Handler) GetMember(w http.ResponseWriter, r *http.Request) {
	m, err := h.Resolver.ResolveByCode(r.Context(), mux.Vars(r)["code"])
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	if m == nil {
		h.respondError(w, r, http.StatusNotFound, "Member not found")
		return
	}
	h.respondJSON(w, r, http.StatusOK, m)
}

func (h *Handler) CreateMember(w http.ResponseWriter, r *http.Request) {
	var req models.MemberRequest
	if err := decode(r, &req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, "Invalid JSON")
		return
	}
	m, err := h.Admin.Add(r.Context(), store.MemberFields{Code: req.Code, Name: req.Name, Address: req.Address})
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/v1/members/%s", m.Code))
	h.respondJSON(w, r, http.StatusCreated, m)
}

func (h *Handler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	var req models.MemberRequest
	if err := decode(r, &req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, "Invalid JSON")
		return
	}
	err := h.Admin.Update(r.Context(), mux.Vars(r)["id"], store.MemberFields{Code: req.Code, Name: req.Name, Address: req.Address})
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *Handler) DeleteMember(w http.ResponseWriter, r *http.Request) {
	if err := h.Admin.Remove(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, map[string]string{"status": "deleted"})
}

// --- Waste types ---

func (h *Handler) ListWasteTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.Catalog.List(r.Context())
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	if types == nil {
		types = []domain.WasteType{}
	}
	h.respondJSON(w, r, http.StatusOK, types)
}

func (h *Handler) CreateWasteType(w http.ResponseWriter, r *http.Request) {
	var req models.WasteTypeRequest
	if err := decode(r, &req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, "Invalid JSON")
		return
	}
	wt, err := h.Catalog.Add(r.Context(), wasteTypeFields(req))
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusCreated, wt)
}

func (h *Handler) UpdateWasteType(w http.ResponseWriter, r *http.Request) {
	var req models.WasteTypeRequest
	if err := decode(r, &req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, "Invalid JSON")
		return
	}
	id := mux.Vars(r)["id"]
	if err := h.Catalog.Update(r.Context(), id, wasteTypeFields(req)); err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, map[string]string{"status": "updated"})
}

func wasteTypeFields(req models.WasteTypeRequest) store.WasteTypeFields {
	return store.WasteTypeFields{Name: req.Name, PricePerKg: req.PricePerKg, PhotoURL: req.PhotoURL}
}

func (h *Handler) DeactivateWasteType(w http.ResponseWriter, r *http.Request) {
	if err := h.Catalog.Deactivate(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, map[string]string{"status": "deactivated"})
}

// --- Cashier sessions ---

func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	s := h.Sessions.Open()
	w.Header().Set("Location", fmt.Sprintf("/api/v1/sessions/%s", s.ID))
	h.respondJSON(w, r, http.StatusCreated, s.View())
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, ok := h.Sessions.Get(mux.Vars(r)["id"])
	if !ok {
		h.respondError(w, r, http.StatusNotFound, "Session not found")
		return nil, false
	}
	return s, true
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.respondJSON(w, r, http.StatusOK, s.View())
}

func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	if !h.Sessions.Close(mux.Vars(r)["id"]) {
		h.respondError(w, r, http.StatusNotFound, "Session not found")
		return
	}
	h.respondJSON(w, r, http.StatusOK, map[string]string{"status": "closed"})
}

func (h *Handler) SelectMember(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req models.SelectMemberRequest
	if err := decode(r, &req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if _, err := s.SelectMember(r.Context(), req.Code); err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, s.View())
}

func (h *Handler) ClearMember(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.ClearMember()
	h.respondJSON(w, r, http.StatusOK, s.View())
}

func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req models.ScanRequest
	if err := decode(r, &req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if _, err := s.HandleScan(r.Context(), scan.Event{Token: req.Token, ScannedAt: time.Now()}); err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, s.View())
}

func (h *Handler) AddLine(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req models.AddLineRequest
	if err := decode(r, &req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err := s.AddLine(r.Context(), req.WasteTypeID, req.WeightKg); err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusOK, s.View())
}

func (h *Handler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.RemoveLine(mux.Vars(r)["wasteTypeId"])
	h.respondJSON(w, r, http.StatusOK, s.View())
}

func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	entry, err := s.Deposit(r.Context(), identity.OperatorOrDefault(r.Context()))
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusCreated, models.PostingResponse{
		Entry:   *entry,
		Message: fmt.Sprintf("Deposit for %s saved", entry.MemberName),
	})
}

func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req models.WithdrawalRequest
	if err := decode(r, &req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, "Invalid JSON")
		return
	}
	entry, err := s.Withdraw(r.Context(), req.AmountText(), identity.OperatorOrDefault(r.Context()))
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.respondJSON(w, r, http.StatusCreated, models.PostingResponse{
		Entry:   *entry,
		Message: fmt.Sprintf("Withdrawal of %d for %s processed", -entry.TotalAmount, entry.MemberName),
	})
}

// --- Ledger ---

// ListEntries returns raw ledger entries, optionally filtered by member code
// and a timestamp range. Dates may be RFC 3339 or YYYY-MM-DD; a bare "to"
// date covers the whole day.
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := parseBound(q.Get("from"), false)
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, "Invalid from date")
		return
	}
	to, err := parseBound(q.Get("to"), true)
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, "Invalid to date")
		return
	}

	entries, err := h.Ledger.ListEntries(r.Context(), store.EntryFilter{
		MemberCode: q.Get("member"),
		From:       from,
		To:         to,
	})
	if err != nil {
		h.respondErr(w, r, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err))
		return
	}
	if entries == nil {
		entries = []domain.LedgerEntry{}
	}
	h.respondJSON(w, r, http.StatusOK, entries)
}

func parseBound(raw string, endOfDay bool) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}
