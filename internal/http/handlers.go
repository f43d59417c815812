package http

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"pocketfin/internal/ledger"
	"pocketfin/internal/queue"
)

const maxBodyBytes = 1 << 20

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r, "") {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	settings, err := s.svc.GetSettings(r.Context())
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeOK(w, r, envelope{"settings": settings})
}

func (s *Server) handleGetCategories(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r, "") {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	cats, err := s.svc.GetCategories(r.Context())
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeOK(w, r, envelope{"categories": cats})
}

func (s *Server) handleGetBudgets(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r, "") {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	budgets, err := s.svc.GetBudgets(r.Context())
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeOK(w, r, envelope{"budgets": budgets})
}

func (s *Server) handleGetMovements(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r, "") {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	month := r.URL.Query().Get("month")
	movs, err := s.svc.GetMovements(r.Context(), month)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeOK(w, r, envelope{"movements": movs, "month": month})
}

func (s *Server) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r, "") {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	month := r.URL.Query().Get("month")
	summary, err := s.svc.GetSummary(r.Context(), month)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeOK(w, r, envelope{"summary": summary})
}

// handleExport streams the (optionally month-filtered) movements as CSV in
// the stored column order.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r, "") {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	month := r.URL.Query().Get("month")
	movs, err := s.svc.GetMovements(r.Context(), month)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}

	name := "movements.csv"
	if month != "" {
		name = "movements_" + month + ".csv"
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"id", "date", "accounting_month", "type", "raw_category", "amount", "note", "created_at"})
	for _, m := range movs {
		_ = cw.Write([]string{
			m.ID, m.Date, m.AccountingMonth, m.Type, m.RawCategory,
			strconv.FormatFloat(m.Amount, 'f', -1, 64), m.Note, m.CreatedAt,
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		slog.ErrorContext(r.Context(), "CSV export write failed", "error", err)
	}
}

type addRequest struct {
	APIKey          string   `json:"api_key"`
	Amount          *float64 `json:"amount"`
	Type            string   `json:"type"`
	RawCategory     string   `json:"raw_category"`
	Date            string   `json:"date"`
	AccountingMonth string   `json:"accounting_month"`
	Note            string   `json:"note"`
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if !s.authorized(r, req.APIKey) {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	if req.Amount == nil {
		writeError(w, r, http.StatusBadRequest, "invalid amount: missing")
		return
	}

	in := ledger.AddInput{
		Amount:          *req.Amount,
		Type:            req.Type,
		RawCategory:     req.RawCategory,
		Date:            req.Date,
		AccountingMonth: req.AccountingMonth,
		Note:            req.Note,
	}

	if s.queueWrites {
		s.publish(w, r, queue.NewAddMutation(queue.AddPayload{
			Amount:          in.Amount,
			Type:            in.Type,
			RawCategory:     in.RawCategory,
			Date:            in.Date,
			AccountingMonth: in.AccountingMonth,
			Note:            in.Note,
		}))
		return
	}

	m, err := s.svc.AddMovement(r.Context(), in)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeOK(w, r, envelope{"movement": m})
}

type updateRequest struct {
	APIKey          string   `json:"api_key"`
	ID              string   `json:"id"`
	Date            *string  `json:"date"`
	AccountingMonth *string  `json:"accounting_month"`
	Type            *string  `json:"type"`
	RawCategory     *string  `json:"raw_category"`
	Amount          *float64 `json:"amount"`
	Note            *string  `json:"note"`
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if !s.authorized(r, req.APIKey) {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	if req.ID == "" {
		writeError(w, r, http.StatusBadRequest, "invalid id: missing")
		return
	}

	patch := ledger.UpdatePatch{
		Date:            req.Date,
		AccountingMonth: req.AccountingMonth,
		Type:            req.Type,
		RawCategory:     req.RawCategory,
		Amount:          req.Amount,
		Note:            req.Note,
	}

	if s.queueWrites {
		s.publish(w, r, queue.NewUpdateMutation(req.ID, queue.PatchPayload{
			Date:            req.Date,
			AccountingMonth: req.AccountingMonth,
			Type:            req.Type,
			RawCategory:     req.RawCategory,
			Amount:          req.Amount,
			Note:            req.Note,
		}))
		return
	}

	m, err := s.svc.UpdateMovement(r.Context(), req.ID, patch)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeOK(w, r, envelope{"movement": m})
}

type deleteRequest struct {
	APIKey string `json:"api_key"`
	ID     string `json:"id"`
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if !s.authorized(r, req.APIKey) {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	if req.ID == "" {
		writeError(w, r, http.StatusBadRequest, "invalid id: missing")
		return
	}

	if s.queueWrites {
		s.publish(w, r, queue.NewDeleteMutation(req.ID))
		return
	}

	deleted, err := s.svc.DeleteMovement(r.Context(), req.ID)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}
	writeOK(w, r, envelope{"deleted": deleted})
}

// publish hands a mutation to the queue and acknowledges acceptance. The
// writes gate is still enforced at replay time by the ledger.
func (s *Server) publish(w http.ResponseWriter, r *http.Request, m *queue.Mutation) {
	if err := s.publisher.PublishMutation(r.Context(), m); err != nil {
		slog.ErrorContext(r.Context(), "Publish mutation failed", "error", err, "op", m.Op)
		writeError(w, r, http.StatusServiceUnavailable, "mutation queue unavailable")
		return
	}
	writeEnvelope(w, r, http.StatusAccepted, envelope{"ok": true, "queued": true, "op": m.Op})
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		writeError(w, r, http.StatusBadRequest, "malformed JSON body")
		return false
	}
	return true
}
