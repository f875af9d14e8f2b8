package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"wallet/internal/core"
	"wallet/internal/storage"
)

type transactionPayload struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"user_id"`
	AccountID int64  `json:"account_id"`
	Title     string `json:"title"`
	Category  int    `json:"category"`
	Amount    int64  `json:"amount"`
	Time      int64  `json:"time"`
	Scheduled bool   `json:"scheduled"`
	SplitID   int64  `json:"split_id,omitempty"`
}

func transactionToPayload(t core.Transaction) transactionPayload {
	return transactionPayload{
		ID:        t.ID,
		UserID:    t.UserID,
		AccountID: t.AccountID,
		Title:     t.Title,
		Category:  int(t.Category),
		Amount:    t.Amount,
		Time:      t.Time.Unix(),
		Scheduled: t.Scheduled,
		SplitID:   t.SplitID,
	}
}

type transactionRequest struct {
	UserID    int64  `json:"user_id"`
	AccountID int64  `json:"account_id"`
	Title     string `json:"title"`
	Category  int    `json:"category"`
	Amount    int64  `json:"amount"`
	Time      int64  `json:"time"`
	Scheduled bool   `json:"scheduled"`
}

func (req transactionRequest) toTransaction() core.Transaction {
	when := time.Now()
	if req.Time != 0 {
		when = time.Unix(req.Time, 0)
	}
	return core.Transaction{
		UserID:    req.UserID,
		AccountID: req.AccountID,
		Title:     sanitizeInput(req.Title),
		Category:  core.Category(req.Category),
		Amount:    req.Amount,
		Time:      when,
		Scheduled: req.Scheduled,
	}
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.UserID <= 0 || req.AccountID <= 0 {
		badRequest(w, "user_id and account_id are required")
		return
	}

	created, err := s.ledger.RecordTransaction(r.Context(), req.toTransaction())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, transactionToPayload(created))
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid transaction id")
		return
	}

	t, err := s.ledger.GetTransaction(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transactionToPayload(t))
}

func transactionFilterFromQuery(r *http.Request) (storage.TransactionFilter, error) {
	var f storage.TransactionFilter
	var err error

	if f.UserID, err = queryInt64(r, "user_id", 0); err != nil {
		return f, err
	}
	if f.AccountID, err = queryInt64(r, "account_id", 0); err != nil {
		return f, err
	}
	if f.SplitID, err = queryInt64(r, "split_id", 0); err != nil {
		return f, err
	}
	if v := strings.TrimSpace(r.URL.Query().Get("category")); v != "" {
		code, err := strconv.Atoi(v)
		if err != nil {
			return f, err
		}
		c := core.Category(code)
		f.Category = &c
	}
	if v := strings.TrimSpace(r.URL.Query().Get("scheduled")); v != "" {
		scheduled, err := strconv.ParseBool(v)
		if err != nil {
			return f, err
		}
		f.Scheduled = &scheduled
	}
	if v, err := queryInt64(r, "from", 0); err != nil {
		return f, err
	} else if v != 0 {
		f.From = time.Unix(v, 0)
	}
	if v, err := queryInt64(r, "to", 0); err != nil {
		return f, err
	} else if v != 0 {
		f.To = time.Unix(v, 0)
	}
	if limit, err := queryInt64(r, "limit", 0); err != nil {
		return f, err
	} else {
		f.Limit = int(limit)
	}

	return f, nil
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	f, err := transactionFilterFromQuery(r)
	if err != nil {
		badRequest(w, "invalid filter parameter")
		return
	}
	if f.UserID <= 0 {
		badRequest(w, "user_id is required")
		return
	}

	transactions, err := s.ledger.ListTransactions(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]transactionPayload, 0, len(transactions))
	for _, t := range transactions {
		out = append(out, transactionToPayload(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid transaction id")
		return
	}

	var req transactionRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	t := req.toTransaction()
	t.ID = id
	if req.Time == 0 {
		// Keep the stored time unless the client sets one.
		t.Time = time.Time{}
	}
	updated, err := s.ledger.UpdateTransaction(r.Context(), t)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transactionToPayload(updated))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid transaction id")
		return
	}

	if err := s.ledger.DeleteTransaction(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCategoryTotals(w http.ResponseWriter, r *http.Request) {
	userID, err := queryInt64(r, "user_id", 0)
	if err != nil || userID <= 0 {
		badRequest(w, "user_id is required")
		return
	}
	accountID, err := queryInt64(r, "account_id", 0)
	if err != nil {
		badRequest(w, "invalid account_id")
		return
	}
	year, month := parseYearMonth(r)

	totals, err := s.ledger.CategoryTotals(r.Context(), userID, accountID, year, month)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make(map[string]int64, len(totals))
	for c, total := range totals {
		out[c.String()] = total
	}
	writeJSON(w, http.StatusOK, out)
}
