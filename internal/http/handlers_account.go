package http

import (
	"net/http"
	"time"

	"wallet/internal/core"
)

type accountPayload struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"user_id"`
	Title     string `json:"title"`
	Balance   int64  `json:"balance"`
	Limit     int64  `json:"limit"`
	CreatedAt string `json:"created_at"`
}

func accountToPayload(a core.CashAccount) accountPayload {
	return accountPayload{
		ID:        a.ID,
		UserID:    a.UserID,
		Title:     a.Title,
		Balance:   a.Balance,
		Limit:     a.Limit,
		CreatedAt: a.CreatedAt.UTC().Format(time.RFC3339),
	}
}

type createAccountRequest struct {
	UserID int64  `json:"user_id"`
	Title  string `json:"title"`
	Limit  int64  `json:"limit"`
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.UserID <= 0 {
		badRequest(w, "user_id is required")
		return
	}

	title := sanitizeInput(req.Title)

	var (
		account core.CashAccount
		err     error
	)
	if title == "" {
		account, err = s.ledger.CreateDefaultCashAccount(r.Context(), req.UserID)
	} else {
		account, err = s.ledger.CreateAccount(r.Context(), req.UserID, title, req.Limit)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, accountToPayload(account))
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	userID, err := queryInt64(r, "user_id", 0)
	if err != nil || userID <= 0 {
		badRequest(w, "user_id is required")
		return
	}

	accounts, err := s.ledger.ListAccounts(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]accountPayload, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, accountToPayload(a))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid account id")
		return
	}

	account, err := s.ledger.GetAccount(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accountToPayload(account))
}

type updateAccountRequest struct {
	Title   string `json:"title"`
	Balance int64  `json:"balance"`
	Limit   int64  `json:"limit"`
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid account id")
		return
	}

	var req updateAccountRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	account, err := s.ledger.GetAccount(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if title := sanitizeInput(req.Title); title != "" {
		account.Title = title
	}
	account.Balance = req.Balance
	account.Limit = req.Limit

	if err := s.ledger.UpdateAccount(r.Context(), account); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accountToPayload(account))
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid account id")
		return
	}

	if err := s.ledger.DeleteAccount(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAccountExpenses(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid account id")
		return
	}

	total, err := s.ledger.AccountExpenses(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"account_id": id, "expenses": total})
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	type categoryPayload struct {
		Code int    `json:"code"`
		Name string `json:"name"`
	}
	out := make([]categoryPayload, 0, len(core.Categories()))
	for _, c := range core.Categories() {
		out = append(out, categoryPayload{Code: int(c), Name: c.String()})
	}
	writeJSON(w, http.StatusOK, out)
}
