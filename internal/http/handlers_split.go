package http

import (
	"net/http"

	"wallet/internal/core"
)

type splitPayload struct {
	ID             int64   `json:"id"`
	Title          string  `json:"title"`
	Category       int     `json:"category"`
	TotalAmount    int64   `json:"total_amount"`
	CreatorID      int64   `json:"creator_id"`
	PayingFriendID int64   `json:"paying_friend_id"`
	Friends        []int64 `json:"friends"`
}

func splitToPayload(s core.SplitTransaction) splitPayload {
	return splitPayload{
		ID:             s.ID,
		Title:          s.Title,
		Category:       int(s.Category),
		TotalAmount:    s.TotalAmount,
		CreatorID:      s.CreatorID,
		PayingFriendID: s.PayingFriendID,
		Friends:        s.Friends,
	}
}

type sharePayload struct {
	Payable   int64 `json:"payable"`
	Required  int64 `json:"required"`
	Paid      int64 `json:"paid"`
	Completed bool  `json:"completed"`
}

func shareToPayload(st core.ShareStatus) sharePayload {
	return sharePayload{
		Payable:   st.Payable,
		Required:  st.Required,
		Paid:      st.Paid,
		Completed: st.Completed(),
	}
}

type createSplitRequest struct {
	Title          string  `json:"title"`
	Category       int     `json:"category"`
	TotalAmount    int64   `json:"total_amount"`
	CreatorID      int64   `json:"creator_id"`
	PayingFriendID int64   `json:"paying_friend_id"`
	Friends        []int64 `json:"friends"`
}

func (s *Server) handleCreateSplit(w http.ResponseWriter, r *http.Request) {
	var req createSplitRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.CreatorID <= 0 || req.PayingFriendID <= 0 {
		badRequest(w, "creator_id and paying_friend_id are required")
		return
	}

	split, err := s.splits.Create(r.Context(), core.SplitTransaction{
		Title:          sanitizeInput(req.Title),
		Category:       core.Category(req.Category),
		TotalAmount:    req.TotalAmount,
		CreatorID:      req.CreatorID,
		PayingFriendID: req.PayingFriendID,
		Friends:        req.Friends,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, splitToPayload(split))
}

func (s *Server) handleListSplits(w http.ResponseWriter, r *http.Request) {
	userID, err := queryInt64(r, "user_id", 0)
	if err != nil || userID <= 0 {
		badRequest(w, "user_id is required")
		return
	}

	splits, err := s.splits.ListForUser(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]splitPayload, 0, len(splits))
	for _, sp := range splits {
		out = append(out, splitToPayload(sp))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetSplit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid split id")
		return
	}

	split, err := s.splits.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, splitToPayload(split))
}

func (s *Server) handleDeleteSplit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid split id")
		return
	}

	if err := s.splits.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSplitPayable(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid split id")
		return
	}
	userID, err := queryInt64(r, "user_id", 0)
	if err != nil || userID <= 0 {
		badRequest(w, "user_id is required")
		return
	}

	split, err := s.splits.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	status, err := s.splits.PayableAmount(r.Context(), userID, split)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, shareToPayload(status))
}

type paySplitRequest struct {
	UserID int64 `json:"user_id"`
	Amount int64 `json:"amount"`
}

func (s *Server) handlePaySplit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		badRequest(w, "invalid split id")
		return
	}

	var req paySplitRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.UserID <= 0 {
		badRequest(w, "user_id is required")
		return
	}

	if err := s.splits.Pay(r.Context(), req.UserID, id, req.Amount); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMaxPayableSplits(w http.ResponseWriter, r *http.Request) {
	userID, err := queryInt64(r, "user_id", 0)
	if err != nil || userID <= 0 {
		badRequest(w, "user_id is required")
		return
	}
	limit, err := queryInt64(r, "limit", 0)
	if err != nil {
		badRequest(w, "invalid limit")
		return
	}

	due, err := s.splits.MaxPayableSplits(r.Context(), userID, int(limit))
	if err != nil {
		writeError(w, r, err)
		return
	}

	type duePayload struct {
		Split  splitPayload `json:"split"`
		Status sharePayload `json:"status"`
	}
	out := make([]duePayload, 0, len(due))
	for _, d := range due {
		out = append(out, duePayload{Split: splitToPayload(d.Split), Status: shareToPayload(d.Status)})
	}
	writeJSON(w, http.StatusOK, out)
}
