package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"wallet/internal/services"
	"wallet/internal/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	ledger := services.NewLedgerService(repo)
	splits := services.NewSplitService(repo, ledger, nil)
	return NewServer(":0", ledger, splits)
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, &buf)
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decodeInto(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rr.Body.String())
	}
}

func createAccount(t *testing.T, srv *Server, userID int64, title string, limit int64) accountPayload {
	t.Helper()
	rr := doJSON(t, srv, http.MethodPost, "/accounts", createAccountRequest{UserID: userID, Title: title, Limit: limit})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create account status = %d, body %s", rr.Code, rr.Body.String())
	}
	var account accountPayload
	decodeInto(t, rr, &account)
	return account
}

func postIncome(t *testing.T, srv *Server, userID, accountID, amount int64) {
	t.Helper()
	rr := doJSON(t, srv, http.MethodPost, "/transactions", transactionRequest{
		UserID: userID, AccountID: accountID, Title: "income", Category: 0, Amount: amount,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("post income status = %d, body %s", rr.Code, rr.Body.String())
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := doJSON(t, srv, http.MethodGet, path, nil)
		if rr.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, rr.Code)
		}
	}
}

func TestAccountEndpoints(t *testing.T) {
	srv := newTestServer(t)

	t.Run("create with empty title defaults to Cash", func(t *testing.T) {
		account := createAccount(t, srv, 1, "", 0)
		if account.Title != "Cash" {
			t.Errorf("default account title = %q", account.Title)
		}
	})

	t.Run("get and list", func(t *testing.T) {
		created := createAccount(t, srv, 2, "Savings", 500)

		rr := doJSON(t, srv, http.MethodGet, fmt.Sprintf("/accounts/%d", created.ID), nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("get status = %d", rr.Code)
		}
		var got accountPayload
		decodeInto(t, rr, &got)
		if got.Title != "Savings" || got.Limit != 500 {
			t.Errorf("get returned %+v", got)
		}

		rr = doJSON(t, srv, http.MethodGet, "/accounts?user_id=2", nil)
		var accounts []accountPayload
		decodeInto(t, rr, &accounts)
		if len(accounts) != 1 {
			t.Errorf("list returned %d accounts", len(accounts))
		}
	})

	t.Run("missing account is 404", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodGet, "/accounts/99999", nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rr.Code)
		}
	})

	t.Run("missing user_id is 400", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodGet, "/accounts", nil)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rr.Code)
		}
	})

	t.Run("delete", func(t *testing.T) {
		account := createAccount(t, srv, 3, "Temp", 0)
		rr := doJSON(t, srv, http.MethodDelete, fmt.Sprintf("/accounts/%d", account.ID), nil)
		if rr.Code != http.StatusNoContent {
			t.Errorf("delete status = %d", rr.Code)
		}
		rr = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/accounts/%d", account.ID), nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("get after delete status = %d", rr.Code)
		}
	})
}

func TestTransactionEndpoints(t *testing.T) {
	srv := newTestServer(t)
	account := createAccount(t, srv, 1, "", 0)
	postIncome(t, srv, 1, account.ID, 100)

	t.Run("create expense updates balance", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodPost, "/transactions", transactionRequest{
			UserID: 1, AccountID: account.ID, Title: "lunch", Category: 5, Amount: 30,
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
		}

		got := doJSON(t, srv, http.MethodGet, fmt.Sprintf("/accounts/%d", account.ID), nil)
		var a accountPayload
		decodeInto(t, got, &a)
		if a.Balance != 70 {
			t.Errorf("balance = %d, want 70", a.Balance)
		}
	})

	t.Run("insufficient balance is 400", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodPost, "/transactions", transactionRequest{
			UserID: 1, AccountID: account.ID, Title: "tv", Category: 7, Amount: 500,
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400 (body %s)", rr.Code, rr.Body.String())
		}
	})

	t.Run("list with filters", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodGet, "/transactions?user_id=1&category=5", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d", rr.Code)
		}
		var txs []transactionPayload
		decodeInto(t, rr, &txs)
		if len(txs) != 1 || txs[0].Title != "lunch" {
			t.Errorf("filtered list = %+v", txs)
		}
	})

	t.Run("scheduled transaction in the past is 400", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodPost, "/transactions", transactionRequest{
			UserID: 1, AccountID: account.ID, Title: "rent", Category: 7, Amount: 10,
			Time: time.Now().Add(-time.Hour).Unix(), Scheduled: true,
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rr.Code)
		}
	})

	t.Run("update and delete", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodPost, "/transactions", transactionRequest{
			UserID: 1, AccountID: account.ID, Title: "snack", Category: 5, Amount: 10,
		})
		var tx transactionPayload
		decodeInto(t, rr, &tx)

		rr = doJSON(t, srv, http.MethodPut, fmt.Sprintf("/transactions/%d", tx.ID), transactionRequest{
			Title: "bigger snack", Category: 5, Amount: 20,
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("update status = %d, body %s", rr.Code, rr.Body.String())
		}

		rr = doJSON(t, srv, http.MethodDelete, fmt.Sprintf("/transactions/%d", tx.ID), nil)
		if rr.Code != http.StatusNoContent {
			t.Errorf("delete status = %d", rr.Code)
		}
	})

	t.Run("category totals", func(t *testing.T) {
		now := time.Now()
		rr := doJSON(t, srv, http.MethodGet,
			fmt.Sprintf("/transactions/totals?user_id=1&account_id=%d&year=%d&month=%d",
				account.ID, now.Year(), int(now.Month())), nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d", rr.Code)
		}
		var totals map[string]int64
		decodeInto(t, rr, &totals)
		if totals["Food"] != 30 {
			t.Errorf("Food total = %d, want 30", totals["Food"])
		}
	})
}

func TestSplitEndpoints(t *testing.T) {
	srv := newTestServer(t)
	payer := createAccount(t, srv, 2, "", 0)
	postIncome(t, srv, 2, payer.ID, 200)
	participant := createAccount(t, srv, 1, "", 0)
	postIncome(t, srv, 1, participant.ID, 100)

	var split splitPayload
	t.Run("create", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodPost, "/splits", createSplitRequest{
			Title: "Trip", Category: 4, TotalAmount: 100,
			CreatorID: 1, PayingFriendID: 2, Friends: []int64{1, 3, 4, 5},
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
		}
		decodeInto(t, rr, &split)
		if split.ID == 0 {
			t.Fatal("split id missing")
		}
	})

	t.Run("payable share", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodGet, fmt.Sprintf("/splits/%d/payable?user_id=1", split.ID), nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d", rr.Code)
		}
		var share sharePayload
		decodeInto(t, rr, &share)
		if share.Required != 25 || share.Payable != 25 || share.Completed {
			t.Errorf("share = %+v", share)
		}
	})

	t.Run("pay full share", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodPost, fmt.Sprintf("/splits/%d/pay", split.ID), paySplitRequest{UserID: 1, Amount: 25})
		if rr.Code != http.StatusNoContent {
			t.Fatalf("pay status = %d, body %s", rr.Code, rr.Body.String())
		}

		rr = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/splits/%d/payable?user_id=1", split.ID), nil)
		var share sharePayload
		decodeInto(t, rr, &share)
		if !share.Completed || share.Payable != 0 {
			t.Errorf("share after payment = %+v", share)
		}
	})

	t.Run("overpayment is 400", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodPost, fmt.Sprintf("/splits/%d/pay", split.ID), paySplitRequest{UserID: 1, Amount: 10})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rr.Code)
		}
	})

	t.Run("list for user", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodGet, "/splits?user_id=3", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d", rr.Code)
		}
		var splits []splitPayload
		decodeInto(t, rr, &splits)
		if len(splits) != 1 {
			t.Errorf("list returned %d splits", len(splits))
		}
	})

	t.Run("max payable", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodGet, "/splits/max-payable?user_id=3", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d", rr.Code)
		}
	})

	t.Run("missing split is 404", func(t *testing.T) {
		rr := doJSON(t, srv, http.MethodGet, "/splits/99999", nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rr.Code)
		}
	})
}

func TestCategoriesEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rr := doJSON(t, srv, http.MethodGet, "/categories", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var categories []struct {
		Code int    `json:"code"`
		Name string `json:"name"`
	}
	decodeInto(t, rr, &categories)
	if len(categories) != 8 {
		t.Fatalf("categories = %d, want 8", len(categories))
	}
	if categories[0].Code != 0 || categories[0].Name != "Income" {
		t.Errorf("first category = %+v", categories[0])
	}
	if categories[7].Name != "Other" {
		t.Errorf("last category = %+v", categories[7])
	}
}
