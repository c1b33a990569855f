package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"

	"github.com/JoeShih716/go-account-ledger/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-account-ledger/internal/app/core/credential"
	"github.com/JoeShih716/go-account-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-account-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-account-ledger/pkg/token"
)

// ---- helpers ----

func newTestRouter(t *testing.T, core Ledger, logger *zap.Logger) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	tokens, err := token.NewIssuer("test-secret", time.Hour)
	require.NoError(t, err)
	return NewRouter(NewHandler(core, tokens, logger), tokens, logger)
}

func newLedgerRouter(t *testing.T) *gin.Engine {
	t.Helper()
	checker, err := credential.NewChecker(bcrypt.MinCost)
	require.NoError(t, err)
	return newTestRouter(t, usecase.NewCoreUseCase(memory.NewMutexStore(), checker), zap.NewNop())
}

func doRequest(router *gin.Engine, method, url, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, url, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createAccount(t *testing.T, router *gin.Engine, name, password string, balance float64) {
	t.Helper()
	body, _ := json.Marshal(map[string]any{"name": name, "password": password, "balance": balance})
	w := doRequest(router, http.MethodPost, "/create_account", string(body), nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func authHeader(t *testing.T, router *gin.Engine, name, password string) map[string]string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"name": name, "password": password})
	w := doRequest(router, http.MethodPost, "/login", string(body), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp tokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return map[string]string{"Authorization": "Bearer " + resp.AccessToken}
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// ---- tests ----

func TestCreateAccount(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		expectedStatus int
	}{
		{"success", `{"name":"alice","password":"pass","balance":100}`, http.StatusCreated},
		{"duplicate name", `{"name":"alice","password":"other","balance":1}`, http.StatusBadRequest},
		{"invalid data", `{"name":"","password":"","balance":-1}`, http.StatusBadRequest},
		{"malformed json", `{"name":`, http.StatusBadRequest},
	}
	router := newLedgerRouter(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, http.MethodPost, "/create_account", tt.body, nil)
			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
			resp := decode(t, w)
			if tt.expectedStatus == http.StatusCreated {
				assert.Equal(t, float64(1), resp["id"])
				assert.Equal(t, "alice", resp["name"])
				assert.Equal(t, float64(100), resp["balance"])
				assert.NotContains(t, resp, "password")
				assert.NotContains(t, resp, "password_hash")
			} else {
				assert.Contains(t, resp, "error")
			}
		})
	}
}

func TestCreateAccountReportsFieldDetails(t *testing.T) {
	router := newLedgerRouter(t)
	w := doRequest(router, http.MethodPost, "/create_account", `{"name":"","password":"","balance":-1}`, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []domain.Violation{
		{Field: "name", Message: "must not be blank"},
		{Field: "password", Message: "must not be blank"},
		{Field: "balance", Message: "must not be negative"},
	}, resp.Details)
}

func TestLogin(t *testing.T) {
	router := newLedgerRouter(t)
	createAccount(t, router, "alice", "pass", 100)

	tests := []struct {
		name           string
		body           string
		expectedStatus int
	}{
		{"success", `{"name":"alice","password":"pass"}`, http.StatusOK},
		{"wrong password", `{"name":"alice","password":"nope"}`, http.StatusUnauthorized},
		{"unknown name", `{"name":"bob","password":"pass"}`, http.StatusUnauthorized},
		{"missing fields", `{}`, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, http.MethodPost, "/login", tt.body, nil)
			assert.Equal(t, tt.expectedStatus, w.Code)
			resp := decode(t, w)
			if tt.expectedStatus == http.StatusOK {
				assert.NotEmpty(t, resp["access_token"])
			} else {
				assert.Equal(t, "authentication failed: invalid name or password", resp["error"])
			}
		})
	}
}

func TestDepositAndWithdraw(t *testing.T) {
	router := newLedgerRouter(t)
	createAccount(t, router, "alice", "pass", 100)
	auth := authHeader(t, router, "alice", "pass")

	tests := []struct {
		name            string
		path            string
		body            string
		headers         map[string]string
		expectedStatus  int
		expectedBalance float64
	}{
		{"deposit success", "/deposit", `{"account_id":1,"amount":50}`, auth, http.StatusOK, 150},
		{"deposit without token", "/deposit", `{"account_id":1,"amount":50}`, nil, http.StatusUnauthorized, 0},
		{"deposit bad token", "/deposit", `{"account_id":1,"amount":50}`, map[string]string{"Authorization": "Bearer nope"}, http.StatusUnauthorized, 0},
		{"deposit negative amount", "/deposit", `{"account_id":1,"amount":-10}`, auth, http.StatusBadRequest, 0},
		{"deposit unknown account", "/deposit", `{"account_id":999,"amount":10}`, auth, http.StatusNotFound, 0},
		{"withdraw success", "/withdraw", `{"account_id":1,"amount":100}`, auth, http.StatusOK, 50},
		{"withdraw insufficient funds", "/withdraw", `{"account_id":1,"amount":200}`, auth, http.StatusBadRequest, 0},
		{"withdraw without token", "/withdraw", `{"account_id":1,"amount":10}`, nil, http.StatusUnauthorized, 0},
		{"withdraw invalid data", "/withdraw", `{"account_id":1,"amount":-10}`, auth, http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, http.MethodPost, tt.path, tt.body, tt.headers)
			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
			resp := decode(t, w)
			if tt.expectedStatus == http.StatusOK {
				assert.Equal(t, tt.expectedBalance, resp["balance"])
			} else {
				assert.Contains(t, resp, "error")
			}
		})
	}
}

func TestTransfer(t *testing.T) {
	router := newLedgerRouter(t)
	createAccount(t, router, "alice", "pass", 100)
	createAccount(t, router, "bob", "word", 50)
	auth := authHeader(t, router, "alice", "pass")

	w := doRequest(router, http.MethodPost, "/transfer", `{"from_account_id":1,"to_account_id":2,"amount":30}`, auth)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var accounts []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &accounts))
	require.Len(t, accounts, 2)
	assert.Equal(t, float64(70), accounts[0]["balance"])
	assert.Equal(t, float64(80), accounts[1]["balance"])

	failures := []struct {
		name           string
		body           string
		headers        map[string]string
		expectedStatus int
	}{
		{"insufficient funds", `{"from_account_id":1,"to_account_id":2,"amount":300}`, auth, http.StatusBadRequest},
		{"same account", `{"from_account_id":1,"to_account_id":1,"amount":10}`, auth, http.StatusBadRequest},
		{"without token", `{"from_account_id":1,"to_account_id":2,"amount":10}`, nil, http.StatusUnauthorized},
		{"invalid data", `{"from_account_id":1,"to_account_id":2,"amount":-10}`, auth, http.StatusBadRequest},
		{"unknown destination", `{"from_account_id":1,"to_account_id":9,"amount":10}`, auth, http.StatusNotFound},
	}
	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(router, http.MethodPost, "/transfer", tt.body, tt.headers)
			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
			assert.Contains(t, decode(t, w), "error")
		})
	}

	// 失敗的轉帳不影響餘額
	w = doRequest(router, http.MethodGet, "/accounts/1", "", auth)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(70), decode(t, w)["balance"])
}

func TestGetAccountAndHealth(t *testing.T) {
	router := newLedgerRouter(t)
	createAccount(t, router, "alice", "pass", 12.5)
	auth := authHeader(t, router, "alice", "pass")

	w := doRequest(router, http.MethodGet, "/accounts/1", "", auth)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 12.5, decode(t, w)["balance"])

	w = doRequest(router, http.MethodGet, "/accounts/abc", "", auth)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(router, http.MethodGet, "/accounts/7", "", auth)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(router, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])

	w = doRequest(router, http.MethodGet, "/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// ---- mock implementation ----

type mockLedger struct {
	depositFn func(context.Context, []byte) (domain.Snapshot, error)
}

func (m *mockLedger) CreateAccount(context.Context, []byte) (domain.Snapshot, error) {
	return domain.Snapshot{}, errors.New("not configured")
}

func (m *mockLedger) Authenticate(context.Context, []byte) (string, error) {
	return "alice", nil
}

func (m *mockLedger) Deposit(ctx context.Context, raw []byte) (domain.Snapshot, error) {
	return m.depositFn(ctx, raw)
}

func (m *mockLedger) Withdraw(context.Context, []byte) (domain.Snapshot, error) {
	panic("withdraw exploded")
}

func (m *mockLedger) Transfer(context.Context, []byte) (domain.Snapshot, domain.Snapshot, error) {
	return domain.Snapshot{}, domain.Snapshot{}, errors.New("not configured")
}

func (m *mockLedger) GetAccount(context.Context, int64) (domain.Snapshot, error) {
	return domain.Snapshot{}, errors.New("not configured")
}

func TestUnexpectedErrorsReturn500(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ledger := &mockLedger{depositFn: func(context.Context, []byte) (domain.Snapshot, error) {
		return domain.Snapshot{}, errors.New("fail!")
	}}
	router := newTestRouter(t, ledger, zap.New(core))
	auth := authHeader(t, router, "alice", "pass")

	w := doRequest(router, http.MethodPost, "/deposit", `{"account_id":1,"amount":10}`, auth)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal error", decode(t, w)["error"])
	assert.NotContains(t, w.Body.String(), "fail!")

	internal := logs.FilterMessage("ledger internal error").All()
	require.Len(t, internal, 1)
	assert.Equal(t, "fail!", internal[0].ContextMap()["cause"])

	w = doRequest(router, http.MethodPost, "/withdraw", `{"account_id":1,"amount":10}`, auth)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal error", decode(t, w)["error"])
	assert.Equal(t, 1, logs.FilterMessage("http handler panic").Len())

	requests := logs.FilterMessage("http request").FilterField(zap.String("account", "alice")).Len()
	assert.Equal(t, 2, requests)
}
