package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"loanbook/internal/adapters/http/middleware"
	"loanbook/internal/adapters/persistence/memstore"
	"loanbook/internal/adapters/persistence/models"
	"loanbook/internal/config"
	"loanbook/internal/core/domain"
	"loanbook/internal/core/services"
	"loanbook/internal/pkg/password"
	"loanbook/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	password.Cost = bcrypt.MinCost
	os.Exit(m.Run())
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type server struct {
	t      *testing.T
	app    *fiber.App
	store  *memstore.Store
	outbox *services.MemoryAuditOutbox
	audit  *services.AuditService
}

type serverOptions struct {
	deferred     bool
	dbErr        error
	authenticate fiber.Handler
}

func newServer(t *testing.T, opts serverOptions) *server {
	t.Helper()
	cfg := &config.Config{
		AppMode: "dev",
		JWT:     config.JWTConfig{Secret: "s", RefreshSecret: "r", AccessTokenMins: 15, RefreshTokenDays: 7},
	}
	store := memstore.New()
	outbox := services.NewMemoryAuditOutbox()
	audit := services.NewAuditService(store, outbox, 3)

	svc := &Services{
		Auth:      services.NewAuthService(store, cfg),
		User:      services.NewUserService(store),
		Customer:  services.NewCustomerService(store),
		Loan:      services.NewLoanService(store),
		Borrowing: services.NewBorrowingService(store),
		Audit:     audit,
		Mutation: services.NewMutationService(services.MutationConfig{
			Store:    store,
			Ledger:   services.NewLedgerEngine(services.NoAccrual),
			Outbox:   outbox,
			Deferred: opts.deferred,
		}),
	}

	app := fiber.New(fiber.Config{ErrorHandler: middleware.CustomErrorHandler})
	Setup(app, svc, cfg, Options{DB: pinger{opts.dbErr}, Authenticate: opts.authenticate})
	return &server{t: t, app: app, store: store, outbox: outbox, audit: audit}
}

func (s *server) user(name string, role domain.Role, grants domain.ManagerGrants) *models.User {
	s.t.Helper()
	hash, err := password.Hash("password123")
	if err != nil {
		s.t.Fatalf("hash: %v", err)
	}
	u := &models.User{Name: name, Email: name + "@loanbook.test", Password: hash, Role: string(role), IsActive: true}
	u.SetGrants(grants)
	if err := s.store.Users().Create(context.Background(), u); err != nil {
		s.t.Fatalf("create user: %v", err)
	}
	return u
}

func (s *server) customerWithLoan(name string, status domain.LoanStatus) (*models.Customer, *models.Loan) {
	s.t.Helper()
	u := s.user(name, domain.RoleCustomer, domain.ManagerGrants{})
	ctx := context.Background()
	c := &models.Customer{UserID: u.ID, KYCStatus: string(domain.KYCVerified)}
	if err := s.store.Customers().Create(ctx, c); err != nil {
		s.t.Fatalf("create customer: %v", err)
	}
	l := &models.Loan{
		CustomerID:           c.ID,
		CreatedByID:          1,
		Principal:            decimal.NewFromInt(1000),
		InterestRate:         decimal.NewFromInt(12),
		Frequency:            string(domain.FrequencyMonthly),
		OutstandingPrincipal: decimal.NewFromInt(1000),
		Status:               string(status),
		StartDate:            time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := s.store.Loans().Create(ctx, l); err != nil {
		s.t.Fatalf("create loan: %v", err)
	}
	return c, l
}

func (s *server) login(email string) string {
	s.t.Helper()
	code, body := s.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": email, "password": "password123"})
	if code != fiber.StatusOK {
		s.t.Fatalf("login %s = %d %s", email, code, body.Error)
	}
	var auth services.AuthResponse
	if err := json.Unmarshal(body.Data, &auth); err != nil {
		s.t.Fatalf("decode login: %v", err)
	}
	return auth.AccessToken
}

type envelope struct {
	Success bool                  `json:"success"`
	Message string                `json:"message"`
	Error   string                `json:"error"`
	Kind    string                `json:"kind"`
	Data    json.RawMessage       `json:"data"`
	Details *response.ErrorDetail `json:"details"`
}

func (s *server) do(method, path, token string, body interface{}) (int, envelope) {
	s.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			s.t.Fatalf("encode: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.app.Test(req, -1)
	if err != nil {
		s.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			s.t.Fatalf("%s %s: decode %q: %v", method, path, raw, err)
		}
	}
	return resp.StatusCode, env
}

func TestHealth(t *testing.T) {
	s := newServer(t, serverOptions{})
	if code, _ := s.do(http.MethodGet, "/health", "", nil); code != fiber.StatusOK {
		t.Errorf("healthy = %d", code)
	}

	down := newServer(t, serverOptions{dbErr: errors.New("connection refused")})
	if code, _ := down.do(http.MethodGet, "/health", "", nil); code != fiber.StatusServiceUnavailable {
		t.Errorf("db down = %d", code)
	}
}

func TestAuthentication(t *testing.T) {
	s := newServer(t, serverOptions{})
	s.user("ana", domain.RoleAgent, domain.ManagerGrants{})

	if code, _ := s.do(http.MethodGet, "/api/v1/auth/me", "", nil); code != fiber.StatusUnauthorized {
		t.Errorf("no token = %d", code)
	}
	if code, body := s.do(http.MethodGet, "/api/v1/auth/me", "garbage", nil); code != fiber.StatusUnauthorized || body.Kind != string(domain.KindAuthentication) {
		t.Errorf("bad token = %d %s", code, body.Kind)
	}

	token := s.login("ana@loanbook.test")
	code, body := s.do(http.MethodGet, "/api/v1/auth/me", token, nil)
	if code != fiber.StatusOK {
		t.Fatalf("me = %d %s", code, body.Error)
	}
	var me models.UserResponse
	if err := json.Unmarshal(body.Data, &me); err != nil || me.Email != "ana@loanbook.test" {
		t.Errorf("me = %+v, %v", me, err)
	}

	code, body = s.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "ana@loanbook.test", "password": "wrong-password"})
	if code != fiber.StatusUnauthorized {
		t.Errorf("wrong password = %d", code)
	}
}

func TestRoleRouting(t *testing.T) {
	s := newServer(t, serverOptions{})
	s.user("bo", domain.RoleManager, domain.ManagerGrants{})
	s.customerWithLoan("cy", domain.LoanActive)

	manager := s.login("bo@loanbook.test")
	customer := s.login("cy@loanbook.test")

	if code, _ := s.do(http.MethodGet, "/api/v1/users", customer, nil); code != fiber.StatusForbidden {
		t.Errorf("customer on /users = %d", code)
	}
	if code, _ := s.do(http.MethodGet, "/api/v1/audit-logs", manager, nil); code != fiber.StatusForbidden {
		t.Errorf("manager on /audit-logs = %d", code)
	}
	if code, _ := s.do(http.MethodGet, "/api/v1/customers/me", customer, nil); code != fiber.StatusOK {
		t.Errorf("customer on /customers/me = %d", code)
	}
	if code, _ := s.do(http.MethodGet, "/api/v1/customers/me", manager, nil); code != fiber.StatusForbidden {
		t.Errorf("manager on /customers/me = %d", code)
	}
	if code, body := s.do(http.MethodGet, "/api/v1/loans/abc", manager, nil); code != fiber.StatusBadRequest || body.Details == nil || body.Details.Field != "id" {
		t.Errorf("bad id = %d %+v", code, body.Details)
	}
}

func collectionBody(amount, receipt string) map[string]interface{} {
	return map[string]interface{}{
		"amount":          amount,
		"payment_method":  "CASH",
		"receipt_number":  receipt,
		"collection_date": "2024-02-01T00:00:00Z",
	}
}

func TestPostCollection(t *testing.T) {
	s := newServer(t, serverOptions{})
	s.user("dee", domain.RoleAdmin, domain.ManagerGrants{})
	_, loan := s.customerWithLoan("eli", domain.LoanActive)
	admin := s.login("dee@loanbook.test")
	path := "/api/v1/loans/" + itoa(loan.ID) + "/collections"

	code, body := s.do(http.MethodPost, path, admin, collectionBody("250.00", "R-1"))
	if code != fiber.StatusCreated {
		t.Fatalf("post = %d %s", code, body.Error)
	}
	var result struct {
		Loan       models.Loan       `json:"loan"`
		Collection models.Collection `json:"collection"`
	}
	if err := json.Unmarshal(body.Data, &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !result.Loan.OutstandingPrincipal.Equal(decimal.NewFromInt(750)) {
		t.Errorf("outstanding = %s", result.Loan.OutstandingPrincipal)
	}

	code, body = s.do(http.MethodPost, path, admin, collectionBody("10", "R-1"))
	if code != fiber.StatusConflict || body.Kind != string(domain.KindConflict) {
		t.Errorf("duplicate receipt = %d %s", code, body.Kind)
	}

	code, body = s.do(http.MethodPost, path, admin, collectionBody("800", "R-2"))
	if code != fiber.StatusUnprocessableEntity || body.Details == nil || body.Details.Excess != "50.00" {
		t.Errorf("overpayment = %d %+v", code, body.Details)
	}

	code, body = s.do(http.MethodGet, "/api/v1/audit-logs?entity_type=COLLECTION", admin, nil)
	if code != fiber.StatusOK {
		t.Fatalf("audit = %d %s", code, body.Error)
	}
	var page struct {
		Data []struct {
			Action     string `json:"action"`
			EntityType string `json:"entity_type"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body.Data, &page); err != nil {
		t.Fatalf("decode audit: %v", err)
	}
	if len(page.Data) != 1 || page.Data[0].Action != string(domain.AuditCollectionPost) {
		t.Errorf("audit page = %+v", page.Data)
	}
}

func TestDegradedPostingAnswers202(t *testing.T) {
	// first user created in a fresh store gets id 1
	admin := domain.NewActor(1, "root", domain.RoleAdmin, true, domain.ManagerGrants{})
	s := newServer(t, serverOptions{deferred: true, authenticate: middleware.WithActor(admin)})
	if u := s.user("root", domain.RoleAdmin, domain.ManagerGrants{}); u.ID != admin.ID {
		t.Fatalf("admin id = %d, want %d", u.ID, admin.ID)
	}
	_, loan := s.customerWithLoan("fay", domain.LoanActive)

	s.store.SetFailAuditWrites(true)
	code, body := s.do(http.MethodPost, "/api/v1/loans/"+itoa(loan.ID)+"/collections", "", collectionBody("100", "R-DEG"))
	if code != fiber.StatusAccepted || body.Kind != string(domain.KindAuditPersistence) || len(body.Data) == 0 {
		t.Fatalf("degraded post = %d %s", code, body.Kind)
	}

	code, body = s.do(http.MethodGet, "/api/v1/audit-logs/pending", "", nil)
	if code != fiber.StatusOK {
		t.Fatalf("pending = %d", code)
	}
	var pending struct {
		Pending int `json:"pending"`
	}
	if err := json.Unmarshal(body.Data, &pending); err != nil || pending.Pending != 1 {
		t.Errorf("pending = %+v, %v", pending, err)
	}

	s.store.SetFailAuditWrites(false)
	if n, err := s.audit.RetryPending(context.Background()); err != nil || n != 1 {
		t.Errorf("retry = %d, %v", n, err)
	}
}

func TestDeleteCustomerUserWithActiveLoan(t *testing.T) {
	s := newServer(t, serverOptions{})
	s.user("gus", domain.RoleAdmin, domain.ManagerGrants{})
	c, loan := s.customerWithLoan("hal", domain.LoanActive)
	admin := s.login("gus@loanbook.test")
	userPath := "/api/v1/users/" + itoa(c.UserID)

	code, body := s.do(http.MethodGet, userPath+"/deletion-check", admin, nil)
	var decision domain.Decision
	if code != fiber.StatusOK || json.Unmarshal(body.Data, &decision) != nil {
		t.Fatalf("check = %d %s", code, body.Error)
	}
	if decision.Allowed || decision.BlockingCount != 1 || decision.Reason != domain.ReasonProtectedLoans {
		t.Errorf("decision = %+v", decision)
	}

	code, body = s.do(http.MethodDelete, userPath, admin, nil)
	if code != fiber.StatusConflict || body.Details == nil || body.Details.BlockingCount != 1 {
		t.Fatalf("delete = %d %+v", code, body.Details)
	}

	loan.Status = string(domain.LoanClosed)
	loan.OutstandingPrincipal = decimal.Zero
	if err := s.store.Loans().Update(context.Background(), loan); err != nil {
		t.Fatalf("close loan: %v", err)
	}
	if code, body = s.do(http.MethodDelete, userPath, admin, nil); code != fiber.StatusOK {
		t.Fatalf("delete after close = %d %s", code, body.Error)
	}
	if code, _ = s.do(http.MethodGet, userPath, admin, nil); code != fiber.StatusNotFound {
		t.Errorf("get deleted = %d", code)
	}
}

func TestManagerGrantsFlow(t *testing.T) {
	s := newServer(t, serverOptions{})
	s.user("ida", domain.RoleAdmin, domain.ManagerGrants{})
	mgr := s.user("jon", domain.RoleManager, domain.ManagerGrants{})
	target := s.user("kit", domain.RoleAgent, domain.ManagerGrants{})
	admin := s.login("ida@loanbook.test")
	manager := s.login("jon@loanbook.test")

	code, body := s.do(http.MethodDelete, "/api/v1/users/"+itoa(target.ID), manager, nil)
	if code != fiber.StatusForbidden || body.Details == nil || body.Details.Reason != domain.ReasonMissingGrant {
		t.Fatalf("delete without grant = %d %+v", code, body.Details)
	}

	grants := domain.ManagerGrants{CanDeleteUsers: true}
	if code, _ := s.do(http.MethodPut, "/api/v1/users/"+itoa(mgr.ID)+"/grants", manager, grants); code != fiber.StatusForbidden {
		t.Errorf("manager granting = %d", code)
	}
	if code, body := s.do(http.MethodPut, "/api/v1/users/"+itoa(mgr.ID)+"/grants", admin, grants); code != fiber.StatusOK {
		t.Fatalf("grant = %d %s", code, body.Error)
	}

	// the same access token now carries the new grant
	if code, body := s.do(http.MethodDelete, "/api/v1/users/"+itoa(target.ID), manager, nil); code != fiber.StatusOK {
		t.Fatalf("delete with grant = %d %s", code, body.Error)
	}
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
