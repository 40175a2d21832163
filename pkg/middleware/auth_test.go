package middleware

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lsec-edu/microlearn/pkg/auth"
	"github.com/lsec-edu/microlearn/pkg/observability"
	"github.com/lsec-edu/microlearn/pkg/roles"
	"github.com/lsec-edu/microlearn/pkg/users"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	// One connection: each new connection to :memory: would get its own
	// empty database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE roles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE
		);

		CREATE TABLE users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			salt TEXT NOT NULL,
			digest TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);

		CREATE TABLE user_roles (
			user_id INTEGER NOT NULL,
			role_id INTEGER NOT NULL,
			PRIMARY KEY (user_id, role_id)
		);
	`)
	if err != nil {
		t.Fatalf("Failed to create test schema: %v", err)
	}

	return db
}

type gateFixture struct {
	gate    *Gate
	issuer  *auth.TokenIssuer
	users   *users.Store
	roles   *roles.Store
	metrics *observability.Metrics
}

func newGateFixture(t *testing.T) *gateFixture {
	db := setupTestDB(t)
	roleStore := roles.NewStore(db)
	require.NoError(t, roleStore.Seed(context.Background()))
	userStore := users.NewStore(db)
	issuer := auth.NewTokenIssuer([]byte("test-secret"), time.Hour)
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	return &gateFixture{
		gate:    NewGate(issuer, userStore, roleStore, metrics),
		issuer:  issuer,
		users:   userStore,
		roles:   roleStore,
		metrics: metrics,
	}
}

func (f *gateFixture) createUser(t *testing.T, email string, roleNames ...string) (*auth.User, string) {
	u := &auth.User{Name: "Test", Email: email}
	require.NoError(t, u.SetPassword("secreto123"))

	roleIDs, err := f.roles.IDsForNames(context.Background(), roleNames)
	require.NoError(t, err)
	require.NoError(t, f.users.Create(context.Background(), u, roleIDs))

	token, err := f.issuer.Issue(u.ID)
	require.NoError(t, err)
	return u, token
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestVerifyToken_MissingToken(t *testing.T) {
	f := newGateFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	rec := httptest.NewRecorder()
	f.gate.VerifyToken(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "No se proporcionó token", errorBody(t, rec))
}

func TestVerifyToken_InvalidToken(t *testing.T) {
	f := newGateFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	rec := httptest.NewRecorder()
	f.gate.VerifyToken(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "No autorizado", errorBody(t, rec))
}

func TestVerifyToken_ExpiredToken(t *testing.T) {
	f := newGateFixture(t)
	u, _ := f.createUser(t, "ana@lsec.edu", roles.Student)

	expired := auth.NewTokenIssuer([]byte("test-secret"), time.Nanosecond)
	token, err := expired.Issue(u.ID)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	f.gate.VerifyToken(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "No autorizado", errorBody(t, rec))
}

func TestVerifyToken_DeletedPrincipal(t *testing.T) {
	f := newGateFixture(t)
	u, token := f.createUser(t, "ana@lsec.edu", roles.Student)
	require.NoError(t, f.users.Delete(context.Background(), u.ID))

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	f.gate.VerifyToken(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Ningún usuario encontrado", errorBody(t, rec))
}

func TestVerifyToken_CountsRejections(t *testing.T) {
	f := newGateFixture(t)
	u, token := f.createUser(t, "ana@lsec.edu", roles.Student)

	handler := f.gate.VerifyToken(okHandler())

	send := func(headerValue string) {
		req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
		if headerValue != "" {
			req.Header.Set("Authorization", headerValue)
		}
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	send("")
	send("Bearer not.a.token")
	require.NoError(t, f.users.Delete(context.Background(), u.ID))
	send("Bearer " + token)

	assert.Equal(t, float64(1),
		testutil.ToFloat64(f.metrics.TokenRejectedTotal.WithLabelValues("missing")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(f.metrics.TokenRejectedTotal.WithLabelValues("invalid")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(f.metrics.TokenRejectedTotal.WithLabelValues("unknown_user")))
}

func TestVerifyToken_NilMetrics(t *testing.T) {
	f := newGateFixture(t)
	gate := NewGate(f.issuer, f.users, f.roles, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	rec := httptest.NewRecorder()
	gate.VerifyToken(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestVerifyToken_SetsUserID(t *testing.T) {
	f := newGateFixture(t)
	u, token := f.createUser(t, "ana@lsec.edu", roles.Student)

	var gotID int64
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := UserIDFromContext(r)
		require.True(t, ok)
		gotID = id
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	f.gate.VerifyToken(handler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, u.ID, gotID)
}

func TestVerifyToken_LegacyHeader(t *testing.T) {
	f := newGateFixture(t)
	_, token := f.createUser(t, "ana@lsec.edu", roles.Student)

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.Header.Set("auth-token", token)
	rec := httptest.NewRecorder()
	f.gate.VerifyToken(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRole_Allows(t *testing.T) {
	f := newGateFixture(t)
	_, token := f.createUser(t, "root@lsec.edu", roles.Admin)

	handler := f.gate.VerifyToken(f.gate.RequireRole(roles.Admin)(okHandler()))

	req := httptest.NewRequest(http.MethodPost, "/api/module", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRole_RejectsWithLabel(t *testing.T) {
	f := newGateFixture(t)
	_, token := f.createUser(t, "ana@lsec.edu", roles.Student)

	cases := []struct {
		role string
		want string
	}{
		{roles.Admin, "Requiere rol de administrador"},
		{roles.Moderator, "Requiere rol de moderador"},
	}
	for _, tc := range cases {
		handler := f.gate.VerifyToken(f.gate.RequireRole(tc.role)(okHandler()))

		req := httptest.NewRequest(http.MethodPost, "/api/module", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, tc.want, errorBody(t, rec))
	}
}

func TestRequireRole_TokenCheckedFirst(t *testing.T) {
	f := newGateFixture(t)

	handler := f.gate.VerifyToken(f.gate.RequireRole(roles.Admin)(okHandler()))

	req := httptest.NewRequest(http.MethodPost, "/api/module", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code, "token validity decides before role membership")
	assert.Equal(t, "No autorizado", errorBody(t, rec))
}

func TestRequireRole_MultipleRoles(t *testing.T) {
	f := newGateFixture(t)
	_, token := f.createUser(t, "mod@lsec.edu", roles.Student, roles.Moderator)

	handler := f.gate.VerifyToken(f.gate.RequireRole(roles.Moderator)(okHandler()))

	req := httptest.NewRequest(http.MethodGet, "/api/progress/all", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
