package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-jwt-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestVerifyToken_Local(t *testing.T) {
	c := NewClient(Options{JWTSecret: testSecret})
	exp := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name    string
		token   string
		want    *Claims
		wantErr bool
	}{
		{
			name: "top level profile claims",
			token: signToken(t, testSecret, jwt.MapClaims{
				"sub": "u1", "email": "a@example.com", "name": "Alice", "picture": "https://img/a.png", "exp": exp,
			}),
			want: &Claims{Subject: "u1", Email: "a@example.com", Name: "Alice", Picture: "https://img/a.png"},
		},
		{
			name: "user metadata profile",
			token: signToken(t, testSecret, jwt.MapClaims{
				"sub": "u2", "exp": exp,
				"user_metadata": map[string]any{"full_name": "Bob", "avatar_url": "https://img/b.png"},
			}),
			want: &Claims{Subject: "u2", Name: "Bob", Picture: "https://img/b.png"},
		},
		{"wrong secret", signToken(t, "other", jwt.MapClaims{"sub": "u1", "exp": exp}), nil, true},
		{"expired", signToken(t, testSecret, jwt.MapClaims{"sub": "u1", "exp": time.Now().Add(-time.Minute).Unix()}), nil, true},
		{"no expiry", signToken(t, testSecret, jwt.MapClaims{"sub": "u1"}), nil, true},
		{"no subject", signToken(t, testSecret, jwt.MapClaims{"exp": exp}), nil, true},
		{"garbage", "not.a.token", nil, true},
		{"empty", "", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.VerifyToken(context.Background(), tt.token)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVerifyToken_RejectsNoneAlgorithm(t *testing.T) {
	c := NewClient(Options{JWTSecret: testSecret})
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "u1", "exp": time.Now().Add(time.Hour).Unix()}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	got, err := c.VerifyToken(context.Background(), token)
	assert.Error(t, err)
	assert.Nil(t, got)
}

func newIdentityServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/v1/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "anon", r.Header.Get("apikey"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "u1", "email": "a@example.com",
			"user_metadata": map[string]any{"name": "Alice", "avatar_url": "https://img/a.png"},
		})
	})
	mux.HandleFunc("/auth/v1/admin/users", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer service", r.Header.Get("Authorization"))
		users := []map[string]any{}
		if r.URL.Query().Get("filter") == "a@example.com" {
			users = append(users,
				map[string]any{"id": "u9", "email": "aa@example.com"},
				map[string]any{"id": "u1", "email": "A@example.com", "user_metadata": map[string]any{"name": "Alice"}},
			)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"users": users})
	})
	mux.HandleFunc("/auth/v1/admin/users/", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/v1/admin/users/u1":
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "u1", "user_metadata": map[string]any{"name": "Alice"}})
		case "/auth/v1/admin/users/u2":
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "u2", "user_metadata": map[string]any{"full_name": "Bob"}})
		case "/auth/v1/admin/users/broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestVerifyToken_Remote(t *testing.T) {
	srv := newIdentityServer(t)
	c := NewClient(Options{URL: srv.URL + "/", AnonKey: "anon"})

	claims, err := c.VerifyToken(context.Background(), "good-token")
	require.NoError(t, err)
	assert.Equal(t, &Claims{Subject: "u1", Email: "a@example.com", Name: "Alice", Picture: "https://img/a.png"}, claims)

	claims, err = c.VerifyToken(context.Background(), "bad-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Nil(t, claims)
}

func TestVerifyToken_FallsBackToRemote(t *testing.T) {
	srv := newIdentityServer(t)
	c := NewClient(Options{URL: srv.URL, AnonKey: "anon", JWTSecret: testSecret})

	// not a local JWT, but the identity service accepts it
	claims, err := c.VerifyToken(context.Background(), "good-token")
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
}

func TestVerifyToken_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()
	c := NewClient(Options{URL: srv.URL, Timeout: 20 * time.Millisecond})

	claims, err := c.VerifyToken(context.Background(), "good-token")
	assert.Error(t, err)
	assert.Nil(t, claims)
}

func TestGetUserByEmail(t *testing.T) {
	srv := newIdentityServer(t)
	c := NewClient(Options{URL: srv.URL, ServiceKey: "service"})

	u, err := c.GetUserByEmail(context.Background(), "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, "Alice", u.Name)

	_, err = c.GetUserByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestGetUsers(t *testing.T) {
	srv := newIdentityServer(t)
	c := NewClient(Options{URL: srv.URL, ServiceKey: "service"})

	users, err := c.GetUsers(context.Background(), []string{"u1", "missing", "u2"})
	require.NoError(t, err)
	assert.Equal(t, []User{{ID: "u1", Name: "Alice"}, {ID: "u2", Name: "Bob"}}, users)

	_, err = c.GetUsers(context.Background(), []string{"broken"})
	assert.Error(t, err)
}

func TestGetUsers_DedupesAndCaps(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "same", "user_metadata": map[string]any{"name": "Sam"}})
	}))
	t.Cleanup(srv.Close)
	c := NewClient(Options{URL: srv.URL, ServiceKey: "service"})

	ids := make([]string, 1000)
	for i := range ids {
		ids[i] = "same"
	}
	users, err := c.GetUsers(context.Background(), ids)
	require.NoError(t, err)
	assert.Equal(t, []User{{ID: "same", Name: "Sam"}}, users)
	assert.EqualValues(t, 1, calls.Load())

	many := make([]string, MaxLookupIDs+1)
	for i := range many {
		many[i] = "u" + strconv.Itoa(i)
	}
	_, err = c.GetUsers(context.Background(), many)
	assert.ErrorIs(t, err, ErrTooManyIDs)
	assert.EqualValues(t, 1, calls.Load(), "rejected lookups must not reach the identity service")
}

func TestUniqueIDs(t *testing.T) {
	assert.Equal(t, []string{"b", "a"}, UniqueIDs([]string{"b", "", "a", "b", "a"}))
	assert.Empty(t, UniqueIDs(nil))
}
