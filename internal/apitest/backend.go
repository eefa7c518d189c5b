// Package apitest runs an in-process fake of the marketplace REST API for tests.
package apitest

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

// BasePath is where the API is mounted on the test server.
const BasePath = "/api"

// Account is a user known to the fake backend.
type Account struct {
	ID        int
	Username  string
	Password  string
	FirstName string
	LastName  string
	Email     string
	Favorites []int
	IsStaff   bool
}

// Vehicle is a raw vehicle record exactly as the API serializes it.
type Vehicle map[string]any

type Backend struct {
	server *httptest.Server

	mu             sync.Mutex
	accounts       map[string]*Account
	nextID         int
	access         map[string]string
	refresh        map[string]string
	issued         int
	queuedAccess   []string
	registerTokens bool
	jwtTTL         time.Duration
	resetTokens    map[string]string
	vehicles       []Vehicle
	nextImageID    int
	nextReviewID   int
	features       []map[string]any
	calls          map[string]int
	lastQuery      map[string]url.Values
	lastBody       map[string][]byte
	overrides      map[string]http.HandlerFunc
}

type ctxKey string

const usernameKey ctxKey = "username"

// New starts a fake backend that is closed when the test ends.
func New(t testing.TB) *Backend {
	t.Helper()
	b := &Backend{
		accounts:     make(map[string]*Account),
		access:       make(map[string]string),
		refresh:      make(map[string]string),
		resetTokens:  make(map[string]string),
		calls:        make(map[string]int),
		lastQuery:    make(map[string]url.Values),
		lastBody:     make(map[string][]byte),
		overrides:    make(map[string]http.HandlerFunc),
		nextImageID:  100,
		nextReviewID: 500,
	}
	b.server = httptest.NewServer(b.routes())
	t.Cleanup(b.server.Close)
	return b
}

// URL is the API base URL to hand to api.New.
func (b *Backend) URL() string {
	return b.server.URL + BasePath
}

// MediaURL is the host relative image paths resolve against.
func (b *Backend) MediaURL() string {
	return b.server.URL + "/"
}

func (b *Backend) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(b.record)

	r.Route(BasePath, func(r chi.Router) {
		r.Post("/token/", b.handleToken)
		r.Post("/token/refresh/", b.handleRefresh)
		r.Post("/register/", b.handleRegister)
		r.Post("/password-reset/", b.handlePasswordReset)
		r.Post("/password-reset/confirm/", b.handlePasswordResetConfirm)
		r.Post("/chat/", b.handleChat)

		r.Get("/vehicles/", b.handleListVehicles)
		r.Get("/vehicles/{id}/", b.handleGetVehicle)
		r.Get("/makes/", b.handleMakes)
		r.Get("/models/", b.handleModels)
		r.Get("/bodies/", b.handleBodies)
		r.Get("/drivetypes/", b.handleDriveTypes)

		r.Group(func(r chi.Router) {
			r.Use(b.requireAuth)
			r.Get("/me/", b.handleMe)
			r.Delete("/me/", b.handleDeleteMe)
			r.Get("/favorites/", b.handleListFavorites)
			r.Post("/favorites/", b.handleToggleFavorite)
			r.Post("/reviews/", b.handleAddReview)
			r.Delete("/reviews/{id}/", b.handleDeleteReview)

			r.Group(func(r chi.Router) {
				r.Use(b.requireStaff)
				r.Put("/vehicles/{id}/update/", b.handleUpdateVehicle)
				r.Post("/vehicles/{id}/images/", b.handleUploadImage)
				r.Delete("/images/{id}/", b.handleDeleteImage)
				r.Get("/admin/stats/", b.handleStats)
				r.Post("/admin/upload-vehicles/", b.handleUploadVehicles)
				r.Get("/admin/upload-template/", b.handleTemplate)
				r.Get("/admin/features/", b.handleListFeatures)
				r.Post("/admin/features/", b.handleReplaceFeatures)
			})
		})
	})
	return r
}

func callKey(method, path string) string {
	return method + " " + path
}

// record counts calls, keeps the last query and body per endpoint, and
// dispatches to an override when one is registered.
func (b *Backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))

		key := callKey(r.Method, strings.TrimPrefix(r.URL.Path, BasePath))
		b.mu.Lock()
		b.calls[key]++
		b.lastQuery[key] = r.URL.Query()
		b.lastBody[key] = body
		override := b.overrides[key]
		b.mu.Unlock()

		if override != nil {
			override(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		const prefix = "Bearer "
		header := r.Header.Get("Authorization")
		if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
			JSON(w, http.StatusUnauthorized, map[string]string{"detail": "Authentication credentials were not provided."})
			return
		}
		b.mu.Lock()
		username, ok := b.access[header[len(prefix):]]
		b.mu.Unlock()
		if !ok {
			JSON(w, http.StatusUnauthorized, map[string]string{
				"detail": "Given token not valid for any token type",
				"code":   "token_not_valid",
			})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), usernameKey, username)))
	})
}

func (b *Backend) requireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		acct := b.accounts[currentUsername(r)]
		b.mu.Unlock()
		if acct == nil || !acct.IsStaff {
			JSON(w, http.StatusForbidden, map[string]string{"detail": "You do not have permission to perform this action."})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func currentUsername(r *http.Request) string {
	username, _ := r.Context().Value(usernameKey).(string)
	return username
}

// JSON writes v with the given status. Exported for Override handlers.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// AddAccount registers a user, assigning an id when ID is zero.
func (b *Backend) AddAccount(a Account) Account {
	b.mu.Lock()
	defer b.mu.Unlock()
	return *b.addAccountLocked(a)
}

func (b *Backend) addAccountLocked(a Account) *Account {
	if a.ID == 0 {
		b.nextID++
		a.ID = b.nextID
	} else if a.ID > b.nextID {
		b.nextID = a.ID
	}
	acct := a
	acct.Favorites = append([]int(nil), a.Favorites...)
	b.accounts[a.Username] = &acct
	return &acct
}

// Account returns a copy of the named account.
func (b *Backend) Account(username string) (Account, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	acct, ok := b.accounts[username]
	if !ok {
		return Account{}, false
	}
	cp := *acct
	cp.Favorites = append([]int(nil), acct.Favorites...)
	return cp, true
}

// GrantAccess makes token a valid access token for username.
func (b *Backend) GrantAccess(token, username string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.access[token] = username
}

// GrantRefresh makes token a valid refresh token for username.
func (b *Backend) GrantRefresh(token, username string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refresh[token] = username
}

// RevokeAccess expires an access token.
func (b *Backend) RevokeAccess(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.access, token)
}

// RevokeRefresh invalidates a refresh token.
func (b *Backend) RevokeRefresh(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.refresh, token)
}

// QueueAccessTokens fixes the values of the next issued access tokens.
func (b *Backend) QueueAccessTokens(tokens ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queuedAccess = append(b.queuedAccess, tokens...)
}

// SetRegisterReturnsTokens controls whether /register/ answers with a token pair.
func (b *Backend) SetRegisterReturnsTokens(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.registerTokens = v
}

// Override replaces the handler of one endpoint, path relative to BasePath.
func (b *Backend) Override(method, path string, h http.HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.overrides[callKey(method, path)] = h
}

func (b *Backend) ClearOverride(method, path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.overrides, callKey(method, path))
}

// Calls counts the requests received on one endpoint.
func (b *Backend) Calls(method, path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[callKey(method, path)]
}

func (b *Backend) LastQuery(method, path string) url.Values {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastQuery[callKey(method, path)]
}

func (b *Backend) LastBody(method, path string) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastBody[callKey(method, path)]
}

// AddVehicle appends a raw record; it must carry an integer "id".
func (b *Backend) AddVehicle(v Vehicle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.vehicles = append(b.vehicles, v)
}

// Vehicle returns the stored record with the given id.
func (b *Backend) Vehicle(id int) (Vehicle, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v := b.findVehicleLocked(id)
	return v, v != nil
}

// IssueResetToken creates a password reset link for username.
func (b *Backend) IssueResetToken(username string) (uidb64, token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	acct := b.accounts[username]
	if acct == nil {
		return "", ""
	}
	uidb64 = base64.RawURLEncoding.EncodeToString([]byte(strconv.Itoa(acct.ID)))
	token = fmt.Sprintf("reset-%d", acct.ID)
	b.resetTokens[uidb64] = token
	return uidb64, token
}

func (b *Backend) issueTokensLocked(username string) (string, string) {
	b.issued++
	access := b.nextAccessLocked(username)
	refresh := fmt.Sprintf("refresh-%d", b.issued)
	b.access[access] = username
	b.refresh[refresh] = username
	return access, refresh
}

func (b *Backend) nextAccessLocked(username string) string {
	if len(b.queuedAccess) > 0 {
		token := b.queuedAccess[0]
		b.queuedAccess = b.queuedAccess[1:]
		return token
	}
	if b.jwtTTL != 0 {
		return b.mintAccessLocked(username)
	}
	b.issued++
	return fmt.Sprintf("access-%d", b.issued)
}

func (b *Backend) findVehicleLocked(id int) Vehicle {
	for _, v := range b.vehicles {
		if toInt(v["id"]) == id {
			return v
		}
	}
	return nil
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case json.Number:
		i, _ := n.Int64()
		return int(i)
	case string:
		i, _ := strconv.Atoi(n)
		return i
	}
	return 0
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	return dec.Decode(v)
}
