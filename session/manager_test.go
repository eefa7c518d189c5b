package session_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-vehicle-market/api"
	"github.com/jrsteele09/go-vehicle-market/credentials"
	credentialsrepofake "github.com/jrsteele09/go-vehicle-market/credentials/repofake"
	"github.com/jrsteele09/go-vehicle-market/internal/apitest"
	"github.com/jrsteele09/go-vehicle-market/session"
	"github.com/jrsteele09/go-vehicle-market/users"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	testUsername = "al"
	testPassword = "pw"
	testEmail    = "al@x.com"
)

type testFixture struct {
	backend *apitest.Backend
	client  *api.Client
	repo    *credentialsrepofake.FakeCredentialsRepo
	manager *session.Manager
}

func setupTestFixture(t *testing.T, options ...session.ManagerOption) *testFixture {
	t.Helper()

	b := apitest.New(t)
	b.AddAccount(apitest.Account{
		ID:        7,
		Username:  testUsername,
		Password:  testPassword,
		Email:     testEmail,
		Favorites: []int{3},
	})

	client, err := api.New(b.URL(), api.WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	repo := credentialsrepofake.NewFakeCredentialsRepo()
	return &testFixture{
		backend: b,
		client:  client,
		repo:    repo,
		manager: newManager(t, client, repo, options...),
	}
}

func newManager(t *testing.T, client *api.Client, repo credentials.Repo, options ...session.ManagerOption) *session.Manager {
	t.Helper()
	options = append([]session.ManagerOption{session.WithLogger(zerolog.Nop())}, options...)
	m, err := session.NewManager(client, repo, options...)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

func (f *testFixture) login(t *testing.T) {
	t.Helper()
	require.NoError(t, f.manager.Login(context.Background(), testUsername, testPassword))
	require.Equal(t, session.Authenticated, f.manager.State())
}

func (f *testFixture) stored(key credentials.Key) (string, bool) {
	v, ok := f.repo.Snapshot()[key]
	return v, ok
}

func TestNewManagerRequiresDependencies(t *testing.T) {
	client, err := api.New("http://localhost/api")
	require.NoError(t, err)

	_, err = session.NewManager(nil, credentialsrepofake.NewFakeCredentialsRepo())
	require.Error(t, err)
	_, err = session.NewManager(client, nil)
	require.Error(t, err)
}

func TestManager_Login(t *testing.T) {
	t.Run("persists tokens and resolves user", func(t *testing.T) {
		f := setupTestFixture(t)
		f.login(t)

		access, ok := f.stored(credentials.AccessTokenKey)
		require.True(t, ok)
		require.NotEmpty(t, access)
		refresh, ok := f.stored(credentials.RefreshTokenKey)
		require.True(t, ok)
		require.NotEmpty(t, refresh)

		user, ok := f.manager.CurrentUser()
		require.True(t, ok)
		require.Equal(t, users.User{
			ID:        "7",
			Name:      "al",
			Email:     testEmail,
			Favorites: users.NewFavorites("3"),
			IsAdmin:   false,
		}, user)
		require.True(t, f.manager.TimerRunning())
	})

	t.Run("email identifier", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.manager.Login(context.Background(), testEmail, testPassword))
		require.Equal(t, session.Authenticated, f.manager.State())
	})

	t.Run("invalid credentials", func(t *testing.T) {
		f := setupTestFixture(t)

		err := f.manager.Login(context.Background(), testUsername, "wrong")
		require.ErrorIs(t, err, session.ErrInvalidCredentials)
		require.Contains(t, err.Error(), "No active account found")
		require.Equal(t, session.Anonymous, f.manager.State())
		require.Empty(t, f.repo.Snapshot())
		require.Zero(t, f.repo.Writes())
		require.False(t, f.manager.TimerRunning())
	})

	t.Run("rejected attempt keeps the signed in session", func(t *testing.T) {
		f := setupTestFixture(t)
		f.login(t)
		before := f.repo.Snapshot()
		writes := f.repo.Writes()

		err := f.manager.Login(context.Background(), testUsername, "wrong")
		require.ErrorIs(t, err, session.ErrInvalidCredentials)

		require.Equal(t, session.Authenticated, f.manager.State())
		user, ok := f.manager.CurrentUser()
		require.True(t, ok)
		require.Equal(t, "7", user.ID)
		require.Equal(t, before, f.repo.Snapshot())
		require.Equal(t, writes, f.repo.Writes())
		require.True(t, f.manager.TimerRunning())

		tok, err := f.manager.Token()
		require.NoError(t, err)
		require.Equal(t, before[credentials.AccessTokenKey], tok.AccessToken)
	})

	t.Run("network unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL + "/api"
		srv.Close()

		client, err := api.New(url, api.WithLogger(zerolog.Nop()))
		require.NoError(t, err)
		repo := credentialsrepofake.NewFakeCredentialsRepo()
		m := newManager(t, client, repo)

		err = m.Login(context.Background(), testUsername, testPassword)
		require.ErrorIs(t, err, session.ErrNetworkUnavailable)
		require.Equal(t, session.Anonymous, m.State())
		require.Empty(t, repo.Snapshot())
	})

	t.Run("identity failure clears tokens", func(t *testing.T) {
		f := setupTestFixture(t)
		f.backend.Override(http.MethodGet, "/me/", func(w http.ResponseWriter, _ *http.Request) {
			apitest.JSON(w, http.StatusInternalServerError, map[string]string{"detail": "boom"})
		})

		err := f.manager.Login(context.Background(), testUsername, testPassword)
		require.Error(t, err)
		require.Equal(t, session.Anonymous, f.manager.State())
		require.Empty(t, f.repo.Snapshot())
	})
}

func TestLogoutIsIdempotent(t *testing.T) {
	f := setupTestFixture(t)

	f.manager.Logout()
	require.Equal(t, session.Anonymous, f.manager.State())
	require.Zero(t, f.repo.Writes())

	f.login(t)
	f.manager.Logout()
	f.manager.Logout()

	require.Equal(t, session.Anonymous, f.manager.State())
	require.Empty(t, f.repo.Snapshot())
	_, ok := f.manager.CurrentUser()
	require.False(t, ok)
	require.False(t, f.manager.TimerRunning())
}

func TestManager_Restore(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		f := setupTestFixture(t)
		f.login(t)
		want, ok := f.manager.CurrentUser()
		require.True(t, ok)

		restarted := newManager(t, f.client, f.repo)
		require.NoError(t, restarted.Restore(context.Background()))

		require.Equal(t, session.Authenticated, restarted.State())
		got, ok := restarted.CurrentUser()
		require.True(t, ok)
		require.Equal(t, want, got)
	})

	t.Run("without persisted tokens", func(t *testing.T) {
		f := setupTestFixture(t)

		require.NoError(t, f.manager.Restore(context.Background()))
		require.Equal(t, session.Anonymous, f.manager.State())
		require.Zero(t, f.backend.Calls(http.MethodGet, "/me/"))
	})

	t.Run("refreshes expired access token", func(t *testing.T) {
		f := setupTestFixture(t)
		ctx := context.Background()
		require.NoError(t, f.repo.Upsert(ctx, credentials.AccessTokenKey, "expired-token"))
		require.NoError(t, f.repo.Upsert(ctx, credentials.RefreshTokenKey, "valid-refresh"))
		f.backend.GrantRefresh("valid-refresh", testUsername)
		f.backend.QueueAccessTokens("new-token")

		require.NoError(t, f.manager.Restore(ctx))

		require.Equal(t, session.Authenticated, f.manager.State())
		user, ok := f.manager.CurrentUser()
		require.True(t, ok)
		require.Equal(t, "7", user.ID)
		require.Equal(t, "al", user.Name)
		require.Equal(t, []string{"3"}, user.Favorites.List())
		require.False(t, user.IsAdmin)

		access, _ := f.stored(credentials.AccessTokenKey)
		require.Equal(t, "new-token", access)
		refresh, _ := f.stored(credentials.RefreshTokenKey)
		require.Equal(t, "valid-refresh", refresh)
		require.Equal(t, 2, f.backend.Calls(http.MethodGet, "/me/"))
		require.Equal(t, 1, f.backend.Calls(http.MethodPost, "/token/refresh/"))
	})

	t.Run("refresh failure clears session", func(t *testing.T) {
		f := setupTestFixture(t)
		ctx := context.Background()
		require.NoError(t, f.repo.Upsert(ctx, credentials.AccessTokenKey, "expired-token"))
		require.NoError(t, f.repo.Upsert(ctx, credentials.RefreshTokenKey, "revoked-refresh"))

		err := f.manager.Restore(ctx)
		require.ErrorIs(t, err, session.ErrSessionExpired)
		require.Equal(t, session.Anonymous, f.manager.State())
		require.Empty(t, f.repo.Snapshot())
	})

	t.Run("without refresh token clears access token", func(t *testing.T) {
		f := setupTestFixture(t)
		ctx := context.Background()
		require.NoError(t, f.repo.Upsert(ctx, credentials.AccessTokenKey, "expired-token"))

		err := f.manager.Restore(ctx)
		require.ErrorIs(t, err, session.ErrSessionExpired)
		require.Equal(t, session.Anonymous, f.manager.State())
		require.Empty(t, f.repo.Snapshot())
		require.Zero(t, f.backend.Calls(http.MethodPost, "/token/refresh/"))
	})

	t.Run("cancelled keeps persisted tokens", func(t *testing.T) {
		f := setupTestFixture(t)
		f.login(t)
		refreshBefore, _ := f.stored(credentials.RefreshTokenKey)
		restarted := newManager(t, f.client, f.repo)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := restarted.Restore(ctx)
		require.ErrorIs(t, err, context.Canceled)
		require.NotErrorIs(t, err, session.ErrSessionExpired)
		require.Equal(t, session.Anonymous, restarted.State())

		_, ok := f.stored(credentials.AccessTokenKey)
		require.True(t, ok)
		refreshAfter, ok := f.stored(credentials.RefreshTokenKey)
		require.True(t, ok)
		require.Equal(t, refreshBefore, refreshAfter)

		require.NoError(t, restarted.Restore(context.Background()))
		require.Equal(t, session.Authenticated, restarted.State())
	})

	t.Run("timed out keeps persisted tokens", func(t *testing.T) {
		f := setupTestFixture(t)
		f.login(t)
		f.backend.Override(http.MethodGet, "/me/", func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		})
		before := f.repo.Snapshot()
		restarted := newManager(t, f.client, f.repo)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		err := restarted.Restore(ctx)
		require.ErrorIs(t, err, context.DeadlineExceeded)
		require.NotErrorIs(t, err, session.ErrSessionExpired)
		require.Equal(t, session.Anonymous, restarted.State())
		require.Equal(t, before[credentials.RefreshTokenKey], f.repo.Snapshot()[credentials.RefreshTokenKey])
		require.Contains(t, f.repo.Snapshot(), credentials.AccessTokenKey)
	})
}

func TestManager_Signup(t *testing.T) {
	t.Run("validation failure", func(t *testing.T) {
		f := setupTestFixture(t)
		f.backend.AddAccount(apitest.Account{Username: "someone", Password: "x", Email: "al@x.com"})

		authenticated, err := f.manager.Signup(context.Background(), "Al Jones", "al@x.com", "pw")
		require.False(t, authenticated)
		require.ErrorIs(t, err, session.ErrValidationFailed)

		var verr *session.ValidationError
		require.True(t, errors.As(err, &verr))
		require.Equal(t, map[string][]string{"email": {"already registered"}}, verr.Fields)
		require.Contains(t, err.Error(), "email: already registered")
		require.Equal(t, session.Anonymous, f.manager.State())
		require.Empty(t, f.repo.Snapshot())
	})

	t.Run("joins every field message", func(t *testing.T) {
		f := setupTestFixture(t)
		f.backend.Override(http.MethodPost, "/register/", func(w http.ResponseWriter, _ *http.Request) {
			apitest.JSON(w, http.StatusBadRequest, map[string]any{
				"username": []string{"A user with that username already exists."},
				"password": []string{"This password is too short.", "This password is too common."},
			})
		})

		_, err := f.manager.Signup(context.Background(), "al", "new@x.com", "pw")
		require.EqualError(t, err, "validation failed:\n"+
			"password: This password is too short., This password is too common.\n"+
			"username: A user with that username already exists.")
	})

	t.Run("rejected while signed in keeps the session", func(t *testing.T) {
		f := setupTestFixture(t)
		f.login(t)
		before := f.repo.Snapshot()

		authenticated, err := f.manager.Signup(context.Background(), "Bo", testEmail, "secret")
		require.False(t, authenticated)
		require.ErrorIs(t, err, session.ErrValidationFailed)

		require.Equal(t, session.Authenticated, f.manager.State())
		user, ok := f.manager.CurrentUser()
		require.True(t, ok)
		require.Equal(t, "7", user.ID)
		require.Equal(t, before, f.repo.Snapshot())
	})

	t.Run("rejects invalid input locally", func(t *testing.T) {
		f := setupTestFixture(t)

		_, err := f.manager.Signup(context.Background(), "", "not-an-email", "")
		var verr *session.ValidationError
		require.True(t, errors.As(err, &verr))
		require.Contains(t, verr.Fields, "username")
		require.Contains(t, verr.Fields, "email")
		require.Contains(t, verr.Fields, "password")
		require.Zero(t, f.backend.Calls(http.MethodPost, "/register/"))
	})

	t.Run("without tokens stays anonymous", func(t *testing.T) {
		f := setupTestFixture(t)

		authenticated, err := f.manager.Signup(context.Background(), "Bo", "bo@x.com", "secret")
		require.NoError(t, err)
		require.False(t, authenticated)
		require.Equal(t, session.Anonymous, f.manager.State())

		require.NoError(t, f.manager.Login(context.Background(), "Bo", "secret"))
		user, ok := f.manager.CurrentUser()
		require.True(t, ok)
		require.Equal(t, "Bo", user.Name)
	})

	t.Run("with tokens authenticates", func(t *testing.T) {
		f := setupTestFixture(t)
		f.backend.SetRegisterReturnsTokens(true)

		authenticated, err := f.manager.Signup(context.Background(), "Bo", "bo@x.com", "secret")
		require.NoError(t, err)
		require.True(t, authenticated)
		require.Equal(t, session.Authenticated, f.manager.State())
		require.Len(t, f.repo.Snapshot(), 2)
	})
}

func TestRefreshReplacesAccessTokenOnly(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	refreshBefore, _ := f.stored(credentials.RefreshTokenKey)
	f.backend.QueueAccessTokens("renewed")

	require.NoError(t, f.manager.Refresh(context.Background()))

	access, _ := f.stored(credentials.AccessTokenKey)
	require.Equal(t, "renewed", access)
	refreshAfter, _ := f.stored(credentials.RefreshTokenKey)
	require.Equal(t, refreshBefore, refreshAfter)
	require.Equal(t, session.Authenticated, f.manager.State())

	tok, err := f.manager.Token()
	require.NoError(t, err)
	require.Equal(t, "renewed", tok.AccessToken)
}

func TestRefreshWhenAnonymous(t *testing.T) {
	f := setupTestFixture(t)
	require.ErrorIs(t, f.manager.Refresh(context.Background()), session.ErrNotAuthenticated)
}

func TestConcurrentRefreshesAreCoalesced(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)

	release := make(chan struct{})
	f.backend.Override(http.MethodPost, "/token/refresh/", func(w http.ResponseWriter, _ *http.Request) {
		<-release
		apitest.JSON(w, http.StatusOK, map[string]string{"access": "coalesced"})
	})

	const callers = 8
	start := make(chan struct{})
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			errs <- f.manager.Refresh(context.Background())
		}()
	}
	close(start)
	require.Eventually(t, func() bool {
		return f.backend.Calls(http.MethodPost, "/token/refresh/") == 1
	}, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, 1, f.backend.Calls(http.MethodPost, "/token/refresh/"))
	access, _ := f.stored(credentials.AccessTokenKey)
	require.Equal(t, "coalesced", access)
}

func TestRefreshCallerCancellationDoesNotFailOthers(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)

	release := make(chan struct{})
	f.backend.Override(http.MethodPost, "/token/refresh/", func(w http.ResponseWriter, _ *http.Request) {
		<-release
		apitest.JSON(w, http.StatusOK, map[string]string{"access": "shared"})
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancelled := make(chan error, 1)
	go func() { cancelled <- f.manager.Refresh(ctx) }()
	require.Eventually(t, func() bool {
		return f.backend.Calls(http.MethodPost, "/token/refresh/") == 1
	}, time.Second, 5*time.Millisecond)

	waiting := make(chan error, 1)
	go func() { waiting <- f.manager.Refresh(context.Background()) }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	require.ErrorIs(t, <-cancelled, context.Canceled)

	close(release)
	require.NoError(t, <-waiting)
	access, _ := f.stored(credentials.AccessTokenKey)
	require.Equal(t, "shared", access)
}

func TestTimerRefreshFailureLeavesSessionUnchanged(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	refresh, _ := f.stored(credentials.RefreshTokenKey)
	accessBefore, _ := f.stored(credentials.AccessTokenKey)
	f.backend.RevokeRefresh(refresh)
	writes := f.repo.Writes()

	f.manager.TimerTick(context.Background())

	require.Equal(t, session.Authenticated, f.manager.State())
	require.Equal(t, writes, f.repo.Writes())
	accessAfter, _ := f.stored(credentials.AccessTokenKey)
	require.Equal(t, accessBefore, accessAfter)
	tok, err := f.manager.Token()
	require.NoError(t, err)
	require.Equal(t, accessBefore, tok.AccessToken)
	require.True(t, f.manager.TimerRunning())
}

func TestTimerRefreshesPeriodically(t *testing.T) {
	f := setupTestFixture(t, session.WithRefreshInterval(10*time.Millisecond))
	f.login(t)

	require.Eventually(t, func() bool {
		return f.backend.Calls(http.MethodPost, "/token/refresh/") >= 2
	}, 2*time.Second, 5*time.Millisecond)

	f.manager.Logout()
	require.False(t, f.manager.TimerRunning())
}

func TestStaleIdentityResponseIsDiscarded(t *testing.T) {
	f := setupTestFixture(t)

	arrived := make(chan struct{})
	release := make(chan struct{})
	f.backend.Override(http.MethodGet, "/me/", func(w http.ResponseWriter, _ *http.Request) {
		close(arrived)
		<-release
		apitest.JSON(w, http.StatusOK, map[string]any{"id": 7, "username": testUsername})
	})

	done := make(chan error, 1)
	go func() { done <- f.manager.Login(context.Background(), testUsername, testPassword) }()
	<-arrived
	f.manager.Logout()
	close(release)

	require.ErrorIs(t, <-done, session.ErrSessionChanged)
	require.Equal(t, session.Anonymous, f.manager.State())
	_, ok := f.manager.CurrentUser()
	require.False(t, ok)
	require.Empty(t, f.repo.Snapshot())
}

func TestToggleFavoriteTwiceRestoresMembership(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	ctx := context.Background()

	added, err := f.manager.ToggleFavorite(ctx, "5")
	require.NoError(t, err)
	require.True(t, added)
	user, _ := f.manager.CurrentUser()
	require.True(t, user.Favorites.Has("5"))

	added, err = f.manager.ToggleFavorite(ctx, "5")
	require.NoError(t, err)
	require.False(t, added)
	user, _ = f.manager.CurrentUser()
	require.Equal(t, []string{"3"}, user.Favorites.List())

	acct, _ := f.backend.Account(testUsername)
	require.Equal(t, []int{3}, acct.Favorites)
}

func TestToggleFavoriteFailureLeavesSetUntouched(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	f.backend.Override(http.MethodPost, "/favorites/", func(w http.ResponseWriter, _ *http.Request) {
		apitest.JSON(w, http.StatusBadRequest, map[string][]string{"vehicle_id": {"Invalid vehicle."}})
	})

	_, err := f.manager.ToggleFavorite(context.Background(), "3")
	var statusErr *api.StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusBadRequest, statusErr.Status)

	user, _ := f.manager.CurrentUser()
	require.Equal(t, []string{"3"}, user.Favorites.List())
}

func TestToggleFavoriteRequiresSession(t *testing.T) {
	f := setupTestFixture(t)
	_, err := f.manager.ToggleFavorite(context.Background(), "3")
	require.ErrorIs(t, err, session.ErrNotAuthenticated)
}

func TestUnauthorizedCallRefreshesAndReplays(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	access, _ := f.stored(credentials.AccessTokenKey)
	f.backend.RevokeAccess(access)
	f.backend.QueueAccessTokens("replayed")

	added, err := f.manager.ToggleFavorite(context.Background(), "9")
	require.NoError(t, err)
	require.True(t, added)

	require.Equal(t, 1, f.backend.Calls(http.MethodPost, "/token/refresh/"))
	require.Equal(t, 2, f.backend.Calls(http.MethodPost, "/favorites/"))
	require.JSONEq(t, `{"vehicle_id":9}`, string(f.backend.LastBody(http.MethodPost, "/favorites/")))
	stored, _ := f.stored(credentials.AccessTokenKey)
	require.Equal(t, "replayed", stored)
	require.Equal(t, session.Authenticated, f.manager.State())
}

func TestUnauthorizedCallWithRejectedRefreshExpiresSession(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	access, _ := f.stored(credentials.AccessTokenKey)
	refresh, _ := f.stored(credentials.RefreshTokenKey)
	f.backend.RevokeAccess(access)
	f.backend.RevokeRefresh(refresh)

	_, err := f.manager.ToggleFavorite(context.Background(), "9")
	require.ErrorIs(t, err, session.ErrSessionExpired)
	require.Equal(t, session.Anonymous, f.manager.State())
	require.Empty(t, f.repo.Snapshot())
	_, ok := f.manager.CurrentUser()
	require.False(t, ok)
}

func TestUnauthorizedReplayExpiresSession(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)
	f.backend.Override(http.MethodPost, "/favorites/", func(w http.ResponseWriter, _ *http.Request) {
		apitest.JSON(w, http.StatusUnauthorized, map[string]string{"detail": "Given token not valid for any token type"})
	})

	_, err := f.manager.ToggleFavorite(context.Background(), "9")
	require.ErrorIs(t, err, session.ErrSessionExpired)
	require.Equal(t, session.Anonymous, f.manager.State())
	require.Equal(t, 2, f.backend.Calls(http.MethodPost, "/favorites/"))
}

func TestDeleteAccount(t *testing.T) {
	f := setupTestFixture(t)
	f.login(t)

	require.NoError(t, f.manager.DeleteAccount(context.Background()))
	require.Equal(t, session.Anonymous, f.manager.State())
	require.Empty(t, f.repo.Snapshot())
	_, ok := f.backend.Account(testUsername)
	require.False(t, ok)

	require.ErrorIs(t, f.manager.DeleteAccount(context.Background()), session.ErrNotAuthenticated)
}

func TestTokenRenewsExpiredJWT(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	f := setupTestFixture(t, session.WithNowTime(func() time.Time { return now }))

	expired := f.backend.SignJWT(testUsername, now.Add(-time.Minute))
	f.backend.QueueAccessTokens(expired, "fresh")
	f.login(t)

	tok, err := f.manager.Token()
	require.NoError(t, err)
	require.Equal(t, "fresh", tok.AccessToken)
	require.Equal(t, 1, f.backend.Calls(http.MethodPost, "/token/refresh/"))
}

func TestTokenKeepsValidJWT(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	f := setupTestFixture(t, session.WithNowTime(func() time.Time { return now }))

	valid := f.backend.SignJWT(testUsername, now.Add(time.Hour))
	f.backend.QueueAccessTokens(valid)
	f.login(t)

	tok, err := f.manager.Token()
	require.NoError(t, err)
	require.Equal(t, valid, tok.AccessToken)
	require.Equal(t, now.Add(time.Hour).Unix(), tok.Expiry.Unix())
	require.Zero(t, f.backend.Calls(http.MethodPost, "/token/refresh/"))
}

func TestTokenFromIssuedJWT(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.IssueJWTs(15 * time.Minute)
	f.login(t)

	tok, err := f.manager.Token()
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(15*time.Minute), tok.Expiry, time.Minute)
	require.Zero(t, f.backend.Calls(http.MethodPost, "/token/refresh/"))

	f.backend.IssueJWTs(-time.Minute)
	require.NoError(t, f.manager.Refresh(context.Background()))
	renewed, err := f.manager.Token()
	require.NoError(t, err)
	require.NotEqual(t, tok.AccessToken, renewed.AccessToken)
	require.Equal(t, 2, f.backend.Calls(http.MethodPost, "/token/refresh/"))
}

func TestTokenWhenAnonymous(t *testing.T) {
	f := setupTestFixture(t)
	_, err := f.manager.Token()
	require.ErrorIs(t, err, session.ErrNotAuthenticated)
}

func TestSubscribeReceivesLatestSnapshot(t *testing.T) {
	f := setupTestFixture(t)
	updates, cancel := f.manager.Subscribe()
	defer cancel()

	f.login(t)

	snap := <-updates
	require.Equal(t, session.Authenticated, snap.State)
	require.NotNil(t, snap.User)
	require.Equal(t, "7", snap.User.ID)

	f.manager.Logout()
	snap = <-updates
	require.Equal(t, session.Anonymous, snap.State)
	require.Nil(t, snap.User)

	cancel()
	_, open := <-updates
	require.False(t, open)
}

func TestCloseStopsTimerAndSubscriptions(t *testing.T) {
	f := setupTestFixture(t)
	updates, _ := f.manager.Subscribe()
	f.login(t)

	f.manager.Close()
	require.False(t, f.manager.TimerRunning())
	for range updates {
	}
	require.Equal(t, session.Authenticated, f.manager.State())
	require.Len(t, f.repo.Snapshot(), 2)
}
