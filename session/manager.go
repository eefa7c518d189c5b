// Package session owns the signed-in identity of the marketplace client: the
// access/refresh token pair, its durable copy, and the cached user.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jrsteele09/go-vehicle-market/api"
	"github.com/jrsteele09/go-vehicle-market/credentials"
	"github.com/jrsteele09/go-vehicle-market/metrics"
	"github.com/jrsteele09/go-vehicle-market/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const (
	defaultRefreshInterval = time.Hour
	defaultExpiryLeeway    = 10 * time.Second
)

// Manager is the single writer of session state. It is safe for concurrent use.
//
// Every login, signup, restore, logout and forced expiry starts a new epoch.
// Responses that arrive for an older epoch are discarded with ErrSessionChanged.
type Manager struct {
	api             *api.Client
	repo            credentials.Repo
	logger          zerolog.Logger
	metrics         *metrics.Collectors
	refreshInterval time.Duration
	expiryLeeway    time.Duration
	nowTime         func() time.Time
	httpClient      *http.Client
	refreshGroup    singleflight.Group

	mu          sync.Mutex
	state       State
	access      *string
	refresh     *string
	user        *users.User
	epoch       uint64
	stopTimer   context.CancelFunc
	timers      sync.WaitGroup
	subscribers map[int]chan Snapshot
	nextSubID   int
	closed      bool
}

// ManagerOption defines a function type to modify the Manager instance.
type ManagerOption func(*Manager)

func WithLogger(logger zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

func WithMetrics(c *metrics.Collectors) ManagerOption {
	return func(m *Manager) {
		m.metrics = c
	}
}

// WithRefreshInterval sets the period of the background token renewal.
func WithRefreshInterval(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.refreshInterval = d
		}
	}
}

// WithExpiryLeeway treats a JWT access token as expired this long before its exp claim.
func WithExpiryLeeway(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.expiryLeeway = d
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowTime = nowFunc
	}
}

// NewManager creates an anonymous session. Call Restore to pick up persisted tokens.
func NewManager(client *api.Client, repo credentials.Repo, options ...ManagerOption) (*Manager, error) {
	if client == nil {
		return nil, errors.New("[NewManager] api client is required")
	}
	if repo == nil {
		return nil, errors.New("[NewManager] credentials repo is required")
	}

	m := &Manager{
		api:             client,
		repo:            repo,
		logger:          log.Logger,
		refreshInterval: defaultRefreshInterval,
		expiryLeeway:    defaultExpiryLeeway,
		nowTime:         time.Now,
		subscribers:     make(map[int]chan Snapshot),
	}
	for _, opt := range options {
		opt(m)
	}
	m.httpClient = m.newHTTPClient()
	return m, nil
}

// Login exchanges credentials for a token pair, persists it and resolves the
// identity. A rejected attempt puts back the session that was active before.
func (m *Manager) Login(ctx context.Context, identifier, password string) error {
	epoch, prior := m.begin(ctx)

	pair, err := m.requestTokens(ctx, identifier, password)
	if err != nil {
		m.revert(epoch, prior)
		return err
	}
	return m.establish(ctx, epoch, pair)
}

type signupInput struct {
	Name     string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Signup registers an account. When the server answers with a token pair the
// session is established and authenticated is true; otherwise the session
// stays anonymous and the caller has to Login.
func (m *Manager) Signup(ctx context.Context, name, email, password string) (authenticated bool, err error) {
	in := signupInput{Name: name, Email: email, Password: password}
	if err := validate.Struct(in); err != nil {
		return false, validationError(err)
	}

	epoch, prior := m.begin(ctx)
	pair, err := m.register(ctx, in)
	if err != nil {
		m.revert(epoch, prior)
		return false, err
	}
	if pair.Access == nil {
		m.abandon(epoch, true)
		return false, nil
	}
	if err := m.establish(ctx, epoch, pair); err != nil {
		return false, err
	}
	return true, nil
}

// Restore validates the persisted tokens. Without a persisted access token
// the session stays anonymous and nil is returned. When the identity cannot
// be resolved, even after one refresh, both tokens are cleared and the error
// wraps ErrSessionExpired. A cancelled or timed out ctx leaves the persisted
// tokens in place for the next attempt.
func (m *Manager) Restore(ctx context.Context) error {
	epoch, _ := m.begin(ctx)

	access, err := m.repo.Get(ctx, credentials.AccessTokenKey)
	if err != nil {
		m.abandon(epoch, false)
		return fmt.Errorf("read access token: %w", err)
	}
	refresh, err := m.repo.Get(ctx, credentials.RefreshTokenKey)
	if err != nil {
		m.abandon(epoch, false)
		return fmt.Errorf("read refresh token: %w", err)
	}
	if access == nil {
		m.abandon(epoch, false)
		return nil
	}

	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		return ErrSessionChanged
	}
	m.access, m.refresh = access, refresh
	m.mu.Unlock()

	user, err := m.fetchProfile(ctx, *access)
	if err != nil && refresh != nil {
		m.logger.Debug().Err(err).Msg("Persisted access token rejected, refreshing")
		var renewed string
		if renewed, err = m.renew(ctx, triggerStartup); err == nil {
			user, err = m.fetchProfile(ctx, renewed)
		}
	}
	if err != nil {
		if errors.Is(err, ErrSessionChanged) {
			return err
		}
		if ctx.Err() != nil {
			m.abandon(epoch, false)
			return fmt.Errorf("restore session: %w", err)
		}
		m.expire(epoch)
		return fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}
	return m.authenticate(epoch, user)
}

// Logout clears the tokens, their persisted copies and the cached user. It
// never fails; storage errors are logged.
func (m *Manager) Logout() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked(context.Background(), Anonymous, true)
}

// Close stops the background refresh and closes every subscription. The
// session itself, persisted tokens included, is left as is.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.stopTimerLocked()
	for id, ch := range m.subscribers {
		close(ch)
		delete(m.subscribers, id)
	}
	m.mu.Unlock()
	m.timers.Wait()
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// CurrentUser returns a copy of the cached user.
func (m *Manager) CurrentUser() (users.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return users.User{}, false
	}
	return m.user.Clone(), true
}

func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Subscribe delivers a Snapshot after every state or user change. The channel
// holds one value; a slow reader only sees the latest snapshot.
func (m *Manager) Subscribe() (<-chan Snapshot, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan Snapshot, 1)
	if m.closed {
		close(ch)
		return ch, func() {}
	}
	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if _, ok := m.subscribers[id]; ok {
				delete(m.subscribers, id)
				close(ch)
			}
		})
	}
}

// priorSession is the in-memory session a login or signup attempt replaced.
type priorSession struct {
	state   State
	access  *string
	refresh *string
	user    *users.User
}

// begin starts a new epoch for a login, signup or restore. The persisted
// tokens stay untouched until a new pair is issued.
func (m *Manager) begin(ctx context.Context) (uint64, priorSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prior := priorSession{state: m.state, access: m.access, refresh: m.refresh, user: m.user}
	m.resetLocked(ctx, Authenticating, false)
	return m.epoch, prior
}

// revert puts back the session that was active before a rejected attempt.
func (m *Manager) revert(epoch uint64, prior priorSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch {
		return
	}
	if !prior.state.SignedIn() || prior.user == nil {
		m.resetLocked(context.Background(), Anonymous, false)
		return
	}
	m.epoch++
	m.access, m.refresh, m.user = prior.access, prior.refresh, prior.user
	m.state = Authenticated
	m.startTimerLocked()
	m.publishLocked()
}

// abandon returns an unfinished attempt to Anonymous.
func (m *Manager) abandon(epoch uint64, clearStore bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch == epoch {
		m.resetLocked(context.Background(), Anonymous, clearStore)
	}
}

// expire ends the session of epoch after an unrecoverable token failure.
func (m *Manager) expire(epoch uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch {
		return
	}
	if m.state.SignedIn() {
		m.logger.Info().Msg("Session expired")
	}
	m.resetLocked(context.Background(), Anonymous, true)
}

// establish persists a freshly issued pair and resolves its identity.
func (m *Manager) establish(ctx context.Context, epoch uint64, pair tokenPair) error {
	if pair.Access == nil || pair.Refresh == nil {
		m.abandon(epoch, true)
		return errors.New("token response is missing the access or refresh token")
	}

	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		return ErrSessionChanged
	}
	if err := m.persistLocked(ctx, pair); err != nil {
		m.resetLocked(context.Background(), Anonymous, true)
		m.mu.Unlock()
		return err
	}
	m.access, m.refresh = pair.Access, pair.Refresh
	m.mu.Unlock()

	user, err := m.fetchProfile(ctx, *pair.Access)
	if err != nil {
		m.abandon(epoch, true)
		return fmt.Errorf("resolve identity: %w", err)
	}
	return m.authenticate(epoch, user)
}

func (m *Manager) persistLocked(ctx context.Context, pair tokenPair) error {
	if err := m.repo.Upsert(ctx, credentials.AccessTokenKey, *pair.Access); err != nil {
		return fmt.Errorf("persist access token: %w", err)
	}
	if err := m.repo.Upsert(ctx, credentials.RefreshTokenKey, *pair.Refresh); err != nil {
		return fmt.Errorf("persist refresh token: %w", err)
	}
	return nil
}

// authenticate applies a resolved identity unless the session moved on.
func (m *Manager) authenticate(epoch uint64, user users.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch {
		return ErrSessionChanged
	}
	m.user = &user
	m.state = Authenticated
	m.startTimerLocked()
	m.publishLocked()
	m.logger.Info().Str("user_id", user.ID).Bool("admin", user.IsAdmin).Msg("Session authenticated")
	return nil
}

// resetLocked drops the in-memory session, optionally with its persisted
// tokens, and moves to next under a new epoch.
func (m *Manager) resetLocked(ctx context.Context, next State, clearStore bool) {
	m.epoch++
	m.stopTimerLocked()

	if clearStore && (m.access != nil || m.refresh != nil || m.state != Anonymous) {
		for _, key := range credentials.Keys {
			if err := m.repo.Delete(ctx, key); err != nil {
				m.logger.Error().Err(err).Str("key", string(key)).Msg("Failed to clear persisted token")
			}
		}
	}
	changed := m.state != next || m.user != nil
	m.access, m.refresh, m.user = nil, nil, nil
	m.state = next
	if changed {
		m.publishLocked()
	}
}

func (m *Manager) snapshotLocked() Snapshot {
	s := Snapshot{State: m.state}
	if m.user != nil {
		u := m.user.Clone()
		s.User = &u
	}
	return s
}

func (m *Manager) publishLocked() {
	s := m.snapshotLocked()
	for _, ch := range m.subscribers {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s:
		default:
		}
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)
	return v
}

// validationError converts validator failures to the server's field-error shape.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string][]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = append(fields[fe.Field()], fieldMessage(fe))
	}
	return &ValidationError{Fields: fields}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}
