package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shandysiswandi/ayurclinic/internal/identity/entity"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/goerror"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/hash"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/instrument"
	"github.com/shandysiswandi/ayurclinic/internal/pkg/validator"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "clinic-psk"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// sequenceCodes hands out codes in order and repeats the last one.
type sequenceCodes struct {
	mu    sync.Mutex
	codes []string
}

func (g *sequenceCodes) Generate() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	code := g.codes[0]
	if len(g.codes) > 1 {
		g.codes = g.codes[1:]
	}
	return code, nil
}

type counterID struct{ n atomic.Int64 }

func (c *counterID) Generate() int64 { return c.n.Add(1) }

type memoryOTPStore struct {
	mu       sync.Mutex
	tokens   map[string]entity.OTPToken
	sweepErr error
}

func otpKey(email string, purpose entity.OTPPurpose) string {
	return email + "#" + purpose.String()
}

func (m *memoryOTPStore) CreateOTP(_ context.Context, token entity.OTPToken, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := otpKey(token.Email, token.Purpose)
	if cur, ok := m.tokens[key]; ok && !now.After(cur.ExpiresAt) {
		return goerror.ErrConflict
	}
	m.tokens[key] = token
	return nil
}

func (m *memoryOTPStore) GetOTP(_ context.Context, email string, purpose entity.OTPPurpose, digest string) (*entity.OTPToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.tokens[otpKey(email, purpose)]
	if !ok || cur.CodeDigest != digest {
		return nil, goerror.ErrNotFound
	}
	return &cur, nil
}

func (m *memoryOTPStore) IncrementOTPAttempts(_ context.Context, token *entity.OTPToken) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := otpKey(token.Email, token.Purpose)
	cur, ok := m.tokens[key]
	if !ok || cur.ID != token.ID {
		return 0, goerror.ErrNotFound
	}
	cur.Attempts++
	m.tokens[key] = cur
	return cur.Attempts, nil
}

func (m *memoryOTPStore) DeleteOTP(_ context.Context, token *entity.OTPToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := otpKey(token.Email, token.Purpose)
	if cur, ok := m.tokens[key]; !ok || cur.ID != token.ID {
		return goerror.ErrNotFound
	}
	delete(m.tokens, key)
	return nil
}

func (m *memoryOTPStore) SweepExpiredOTP(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sweepErr != nil {
		return 0, m.sweepErr
	}

	var n int64
	for key, tok := range m.tokens {
		if now.After(tok.ExpiresAt) {
			delete(m.tokens, key)
			n++
		}
	}
	return n, nil
}

func (m *memoryOTPStore) get(email string, purpose entity.OTPPurpose) (entity.OTPToken, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.tokens[otpKey(email, purpose)]
	return tok, ok
}

type memoryUserStore struct {
	mu    sync.Mutex
	users map[string]entity.User
}

func (m *memoryUserStore) GetUserByEmail(_ context.Context, email string) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[email]
	if !ok {
		return nil, goerror.ErrNotFound
	}
	return &u, nil
}

func (m *memoryUserStore) CreateUser(_ context.Context, user entity.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[user.Email]; ok {
		return goerror.ErrConflict
	}
	m.users[user.Email] = user
	return nil
}

func (m *memoryUserStore) UpdateUserPassword(_ context.Context, email, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[email]
	if !ok {
		return goerror.ErrNotFound
	}
	u.PasswordHash = passwordHash
	m.users[email] = u
	return nil
}

func (m *memoryUserStore) get(email string) (entity.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[email]
	return u, ok
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishOTPRequested(ctx context.Context, msg OTPRequestedEvent) error {
	return m.Called(ctx, msg).Error(0)
}

type harness struct {
	uc       *Usecase
	otps     *memoryOTPStore
	users    *memoryUserStore
	pub      *mockPublisher
	clock    *fakeClock
	password hash.Hash

	mu   sync.Mutex
	sent []OTPRequestedEvent
}

type harnessOption func(*Dependency)

func withSecret(secret string) harnessOption {
	return func(d *Dependency) { d.RegistrationSecret = secret }
}

func withCodes(codes ...string) harnessOption {
	return func(d *Dependency) { d.OTP = &sequenceCodes{codes: codes} }
}

func newHarness(t *testing.T, publishErr error, opts ...harnessOption) *harness {
	t.Helper()

	v, err := validator.NewV10Validator()
	require.NoError(t, err)

	h := &harness{
		otps:     &memoryOTPStore{tokens: map[string]entity.OTPToken{}},
		users:    &memoryUserStore{users: map[string]entity.User{}},
		pub:      &mockPublisher{},
		clock:    &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)},
		password: hash.NewBcrypt(bcrypt.MinCost, ""),
	}

	h.pub.On("PublishOTPRequested", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			h.mu.Lock()
			h.sent = append(h.sent, args.Get(1).(OTPRequestedEvent))
			h.mu.Unlock()
		}).
		Return(publishErr)

	dep := Dependency{
		RepoUser:           h.users,
		RepoOTP:            h.otps,
		RepoMessaging:      h.pub,
		Validator:          v,
		Password:           h.password,
		Digest:             hash.NewHMACSHA256("digest-key"),
		OTP:                &sequenceCodes{codes: []string{"482913", "735104", "610288"}},
		UID:                &counterID{},
		Clock:              h.clock,
		Instrument:         instrument.NewNoop(),
		TTL:                10 * time.Minute,
		MaxAttempts:        3,
		RegistrationSecret: testSecret,
		DefaultRole:        entity.RolePractitioner,
	}
	for _, opt := range opts {
		opt(&dep)
	}

	h.uc = New(dep)
	return h
}

func (h *harness) lastCode(t *testing.T) string {
	t.Helper()

	h.mu.Lock()
	defer h.mu.Unlock()
	require.NotEmpty(t, h.sent, "no otp was published")
	return h.sent[len(h.sent)-1].Code
}

func (h *harness) sentCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sent)
}

func (h *harness) addUser(email, name string) {
	h.users.mu.Lock()
	defer h.users.mu.Unlock()
	h.users.users[email] = entity.User{
		ID:            int64(len(h.users.users) + 1000),
		Email:         email,
		Name:          name,
		Role:          entity.RoleStaff,
		EmailVerified: true,
	}
}
