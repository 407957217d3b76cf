package authority

import (
	"context"
	"crypto/ed25519"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func cheapHasher() *Hasher {
	return NewHasher(HasherParams{Memory: 1024, Time: 1, Threads: 1, SaltLen: 16, KeyLen: 32})
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 9, 1, 8, 0, 0, 250_000_000, time.UTC)}
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

type memFinder struct {
	byEmail map[string]Principal
	err     error
}

func newMemFinder(principals ...Principal) *memFinder {
	f := &memFinder{byEmail: make(map[string]Principal)}
	for _, p := range principals {
		f.byEmail[p.Email] = p
	}
	return f
}

func (f *memFinder) FindPrincipal(_ context.Context, identifier string) (Principal, error) {
	if f.err != nil {
		return Principal{}, f.err
	}
	p, ok := f.byEmail[identifier]
	if !ok {
		return Principal{}, ErrPrincipalNotFound
	}
	return p, nil
}

func (f *memFinder) FindPrincipalByID(_ context.Context, id string) (Principal, error) {
	if f.err != nil {
		return Principal{}, f.err
	}
	for _, p := range f.byEmail {
		if p.ID == id {
			return p, nil
		}
	}
	return Principal{}, ErrPrincipalNotFound
}

type recordingObserver struct {
	authentications []string
	validations     []string
	denied          []string
}

func (o *recordingObserver) ObserveAuthentication(outcome string) {
	o.authentications = append(o.authentications, outcome)
}

func (o *recordingObserver) ObserveValidation(outcome string) {
	o.validations = append(o.validations, outcome)
}

func (o *recordingObserver) ObserveAuthorization(capability string, allowed bool) {
	if !allowed {
		o.denied = append(o.denied, capability)
	}
}

type fixture struct {
	authority *Authority
	clock     *fakeClock
	finder    *memFinder
	hasher    *Hasher
	observer  *recordingObserver
}

func newFixture(t *testing.T, mutate func(*Config)) *fixture {
	t.Helper()
	hasher := cheapHasher()
	adminHash, err := hasher.Hash("Admin123")
	require.NoError(t, err)
	userHash, err := hasher.Hash("Student42")
	require.NoError(t, err)

	finder := newMemFinder(
		Principal{ID: "1", Email: "admin@example.com", FullName: "Admin", Role: RoleAdmin, CredentialHash: adminHash, Active: true},
		Principal{ID: "7", Email: "alice@example.com", FullName: "Alice", Role: RoleUser, CredentialHash: userHash, Active: true},
		Principal{ID: "9", Email: "gone@example.com", FullName: "Gone", Role: RoleUser, CredentialHash: userHash, Active: false},
	)
	signer, err := NewHMACSigner(testSecret)
	require.NoError(t, err)

	clock := newFakeClock()
	observer := &recordingObserver{}
	cfg := Config{
		Signer:   signer,
		TTL:      time.Hour,
		Issuer:   "sections-api",
		Hasher:   hasher,
		Clock:    clock.Now,
		Observer: observer,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	a, err := New(cfg, finder)
	require.NoError(t, err)
	return &fixture{authority: a, clock: clock, finder: finder, hasher: hasher, observer: observer}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	signer, err := NewHMACSigner(testSecret)
	require.NoError(t, err)
	finder := newMemFinder()

	_, err = New(Config{TTL: time.Hour}, finder)
	assert.Error(t, err)

	_, err = New(Config{Signer: signer, TTL: time.Hour}, nil)
	assert.Error(t, err)

	_, err = New(Config{Signer: signer, TTL: 500 * time.Millisecond}, finder)
	assert.Error(t, err)
}

func TestAuthenticateRoundTrip(t *testing.T) {
	fx := newFixture(t, nil)
	ctx := context.Background()

	token, err := fx.authority.Authenticate(ctx, "alice@example.com", "Student42")
	require.NoError(t, err)
	assert.Equal(t, TokenTypeBearer, token.TokenType)
	assert.Equal(t, int64(3600), token.ExpiresIn)
	assert.NotEmpty(t, token.AccessToken)

	principal, err := fx.authority.ValidateToken(ctx, token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "7", principal.ID)
	assert.Equal(t, RoleUser, principal.Role)
	assert.NotEmpty(t, principal.TokenID)
	assert.True(t, token.ExpiresAt.Equal(principal.ExpiresAt))
	assert.Equal(t, time.Hour, principal.ExpiresAt.Sub(principal.IssuedAt))

	assert.Equal(t, []string{OutcomeSuccess}, fx.observer.authentications)
	assert.Equal(t, []string{OutcomeSuccess}, fx.observer.validations)
}

func TestAuthenticateTokenIDsAreUnique(t *testing.T) {
	fx := newFixture(t, nil)
	ctx := context.Background()

	first, err := fx.authority.Authenticate(ctx, "alice@example.com", "Student42")
	require.NoError(t, err)
	second, err := fx.authority.Authenticate(ctx, "alice@example.com", "Student42")
	require.NoError(t, err)

	p1, err := fx.authority.ValidateToken(ctx, first.AccessToken)
	require.NoError(t, err)
	p2, err := fx.authority.ValidateToken(ctx, second.AccessToken)
	require.NoError(t, err)
	assert.NotEqual(t, p1.TokenID, p2.TokenID)
}

func TestAuthenticateFailuresAreIndistinguishable(t *testing.T) {
	fx := newFixture(t, nil)
	ctx := context.Background()

	cases := []struct {
		name       string
		identifier string
		credential string
	}{
		{name: "unknown identifier", identifier: "nobody@example.com", credential: "Student42"},
		{name: "wrong credential", identifier: "alice@example.com", credential: "Student43"},
		{name: "empty credential", identifier: "alice@example.com", credential: ""},
		{name: "inactive principal", identifier: "gone@example.com", credential: "Student42"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			token, err := fx.authority.Authenticate(ctx, tc.identifier, tc.credential)
			assert.ErrorIs(t, err, ErrInvalidCredentials)
			assert.Equal(t, ErrInvalidCredentials.Error(), err.Error())
			assert.Empty(t, token.AccessToken)
		})
	}
}

func TestAuthenticateFinderFailureIsNotInvalidCredentials(t *testing.T) {
	fx := newFixture(t, nil)
	boom := errors.New("connection refused")
	fx.finder.err = boom

	_, err := fx.authority.Authenticate(context.Background(), "alice@example.com", "Student42")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, []string{OutcomeError}, fx.observer.authentications)
}

func TestValidateTokenExpiryBoundary(t *testing.T) {
	fx := newFixture(t, nil)
	ctx := context.Background()

	token, err := fx.authority.Authenticate(ctx, "alice@example.com", "Student42")
	require.NoError(t, err)

	fx.clock.Advance(3599 * time.Second)
	_, err = fx.authority.ValidateToken(ctx, token.AccessToken)
	require.NoError(t, err)

	fx.clock.Advance(time.Second)
	_, err = fx.authority.ValidateToken(ctx, token.AccessToken)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestValidateTokenRejectsMalformedInput(t *testing.T) {
	fx := newFixture(t, nil)
	ctx := context.Background()

	token, err := fx.authority.Authenticate(ctx, "alice@example.com", "Student42")
	require.NoError(t, err)

	parts := strings.Split(token.AccessToken, ".")
	require.Len(t, parts, 3)
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	otherSigner, err := NewHMACSigner([]byte("ffffffffffffffffffffffffffffffff"))
	require.NoError(t, err)
	foreign, err := otherSigner.Sign(Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "jti",
			Subject:   "7",
			Issuer:    "sections-api",
			IssuedAt:  jwt.NewNumericDate(fx.clock.Now()),
			ExpiresAt: jwt.NewNumericDate(fx.clock.Now().Add(time.Hour)),
		},
		Role: RoleAdmin,
	})
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "jti",
			Subject:   "7",
			IssuedAt:  jwt.NewNumericDate(fx.clock.Now()),
			ExpiresAt: jwt.NewNumericDate(fx.clock.Now().Add(time.Hour)),
		},
		Role: RoleAdmin,
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	cases := map[string]string{
		"empty":     "",
		"garbage":   "not-a-token",
		"two parts": parts[0] + "." + parts[1],
		"tampered":  tampered,
		"wrong key": foreign,
		"alg none":  unsigned,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := fx.authority.ValidateToken(ctx, raw)
			assert.ErrorIs(t, err, ErrMalformedToken)
		})
	}
}

func TestValidateTokenRequiresClaims(t *testing.T) {
	fx := newFixture(t, nil)
	ctx := context.Background()
	signer, err := NewHMACSigner(testSecret)
	require.NoError(t, err)
	now := fx.clock.Now()

	full := func() Claims {
		return Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        "jti",
				Subject:   "7",
				Issuer:    "sections-api",
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			},
			Role: RoleUser,
		}
	}

	cases := map[string]func(*Claims){
		"no subject": func(c *Claims) { c.Subject = "" },
		"no role":    func(c *Claims) { c.Role = "" },
		"no jti":     func(c *Claims) { c.ID = "" },
		"no iat":     func(c *Claims) { c.IssuedAt = nil },
		"no exp":     func(c *Claims) { c.ExpiresAt = nil },
		"bad issuer": func(c *Claims) { c.Issuer = "someone-else" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			claims := full()
			mutate(&claims)
			raw, err := signer.Sign(claims)
			require.NoError(t, err)
			_, err = fx.authority.ValidateToken(ctx, raw)
			assert.ErrorIs(t, err, ErrMalformedToken)
		})
	}

	raw, err := signer.Sign(full())
	require.NoError(t, err)
	_, err = fx.authority.ValidateToken(ctx, raw)
	assert.NoError(t, err)
}

func TestEd25519TokensVerifyWithPublicKey(t *testing.T) {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i)
	}
	signer, err := NewEd25519Signer(seed)
	require.NoError(t, err)

	fx := newFixture(t, func(cfg *Config) { cfg.Signer = signer })
	token, err := fx.authority.Authenticate(context.Background(), "admin@example.com", "Admin123")
	require.NoError(t, err)

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token.AccessToken, claims, func(*jwt.Token) (any, error) {
		return signer.VerificationKey(), nil
	}, jwt.WithValidMethods([]string{"EdDSA"}), jwt.WithTimeFunc(fx.clock.Now))
	require.NoError(t, err)
	assert.True(t, parsed.Valid)
	assert.Equal(t, "1", claims.Subject)
	assert.Equal(t, RoleAdmin, claims.Role)

	hmac := newFixture(t, nil)
	_, err = hmac.authority.ValidateToken(context.Background(), token.AccessToken)
	assert.ErrorIs(t, err, ErrMalformedToken)
}

func TestAuthorizeAndRequire(t *testing.T) {
	fx := newFixture(t, nil)
	admin := AuthenticatedPrincipal{ID: "1", Role: RoleAdmin}
	user := AuthenticatedPrincipal{ID: "7", Role: RoleUser}
	stranger := AuthenticatedPrincipal{ID: "3", Role: Role("guest")}

	assert.True(t, fx.authority.Authorize(admin, CapDeleteSection))
	assert.True(t, fx.authority.Authorize(user, CapReadSection))
	assert.False(t, fx.authority.Authorize(user, CapDeleteSection))
	assert.False(t, fx.authority.Authorize(stranger, CapReadSection))

	err := fx.authority.Require(user, CapEnrollStudent)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthorizationDenied)
	var denied *DeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, CapEnrollStudent, denied.Capability)
	assert.Equal(t, RoleUser, denied.Role)

	assert.NoError(t, fx.authority.Require(admin, CapEnrollStudent))
	assert.Contains(t, fx.observer.denied, string(CapDeleteSection))
}

func TestRefreshReadsCurrentRole(t *testing.T) {
	fx := newFixture(t, nil)
	ctx := context.Background()

	token, err := fx.authority.Authenticate(ctx, "alice@example.com", "Student42")
	require.NoError(t, err)
	principal, err := fx.authority.ValidateToken(ctx, token.AccessToken)
	require.NoError(t, err)

	promoted := fx.finder.byEmail["alice@example.com"]
	promoted.Role = RoleAdmin
	fx.finder.byEmail["alice@example.com"] = promoted

	fx.clock.Advance(10 * time.Minute)
	refreshed, err := fx.authority.Refresh(ctx, principal)
	require.NoError(t, err)

	next, err := fx.authority.ValidateToken(ctx, refreshed.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, next.Role)
	assert.True(t, next.ExpiresAt.After(principal.ExpiresAt))
}

func TestRefreshRejectsMissingOrInactivePrincipal(t *testing.T) {
	fx := newFixture(t, nil)
	ctx := context.Background()

	_, err := fx.authority.Refresh(ctx, AuthenticatedPrincipal{ID: "404", Role: RoleUser})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = fx.authority.Refresh(ctx, AuthenticatedPrincipal{ID: "9", Role: RoleUser})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRevokeBlocksToken(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	list := NewRedisRevocationList(client)
	fx := newFixture(t, func(cfg *Config) { cfg.Revocations = list })
	list.now = fx.clock.Now
	ctx := context.Background()

	token, err := fx.authority.Authenticate(ctx, "alice@example.com", "Student42")
	require.NoError(t, err)
	principal, err := fx.authority.ValidateToken(ctx, token.AccessToken)
	require.NoError(t, err)

	require.NoError(t, fx.authority.Revoke(ctx, principal))
	_, err = fx.authority.ValidateToken(ctx, token.AccessToken)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	other, err := fx.authority.Authenticate(ctx, "alice@example.com", "Student42")
	require.NoError(t, err)
	_, err = fx.authority.ValidateToken(ctx, other.AccessToken)
	assert.NoError(t, err)
}

func TestRevokeWithoutListIsUnavailable(t *testing.T) {
	fx := newFixture(t, nil)
	err := fx.authority.Revoke(context.Background(), AuthenticatedPrincipal{ID: "7", TokenID: "abc", ExpiresAt: fx.clock.Now().Add(time.Hour)})
	assert.ErrorIs(t, err, ErrRevocationUnavailable)
}

func TestValidateTokenSurfacesRevocationStoreFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	fx := newFixture(t, func(cfg *Config) { cfg.Revocations = NewRedisRevocationList(client) })
	ctx := context.Background()
	token, err := fx.authority.Authenticate(ctx, "alice@example.com", "Student42")
	require.NoError(t, err)

	mr.Close()
	_, err = fx.authority.ValidateToken(ctx, token.AccessToken)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTokenRevoked)
	assert.NotErrorIs(t, err, ErrMalformedToken)
}
