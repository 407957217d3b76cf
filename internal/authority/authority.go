package authority

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/student-sections/sections-api/internal/authority"

// Outcome labels reported to an Observer.
const (
	OutcomeSuccess            = "success"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeMalformed          = "malformed"
	OutcomeExpired            = "expired"
	OutcomeRevoked            = "revoked"
	OutcomeError              = "error"
)

// Observer receives the outcome of every authority decision.
type Observer interface {
	ObserveAuthentication(outcome string)
	ObserveValidation(outcome string)
	ObserveAuthorization(capability string, allowed bool)
}

type nopObserver struct{}

func (nopObserver) ObserveAuthentication(string)      {}
func (nopObserver) ObserveValidation(string)          {}
func (nopObserver) ObserveAuthorization(string, bool) {}

// Config is the startup configuration of an Authority.
type Config struct {
	// Signer signs and verifies tokens. Required.
	Signer Signer
	// TTL is the validity window of issued tokens. Must be at least one second.
	TTL time.Duration
	// Issuer is written to and required in the iss claim when set.
	Issuer string
	// Hasher verifies stored credential hashes. Defaults to argon2id defaults.
	Hasher *Hasher
	// Permissions is the role mapping. Defaults to DefaultPermissions.
	Permissions Permissions
	// Revocations enables Revoke and the revocation check in ValidateToken.
	Revocations RevocationList
	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
	// Observer receives decision outcomes. Optional.
	Observer Observer
}

// Authority issues and validates access tokens and authorizes capabilities.
type Authority struct {
	finder      PrincipalFinder
	signer      Signer
	hasher      *Hasher
	ttl         time.Duration
	issuer      string
	permissions Permissions
	revocations RevocationList
	now         func() time.Time
	observer    Observer
	parser      *jwt.Parser
	tracer      trace.Tracer
	dummyHash   string
}

// New validates cfg and constructs an Authority reading principals from finder.
func New(cfg Config, finder PrincipalFinder) (*Authority, error) {
	if cfg.Signer == nil {
		return nil, errors.New("authority: signer required")
	}
	if finder == nil {
		return nil, errors.New("authority: principal finder required")
	}
	if cfg.TTL < time.Second {
		return nil, fmt.Errorf("authority: ttl must be at least 1s, got %s", cfg.TTL)
	}
	if cfg.Hasher == nil {
		cfg.Hasher = NewHasher(DefaultHasherParams())
	}
	if cfg.Permissions.IsZero() {
		cfg.Permissions = DefaultPermissions()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}

	// Unknown identifiers are checked against this hash so that they cost the
	// same as a wrong password.
	dummy, err := cfg.Hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, err
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{cfg.Signer.Algorithm()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(cfg.Clock),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	return &Authority{
		finder:      finder,
		signer:      cfg.Signer,
		hasher:      cfg.Hasher,
		ttl:         cfg.TTL,
		issuer:      cfg.Issuer,
		permissions: cfg.Permissions,
		revocations: cfg.Revocations,
		now:         cfg.Clock,
		observer:    cfg.Observer,
		parser:      jwt.NewParser(opts...),
		tracer:      otel.Tracer(tracerName),
		dummyHash:   dummy,
	}, nil
}

// TTL returns the validity window of issued tokens.
func (a *Authority) TTL() time.Duration {
	return a.ttl
}

// Permissions returns the role mapping in use.
func (a *Authority) Permissions() Permissions {
	return a.permissions
}

// Authenticate verifies credential for identifier and mints a token. Unknown
// identifiers, wrong credentials and inactive principals all yield
// ErrInvalidCredentials.
func (a *Authority) Authenticate(ctx context.Context, identifier, credential string) (Token, error) {
	ctx, span := a.tracer.Start(ctx, "authority.Authenticate")
	defer span.End()

	principal, err := a.finder.FindPrincipal(ctx, identifier)
	if err != nil {
		if !errors.Is(err, ErrPrincipalNotFound) {
			a.fail(span, err)
			a.observer.ObserveAuthentication(OutcomeError)
			return Token{}, fmt.Errorf("authority: find principal: %w", err)
		}
		a.hasher.Verify(credential, a.dummyHash)
		return Token{}, a.rejectCredentials(span)
	}

	matched := a.hasher.Verify(credential, principal.CredentialHash)
	if !matched || !principal.Active {
		return Token{}, a.rejectCredentials(span)
	}

	token, err := a.mint(principal.ID, principal.Role)
	if err != nil {
		a.fail(span, err)
		a.observer.ObserveAuthentication(OutcomeError)
		return Token{}, err
	}
	span.SetAttributes(attribute.String("principal.id", principal.ID), attribute.String("principal.role", string(principal.Role)))
	a.observer.ObserveAuthentication(OutcomeSuccess)
	return token, nil
}

// ValidateToken verifies raw and returns the principal it was issued for.
func (a *Authority) ValidateToken(ctx context.Context, raw string) (AuthenticatedPrincipal, error) {
	ctx, span := a.tracer.Start(ctx, "authority.ValidateToken")
	defer span.End()

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return AuthenticatedPrincipal{}, a.rejectToken(span, ErrMalformedToken, OutcomeMalformed)
	}

	claims := &Claims{}
	if _, err := a.parser.ParseWithClaims(raw, claims, a.signer.Keyfunc()); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return AuthenticatedPrincipal{}, a.rejectToken(span, ErrTokenExpired, OutcomeExpired)
		}
		return AuthenticatedPrincipal{}, a.rejectToken(span, ErrMalformedToken, OutcomeMalformed)
	}
	if claims.Subject == "" || claims.ID == "" || claims.Role == "" || claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return AuthenticatedPrincipal{}, a.rejectToken(span, ErrMalformedToken, OutcomeMalformed)
	}

	principal := AuthenticatedPrincipal{
		ID:        claims.Subject,
		Role:      claims.Role,
		TokenID:   claims.ID,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}

	if a.revocations != nil {
		revoked, err := a.revocations.IsRevoked(ctx, principal.TokenID)
		if err != nil {
			a.fail(span, err)
			a.observer.ObserveValidation(OutcomeError)
			return AuthenticatedPrincipal{}, err
		}
		if revoked {
			return AuthenticatedPrincipal{}, a.rejectToken(span, ErrTokenRevoked, OutcomeRevoked)
		}
	}

	span.SetAttributes(attribute.String("principal.id", principal.ID), attribute.String("principal.role", string(principal.Role)))
	a.observer.ObserveValidation(OutcomeSuccess)
	return principal, nil
}

// Authorize reports whether p's role grants c. Unknown roles are denied.
func (a *Authority) Authorize(p AuthenticatedPrincipal, c Capability) bool {
	allowed := a.permissions.Allows(p.Role, c)
	a.observer.ObserveAuthorization(string(c), allowed)
	return allowed
}

// Require is Authorize returning a *DeniedError on refusal.
func (a *Authority) Require(p AuthenticatedPrincipal, c Capability) error {
	if a.Authorize(p, c) {
		return nil
	}
	return &DeniedError{Subject: p.ID, Role: p.Role, Capability: c}
}

// Refresh re-reads the principal behind p and issues a new token carrying its
// current role. Missing or deactivated principals yield ErrInvalidCredentials.
func (a *Authority) Refresh(ctx context.Context, p AuthenticatedPrincipal) (Token, error) {
	ctx, span := a.tracer.Start(ctx, "authority.Refresh")
	defer span.End()

	principal, err := a.finder.FindPrincipalByID(ctx, p.ID)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			return Token{}, a.rejectCredentials(span)
		}
		a.fail(span, err)
		a.observer.ObserveAuthentication(OutcomeError)
		return Token{}, fmt.Errorf("authority: find principal: %w", err)
	}
	if !principal.Active {
		return Token{}, a.rejectCredentials(span)
	}
	token, err := a.mint(principal.ID, principal.Role)
	if err != nil {
		a.fail(span, err)
		return Token{}, err
	}
	a.observer.ObserveAuthentication(OutcomeSuccess)
	return token, nil
}

// Revoke blocks the token p was recovered from until it expires.
func (a *Authority) Revoke(ctx context.Context, p AuthenticatedPrincipal) error {
	if a.revocations == nil {
		return ErrRevocationUnavailable
	}
	if p.TokenID == "" {
		return ErrMalformedToken
	}
	if !a.now().Before(p.ExpiresAt) {
		return nil
	}
	return a.revocations.Revoke(ctx, p.TokenID, p.ExpiresAt)
}

func (a *Authority) mint(id string, role Role) (Token, error) {
	issuedAt := a.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(a.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   id,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Role: role,
	}
	signed, err := a.signer.Sign(claims)
	if err != nil {
		return Token{}, fmt.Errorf("authority: sign token: %w", err)
	}
	return Token{
		AccessToken: signed,
		TokenType:   TokenTypeBearer,
		ExpiresIn:   int64(a.ttl / time.Second),
		ExpiresAt:   expiresAt,
	}, nil
}

func (a *Authority) rejectCredentials(span trace.Span) error {
	span.SetStatus(codes.Error, OutcomeInvalidCredentials)
	a.observer.ObserveAuthentication(OutcomeInvalidCredentials)
	return ErrInvalidCredentials
}

func (a *Authority) rejectToken(span trace.Span, err error, outcome string) error {
	span.SetStatus(codes.Error, outcome)
	a.observer.ObserveValidation(outcome)
	return err
}

func (a *Authority) fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
