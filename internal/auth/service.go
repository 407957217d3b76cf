package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/student-sections/sections-api/internal/authority"
	"github.com/student-sections/sections-api/internal/shared"
	"github.com/student-sections/sections-api/internal/users"
)

// Service wraps authentication flows and records them in the audit trail.
type Service struct {
	tokens   TokenIssuer
	accounts Accounts
	events   EventPublisher
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time
}

// NewService constructs a new Service. events may be nil.
func NewService(logger *slog.Logger, tokens TokenIssuer, accounts Accounts, events EventPublisher) *Service {
	return &Service{
		tokens:   tokens,
		accounts: accounts,
		events:   events,
		logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
	}
}

// Login validates email/password credentials and issues a token.
func (s *Service) Login(ctx context.Context, in LoginRequest, remoteIP string) (authority.Token, error) {
	in.Email = users.NormalizeEmail(in.Email)
	if err := s.validate.StructCtx(ctx, in); err != nil {
		return authority.Token{}, loginValidationError(err)
	}
	token, err := s.tokens.Authenticate(ctx, in.Email, in.Password)
	if err != nil {
		if errors.Is(err, authority.ErrInvalidCredentials) {
			s.publish(ctx, shared.AuthEvent{Kind: shared.EventLoginFailed, Identifier: in.Email, RemoteIP: remoteIP})
		}
		return authority.Token{}, err
	}
	s.publish(ctx, shared.AuthEvent{Kind: shared.EventLoginSucceeded, Identifier: in.Email, RemoteIP: remoteIP})
	return token, nil
}

// Register creates a self-service account.
func (s *Service) Register(ctx context.Context, in users.RegisterInput, remoteIP string) (users.User, error) {
	user, err := s.accounts.Register(ctx, in)
	if err != nil {
		return users.User{}, err
	}
	s.publish(ctx, shared.AuthEvent{Kind: shared.EventRegistered, SubjectID: idString(user.ID), Identifier: user.Email, RemoteIP: remoteIP})
	return user, nil
}

// CreateUser creates an account with an explicit role on behalf of actor.
func (s *Service) CreateUser(ctx context.Context, actor authority.AuthenticatedPrincipal, in users.CreateInput, remoteIP string) (users.User, error) {
	user, err := s.accounts.CreateByAdmin(ctx, actor, in)
	if err != nil {
		return users.User{}, err
	}
	s.publish(ctx, shared.AuthEvent{
		Kind:       shared.EventUserCreated,
		ActorID:    actor.ID,
		SubjectID:  idString(user.ID),
		Identifier: user.Email,
		RemoteIP:   remoteIP,
		Meta:       map[string]any{"role": string(user.Role)},
	})
	return user, nil
}

// Me returns the account behind p.
func (s *Service) Me(ctx context.Context, p authority.AuthenticatedPrincipal) (users.User, error) {
	return s.accounts.Get(ctx, p.ID)
}

// Refresh issues a new token for p.
func (s *Service) Refresh(ctx context.Context, p authority.AuthenticatedPrincipal) (authority.Token, error) {
	return s.tokens.Refresh(ctx, p)
}

// Logout revokes the token p was recovered from. Without a revocation list
// the call succeeds and the token stays valid until it expires.
func (s *Service) Logout(ctx context.Context, p authority.AuthenticatedPrincipal, remoteIP string) error {
	if err := s.tokens.Revoke(ctx, p); err != nil {
		if !errors.Is(err, authority.ErrRevocationUnavailable) {
			return err
		}
		s.logger.Warn("logout without revocation list", slog.String("subject", p.ID))
	}
	s.publish(ctx, shared.AuthEvent{Kind: shared.EventLoggedOut, ActorID: p.ID, SubjectID: p.ID, RemoteIP: remoteIP})
	return nil
}

// ChangePassword replaces the caller's password.
func (s *Service) ChangePassword(ctx context.Context, p authority.AuthenticatedPrincipal, in users.ChangePasswordInput, remoteIP string) error {
	if err := s.accounts.ChangePassword(ctx, p.ID, in); err != nil {
		return err
	}
	s.publish(ctx, shared.AuthEvent{Kind: shared.EventPasswordChanged, ActorID: p.ID, SubjectID: p.ID, RemoteIP: remoteIP})
	return nil
}

func (s *Service) publish(ctx context.Context, event shared.AuthEvent) {
	if s.events == nil {
		return
	}
	event.At = s.now().UTC()
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("publish auth event", slog.String("kind", event.Kind), slog.Any("error", err))
	}
}

func loginValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		switch fe.Field() {
		case "Email":
			fields["email"] = "must be a valid email address"
		case "Password":
			fields["password"] = "is required"
		}
	}
	return &shared.ValidationError{Fields: fields}
}
