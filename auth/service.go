// Package auth implements user signup and signin on top of a user store
// and a password hasher.
//
// E-mail uniqueness is checked with a lookup before the insert, two
// concurrent signups for the same address may both succeed.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/andrebq/gatekeeper/auth/policy"
	"github.com/andrebq/gatekeeper/internal/logutil"
	"github.com/andrebq/gatekeeper/userstore"
)

type (
	User = userstore.User

	UserStore interface {
		Find(ctx context.Context, email string) ([]User, error)
		FindOne(ctx context.Context, id int64) (*User, error)
		List(ctx context.Context) ([]User, error)
		Create(ctx context.Context, email, passwordHash string) (*User, error)
		Update(ctx context.Context, id int64, changes userstore.Changes) (*User, error)
		Remove(ctx context.Context, id int64) (*User, error)
	}

	PasswordHasher interface {
		Hash(password string) (string, error)
		Verify(password, stored string) (bool, error)
	}

	// Policy decides whether an e-mail is allowed to sign up
	Policy interface {
		Admit(ctx context.Context, email string) (policy.Verdict, error)
	}

	// UpdateRequest lists the attributes to change, nil fields are kept.
	// Password is plain text and gets hashed before reaching the store.
	UpdateRequest struct {
		Email    *string
		Password *string
	}

	Service struct {
		users  UserStore
		hasher PasswordHasher
		policy Policy
	}

	Option func(*Service)
)

func WithSignupPolicy(p Policy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

func NewService(users UserStore, hasher PasswordHasher, opts ...Option) *Service {
	s := &Service{
		users:  users,
		hasher: hasher,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Signup registers a new user, it fails with Conflict if the e-mail is
// already taken.
func (s *Service) Signup(ctx context.Context, email, password string) (*User, error) {
	existing, err := s.users.Find(ctx, email)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, Conflict{Email: email}
	}
	if s.policy != nil {
		verdict, err := s.policy.Admit(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("unable to evaluate signup policy, cause %w", err)
		}
		if !verdict.Allow {
			return nil, SignupRejected{Reason: verdict.Reason}
		}
	}
	stored, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("unable to hash password, cause %w", err)
	}
	u, err := s.users.Create(ctx, email, stored)
	if err != nil {
		return nil, err
	}
	log := logutil.GetOrDefault(ctx)
	log.Info().Int64("user.id", u.ID).Msg("User registered")
	return u, nil
}

// Signin checks password against the one registered for email
func (s *Service) Signin(ctx context.Context, email, password string) (*User, error) {
	found, err := s.users.Find(ctx, email)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, NotFound{Email: email}
	}
	u := found[0]
	ok, err := s.hasher.Verify(password, u.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("unable to verify password of user %v, cause %w", u.ID, err)
	}
	if !ok {
		return nil, InvalidCredentials{}
	}
	return &u, nil
}

// CurrentUser resolves the user behind a session. A zero id, or an id that
// no longer exists, yields a nil user and no error.
func (s *Service) CurrentUser(ctx context.Context, userID int64) (*User, error) {
	if userID == 0 {
		return nil, nil
	}
	u, err := s.users.FindOne(ctx, userID)
	var notFound userstore.UserNotFound
	if errors.As(err, &notFound) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) User(ctx context.Context, id int64) (*User, error) {
	u, err := s.users.FindOne(ctx, id)
	return u, translate(err)
}

// Users returns the users registered with email, or every user when email
// is empty.
func (s *Service) Users(ctx context.Context, email string) ([]User, error) {
	if email == "" {
		return s.users.List(ctx)
	}
	return s.users.Find(ctx, email)
}

func (s *Service) Update(ctx context.Context, id int64, req UpdateRequest) (*User, error) {
	changes := userstore.Changes{Email: req.Email}
	if req.Password != nil {
		stored, err := s.hasher.Hash(*req.Password)
		if err != nil {
			return nil, fmt.Errorf("unable to hash password, cause %w", err)
		}
		changes.PasswordHash = &stored
	}
	u, err := s.users.Update(ctx, id, changes)
	return u, translate(err)
}

func (s *Service) Remove(ctx context.Context, id int64) (*User, error) {
	u, err := s.users.Remove(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	log := logutil.GetOrDefault(ctx)
	log.Info().Int64("user.id", u.ID).Msg("User removed")
	return u, nil
}

func translate(err error) error {
	var notFound userstore.UserNotFound
	if errors.As(err, &notFound) {
		return NotFound{ID: notFound.ID}
	}
	return err
}
