// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Services take interfaces (repository.UserRepository, auth.TokenIssuer) and
// return domain errors from package apperror. They never see an
// *http.Request and never choose a status code.
//
// ERROR BOUNDARY:
// Validation, conflict and auth errors pass through with caller-actionable
// messages. Anything unexpected is logged here with its cause and replaced
// by apperror.Internal(), so SQL text or file paths never reach a client.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/chat-directory/internal/apperror"
	"github.com/sakif/chat-directory/internal/auth"
	"github.com/sakif/chat-directory/internal/avatar"
	"github.com/sakif/chat-directory/internal/model"
	"github.com/sakif/chat-directory/internal/repository"
)

const (
	// MsgFieldsRequired is returned when any registration field is blank.
	MsgFieldsRequired = "all fields are required"
	// MsgInvalidCredentials is the single login failure message. It must not
	// reveal whether the name or the password was wrong.
	MsgInvalidCredentials = "invalid username or password"
)

// PasswordHasher is satisfied by *auth.PasswordService.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Matches(hash, plaintext string) bool
}

// AccountService registers users and authenticates logins.
type AccountService struct {
	users     repository.UserRepository
	passwords PasswordHasher
	tokens    auth.TokenIssuer
	logger    *slog.Logger

	// dummyHash is compared against when a login names an unknown user, so
	// both failure paths pay for one bcrypt comparison.
	dummyHash string
}

func NewAccountService(
	users repository.UserRepository,
	passwords PasswordHasher,
	tokens auth.TokenIssuer,
	logger *slog.Logger,
) (*AccountService, error) {
	dummy, err := passwords.Hash("directory-timing-equaliser")
	if err != nil {
		return nil, fmt.Errorf("service/account: preparing dummy hash: %w", err)
	}
	return &AccountService{
		users:     users,
		passwords: passwords,
		tokens:    tokens,
		logger:    logger,
		dummyHash: dummy,
	}, nil
}

// RegisterInput carries a registration request. Avatar is optional.
type RegisterInput struct {
	Name       string
	Email      string
	Password   string
	Avatar     []byte
	AvatarType string
}

// RegisterResult is the public projection returned after registration.
type RegisterResult struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Token string `json:"token"`
}

// LoginResult is returned by Login. It never carries password material.
type LoginResult struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Email   string          `json:"email"`
	IsAdmin bool            `json:"isAdmin"`
	Avatar  *avatar.Payload `json:"avatar,omitempty"`
	Token   string          `json:"token"`
}

// Register creates an account and returns it with a fresh token.
//
// CHECK ORDER IS PART OF THE CONTRACT:
//  1. any blank field        → ValidationError (no store call is made)
//  2. email already taken    → ConflictError citing email
//  3. name already taken     → ConflictError citing name
//
// Steps 2 and 3 are a fast path only. The unique indexes decide the race
// between two concurrent registrations, and the store reports the loser with
// the same Conflict the pre-check would have produced.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.TrimSpace(in.Email)

	switch {
	case name == "":
		return nil, apperror.ValidationFailed("name", MsgFieldsRequired)
	case email == "":
		return nil, apperror.ValidationFailed("email", MsgFieldsRequired)
	case in.Password == "":
		return nil, apperror.ValidationFailed("password", MsgFieldsRequired)
	}
	if err := checkPasswordLength(in.Password); err != nil {
		return nil, err
	}

	var avatarType string
	if len(in.Avatar) > 0 {
		t, err := avatar.Validate(in.Avatar, in.AvatarType)
		if err != nil {
			return nil, apperror.ValidationFailed("image", err.Error())
		}
		avatarType = t
	}

	taken, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, s.internal(ctx, "checking email", err)
	}
	if taken {
		return nil, repository.EmailTaken()
	}

	taken, err = s.users.ExistsByName(ctx, name)
	if err != nil {
		return nil, s.internal(ctx, "checking name", err)
	}
	if taken {
		return nil, repository.NameTaken()
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, s.internal(ctx, "hashing password", err)
	}

	user := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Avatar:       in.Avatar,
		AvatarType:   avatarType,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, conflictFor(err)
		}
		return nil, s.internal(ctx, "creating user", err)
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, s.internal(ctx, "issuing token", err)
	}

	s.logger.InfoContext(ctx, "user registered",
		slog.String("userID", user.ID),
		slog.String("name", user.Name),
	)

	return &RegisterResult{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
		Token: token,
	}, nil
}

// Login authenticates by exact name and password.
//
// An unknown name and a wrong password produce the identical AuthError, and
// both run one bcrypt comparison, so neither the message nor the latency
// tells a caller which names exist.
func (s *AccountService) Login(ctx context.Context, name, password string) (*LoginResult, error) {
	user, err := s.users.GetByName(ctx, name)
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		s.passwords.Matches(s.dummyHash, password)
		return nil, apperror.Unauthorized(MsgInvalidCredentials)
	case err != nil:
		return nil, s.internal(ctx, "looking up user", err)
	}

	if !s.passwords.Matches(user.PasswordHash, password) {
		s.logger.InfoContext(ctx, "login rejected", slog.String("userID", user.ID))
		return nil, apperror.Unauthorized(MsgInvalidCredentials)
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, s.internal(ctx, "issuing token", err)
	}

	return &LoginResult{
		ID:      user.ID,
		Name:    user.Name,
		Email:   user.Email,
		IsAdmin: user.IsAdmin,
		Avatar:  avatar.Encode(user.Avatar, user.AvatarType),
		Token:   token,
	}, nil
}

// Profile returns the public projection of userID.
func (s *AccountService) Profile(ctx context.Context, userID string) (*model.PublicUser, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, s.internal(ctx, "loading profile", err)
	}
	pub := user.Public()
	return &pub, nil
}

// UpdateInput lists the fields an account update may change. Nil means
// "leave as is".
type UpdateInput struct {
	Name       *string
	Email      *string
	Password   *string
	Avatar     []byte
	AvatarType string
}

// UpdateAccount applies in to the caller's record.
//
// The stored hash changes only when a new password is supplied; in every
// other case the existing hash is written back as it was read.
func (s *AccountService) UpdateAccount(ctx context.Context, userID string, in UpdateInput) (*model.PublicUser, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, s.internal(ctx, "loading user for update", err)
	}

	if in.Name != nil {
		user.Name = strings.TrimSpace(*in.Name)
	}
	if in.Email != nil {
		user.Email = strings.TrimSpace(*in.Email)
	}
	switch {
	case user.Name == "":
		return nil, apperror.ValidationFailed("name", "name cannot be blank")
	case user.Email == "":
		return nil, apperror.ValidationFailed("email", "email cannot be blank")
	}

	if len(in.Avatar) > 0 {
		t, err := avatar.Validate(in.Avatar, in.AvatarType)
		if err != nil {
			return nil, apperror.ValidationFailed("image", err.Error())
		}
		user.Avatar, user.AvatarType = in.Avatar, t
	}

	if in.Password != nil {
		err = s.updateWithPassword(ctx, user, *in.Password)
	} else {
		err = s.persist(ctx, user)
	}
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "account updated",
		slog.String("userID", user.ID),
		slog.Bool("passwordChanged", in.Password != nil),
	)

	pub := user.Public()
	return &pub, nil
}

// updateWithPassword is the "password changed" branch: hash, then persist.
func (s *AccountService) updateWithPassword(ctx context.Context, user *model.User, password string) error {
	if password == "" {
		return apperror.ValidationFailed("password", "password cannot be blank")
	}
	if err := checkPasswordLength(password); err != nil {
		return err
	}
	hash, err := s.passwords.Hash(password)
	if err != nil {
		return s.internal(ctx, "hashing password", err)
	}
	user.PasswordHash = hash
	return s.persist(ctx, user)
}

// persist writes user as-is; it never touches PasswordHash.
func (s *AccountService) persist(ctx context.Context, user *model.User) error {
	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return conflictFor(err)
		}
		if errors.Is(err, apperror.ErrNotFound) {
			return err
		}
		return s.internal(ctx, "updating user", err)
	}
	return nil
}

// internal logs the real cause and hands the caller a generic error.
func (s *AccountService) internal(ctx context.Context, op string, err error) error {
	s.logger.ErrorContext(ctx, "account operation failed",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
	return apperror.Internal()
}

// conflictFor normalises a store-level uniqueness violation to the error the
// service's own pre-checks raise.
func conflictFor(err error) error {
	switch apperror.FieldOf(err) {
	case "email":
		return repository.EmailTaken()
	case "name":
		return repository.NameTaken()
	default:
		return err
	}
}

// checkPasswordLength rejects passwords bcrypt would silently truncate.
func checkPasswordLength(password string) error {
	if len(password) > auth.MaxPasswordBytes {
		return apperror.ValidationFailed("password", "password must be 72 bytes or fewer")
	}
	return nil
}
