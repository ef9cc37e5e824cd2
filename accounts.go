package litestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MinPasswordLength is the shortest accepted account password.
const MinPasswordLength = 8

var accountValidator = newAccountValidator()

func newAccountValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Letters, digits, '.', '_' and '-'
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return strings.IndexFunc(fl.Field().String(), func(r rune) bool {
			return !('a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || '0' <= r && r <= '9' || r == '.' || r == '_' || r == '-')
		}) < 0
	})
	return v
}

type signUpInput struct {
	Username string `validate:"required,min=3,max=32,username"`
	Email    string `validate:"required,email"`
	Password string `validate:"min=8"`
}

func (in signUpInput) validate() error {
	err := accountValidator.Struct(in)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	switch fieldErrs[0].Field() {
	case "Username":
		return fmt.Errorf("%w: username must be 3-32 letters, digits, '.', '_' or '-'", ErrInvalidInput)
	case "Email":
		return fmt.Errorf("%w: invalid email", ErrInvalidInput)
	default:
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, MinPasswordLength)
	}
}

// AccountService signs users up and verifies their credentials.
type AccountService struct {
	users  UserRepo
	files  *FileService
	hasher PasswordHasher
}

// NewAccountService creates an AccountService. New accounts get their root
// folder from files.
func NewAccountService(users UserRepo, files *FileService, hasher PasswordHasher) (*AccountService, error) {
	if users == nil || files == nil || hasher == nil {
		return nil, errors.New("new account service: users, files and hasher are required")
	}
	return &AccountService{users: users, files: files, hasher: hasher}, nil
}

// SignUp creates an account and its root folder. If the root folder cannot
// be created the account is removed again, so the signup can be retried.
func (s *AccountService) SignUp(ctx context.Context, username, email, password string) (User, error) {
	if err := (signUpInput{Username: username, Email: email, Password: password}).validate(); err != nil {
		return User{}, fmt.Errorf("sign up: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return User{}, fmt.Errorf("sign up: hash password: %w", err)
	}

	user, err := s.users.CreateUser(ctx, NewUser{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	})
	if err != nil {
		return User{}, fmt.Errorf("sign up %s: %w", username, err)
	}

	if _, err := s.files.CreateRoot(ctx, user.ID); err != nil {
		if delErr := s.users.DeleteUser(context.WithoutCancel(ctx), user.ID); delErr != nil {
			slog.Error("remove user without root", "user", user.ID, "err", delErr)
			return User{}, fmt.Errorf("sign up %s: %w", username, errors.Join(err, delErr))
		}
		return User{}, fmt.Errorf("sign up %s: %w", username, err)
	}

	slog.Info("user signed up", "user", user.ID, "username", username)
	return user, nil
}

// Login returns the account matching the credentials, or ErrUnauthorized.
// Accounts left without a root folder get one.
func (s *AccountService) Login(ctx context.Context, username, password string) (User, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, fmt.Errorf("login %s: %w", username, ErrUnauthorized)
		}
		return User{}, fmt.Errorf("login %s: %w", username, err)
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return User{}, fmt.Errorf("login %s: %w", username, ErrUnauthorized)
	}

	if _, err := s.files.tree.FindByPath(ctx, user.ID, "/"); err != nil {
		if !errors.Is(err, ErrNotFound) {
			return User{}, fmt.Errorf("login %s: %w", username, err)
		}
		if _, err := s.files.CreateRoot(ctx, user.ID); err != nil {
			return User{}, fmt.Errorf("login %s: %w", username, err)
		}
		slog.Warn("recreated missing root folder", "user", user.ID)
	}

	if err := s.users.TouchLogin(ctx, user.ID); err != nil {
		slog.Warn("record login", "user", user.ID, "err", err)
	}

	return user, nil
}
