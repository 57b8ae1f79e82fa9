package account

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"unicode"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"
	"golang.org/x/crypto/bcrypt"

	"github.com/agrosight/ndvi-vault/internal/apperr"
	"github.com/agrosight/ndvi-vault/internal/model"
	accountrepo "github.com/agrosight/ndvi-vault/internal/repository/account"
)

const minPasswordLength = 8

// accountRepo persists account rows.
type accountRepo interface {
	CreateAccount(ctx context.Context, acc model.Account) (uuid.UUID, error)
	GetAccountByID(ctx context.Context, id uuid.UUID) (model.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (model.Account, error)
	ListAccounts(ctx context.Context) ([]model.Account, error)
	DeleteAccount(ctx context.Context, id uuid.UUID) error
}

// imageRepo lists a tenant's images for the delete cascade.
type imageRepo interface {
	ListImagesByAccount(ctx context.Context, accountID uuid.UUID) ([]model.Image, error)
}

// objectCleaner removes every stored variant of an image.
type objectCleaner interface {
	DeleteObjects(ctx context.Context, img model.Image)
}

// Service provides account management: creation with credential hashing,
// authentication, and cascading deletion.
type Service struct {
	accounts accountRepo
	images   imageRepo
	cleaner  objectCleaner
}

// NewService creates a Service with the given repositories and object cleaner.
func NewService(accounts accountRepo, images imageRepo, cleaner objectCleaner) *Service {
	return &Service{accounts: accounts, images: images, cleaner: cleaner}
}

// Create validates the email and password, hashes the credential and inserts
// the account. Duplicate emails surface as validation errors.
func (s *Service) Create(ctx context.Context, email, password string, role model.Role) (model.Account, error) {
	if _, err := mail.ParseAddress(email); err != nil {
		return model.Account{}, apperr.Validation("invalid email address")
	}

	if err := validatePassword(password); err != nil {
		return model.Account{}, err
	}

	if role != model.RoleAdmin && role != model.RoleClient {
		return model.Account{}, apperr.Validation("role must be ADMIN or CLIENT")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return model.Account{}, fmt.Errorf("create account: failed to hash password: %w", err)
	}

	acc := model.Account{
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	}

	id, err := s.accounts.CreateAccount(ctx, acc)
	if err != nil {
		if errors.Is(err, accountrepo.ErrEmailTaken) {
			return model.Account{}, apperr.Validation("an account with this email already exists")
		}
		return model.Account{}, fmt.Errorf("create account: %w", err)
	}

	acc.ID = id
	acc.PasswordHash = ""

	return acc, nil
}

// Authenticate checks the credentials and returns the matching account.
// Unknown emails and wrong passwords are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, email, password string) (model.Account, error) {
	acc, err := s.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, accountrepo.ErrAccountNotFound) {
			return model.Account{}, apperr.Auth("invalid email or password")
		}
		return model.Account{}, fmt.Errorf("authenticate: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return model.Account{}, apperr.Auth("invalid email or password")
	}

	return acc, nil
}

// Get returns one account by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (model.Account, error) {
	acc, err := s.accounts.GetAccountByID(ctx, id)
	if err != nil {
		if errors.Is(err, accountrepo.ErrAccountNotFound) {
			return model.Account{}, apperr.NotFound("account not found")
		}
		return model.Account{}, fmt.Errorf("get account: %w", err)
	}

	return acc, nil
}

// List returns all accounts.
func (s *Service) List(ctx context.Context) ([]model.Account, error) {
	return s.accounts.ListAccounts(ctx)
}

// Delete removes the account and everything it owns. Image rows go via the
// foreign key cascade; stored objects are removed best-effort afterwards, so
// a store outage cannot block the deletion. Accounts with zero images delete
// cleanly.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	images, err := s.images.ListImagesByAccount(ctx, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}

	if err := s.accounts.DeleteAccount(ctx, id); err != nil {
		if errors.Is(err, accountrepo.ErrAccountNotFound) {
			return apperr.NotFound("account not found")
		}
		return fmt.Errorf("delete account: %w", err)
	}

	for _, img := range images {
		s.cleaner.DeleteObjects(ctx, img)
	}

	if len(images) > 0 {
		zlog.Logger.Info().
			Str("account_id", id.String()).
			Int("images", len(images)).
			Msg("cascaded account deletion")
	}

	return nil
}

// validatePassword enforces the portal's complexity rules: minimum length
// plus at least one upper-case letter, one lower-case letter and one digit.
func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return apperr.Newf(apperr.KindValidation, "password must be at least %d characters long", minPasswordLength)
	}

	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	if !hasUpper || !hasLower || !hasDigit {
		return apperr.Validation("password must contain upper-case, lower-case and numeric characters")
	}

	return nil
}
