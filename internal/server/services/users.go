package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/dmitrijs2005/simpleauth/internal/common"
	"github.com/dmitrijs2005/simpleauth/internal/server/models"
	"github.com/dmitrijs2005/simpleauth/internal/server/repositories/repomanager"
	"golang.org/x/crypto/bcrypt"
)

// UserCreateModel carries the fields needed to register a new user.
type UserCreateModel struct {
	UserName  string
	Email     string
	FirstName string
	LastName  string
	Password  string
}

// UserUpdateModel carries the mutable profile fields.
type UserUpdateModel struct {
	ID        string
	FirstName string
	LastName  string
}

// UserService implements the user-management operations: list, get, search,
// create, update, and (soft) delete of profile records.
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

// NewUserService constructs a UserService over the given repositories.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager) *UserService {
	return &UserService{db: db, repomanager: m}
}

// GetAll returns every live user.
func (s *UserService) GetAll(ctx context.Context) ([]*models.User, error) {
	result, err := s.repomanager.Users(s.db).GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: listing users: %w", common.ErrorInternal, err)
	}
	return result, nil
}

// Get returns a single user by id, or common.ErrorNotFound.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("%w: getting user: %w", common.ErrorInternal, err)
	}
	return user, nil
}

// Search returns live users whose first or last name contains term.
func (s *UserService) Search(ctx context.Context, term string) ([]*models.User, error) {
	result, err := s.repomanager.Users(s.db).Search(ctx, term)
	if err != nil {
		return nil, fmt.Errorf("%w: searching users: %w", common.ErrorInternal, err)
	}
	return result, nil
}

// Create validates the model, hashes the password with bcrypt, and inserts
// the user. A taken username or email yields common.ErrorAlreadyExists.
func (s *UserService) Create(ctx context.Context, m *UserCreateModel) (*models.User, error) {
	userName := strings.TrimSpace(m.UserName)
	email := strings.TrimSpace(m.Email)

	if userName == "" {
		return nil, fmt.Errorf("%w: username is required", common.ErrorValidation)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: invalid email", common.ErrorValidation)
	}
	if len(m.Password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", common.ErrorValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(m.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("%w: hashing password: %w", common.ErrorInternal, err)
	}

	user := &models.User{
		UserName:     userName,
		Email:        strings.ToLower(email),
		FirstName:    m.FirstName,
		LastName:     m.LastName,
		PasswordHash: string(hash),
	}

	created, err := s.repomanager.Users(s.db).Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("%w: creating user: %w", common.ErrorInternal, err)
	}
	return created, nil
}

// Update changes the profile fields of an existing user.
func (s *UserService) Update(ctx context.Context, m *UserUpdateModel) (*models.User, error) {
	user := &models.User{ID: m.ID, FirstName: m.FirstName, LastName: m.LastName}

	updated, err := s.repomanager.Users(s.db).Update(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("%w: updating user: %w", common.ErrorInternal, err)
	}
	return updated, nil
}

// Delete soft-deletes a user. Deleting an absent user is not an error.
func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := s.repomanager.Users(s.db).SoftDelete(ctx, id); err != nil {
		return fmt.Errorf("%w: deleting user: %w", common.ErrorInternal, err)
	}
	return nil
}
