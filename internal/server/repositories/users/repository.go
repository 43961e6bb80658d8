// Package users declares the server-side repository contract for user
// records. This is the credential store of the authentication flow and the
// persistence layer of the user-management API.
package users

import (
	"context"

	"github.com/dmitrijs2005/simpleauth/internal/server/models"
)

// Repository defines CRUD operations over user records. Lookups are
// case-insensitive on username/email and exclude soft-deleted rows.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUserName(ctx context.Context, userName string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetAll(ctx context.Context) ([]*models.User, error)
	Search(ctx context.Context, term string) ([]*models.User, error)
	Update(ctx context.Context, user *models.User) (*models.User, error)
	SoftDelete(ctx context.Context, id string) error
}
