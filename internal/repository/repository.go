// Package repository declares the storage contracts the service layer
// depends on. Implementations live in the sqlite and postgres subpackages.
package repository

import (
	"context"

	"github.com/sakif/chat-directory/internal/apperror"
	"github.com/sakif/chat-directory/internal/model"
)

// EmailTaken and NameTaken are the conflicts every implementation reports,
// and the ones the service layer raises from its own pre-checks.
func EmailTaken() *apperror.AppError {
	return apperror.Conflict("email", "email already exists")
}

func NameTaken() *apperror.AppError {
	return apperror.Conflict("name", "username already exists")
}

// UserRepository is the user directory store.
//
// Implementations must back name and email uniqueness with a store-level
// constraint and report a violation as apperror.Conflict with Field set to
// "name" or "email". Lookups of missing users return apperror.ErrNotFound.
type UserRepository interface {
	// Create assigns ID, CreatedAt and UpdatedAt.
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByName(ctx context.Context, name string) (*model.User, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	// Search returns every user except excludeID whose name or email
	// contains keyword, ignoring case. An empty keyword matches everyone.
	Search(ctx context.Context, excludeID, keyword string) ([]model.User, error)
	// Update writes every mutable column as given and bumps UpdatedAt.
	Update(ctx context.Context, user *model.User) error
}
