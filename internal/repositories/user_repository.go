package repositories

import "storefront/internal/models"

// UserRepository defines the interface for user data access.
type UserRepository interface {
	Create(user *models.User) error
	GetByUsername(username string) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByID(id string) (*models.User, error)
}

// AddressRepository defines the interface for shipping address data access.
// Every method scopes by owner so handlers cannot leak other users' addresses.
type AddressRepository interface {
	ListByUser(userID string) ([]models.Address, error)
	GetOwned(id, userID string) (*models.Address, error)
	Create(address *models.Address) error
	Update(address *models.Address) error
	DeleteOwned(id, userID string) error
}
