package ports

import "github.com/reglet-dev/sourcehost/domain/entities"

// GrantStore persists the grants an operator gave a guest.
type GrantStore interface {
	Load() (*entities.GrantSet, error)
	Save(grants *entities.GrantSet) error
}
