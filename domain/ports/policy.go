package ports

import "github.com/reglet-dev/sourcehost/domain/entities"

// Policy enforces grants against runtime requests.
type Policy interface {
	CheckNetwork(req entities.NetworkRequest, grants *entities.GrantSet) bool
	CheckSettings(req entities.SettingsRequest, grants *entities.GrantSet) bool
}
