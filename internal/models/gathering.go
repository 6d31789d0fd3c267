package models

import "time"

// GatheringType describes what kind of gathering (sabha) this is
type GatheringType string

const (
	// GatheringYouth is a recurring youth gathering
	GatheringYouth GatheringType = "YOUTH"
	// GatheringParivaar is a recurring family gathering
	GatheringParivaar GatheringType = "PARIVAAR"
	// GatheringUserEvent is a one-off gathering created by a user
	GatheringUserEvent GatheringType = "USER_EVENT"
	// DefaultUserLocation is the location given to user-created gatherings that do not name one
	DefaultUserLocation = "User Event"
)

// A Gathering is a recurring or one-off community meeting hosting sessions of songs
type Gathering struct {
	// Internal ID
	ID string `db:"id" json:"id"`
	// Name of the gathering
	Name string `db:"name" json:"name" validate:"required"`
	// Where it takes place
	Location string `db:"location" json:"location"`
	// See the Gathering* constants
	Type GatheringType `db:"type" json:"type" validate:"required,oneof=YOUTH PARIVAAR USER_EVENT"`
	// A little description of the gathering
	Description string `db:"description" json:"description,omitempty"`
	// Creation date of this entry
	CreatedAt time.Time `db:"createdAt" json:"createdAt"`
	// Date of the last update of this entry
	UpdatedAt time.Time `db:"updatedAt" json:"updatedAt"`
}

// UserCreated checks if the gathering has been created by a user and may be renamed
func (g *Gathering) UserCreated() bool {
	return g.Type == GatheringUserEvent
}
