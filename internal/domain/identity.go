package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Identity maps an identity provider subject to the local username.
type Identity struct {
	ID        string            `json:"id" gorm:"primaryKey"`
	Username  string            `json:"username" gorm:"uniqueIndex;not null"`
	Claims    datatypes.JSONMap `json:"claims,omitempty" gorm:"type:jsonb"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}
