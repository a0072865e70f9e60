package developer

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Developer owns form schemas and holds the public key submissions are
// sealed to.
type Developer struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey"`
	Name      string    `json:"name" gorm:"not null"`
	Email     string    `json:"email" gorm:"uniqueIndex;not null"`
	PublicKey string    `json:"publicKey" gorm:"not null"`
	Active    bool      `json:"active" gorm:"not null"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BeforeCreate ensures a UUID exists.
func (d *Developer) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}

// ToDTO renders the response payload.
func (d Developer) ToDTO() map[string]any {
	return map[string]any{
		"id":        d.ID,
		"name":      d.Name,
		"email":     d.Email,
		"publicKey": d.PublicKey,
		"active":    d.Active,
		"createdAt": d.CreatedAt,
		"updatedAt": d.UpdatedAt,
	}
}
