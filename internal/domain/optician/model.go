package optician

import (
	"time"

	"github.com/google/uuid"
)

// Optician maps to the opticians table. Each row is a referring practice.
type Optician struct {
	ID            uuid.UUID `db:"id" json:"id"`
	PracticeName  string    `db:"practice_name" json:"practice_name"`
	ContactPerson string    `db:"contact_person" json:"contact_person,omitempty"`
	Email         string    `db:"email" json:"email,omitempty"`
	Phone         string    `db:"phone" json:"phone,omitempty"`
	Address       string    `db:"address" json:"address,omitempty"`
	Postcode      string    `db:"postcode" json:"postcode,omitempty"`
	Active        *bool     `db:"active" json:"active,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

func (o *Optician) IsActive() bool {
	return o.Active == nil || *o.Active
}
