package bracket

import (
	"time"

	"github.com/google/uuid"
)

// EntityMeta is embedded in every persisted record.
type EntityMeta struct {
	ID         uuid.UUID `db:"id" json:"id"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	CreatedBy  string    `db:"created_by" json:"createdBy"`
	ModifiedAt time.Time `db:"modified_at" json:"modifiedAt"`
	ModifiedBy string    `db:"modified_by" json:"modifiedBy"`
}

func NewMeta(actor string, now time.Time) EntityMeta {
	now = now.UTC()
	return EntityMeta{
		ID:         uuid.New(),
		CreatedAt:  now,
		CreatedBy:  actor,
		ModifiedAt: now,
		ModifiedBy: actor,
	}
}

func (m *EntityMeta) Touch(actor string, now time.Time) {
	m.ModifiedAt = now.UTC()
	m.ModifiedBy = actor
}
