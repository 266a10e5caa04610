package store

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ValidID reports whether id can name a row. Primary keys are uuid columns, and
// postgres rejects any other literal with an error instead of matching nothing.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func checkID(id string) error {
	if !ValidID(id) {
		return gorm.ErrRecordNotFound
	}
	return nil
}
