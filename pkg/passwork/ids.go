package passwork

import (
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// validateID checks that id is a Passwork object id (24 hex digits).
func validateID(kind, id string) error {
	if id == "" {
		return errors.Wrapf(ErrInvalidID, "%s id is empty", kind)
	}
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return errors.Wrapf(ErrInvalidID, "%s id %q", kind, id)
	}
	return nil
}
