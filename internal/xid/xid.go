package xid

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// New returns a fresh 24-hex document id. Every store uses the same id shape
// so documents can move between backends.
func New() string {
	return primitive.NewObjectID().Hex()
}

func Valid(id string) bool {
	_, err := primitive.ObjectIDFromHex(id)
	return err == nil
}

func AllValid(ids []string) bool {
	for _, id := range ids {
		if !Valid(id) {
			return false
		}
	}
	return true
}
