package mongodb

import (
	"go.mongodb.org/mongo-driver/mongo"
)

// IsDuplicateKeyError reports whether err is a unique-index violation
func IsDuplicateKeyError(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}
