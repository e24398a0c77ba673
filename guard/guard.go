// Package guard holds the authorization predicates consulted by the bid and
// hire operations. Identifiers reach it as transport strings (JWT claims, URL
// params) or as store-native ObjectIDs, so every comparison goes through ID.
package guard

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"gigmarket/models"
)

// ID converts an identifier in any of its representations to the canonical
// lowercase hex string. Unknown or zero values map to "".
func ID(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case primitive.ObjectID:
		if id.IsZero() {
			return ""
		}
		return id.Hex()
	case *primitive.ObjectID:
		if id == nil {
			return ""
		}
		return ID(*id)
	case string:
		return strings.ToLower(strings.TrimSpace(id))
	case fmt.Stringer:
		return ID(id.String())
	default:
		return ""
	}
}

// ObjectID parses a transport identifier into the store representation.
func ObjectID(v any) (primitive.ObjectID, bool) {
	s := ID(v)
	if s == "" {
		return primitive.NilObjectID, false
	}
	oid, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return primitive.NilObjectID, false
	}
	return oid, true
}

// Same reports whether a and b name the same identity. Empty ids never match.
func Same(a, b any) bool {
	x, y := ID(a), ID(b)
	return x != "" && x == y
}

func IsOwner(actor any, gig *models.Gig) bool {
	return gig != nil && Same(actor, gig.OwnerID)
}

func IsSelf(actor any, freelancerID any) bool {
	return Same(actor, freelancerID)
}
