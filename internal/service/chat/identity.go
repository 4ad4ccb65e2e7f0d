package chat

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"

	"github.com/zhouzirui/chat-starter/internal/model/chat"
)

// IdentityFunc produces the client identity for a new session.
type IdentityFunc func() chat.ClientIdentity

// RandomIdentity draws "client-N" with N in [0, 10000). Collisions across sessions are
// possible and harmless.
func RandomIdentity() chat.ClientIdentity {
	return chat.ClientIdentity(fmt.Sprintf("client-%d", rand.Intn(10000)))
}

// UUIDIdentity returns a practically unique "client-<uuid>" identity.
func UUIDIdentity() chat.ClientIdentity {
	return chat.ClientIdentity("client-" + uuid.NewString())
}

// FixedIdentity always returns id.
func FixedIdentity(id string) IdentityFunc {
	return func() chat.ClientIdentity { return chat.ClientIdentity(id) }
}
