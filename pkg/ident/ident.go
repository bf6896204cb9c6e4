// Package ident produces collision-resistant, URL-safe, prefixed string
// identifiers for wallets and their history entries.
package ident

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Identifier prefixes. The prefix encodes the entity kind the way
// payment APIs do, so an id is self-describing in logs and references.
const (
	PrefixWallet      = "wa_"
	PrefixTransaction = "ch_"
	PrefixTransfer    = "tr_"
)

// Generator derives identifiers from the deployment secret, the current
// time and fresh randomness. Two deployments with different secrets can
// never mint colliding ids.
type Generator struct {
	secret string
}

// NewGenerator creates a Generator keyed with the deployment secret.
func NewGenerator(secret string) Generator {
	return Generator{secret: secret}
}

// WalletID returns a new wa_ identifier seeded with the owner id.
func (g Generator) WalletID(ownerID int64) string {
	return g.newID(PrefixWallet, fmt.Sprintf("%d", ownerID))
}

// TransactionID returns a new ch_ identifier.
func (g Generator) TransactionID() string {
	return g.newID(PrefixTransaction, "")
}

// TransferID returns a new tr_ identifier.
func (g Generator) TransferID() string {
	return g.newID(PrefixTransfer, "")
}

func (g Generator) newID(prefix, seed string) string {
	mac := hmac.New(sha256.New, []byte(g.secret))
	fmt.Fprintf(mac, "%d%s%s", time.Now().UnixNano(), seed, uuid.NewString())
	return prefix + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
