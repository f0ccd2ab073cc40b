package domain

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// NewID returns a prefixed object identifier, e.g. "clct_9f2b41c07ad3".
func NewID(prefix string) string {
	u := uuid.New()
	return prefix + "_" + hex.EncodeToString(u[:])[:12]
}
