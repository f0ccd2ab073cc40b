package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
)

// Signer produces HMAC-SHA256 signatures for outbound webhook payloads so
// subscribers can authenticate deliveries.
type Signer struct {
	secretKey []byte
	logger    *slog.Logger
}

func NewSigner(secretKey string, logger *slog.Logger) *Signer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Signer{
		secretKey: []byte(secretKey),
		logger:    logger,
	}
}

func (s *Signer) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, s.secretKey)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *Signer) Verify(payload []byte, signature string) (bool, error) {
	expected := s.Sign(payload)

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		s.logger.Warn("Signature verification failed",
			slog.String("received", signature))
		return false, fmt.Errorf("invalid signature")
	}
	return true, nil
}
