package zoom

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/angelajfisher/call-logger/internal/types"
)

// ChallengeResponse is the body Zoom expects back from an endpoint.url_validation request
type ChallengeResponse struct {
	PlainToken     string `json:"plainToken"`
	EncryptedToken string `json:"encryptedToken"`
}

// RespondToChallenge signs plainToken with the webhook secret token (HMAC-SHA256, hex)
func RespondToChallenge(plainToken string, secret string) (ChallengeResponse, error) {
	if secret == "" {
		return ChallengeResponse{}, types.ConfigurationError("ZOOM_WEBHOOK_SECRET")
	}

	hasher := hmac.New(sha256.New, []byte(secret))
	hasher.Write([]byte(plainToken))

	return ChallengeResponse{
		PlainToken:     plainToken,
		EncryptedToken: hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}
