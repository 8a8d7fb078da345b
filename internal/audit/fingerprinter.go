package audit

import (
	"crypto/sha256"
	"encoding/base64"
)

// Fingerprint identifies an access token in audit entries without revealing it.
func Fingerprint(token string) string {
	if token == "" {
		return "(n/a)"
	}
	hash := sha256.Sum256([]byte(token))
	return base64.RawStdEncoding.EncodeToString(hash[:12])
}
