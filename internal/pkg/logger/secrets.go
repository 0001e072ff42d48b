package logger

import "strings"

// secretFieldHints marks field keys whose values are credentials. Matching
// is by substring on the lowercased key, so "client_secret", "api_key" and
// "mongo_password" are all caught.
var secretFieldHints = []string{"secret", "token", "password", "api_key", "apikey"}

// MaskSecret masks a credential for safe logging, keeping a short prefix so
// operators can tell keys apart.
// "sk-proj-abc123def" → "sk-p***"
// Values of four characters or fewer are fully masked.
func MaskSecret(v string) string {
	if len(v) <= 4 {
		return "***"
	}
	return v[:4] + "***"
}

func maskSecretValue(key, val string) string {
	key = strings.ToLower(key)
	for _, hint := range secretFieldHints {
		if strings.Contains(key, hint) {
			return MaskSecret(val)
		}
	}
	return val
}
