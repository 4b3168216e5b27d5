package feed

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// HTTPPrefix marks partition tokens for feeds served over plain HTTP.
// The encoded portion still contains the full URL including scheme; the
// prefix only exists so HTTP feeds can be filtered without decoding.
const HTTPPrefix = "~"

// DecodeError reports a malformed partition token.
type DecodeError struct {
	Token  string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode token %q: %s", e.Token, e.Reason)
}

// EncodeURL converts a feed source URL to its partition token:
// unpadded base64url of the full URL, with the "~" prefix for plain
// HTTP feeds. Deterministic and free of I/O.
func EncodeURL(rawURL string) string {
	token := base64.RawURLEncoding.EncodeToString([]byte(rawURL))
	if strings.HasPrefix(rawURL, "http://") {
		return HTTPPrefix + token
	}
	return token
}

// DecodeToken is the inverse of EncodeURL. It tolerates tokens that
// carry explicit trailing "=" padding (some tools re-pad before
// storing), but rejects inconsistent padding and any byte outside the
// base64url alphabet.
func DecodeToken(token string) (string, error) {
	encoded := strings.TrimPrefix(token, HTTPPrefix)
	if encoded == "" {
		return "", &DecodeError{Token: token, Reason: "empty token"}
	}

	trimmed := strings.TrimRight(encoded, "=")
	if pad := len(encoded) - len(trimmed); pad > 0 {
		if pad > 2 || len(encoded)%4 != 0 {
			return "", &DecodeError{Token: token, Reason: "inconsistent padding"}
		}
	}
	if strings.Contains(trimmed, "=") {
		return "", &DecodeError{Token: token, Reason: "padding inside token"}
	}

	raw, err := base64.RawURLEncoding.DecodeString(trimmed)
	if err != nil {
		return "", &DecodeError{Token: token, Reason: err.Error()}
	}
	return string(raw), nil
}
