package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const tokenMaxAge = 5 * time.Minute

// Sign produces the feed token for a given unix timestamp:
// hex(HMAC-SHA256(secret, ts)). The game-server plugin sends
// "ts.signature" when opening the event feed.
func Sign(secret string, ts int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d", ts)
	return hex.EncodeToString(mac.Sum(nil))
}

// ValidateToken checks a "ts.signature" feed token: the signature must
// match and the timestamp must be recent. Comparison is constant time.
func ValidateToken(token, secret string) error {
	tsStr, sig, ok := strings.Cut(token, ".")
	if !ok {
		return fmt.Errorf("malformed token")
	}

	ts, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid timestamp: %w", err)
	}

	age := time.Since(time.Unix(ts, 0))
	if age > tokenMaxAge || age < -tokenMaxAge {
		return fmt.Errorf("token expired")
	}

	expected := Sign(secret, ts)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}
