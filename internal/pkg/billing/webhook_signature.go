package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// MaxTimestampSkew is how far a webhook timestamp may drift from our clock.
const MaxTimestampSkew = 5 * time.Minute

// VerifySignature checks an HMAC-SHA256 over "{timestamp}.{body}". Providers
// differ in how they encode the digest, so hex and the base64 variants are all
// accepted.
func VerifySignature(body []byte, signatureHeader, timestamp, secret string) bool {
	sig := strings.TrimSpace(signatureHeader)
	key := strings.TrimSpace(secret)
	if sig == "" || key == "" {
		return false
	}
	if i := strings.Index(sig, "="); i > 0 && strings.EqualFold(sig[:i], "sha256") {
		sig = sig[i+1:]
	}

	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(strings.TrimSpace(timestamp)))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := mac.Sum(nil)

	for _, decoded := range decodeSignature(sig) {
		if hmac.Equal(decoded, expected) {
			return true
		}
	}
	return false
}

func decodeSignature(sig string) [][]byte {
	var out [][]byte
	if b, err := hex.DecodeString(strings.ToLower(sig)); err == nil {
		out = append(out, b)
	}
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		if b, err := enc.DecodeString(sig); err == nil {
			out = append(out, b)
		}
	}
	return out
}

// ParseTimestamp reads a unix timestamp in seconds or milliseconds.
func ParseTimestamp(raw string) (time.Time, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return time.Time{}, ErrMissingTimestamp
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return time.Time{}, ErrStaleTimestamp
	}
	// 1e12 ms is 2001-09-09; no seconds value we accept gets that large
	if n >= 1_000_000_000_000 {
		return time.UnixMilli(n).UTC(), nil
	}
	return time.Unix(n, 0).UTC(), nil
}

// CheckTimestamp parses raw and rejects it when it is outside MaxTimestampSkew of now.
func CheckTimestamp(raw string, now time.Time) (time.Time, error) {
	ts, err := ParseTimestamp(raw)
	if err != nil {
		return time.Time{}, err
	}
	skew := now.Sub(ts)
	if skew < 0 {
		skew = -skew
	}
	if skew > MaxTimestampSkew {
		return ts, ErrStaleTimestamp
	}
	return ts, nil
}
