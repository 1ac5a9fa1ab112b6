package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strconv"
	"testing"
	"time"
)

func sign(secret, ts string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + "."))
	mac.Write(body)
	return mac.Sum(nil)
}

func TestVerifySignatureEncodings(t *testing.T) {
	body := []byte(`{"type":"order.completed"}`)
	secret := "whsec"
	ts := "1740830400"
	digest := sign(secret, ts, body)

	valid := []string{
		hex.EncodeToString(digest),
		"sha256=" + hex.EncodeToString(digest),
		base64.StdEncoding.EncodeToString(digest),
		base64.RawStdEncoding.EncodeToString(digest),
		base64.RawURLEncoding.EncodeToString(digest),
	}
	for _, sig := range valid {
		if !VerifySignature(body, sig, ts, secret) {
			t.Fatalf("expected signature %q to validate", sig)
		}
	}

	if VerifySignature(body, "", ts, secret) {
		t.Fatalf("expected empty signature to fail")
	}
	if VerifySignature(body, hex.EncodeToString(digest), ts, "") {
		t.Fatalf("expected empty secret to fail")
	}
	if VerifySignature(body, hex.EncodeToString(digest), "1740830401", secret) {
		t.Fatalf("expected signature over another timestamp to fail")
	}
}

func TestVerifySignatureRejectsFlippedByte(t *testing.T) {
	body := []byte(`{"type":"order.completed","data":{"id":"ord_1"}}`)
	ts := "1740830400"
	sig := hex.EncodeToString(sign("s", ts, body))

	for i := range body {
		tampered := append([]byte(nil), body...)
		tampered[i] ^= 0x01
		if VerifySignature(tampered, sig, ts, "s") {
			t.Fatalf("expected body with byte %d flipped to fail", i)
		}
	}
}

func TestCheckTimestamp(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	secs := strconv.FormatInt(now.Unix(), 10)
	millis := strconv.FormatInt(now.UnixMilli(), 10)

	if _, err := CheckTimestamp(secs, now); err != nil {
		t.Fatalf("seconds timestamp: %v", err)
	}
	got, err := CheckTimestamp(millis, now)
	if err != nil || !got.Equal(now) {
		t.Fatalf("millisecond timestamp: got %v, %v", got, err)
	}
	edge := strconv.FormatInt(now.Add(-MaxTimestampSkew).Unix(), 10)
	if _, err := CheckTimestamp(edge, now); err != nil {
		t.Fatalf("timestamp exactly at the edge should pass: %v", err)
	}

	stale := []string{
		strconv.FormatInt(now.Add(-MaxTimestampSkew-time.Second).Unix(), 10),
		strconv.FormatInt(now.Add(MaxTimestampSkew+time.Second).Unix(), 10),
		"yesterday",
		"-5",
	}
	for _, ts := range stale {
		if _, err := CheckTimestamp(ts, now); !errors.Is(err, ErrStaleTimestamp) {
			t.Fatalf("CheckTimestamp(%q) = %v, want ErrStaleTimestamp", ts, err)
		}
	}
	if _, err := CheckTimestamp("  ", now); !errors.Is(err, ErrMissingTimestamp) {
		t.Fatalf("expected ErrMissingTimestamp, got %v", err)
	}
}
