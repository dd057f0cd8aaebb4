package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"paylink/internal/apperr"
)

// SignatureHeader is the header carrying the webhook signature.
const SignatureHeader = "Stripe-Signature"

// VerifySignature checks a "t=<unix>,v1=<hex>" header against
// HMAC-SHA256(secret, "<t>.<payload>"). A zero tolerance skips the timestamp
// age check.
func VerifySignature(payload []byte, header, secret string, tolerance time.Duration, now time.Time) error {
	header = strings.TrimSpace(header)
	if header == "" || secret == "" {
		return apperr.ErrSignatureInvalid
	}

	timestamp, signatures, ok := parseSignatureHeader(header)
	if !ok {
		return apperr.ErrSignatureInvalid
	}

	if tolerance > 0 {
		unix, err := strconv.ParseInt(timestamp, 10, 64)
		if err != nil {
			return apperr.ErrSignatureInvalid
		}
		age := now.Sub(time.Unix(unix, 0))
		if age > tolerance || age < -tolerance {
			return apperr.ErrSignatureInvalid
		}
	}

	expected := ComputeSignature(timestamp, payload, secret)
	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return nil
		}
	}
	return apperr.ErrSignatureInvalid
}

// ComputeSignature returns the hex v1 signature for a timestamp and payload.
func ComputeSignature(timestamp string, payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(timestamp))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignHeader builds a signature header value for payload at t.
func SignHeader(payload []byte, secret string, t time.Time) string {
	ts := strconv.FormatInt(t.Unix(), 10)
	return "t=" + ts + ",v1=" + ComputeSignature(ts, payload, secret)
}

func parseSignatureHeader(header string) (string, []string, bool) {
	var timestamp string
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.TrimSpace(kv[0]) {
		case "t":
			timestamp = strings.TrimSpace(kv[1])
		case "v1":
			signatures = append(signatures, strings.TrimSpace(kv[1]))
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, false
	}
	return timestamp, signatures, true
}
