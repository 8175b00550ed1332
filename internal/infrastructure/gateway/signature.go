package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader carries "t=<unix seconds>,v1=<hex hmac>" on callbacks.
const SignatureHeader = "X-Gateway-Signature"

var (
	ErrMissingSignature = errors.New("gateway: missing signature")
	ErrInvalidSignature = errors.New("gateway: invalid signature")
	ErrStaleSignature   = errors.New("gateway: signature timestamp outside tolerance")
)

// SignatureVerifier checks HMAC-SHA256 signatures over "<timestamp>.<body>".
type SignatureVerifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

func NewSignatureVerifier(secret string, tolerance time.Duration) *SignatureVerifier {
	if tolerance <= 0 {
		tolerance = 5 * time.Minute
	}
	return &SignatureVerifier{secret: []byte(secret), tolerance: tolerance, now: time.Now}
}

// Sign produces a header value for payload at ts. Used by tests and by
// ledgerctl to replay callbacks.
func (v *SignatureVerifier) Sign(payload []byte, ts time.Time) string {
	unix := strconv.FormatInt(ts.Unix(), 10)
	return fmt.Sprintf("t=%s,v1=%s", unix, v.mac(unix, payload))
}

// Verify validates header against payload.
func (v *SignatureVerifier) Verify(payload []byte, header string) error {
	if strings.TrimSpace(header) == "" {
		return ErrMissingSignature
	}

	var ts, sig string
	for _, part := range strings.Split(header, ",") {
		k, val, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts = val
		case "v1":
			sig = val
		}
	}
	if ts == "" || sig == "" {
		return ErrInvalidSignature
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	age := v.now().Sub(time.Unix(unix, 0))
	if age < -v.tolerance || age > v.tolerance {
		return ErrStaleSignature
	}

	want, err := hex.DecodeString(sig)
	if err != nil {
		return ErrInvalidSignature
	}
	got, _ := hex.DecodeString(v.mac(ts, payload))
	if !hmac.Equal(want, got) {
		return ErrInvalidSignature
	}
	return nil
}

func (v *SignatureVerifier) mac(ts string, payload []byte) string {
	h := hmac.New(sha256.New, v.secret)
	h.Write([]byte(ts))
	h.Write([]byte("."))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
