package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

// SignatureHeader is the HTTP header carrying the webhook signature.
const SignatureHeader = "Store-Signature"

// DefaultTolerance bounds how old a signed timestamp may be. Replays beyond
// it are rejected permanently, like any other signature failure.
const DefaultTolerance = 5 * time.Minute

// ErrInvalidSignature covers every signature failure: missing header,
// malformed header, digest mismatch, or a timestamp outside tolerance.
// Signature failures are permanent rejections, never retried.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// Verifier checks provider signatures over raw webhook bodies. The scheme is
// HMAC-SHA256 over "<timestamp>.<body>" with a shared secret, delivered as
// "t=<unix>,v1=<hex>" in the signature header.
type Verifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

// NewVerifier creates a Verifier for the given shared secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{
		secret:    []byte(secret),
		tolerance: DefaultTolerance,
		now:       time.Now,
	}
}

// Verify checks the signature header against the raw request body.
func (v *Verifier) Verify(header string, body []byte) error {
	ts, sig, err := parseSignatureHeader(header)
	if err != nil {
		return err
	}

	if age := v.now().Sub(time.Unix(ts, 0)); age > v.tolerance || age < -v.tolerance {
		return ErrInvalidSignature
	}

	expected := computeSignature(v.secret, ts, body)
	if subtle.ConstantTimeCompare(sig, expected) != 1 {
		return ErrInvalidSignature
	}
	return nil
}

// Sign produces a signature header value for the body at time t. Exists for
// provider simulators and tests.
func Sign(secret string, t time.Time, body []byte) string {
	ts := t.Unix()
	mac := computeSignature([]byte(secret), ts, body)
	return "t=" + strconv.FormatInt(ts, 10) + ",v1=" + hex.EncodeToString(mac)
}

func computeSignature(secret []byte, ts int64, body []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(body)
	return mac.Sum(nil)
}

// parseSignatureHeader splits "t=<unix>,v1=<hex>" into its parts. Unknown
// elements are ignored so the provider can extend the scheme.
func parseSignatureHeader(header string) (ts int64, sig []byte, err error) {
	if header == "" {
		return 0, nil, ErrInvalidSignature
	}

	for _, part := range strings.Split(header, ",") {
		k, val, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts, err = strconv.ParseInt(val, 10, 64)
			if err != nil {
				return 0, nil, ErrInvalidSignature
			}
		case "v1":
			sig, err = hex.DecodeString(val)
			if err != nil {
				return 0, nil, ErrInvalidSignature
			}
		}
	}

	if ts == 0 || len(sig) == 0 {
		return 0, nil, ErrInvalidSignature
	}
	return ts, sig, nil
}
