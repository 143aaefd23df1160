package webhook

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"net/url"
	"sort"
)

// SignatureHeader is the carrier-supplied signature header validated on
// every inbound webhook.
const SignatureHeader = "X-Carrier-Signature"

var (
	// ErrMissingSignature is returned when the signature header is absent.
	ErrMissingSignature = errors.New("missing carrier signature")
	// ErrInvalidSignature is returned when the recomputed signature does
	// not match the header.
	ErrInvalidSignature = errors.New("invalid carrier signature")
)

// Verifier recomputes and checks carrier webhook signatures. The carrier
// signs origin+path concatenated with every posted form parameter as
// key+value, sorted by key, HMAC-SHA1 with the shared auth token,
// base64-encoded.
type Verifier struct {
	authToken []byte
}

// NewVerifier creates a Verifier for the shared carrier auth token.
func NewVerifier(authToken string) *Verifier {
	return &Verifier{authToken: []byte(authToken)}
}

// Sign computes the expected signature for the given public URL and form
// values. Exposed for tests and for the staging call simulator.
func (v *Verifier) Sign(publicURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	mac := hmac.New(sha1.New, v.authToken)
	mac.Write([]byte(publicURL))
	for _, k := range keys {
		for _, val := range form[k] {
			mac.Write([]byte(k))
			mac.Write([]byte(val))
		}
	}
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify checks the carrier-supplied signature against the recomputation
// in constant time. It runs before any persistence is touched: a missing
// or mismatched signature rejects the request outright.
func (v *Verifier) Verify(publicURL string, form url.Values, signature string) error {
	if signature == "" {
		return ErrMissingSignature
	}
	expected := v.Sign(publicURL, form)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}
