package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	shared "github.com/felixgeelhaar/trustline/internal/shared/domain"
)

// MaxSignatureSkew is how far a webhook timestamp may drift from the
// current time before the event is treated as a replay.
const MaxSignatureSkew = 5 * time.Minute

// VerifyResult reports the outcome of a signature check. Skipped is true
// only in permissive mode with no secret configured; callers must treat a
// skipped check differently from a verified one.
type VerifyResult struct {
	Valid   bool
	Skipped bool
}

// SignatureVerifier checks provider webhook signatures:
// HMAC-SHA256 over "webhookID.timestamp.payload" with a shared secret.
type SignatureVerifier struct {
	secret []byte
	strict bool
	now    func() time.Time
}

// NewSignatureVerifier creates a verifier. In strict mode a missing
// secret is a hard configuration failure; in permissive mode verification
// is skipped with a warning result instead.
func NewSignatureVerifier(secret string, strict bool) *SignatureVerifier {
	return &SignatureVerifier{
		secret: []byte(secret),
		strict: strict,
		now:    time.Now,
	}
}

// Strict reports whether a missing secret fails verification.
func (v *SignatureVerifier) Strict() bool { return v.strict }

// Verify checks the signature of a webhook event.
func (v *SignatureVerifier) Verify(payload []byte, signature, webhookID, timestamp string) (VerifyResult, error) {
	if len(v.secret) == 0 {
		if v.strict {
			return VerifyResult{}, shared.NewDomainError(shared.CodeConfiguration, "webhook secret is not configured")
		}
		return VerifyResult{Valid: true, Skipped: true}, nil
	}

	if signature == "" || webhookID == "" || timestamp == "" {
		return VerifyResult{}, shared.NewDomainError(shared.CodeValidation, "missing webhook signature headers")
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return VerifyResult{}, shared.NewDomainError(shared.CodeValidation, "malformed webhook timestamp")
	}
	drift := v.now().UTC().Sub(time.Unix(ts, 0).UTC())
	if drift > MaxSignatureSkew || drift < -MaxSignatureSkew {
		return VerifyResult{}, shared.NewDomainError(shared.CodeValidation, "webhook timestamp outside freshness window")
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(webhookID))
	mac.Write([]byte("."))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return VerifyResult{}, shared.NewDomainError(shared.CodeValidation, "webhook signature mismatch")
	}

	return VerifyResult{Valid: true}, nil
}
