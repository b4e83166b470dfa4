package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Slack request signing headers.
const (
	HeaderTimestamp = "X-Slack-Request-Timestamp"
	HeaderSignature = "X-Slack-Signature"
	HeaderRetryNum  = "X-Slack-Retry-Num"
)

// MaxClockSkew is how far a request timestamp may be from local time.
const MaxClockSkew = 5 * time.Minute

var (
	errMissingSignature = errors.New("missing signature headers")
	errStaleTimestamp   = errors.New("request timestamp outside allowed window")
	errBadSignature     = errors.New("signature mismatch")
)

// Sign returns the v0 signature Slack attaches to a request with the given
// timestamp and body.
func Sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("v0:" + timestamp + ":"))
	mac.Write(body)
	return "v0=" + hex.EncodeToString(mac.Sum(nil))
}

// verifySignature checks the Slack signing headers on r against body.
func verifySignature(r *http.Request, body []byte, secret string, now time.Time) error {
	ts := r.Header.Get(HeaderTimestamp)
	sig := r.Header.Get(HeaderSignature)
	if ts == "" || sig == "" {
		return errMissingSignature
	}

	secs, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", HeaderTimestamp, err)
	}
	skew := now.Sub(time.Unix(secs, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > MaxClockSkew {
		return errStaleTimestamp
	}

	if !hmac.Equal([]byte(Sign(secret, ts, body)), []byte(sig)) {
		return errBadSignature
	}
	return nil
}
