package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader carries the webhook signature: "t=<unix>,v1=<hex hmac>".
const SignatureHeader = "X-Billing-Signature"

// signatureTolerance bounds how old a signed timestamp may be. It blunts
// replay of captured webhook deliveries.
const signatureTolerance = 5 * time.Minute

var (
	ErrMissingSignature = errors.New("missing or malformed signature")
	ErrStaleTimestamp   = errors.New("signature timestamp outside tolerance")
	ErrBadSignature     = errors.New("signature mismatch")
)

// Webhook event types the service reacts to.
const (
	EventSubscriptionUpdated = "subscription.updated"
	EventSubscriptionDeleted = "subscription.deleted"
	EventPaymentFailed       = "invoice.payment_failed"
)

// WebhookEvent is the provider's notification payload.
type WebhookEvent struct {
	Type string           `json:"type"`
	Data WebhookEventData `json:"data"`
}

// WebhookEventData identifies the provider subscription and carries the
// fields that changed.
type WebhookEventData struct {
	ProviderID       string `json:"subscription_id"`
	Plan             string `json:"plan,omitempty"`
	Status           string `json:"status,omitempty"`
	CurrentPeriodEnd int64  `json:"current_period_end,omitempty"`
}

// SignPayload computes the hex HMAC-SHA256 over "<ts>.<body>".
func SignPayload(secret string, ts int64, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a SignatureHeader value against the raw body. The
// signed timestamp must be within signatureTolerance of now, and the digest
// comparison is constant time.
func VerifySignature(secret, header string, body []byte, now time.Time) error {
	var (
		tsRaw string
		sig   string
	)
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			tsRaw = value
		case "v1":
			sig = value
		}
	}
	if tsRaw == "" || sig == "" {
		return ErrMissingSignature
	}
	ts, err := strconv.ParseInt(tsRaw, 10, 64)
	if err != nil {
		return ErrMissingSignature
	}

	age := now.Sub(time.Unix(ts, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return ErrStaleTimestamp
	}

	expected := SignPayload(secret, ts, body)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return ErrBadSignature
	}
	return nil
}
