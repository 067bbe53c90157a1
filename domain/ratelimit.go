package domain

import (
	"time"
)

type RateLimitResult struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RateLimitExceededDetails is attached to a payment-required response
// produced by the free-tier limiter.
type RateLimitExceededDetails struct {
	Remaining   int       `json:"remaining"`
	ResetAt     time.Time `json:"resetAt"`
	PurchaseUrl string    `json:"purchaseUrl"`
}

// PurchaseDetails is attached to a payment-required response produced
// by the balance check; no rate-limit data applies there.
type PurchaseDetails struct {
	PurchaseUrl string `json:"purchaseUrl"`
}
