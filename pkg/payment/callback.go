package payment

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
)

// Gateway transaction statuses delivered on the callback.
const (
	StatusSettlement = "settlement"
	StatusCapture    = "capture"
	StatusPending    = "pending"
	StatusDeny       = "deny"
	StatusCancel     = "cancel"
	StatusExpire     = "expire"
	StatusRefund     = "refund"

	FraudAccept = "accept"
	FraudDeny   = "deny"
)

// CallbackPayload is the inbound webhook body from the gateway.
type CallbackPayload struct {
	OrderRef          string `json:"order_id" validate:"required"`
	StatusCode        string `json:"status_code" validate:"required"`
	GrossAmount       string `json:"gross_amount" validate:"required"`
	TransactionStatus string `json:"transaction_status" validate:"required"`
	FraudStatus       string `json:"fraud_status"`
	PaymentType       string `json:"payment_type"`
	SignatureKey      string `json:"signature_key" validate:"required"`
}

// Signature computes the expected SHA-512 callback signature.
func Signature(orderRef, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderRef + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

// VerifySignature checks the payload against the configured server key.
func (p CallbackPayload) VerifySignature(serverKey string) bool {
	expected := Signature(p.OrderRef, p.StatusCode, p.GrossAmount, serverKey)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(p.SignatureKey)) == 1
}

// IsSettled reports a paid outcome. A capture flagged as fraud-deny is not
// treated as settled.
func (p CallbackPayload) IsSettled() bool {
	switch p.TransactionStatus {
	case StatusSettlement:
		return true
	case StatusCapture:
		return p.FraudStatus == "" || p.FraudStatus == FraudAccept
	default:
		return false
	}
}

// IsFailure reports a terminal non-paid outcome.
func (p CallbackPayload) IsFailure() bool {
	switch p.TransactionStatus {
	case StatusDeny, StatusCancel, StatusExpire:
		return true
	case StatusCapture:
		return p.FraudStatus == FraudDeny
	default:
		return false
	}
}
