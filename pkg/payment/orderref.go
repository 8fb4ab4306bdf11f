package payment

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/lokabekas/lokabekas-backend/pkg/errors"
)

// NewOrderRef builds a gateway order id unique per attempt. The timestamp
// suffix lets a retried invoice open a fresh gateway transaction instead of
// tripping gateway-side idempotency on the previous attempt.
func NewOrderRef(invoiceID uuid.UUID, now time.Time) string {
	return fmt.Sprintf("%s-%d", invoiceID, now.Unix())
}

// ParseOrderRef recovers the invoice id from an order ref.
func ParseOrderRef(ref string) (uuid.UUID, error) {
	idx := strings.LastIndex(ref, "-")
	if idx <= 0 {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "malformed order ref")
	}
	id, err := uuid.Parse(ref[:idx])
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed order ref")
	}
	return id, nil
}
