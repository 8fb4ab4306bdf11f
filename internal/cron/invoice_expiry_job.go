package cron

import (
	"context"
	"fmt"

	"github.com/lokabekas/lokabekas-backend/pkg/logger"
)

type invoiceExpirer interface {
	ExpireDue(ctx context.Context, limit int) (int, error)
}

// NewInvoiceExpiryJob builds the sweep that cancels invoices past their
// payment deadline. Reads already expire lazily; the sweep keeps rows
// nobody reads from lingering as waiting forever.
func NewInvoiceExpiryJob(logg *logger.Logger, invoices invoiceExpirer, batchSize int) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if invoices == nil {
		return nil, fmt.Errorf("invoice service is required")
	}
	if batchSize <= 0 {
		batchSize = 200
	}
	return &invoiceExpiryJob{logg: logg, invoices: invoices, batchSize: batchSize}, nil
}

type invoiceExpiryJob struct {
	logg      *logger.Logger
	invoices  invoiceExpirer
	batchSize int
}

func (j *invoiceExpiryJob) Name() string { return "invoice-expiry" }

func (j *invoiceExpiryJob) Run(ctx context.Context) error {
	total := 0
	for {
		expired, err := j.invoices.ExpireDue(ctx, j.batchSize)
		if err != nil {
			return fmt.Errorf("expiring invoices: %w", err)
		}
		total += expired
		if expired < j.batchSize {
			break
		}
	}
	j.logg.Info(j.logg.WithField(ctx, "expired", total), "invoice expiry sweep complete")
	return nil
}
