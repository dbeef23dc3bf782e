package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bollette/internal/core"
	"bollette/internal/storage"
)

// ProvisionProcessor walks every household and provisions the current
// month's payment records. The settlement view provisions on demand too;
// this pass exists so records appear even for households nobody opened yet
// this month.
type ProvisionProcessor struct {
	storage *storage.Repository
	bills   *BillService
}

func NewProvisionProcessor(storage *storage.Repository, bills *BillService) *ProvisionProcessor {
	return &ProvisionProcessor{
		storage: storage,
		bills:   bills,
	}
}

// ProcessHouseholds provisions records for the month of the given wall
// clock. Households failing individually are logged and skipped.
func (p *ProvisionProcessor) ProcessHouseholds(ctx context.Context, now time.Time) (int, error) {
	if p.storage == nil || p.bills == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	month := core.CurrentMonth(now)

	households, err := p.storage.ListHouseholds(ctx)
	if err != nil {
		return 0, fmt.Errorf("list households: %w", err)
	}

	slog.InfoContext(ctx, "Provisioning monthly records",
		"households", len(households),
		"month", month)

	processed := 0
	for _, householdID := range households {
		if err := p.bills.EnsureMonthlyRecords(ctx, householdID, month); err != nil {
			slog.ErrorContext(ctx, "Failed to provision household",
				"household_id", householdID,
				"month", month,
				"error", err)
			continue
		}
		processed++
	}

	slog.InfoContext(ctx, "Monthly provisioning complete",
		"processed", processed,
		"total", len(households))

	return processed, nil
}
