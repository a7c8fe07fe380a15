package jobs

import (
	"context"
	"time"

	"custody-backend/internal/logger"
)

// ReconcileRentalCounters rebuilds the cached pending/returned/invoiced
// counters of every active rental from its line items and returns.
func (jr *JobRunner) ReconcileRentalCounters() {
	jr.runWithRecovery("ReconcileRentalCounters", func(ctx context.Context) error {
		repaired, err := jr.services.Rental.ReconcileAll(ctx)
		if err != nil {
			return err
		}
		if repaired > 0 {
			logger.Warn("Repaired drifted rental counters", "count", repaired)
		} else {
			logger.Info("Rental counters consistent")
		}
		return nil
	})
}

// ReportOverdueRentals logs every active rental past its estimated return
// date. OVERDUE is never stored, so nothing is written.
func (jr *JobRunner) ReportOverdueRentals() {
	jr.runWithRecovery("ReportOverdueRentals", func(ctx context.Context) error {
		overdue, err := jr.services.Rental.ListOverdue(ctx)
		if err != nil {
			return err
		}

		logger.InfoContext(ctx, "Overdue rentals", "count", len(overdue))
		now := time.Now()
		for _, rt := range overdue {
			var daysLate int
			if rt.EstimatedReturnDate != nil {
				daysLate = int(now.Sub(*rt.EstimatedReturnDate).Hours() / 24)
			}
			logger.Debug("Rental overdue",
				"rental_id", rt.ID,
				"remision_number", rt.RemisionNumber,
				"counterparty", rt.Counterparty,
				"pending", rt.PendingCount,
				"days_late", daysLate)
		}
		return nil
	})
}
