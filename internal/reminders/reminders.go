// internal/reminders/reminders.go
package reminders

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Brian-Kareithi/sfalibrary-sub000/internal/circulation"
	"github.com/Brian-Kareithi/sfalibrary-sub000/internal/notify"
)

// Worker periodically reminds borrowers about overdue loans. It is a
// read-only collaborator: overdue status stays computed by the engine and the
// worker never mutates loan state.
type Worker struct {
	circulation circulation.Service
	notifier    notify.Dispatcher
	interval    time.Duration
}

func NewWorker(circ circulation.Service, notifier notify.Dispatcher, interval time.Duration) *Worker {
	return &Worker{circulation: circ, notifier: notifier, interval: interval}
}

// Run polls until the context is canceled. An initial sweep happens right away.
func (w *Worker) Run(ctx context.Context) {
	w.sweep(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *Worker) sweep(ctx context.Context) {
	overdue, err := w.circulation.OverdueLoans(ctx)
	if err != nil {
		log.Printf("reminders: failed to list overdue loans: %v", err)
		return
	}

	for _, loan := range overdue {
		n := notify.Notification{
			BorrowerID: loan.BorrowerID,
			Kind:       notify.KindOverdueReminder,
			Message: fmt.Sprintf("A borrowed book is %d day(s) overdue; the accrued fine is %.2f. Please return it.",
				loan.DaysOverdue, loan.AccruedFine),
			SentAt: time.Now().UTC(),
		}
		if err := w.notifier.Dispatch(ctx, n); err != nil {
			log.Printf("reminders: dispatch failed for borrower %s: %v", loan.BorrowerID, err)
		}
	}
	if len(overdue) > 0 {
		log.Printf("reminders: dispatched %d overdue reminder(s)", len(overdue))
	}
}
