// Package recurring materializes recurring expense templates into
// concrete ledger rows on schedule. A template is an expense marked
// is_recurring; each due day the scheduler clones it with that day's
// date, until the template's end date passes.
package recurring

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"dukabook/backend/internal/bus"
	"dukabook/backend/internal/domain"
	"dukabook/backend/internal/store"
	"dukabook/backend/internal/xid"
)

type Scheduler struct {
	repo   store.Repository
	events *bus.Bus
	sched  *cron.Cron
	spec   string
}

func NewScheduler(repo store.Repository, events *bus.Bus, spec string) *Scheduler {
	if spec == "" {
		spec = "@daily"
	}
	return &Scheduler{
		repo:   repo,
		events: events,
		sched:  cron.New(cron.WithLocation(time.UTC)),
		spec:   spec,
	}
}

func (s *Scheduler) Start() error {
	_, err := s.sched.AddFunc(s.spec, func() {
		created, err := s.RunOnce(context.Background(), time.Now().UTC())
		if err != nil {
			log.Printf("[recurring] WARN: materialization pass failed: %v", err)
			return
		}
		if created > 0 {
			log.Printf("[recurring] materialized %d recurring expense(s)", created)
		}
	})
	if err != nil {
		return err
	}
	s.sched.Start()
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.sched.Stop()
	<-ctx.Done()
}

// RunOnce materializes every template due on the given day. It is
// idempotent per day: a template that already has a clone dated that day
// is skipped, so restarts and overlapping passes cannot double-book.
func (s *Scheduler) RunOnce(ctx context.Context, now time.Time) (int, error) {
	today := dateOnly(now)

	templates, err := s.repo.ListDueRecurringExpenses(ctx, today)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, template := range templates {
		if !dueOn(template, today) {
			continue
		}
		exists, err := s.repo.HasExpenseClone(ctx, template.ID, today)
		if err != nil {
			log.Printf("[recurring] WARN: clone lookup failed template=%s: %v", template.ID, err)
			continue
		}
		if exists {
			continue
		}

		clone := domain.Expense{
			ID:              xid.New("exp"),
			ExpenseDate:     today,
			CategoryID:      template.CategoryID,
			CategoryName:    template.CategoryName,
			Amount:          template.Amount,
			PaymentMethod:   template.PaymentMethod,
			Description:     template.Description,
			SupplierName:    template.SupplierName,
			EmployeeName:    template.EmployeeName,
			SourceExpenseID: template.ID,
		}
		saved, err := s.repo.CreateExpense(ctx, clone)
		if err != nil {
			log.Printf("[recurring] WARN: failed to materialize template=%s: %v", template.ID, err)
			continue
		}
		created++
		if s.events != nil {
			s.events.Publish(bus.Event{Table: bus.TableExpenses, Action: bus.ActionInsert, ID: saved.ID})
		}
	}

	return created, nil
}

// dueOn reports whether a template produces an occurrence on the given
// day. The template's own expense_date anchors the cycle and is not
// re-materialized.
func dueOn(template domain.Expense, day time.Time) bool {
	start := dateOnly(template.ExpenseDate)
	if !day.After(start) {
		return false
	}
	if template.RecurringEndDate != nil && day.After(dateOnly(*template.RecurringEndDate)) {
		return false
	}

	switch template.RecurringFrequency {
	case domain.RecurringDaily:
		return true
	case domain.RecurringWeekly:
		return day.Weekday() == start.Weekday()
	case domain.RecurringMonthly:
		return day.Day() == monthlyDay(start.Day(), day)
	default:
		return false
	}
}

// monthlyDay clamps an anchor day-of-month to the target month, so a
// template anchored on the 31st still fires on the 28th/29th/30th in
// shorter months.
func monthlyDay(anchor int, day time.Time) int {
	last := time.Date(day.Year(), day.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if anchor > last {
		return last
	}
	return anchor
}

func dateOnly(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
