package recurring

import (
	"context"
	"testing"
	"time"

	"dukabook/backend/internal/domain"
	"dukabook/backend/internal/store/memory"
)

func seedTemplate(t *testing.T, repo *memory.Store, frequency string, anchor time.Time, end *time.Time) domain.Expense {
	t.Helper()
	template, err := repo.CreateExpense(context.Background(), domain.Expense{
		ExpenseDate:        anchor,
		Amount:             150000,
		PaymentMethod:      "cash",
		Description:        "Shop rent",
		IsRecurring:        true,
		RecurringFrequency: frequency,
		RecurringEndDate:   end,
	})
	if err != nil {
		t.Fatalf("seed template failed: %v", err)
	}
	return *template
}

func countClones(t *testing.T, repo *memory.Store, templateID string) int {
	t.Helper()
	expenses, err := repo.ListExpenses(context.Background(), domain.ExpenseFilter{})
	if err != nil {
		t.Fatalf("list expenses failed: %v", err)
	}
	n := 0
	for _, e := range expenses {
		if e.SourceExpenseID == templateID {
			n++
		}
	}
	return n
}

func TestRunOnceMaterializesDailyTemplate(t *testing.T) {
	repo := memory.New()
	anchor := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	template := seedTemplate(t, repo, domain.RecurringDaily, anchor, nil)

	sched := NewScheduler(repo, nil, "@daily")
	created, err := sched.RunOnce(context.Background(), anchor.AddDate(0, 0, 3))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if created != 1 {
		t.Fatalf("expected 1 clone, got %d", created)
	}
	if countClones(t, repo, template.ID) != 1 {
		t.Fatalf("expected 1 stored clone")
	}
}

func TestRunOnceIsIdempotentPerDay(t *testing.T) {
	repo := memory.New()
	anchor := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	template := seedTemplate(t, repo, domain.RecurringDaily, anchor, nil)

	sched := NewScheduler(repo, nil, "@daily")
	day := anchor.AddDate(0, 0, 1)
	for i := 0; i < 3; i++ {
		if _, err := sched.RunOnce(context.Background(), day); err != nil {
			t.Fatalf("run %d failed: %v", i, err)
		}
	}
	if got := countClones(t, repo, template.ID); got != 1 {
		t.Fatalf("expected exactly 1 clone after repeated runs, got %d", got)
	}
}

func TestWeeklyTemplateFiresOnAnchorWeekday(t *testing.T) {
	repo := memory.New()
	anchor := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC) // a Monday
	template := seedTemplate(t, repo, domain.RecurringWeekly, anchor, nil)

	sched := NewScheduler(repo, nil, "@daily")

	if created, _ := sched.RunOnce(context.Background(), anchor.AddDate(0, 0, 3)); created != 0 {
		t.Fatalf("expected no clone midweek, got %d", created)
	}
	if created, _ := sched.RunOnce(context.Background(), anchor.AddDate(0, 0, 7)); created != 1 {
		t.Fatalf("expected clone the following Monday")
	}
	if countClones(t, repo, template.ID) != 1 {
		t.Fatalf("expected 1 stored clone")
	}
}

func TestMonthlyTemplateClampsShortMonths(t *testing.T) {
	repo := memory.New()
	anchor := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	seedTemplate(t, repo, domain.RecurringMonthly, anchor, nil)

	sched := NewScheduler(repo, nil, "@daily")

	// February 2026 has 28 days; the anchor on the 31st fires on the 28th.
	if created, _ := sched.RunOnce(context.Background(), time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)); created != 1 {
		t.Fatalf("expected clamped monthly clone on Feb 28")
	}
	if created, _ := sched.RunOnce(context.Background(), time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)); created != 1 {
		t.Fatalf("expected monthly clone on Mar 31")
	}
}

func TestTemplateStopsAfterEndDate(t *testing.T) {
	repo := memory.New()
	anchor := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 8, 5, 0, 0, 0, 0, time.UTC)
	template := seedTemplate(t, repo, domain.RecurringDaily, anchor, &end)

	sched := NewScheduler(repo, nil, "@daily")
	if created, _ := sched.RunOnce(context.Background(), end); created != 1 {
		t.Fatalf("expected clone on the end date itself")
	}
	if created, _ := sched.RunOnce(context.Background(), end.AddDate(0, 0, 1)); created != 0 {
		t.Fatalf("expected no clone past the end date")
	}
	if countClones(t, repo, template.ID) != 1 {
		t.Fatalf("expected 1 stored clone")
	}
}

func TestClonesAreNotTemplates(t *testing.T) {
	repo := memory.New()
	anchor := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	seedTemplate(t, repo, domain.RecurringDaily, anchor, nil)

	sched := NewScheduler(repo, nil, "@daily")
	if _, err := sched.RunOnce(context.Background(), anchor.AddDate(0, 0, 1)); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	// A second pass on a later day must not treat yesterday's clone as a
	// new template.
	created, err := sched.RunOnce(context.Background(), anchor.AddDate(0, 0, 2))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if created != 1 {
		t.Fatalf("expected exactly 1 clone from the original template, got %d", created)
	}
}
