package bus

import "testing"

func TestPublishReachesTableSubscriber(t *testing.T) {
	b := New()
	var got []Event
	handler := func(e Event) { got = append(got, e) }
	if err := b.Subscribe(TableSales, handler); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	b.Publish(Event{Table: TableSales, Action: ActionInsert, ID: "sale-1"})
	b.Publish(Event{Table: TableProducts, Action: ActionUpdate, ID: "prod-1"})

	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	if got[0].ID != "sale-1" || got[0].Action != ActionInsert {
		t.Fatalf("unexpected event: %+v", got[0])
	}
}

func TestPublishReachesCatchAllSubscriber(t *testing.T) {
	b := New()
	var got []Event
	handler := func(e Event) { got = append(got, e) }
	if err := b.SubscribeAll(handler); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	b.Publish(Event{Table: TableSales, Action: ActionInsert, ID: "sale-1"})
	b.Publish(Event{Table: TableExpenses, Action: ActionDelete, ID: "exp-1"})

	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	count := 0
	handler := func(Event) { count++ }
	if err := b.SubscribeAll(handler); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	b.Publish(Event{Table: TableCustomers, Action: ActionUpdate, ID: "c-1"})
	if err := b.UnsubscribeAll(handler); err != nil {
		t.Fatalf("unsubscribe failed: %v", err)
	}
	b.Publish(Event{Table: TableCustomers, Action: ActionUpdate, ID: "c-2"})

	if count != 1 {
		t.Fatalf("expected 1 delivery, got %d", count)
	}
}
