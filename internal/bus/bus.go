// Package bus carries row-change notifications from the service layer to
// live subscribers (the SSE feed, the report-cache invalidator). One Bus
// is created at application start and owned by the root; stores never
// publish, only the service does after a successful mutation.
package bus

import (
	evbus "github.com/asaskevich/EventBus"
)

// Tables that emit change events.
const (
	TableProducts  = "products"
	TableSales     = "sales"
	TableCustomers = "customers"
	TableExpenses  = "expenses"
)

const (
	ActionInsert = "insert"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// catch-all topic for subscribers that want every table.
const topicAll = "changes"

type Event struct {
	Table  string `json:"table"`
	Action string `json:"action"`
	ID     string `json:"id"`
}

type Bus struct {
	inner evbus.Bus
}

func New() *Bus {
	return &Bus{inner: evbus.New()}
}

// Publish delivers the event to table-scoped subscribers and to catch-all
// subscribers. Delivery is synchronous; handlers must not block.
func (b *Bus) Publish(event Event) {
	b.inner.Publish(topicFor(event.Table), event)
	b.inner.Publish(topicAll, event)
}

// Subscribe registers a handler for changes to one table.
func (b *Bus) Subscribe(table string, handler func(Event)) error {
	return b.inner.Subscribe(topicFor(table), handler)
}

// SubscribeAll registers a handler for changes to every table.
func (b *Bus) SubscribeAll(handler func(Event)) error {
	return b.inner.Subscribe(topicAll, handler)
}

func (b *Bus) Unsubscribe(table string, handler func(Event)) error {
	return b.inner.Unsubscribe(topicFor(table), handler)
}

func (b *Bus) UnsubscribeAll(handler func(Event)) error {
	return b.inner.Unsubscribe(topicAll, handler)
}

func topicFor(table string) string {
	return "changes:" + table
}
