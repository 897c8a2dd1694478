package events

// Event enumerates high-level topics inside the trading engine.
type Event string

const (
	EventSignal          Event = "signal"
	EventPositionOpened  Event = "position.opened"
	EventPositionUpdated Event = "position.updated"
	EventPositionClosed  Event = "position.closed"
	EventTradeRecorded   Event = "trade.recorded"
	EventBalanceHealth   Event = "balance.health"
	EventCycleComplete   Event = "cycle.complete"
)

// TenantPayload wraps a payload with the tenant it belongs to, so
// dashboard subscribers can filter per tenant on one shared bus.
type TenantPayload struct {
	TenantID string
	Data     any
}
