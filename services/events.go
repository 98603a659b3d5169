package services

// Broadcaster pushes live events to connected staff clients of a shop.
type Broadcaster interface {
	Broadcast(shopID uint, event string, payload interface{})
}

// Live event names
const (
	EventWorkOrderCreated       = "work_order.created"
	EventWorkOrderStatusChanged = "work_order.status_changed"
	EventWorkOrderReassigned    = "work_order.reassigned"
	EventAppointmentRequested   = "appointment.requested"
	EventInvoiceCreated         = "invoice.created"
)

type eventPayload map[string]interface{}

type noopBroadcaster struct{}

func (noopBroadcaster) Broadcast(uint, string, interface{}) {}

var broadcasterInstance Broadcaster

// GetBroadcaster returns the process broadcaster, or a no-op one if none is set
func GetBroadcaster() Broadcaster {
	if broadcasterInstance == nil {
		return noopBroadcaster{}
	}
	return broadcasterInstance
}

// SetBroadcaster sets the process broadcaster
func SetBroadcaster(b Broadcaster) {
	broadcasterInstance = b
}
