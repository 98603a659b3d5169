package models

// Allowed status moves. Anything not listed is rejected by the engines.
var (
	workOrderTransitions = map[WorkOrderStatus][]WorkOrderStatus{
		WorkOrderCreated:    {WorkOrderDiagnosing},
		WorkOrderDiagnosing: {WorkOrderCreated, WorkOrderInProgress},
		WorkOrderInProgress: {WorkOrderDiagnosing, WorkOrderDone},
		WorkOrderDone:       {WorkOrderInProgress},
	}

	appointmentTransitions = map[AppointmentStatus][]AppointmentStatus{
		AppointmentRequested: {AppointmentConfirmed, AppointmentRejected},
		AppointmentConfirmed: {AppointmentArrived},
	}

	invoiceTransitions = map[InvoiceStatus][]InvoiceStatus{
		InvoiceDraft:     {InvoiceFinalized},
		InvoiceFinalized: {InvoicePaid},
	}
)

var workOrderOrder = []WorkOrderStatus{WorkOrderCreated, WorkOrderDiagnosing, WorkOrderInProgress, WorkOrderDone}

func contains[T comparable](set []T, v T) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known work order status
func (s WorkOrderStatus) Valid() bool {
	return contains(workOrderOrder, s)
}

// CanTransitionTo reports whether next is one step away from s
func (s WorkOrderStatus) CanTransitionTo(next WorkOrderStatus) bool {
	return contains(workOrderTransitions[s], next)
}

// Next returns the following status; ok is false at Done
func (s WorkOrderStatus) Next() (WorkOrderStatus, bool) {
	for i, st := range workOrderOrder {
		if st == s && i+1 < len(workOrderOrder) {
			return workOrderOrder[i+1], true
		}
	}
	return s, false
}

// Previous returns the preceding status; ok is false at Created
func (s WorkOrderStatus) Previous() (WorkOrderStatus, bool) {
	for i, st := range workOrderOrder {
		if st == s && i > 0 {
			return workOrderOrder[i-1], true
		}
	}
	return s, false
}

// IsOpen reports whether the work order is still being worked on
func (s WorkOrderStatus) IsOpen() bool {
	return s != WorkOrderDone
}

// Valid reports whether s is a known appointment status
func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentRequested, AppointmentConfirmed, AppointmentRejected, AppointmentArrived:
		return true
	}
	return false
}

// CanTransitionTo reports whether the appointment may move to next
func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	return contains(appointmentTransitions[s], next)
}

// IsTerminal reports whether no further moves are possible
func (s AppointmentStatus) IsTerminal() bool {
	return len(appointmentTransitions[s]) == 0
}

// Valid reports whether s is a known invoice status
func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceDraft, InvoiceFinalized, InvoicePaid:
		return true
	}
	return false
}

// CanTransitionTo reports whether the invoice may move to next
func (s InvoiceStatus) CanTransitionTo(next InvoiceStatus) bool {
	return contains(invoiceTransitions[s], next)
}

// LocksLineItems reports whether the invoice freezes its work order's items
func (s InvoiceStatus) LocksLineItems() bool {
	return s == InvoiceFinalized || s == InvoicePaid
}
