package models

// All lists every model in migration order.
func All() []interface{} {
	return []interface{}{
		&Shop{},
		&Staff{},
		&Customer{},
		&Car{},
		&CarOwnershipHistory{},
		&CarPhoto{},
		&Appointment{},
		&WorkOrder{},
		&WorkOrderLineItem{},
		&AssignmentHistory{},
		&InvoiceSequence{},
		&Invoice{},
		&SMSLog{},
		&ServiceReminder{},
	}
}
