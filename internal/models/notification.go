package models

// NotificationCommand is an outbound message emitted by the approval state
// machine. Commands are dispatched by an outer layer only after the storage
// transaction commits, so the transition itself stays side-effect free.
type NotificationCommand struct {
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}
