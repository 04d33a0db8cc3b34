package domain

// MailRequestedEvent is published for every outbound notification. A mailer
// service consumes these and performs the actual delivery.
type MailRequestedEvent struct {
	EventID  string   `json:"event_id"`
	To       []string `json:"to"`
	Subject  string   `json:"subject"`
	Body     string   `json:"body"`
	HTMLBody string   `json:"html_body,omitempty"`
}
