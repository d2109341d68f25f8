package services

const (
	EventAccountCreated = "account.created"
	EventAccountLogin   = "account.login"
	EventTextClassified = "text.classified"
)

// EventPublisher delivers domain events to a broker. Payloads never carry
// passwords or the classified text.
type EventPublisher interface {
	PublishEvent(eventType string, payload map[string]interface{}) error
}
