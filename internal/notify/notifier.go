/**
 * @description
 * Outbound notification adapter. Every message is published as a
 * mail.requested event on the notifications exchange; an external mailer
 * performs delivery from the fixed administrative identity, so delivery is
 * best-effort from this service's point of view.
 */
package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/19pdh/user-manager/internal/domain"
	"github.com/19pdh/user-manager/pkg/rabbitmq"
)

const (
	exchange       = "notifications"
	mailRoutingKey = "mail.requested"
)

// AMQPNotifier publishes mail requests through the event producer.
type AMQPNotifier struct {
	producer rabbitmq.Publisher
}

// NewAMQPNotifier creates a notifier backed by the given publisher.
func NewAMQPNotifier(producer rabbitmq.Publisher) *AMQPNotifier {
	return &AMQPNotifier{producer: producer}
}

// Send requests delivery of one message to the given addresses.
func (n *AMQPNotifier) Send(ctx context.Context, to []string, subject, body, htmlBody string) error {
	recipients := make([]string, 0, len(to))
	for _, addr := range to {
		if addr != "" {
			recipients = append(recipients, addr)
		}
	}
	if len(recipients) == 0 {
		return fmt.Errorf("notify: no recipients for %q", subject)
	}

	event := domain.MailRequestedEvent{
		EventID:  uuid.NewString(),
		To:       recipients,
		Subject:  subject,
		Body:     body,
		HTMLBody: htmlBody,
	}
	if err := n.producer.Publish(ctx, exchange, mailRoutingKey, event); err != nil {
		return fmt.Errorf("notify: publishing mail request: %w", err)
	}
	return nil
}
