// Package notifier publishes outbound notification events to RabbitMQ.
// Delivery to the user (e-mail, SMS) is handled by separate workers
// consuming the queues.
package notifier

import (
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/byonco/webgate/internal/lib/rabbitmq"
	"github.com/byonco/webgate/internal/lib/sl"
)

// Exchange is the notifications exchange name.
const Exchange = "notifications"

// PaymentReceipt is published after a confirmed payment.
type PaymentReceipt struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	OrderID     string `json:"order_id"`
	PaymentID   string `json:"payment_id"`
	AmountPaise int64  `json:"amount_paise"`
	Currency    string `json:"currency"`
	ServiceType string `json:"service_type"`
}

// PasswordReset is published when a reset is requested.
type PasswordReset struct {
	Email      string `json:"email"`
	ResetToken string `json:"reset_token"`
}

// Service publishes notification events. A nil channel disables
// publishing, which keeps local development working without a broker.
type Service struct {
	ch  *amqp.Channel
	log *slog.Logger
}

// New creates a notifier over an open AMQP channel. ch may be nil.
func New(ch *amqp.Channel, log *slog.Logger) *Service {
	return &Service{ch: ch, log: log}
}

// PublishReceipt sends the payment receipt event. Publish failures are
// logged, not propagated: a missing receipt must not fail the payment.
func (s *Service) PublishReceipt(receipt PaymentReceipt) {
	if s.ch == nil {
		return
	}
	if err := rabbitmq.PublishMessage(s.ch, Exchange, "payment.receipt", receipt); err != nil {
		s.log.Error("failed to publish payment receipt", sl.Err(err))
	}
}

// PublishPasswordReset sends the password-reset event.
func (s *Service) PublishPasswordReset(event PasswordReset) {
	if s.ch == nil {
		return
	}
	if err := rabbitmq.PublishMessage(s.ch, Exchange, "auth.password-reset", event); err != nil {
		s.log.Error("failed to publish password reset", sl.Err(err))
	}
}
