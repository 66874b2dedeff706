package notification

import (
	"context"
	"fmt"

	"crono-backend/pkg/logger"

	"go.uber.org/zap"
)

// MailSender submits one HTML message and returns its Message-Id
type MailSender interface {
	Send(ctx context.Context, to, subject, html string) (string, error)
}

// EmailNotifier delivers over SMTP. Without a sender every message is
// logged and reported as simulated.
type EmailNotifier struct {
	sender MailSender
	logger *zap.Logger
}

func NewEmailNotifier(sender MailSender, l *zap.Logger) *EmailNotifier {
	return &EmailNotifier{sender: sender, logger: logger.OrNop(l).Named("email")}
}

func (n *EmailNotifier) Send(ctx context.Context, msg Message) (DeliveryResult, error) {
	if n.sender == nil {
		n.logger.Info("smtp not configured, simulating send",
			zap.String("to", msg.To),
			zap.String("subject", msg.Subject))
		return DeliveryResult{Channel: ChannelEmail, Simulated: true}, nil
	}

	id, err := n.sender.Send(ctx, msg.To, msg.Subject, msg.HTML)
	if err != nil {
		return DeliveryResult{Channel: ChannelEmail}, fmt.Errorf("send email to %s: %w", msg.To, err)
	}
	n.logger.Debug("email sent", zap.String("to", msg.To), zap.String("message_id", id))
	return DeliveryResult{Channel: ChannelEmail, ID: id}, nil
}
