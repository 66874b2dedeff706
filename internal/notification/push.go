package notification

import (
	"context"
	"fmt"
	"strconv"

	"crono-backend/internal/notification/repository"
	"crono-backend/pkg/fcm"
	"crono-backend/pkg/logger"

	"go.uber.org/zap"
)

// PushSender is the part of the FCM client the push channel needs
type PushSender interface {
	SendToDevices(ctx context.Context, tokens []string, n fcm.NotificationData) (fcm.MulticastResult, error)
}

// PushNotifier sends a web push to every registered device of the owner
// and prunes tokens FCM rejects.
type PushNotifier struct {
	client PushSender
	tokens repository.DeviceTokenRepository
	logger *zap.Logger
}

func NewPushNotifier(client PushSender, tokens repository.DeviceTokenRepository, l *zap.Logger) *PushNotifier {
	return &PushNotifier{client: client, tokens: tokens, logger: logger.OrNop(l).Named("push")}
}

func (n *PushNotifier) Send(ctx context.Context, msg Message) (DeliveryResult, error) {
	if n.client == nil || n.tokens == nil {
		return DeliveryResult{Channel: ChannelPush, Simulated: true}, nil
	}

	rows, err := n.tokens.TokensByOwner(ctx, msg.OwnerID)
	if err != nil {
		return DeliveryResult{Channel: ChannelPush}, fmt.Errorf("load device tokens: %w", err)
	}
	if len(rows) == 0 {
		n.logger.Debug("no devices registered", zap.String("owner_id", msg.OwnerID))
		return DeliveryResult{Channel: ChannelPush, ID: "0"}, nil
	}

	tokens := make([]string, 0, len(rows))
	for _, r := range rows {
		tokens = append(tokens, r.Token)
	}

	res, err := n.client.SendToDevices(ctx, tokens, fcm.NotificationData{
		Title: msg.Subject,
		Body:  msg.Text,
		Data: map[string]string{
			"type":        "activity_" + string(msg.Kind),
			"activity_id": msg.ActivityID,
		},
		ClickAction: "/activities",
	})
	if err != nil {
		return DeliveryResult{Channel: ChannelPush}, err
	}

	for _, t := range res.FailedTokens {
		if err := n.tokens.DeleteToken(ctx, t); err != nil {
			n.logger.Warn("failed to prune device token", zap.Error(err))
		}
	}
	return DeliveryResult{Channel: ChannelPush, ID: strconv.Itoa(res.SuccessCount)}, nil
}
