package notification

import (
	"context"

	"crono-backend/pkg/logger"

	"go.uber.org/zap"
)

// Multi sends on a primary channel and, once that succeeds, fans out to
// secondary channels on a best-effort basis. Only the primary result and
// error reach the caller.
type Multi struct {
	primary   Notifier
	secondary []Notifier
	logger    *zap.Logger
}

func NewMulti(l *zap.Logger, primary Notifier, secondary ...Notifier) *Multi {
	return &Multi{primary: primary, secondary: secondary, logger: logger.OrNop(l).Named("notifier")}
}

func (m *Multi) Send(ctx context.Context, msg Message) (DeliveryResult, error) {
	res, err := m.primary.Send(ctx, msg)
	if err != nil {
		return res, err
	}

	for _, n := range m.secondary {
		r, err := n.Send(ctx, msg)
		if err != nil {
			m.logger.Warn("secondary channel failed",
				zap.String("channel", r.Channel),
				zap.String("activity_id", msg.ActivityID),
				zap.Error(err))
			continue
		}
		if !r.Simulated {
			m.logger.Debug("secondary channel delivered",
				zap.String("channel", r.Channel),
				zap.String("id", r.ID))
		}
	}
	return res, nil
}
