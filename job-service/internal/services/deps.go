package services

import (
	"context"
	"time"

	"handyman-app/job-service/internal/models"
	"handyman-app/job-service/internal/telemetry"
	"handyman-app/job-service/internal/utils"

	"github.com/sirupsen/logrus"
)

// PaymentGateway is the part of the payment processor the core consumes.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string, notes map[string]string) (string, error)
	VerifySignature(orderID, paymentID, signature string) bool
}

type Notifier interface {
	Notify(ctx context.Context, notification models.Notification) error
}

// JobLocker serializes mutations of one entity across instances.
type JobLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

const notifyTimeout = 5 * time.Second

// Dispatcher delivers notifications once the primary write has committed.
// Delivery failures are logged and never reach the caller.
type Dispatcher struct {
	notifier Notifier
	logger   *logrus.Logger
}

func NewDispatcher(notifier Notifier, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{notifier: notifier, logger: logger}
}

func (d *Dispatcher) Send(ctx context.Context, notifications ...models.Notification) {
	if d == nil || d.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	for _, n := range notifications {
		if n.UserID == "" {
			continue
		}
		if n.CreatedAt.IsZero() {
			n.CreatedAt = time.Now().UTC()
		}
		err := d.notifier.Notify(ctx, n)
		telemetry.Notifications.WithLabelValues(telemetry.Result(err)).Inc()
		if err != nil {
			utils.LogWarn(d.logger, "services", "Dispatcher.Send", string(n.Type), map[string]string{
				"user_id": n.UserID,
				"job_id":  n.JobID,
			}, err)
		}
	}
}
