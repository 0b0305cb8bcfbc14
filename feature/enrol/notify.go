package enrol

import (
	"context"

	"enrol-sync/feature/enrol/store"

	"go.uber.org/zap"
)

// Notifier delivers messages to the site administrators.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// NopNotifier drops every message.
type NopNotifier struct{}

// Notify does nothing.
func (NopNotifier) Notify(context.Context, string, string) error { return nil }

// StoreNotifier queues messages in the administrator notification table.
type StoreNotifier struct {
	store  store.Store
	logger *zap.Logger
}

// NewStoreNotifier creates a notifier writing to st.
func NewStoreNotifier(st store.Store, log *zap.Logger) *StoreNotifier {
	return &StoreNotifier{store: st, logger: log}
}

// Notify queues the message.
func (n *StoreNotifier) Notify(ctx context.Context, subject, body string) error {
	if err := n.store.AddNotification(ctx, subject, body); err != nil {
		return err
	}
	n.logger.Info("Notification queued for administrators", zap.String("subject", subject))
	return nil
}
