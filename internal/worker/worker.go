package worker

import (
	"context"

	"storefront/internal/broker"
	"storefront/internal/models"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// LedgerRecorder persists checkout events
type LedgerRecorder interface {
	RecordCheckoutEvent(ctx context.Context, event *models.CheckoutEvent) (bool, error)
}

// messageSource is the part of *broker.Consumer the worker drives
type messageSource interface {
	StartConsuming(ctx context.Context, handler broker.MessageHandler) error
	Close() error
}

// LedgerWorker copies checkout events from Kafka into the ledger
type LedgerWorker struct {
	consumer     messageSource
	eventHandler *broker.EventHandler
	ledger       LedgerRecorder
	logger       *zap.Logger
}

// NewLedgerWorker creates a new ledger worker
func NewLedgerWorker(consumer *broker.Consumer, ledger LedgerRecorder) *LedgerWorker {
	return newLedgerWorker(consumer, ledger)
}

func newLedgerWorker(consumer messageSource, ledger LedgerRecorder) *LedgerWorker {
	w := &LedgerWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		ledger:       ledger,
		logger:       util.GetLogger(),
	}
	w.eventHandler.OnCheckoutEvent(w.record)
	return w
}

func (w *LedgerWorker) record(ctx context.Context, event *models.CheckoutEvent) error {
	written, err := w.ledger.RecordCheckoutEvent(ctx, event)
	if err != nil {
		w.logger.Error("Failed to record checkout event",
			zap.String("event_id", event.EventID),
			zap.Int64("order_id", event.OrderID),
			zap.Error(err))
		return err
	}

	if !written {
		w.logger.Debug("Duplicate checkout event skipped", zap.String("event_id", event.EventID))
		return nil
	}

	util.LedgerEventsRecordedTotal.WithLabelValues(event.EventType).Inc()
	return nil
}

// Start blocks consuming events until ctx is done
func (w *LedgerWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting ledger worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *LedgerWorker) Stop() error {
	w.logger.Info("Stopping ledger worker...")
	return w.consumer.Close()
}
