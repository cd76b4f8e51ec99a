package pubsub

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/curaious/fabricqr/internal/config"
)

const (
	Channel = "material_changes"

	// OperationReload is sent to handlers after a reconnect, since
	// notifications may have been missed while disconnected.
	OperationReload = "RELOAD"
)

// MaterialChangeEvent is one row change on the materials table.
type MaterialChangeEvent struct {
	Operation string // INSERT, UPDATE, DELETE or RELOAD
	QRCodeID  string
}

type MaterialChangeHandler func(event MaterialChangeEvent)

// Feed delivers material change events from the backing store.
type Feed interface {
	Subscribe(handler MaterialChangeHandler)
	Start() error
	Stop()
}

// subscribers fans events out to the registered handlers.
type subscribers struct {
	handlers []MaterialChangeHandler
	mu       sync.RWMutex
}

// Subscribe adds a handler for material change events
func (s *subscribers) Subscribe(handler MaterialChangeHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, handler)
}

func (s *subscribers) notifyHandlers(event MaterialChangeEvent) {
	s.mu.RLock()
	handlers := make([]MaterialChangeHandler, len(s.handlers))
	copy(handlers, s.handlers)
	s.mu.RUnlock()

	for _, handler := range handlers {
		// Run handlers in goroutines to avoid blocking the notification loop
		go handler(event)
	}
}

// PubSub handles PostgreSQL LISTEN/NOTIFY for material changes
type PubSub struct {
	subscribers

	connStr  string
	listener *pq.Listener
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewPubSub(conf *config.Config) *PubSub {
	ctx, cancel := context.WithCancel(context.Background())

	return &PubSub{
		connStr: conf.PostgresDSN(),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start begins listening for notifications
func (ps *PubSub) Start() error {
	reportProblem := func(ev pq.ListenerEventType, err error) {
		if err != nil {
			slog.Error("PubSub listener error", slog.Any("error", err))
		}
		switch ev {
		case pq.ListenerEventConnectionAttemptFailed:
			slog.Warn("PubSub connection attempt failed, will retry")
		case pq.ListenerEventDisconnected:
			slog.Warn("PubSub disconnected, will attempt reconnect")
		case pq.ListenerEventReconnected:
			slog.Info("PubSub reconnected, triggering full reload")
			ps.notifyHandlers(MaterialChangeEvent{Operation: OperationReload})
		}
	}

	ps.listener = pq.NewListener(ps.connStr, 10*time.Second, time.Minute, reportProblem)

	if err := ps.listener.Listen(Channel); err != nil {
		return fmt.Errorf("failed to listen on %s channel: %w", Channel, err)
	}

	slog.Info("PubSub started listening for material changes")

	go ps.processNotifications()

	return nil
}

// Stop closes the listener
func (ps *PubSub) Stop() {
	ps.cancel()
	if ps.listener != nil {
		ps.listener.Close()
	}
	slog.Info("PubSub stopped")
}

func (ps *PubSub) processNotifications() {
	for {
		select {
		case <-ps.ctx.Done():
			return
		case notification := <-ps.listener.Notify:
			if notification == nil {
				// Connection lost, will be handled by reportProblem callback
				continue
			}

			event, ok := ParsePayload(notification.Extra)
			if !ok {
				slog.Warn("Invalid notification payload", slog.String("payload", notification.Extra))
				continue
			}

			slog.Debug("Received material change notification",
				slog.String("operation", event.Operation),
				slog.String("qr_code_id", event.QRCodeID))

			ps.notifyHandlers(event)
		}
	}
}

// ParsePayload decodes "OPERATION:qrCodeId" as sent by notify_material_change().
func ParsePayload(payload string) (MaterialChangeEvent, bool) {
	op, id, ok := strings.Cut(payload, ":")
	if !ok || op == "" || id == "" {
		return MaterialChangeEvent{}, false
	}
	return MaterialChangeEvent{Operation: op, QRCodeID: id}, true
}
