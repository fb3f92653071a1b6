package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

const (
	EventCartItemAdded        = "cart.item_added"
	EventCartItemRemoved      = "cart.item_removed"
	EventCartMerged           = "cart.merged"
	EventOrderCreated         = "order.created"
	EventOrderSessionOpened   = "order.session_opened"
	EventOrderPaid            = "order.paid"
	EventOrderDelivered       = "order.delivered"
	EventOrderPaymentMismatch = "order.payment_mismatch"
	EventProductCreated       = "product.created"
	EventProductUpdated       = "product.updated"
	EventProductDeleted       = "product.deleted"
	defaultSinkTimeout        = 5 * time.Second
	defaultFlushTimeout       = 5 * time.Second
	auditActorName            = "audit-actor"
)

// Event is a domain fact worth keeping in the audit trail.
type Event struct {
	Type     string                 `json:"type"`
	EntityID string                 `json:"entity_id"`
	OwnerID  string                 `json:"owner_id,omitempty"`
	Data     map[string]interface{} `json:"data,omitempty"`
	At       time.Time              `json:"at"`
}

type AuditSink interface {
	RecordEvent(ctx context.Context, e Event) error
}

// Notifier hands events to a single audit actor, so events are recorded in publish order
// without holding up the request that produced them.
type Notifier struct {
	system *actor.ActorSystem
	pid    *actor.PID
	logger *zap.Logger
}

func NewNotifier(sink AuditSink, logger *zap.Logger) (*Notifier, error) {
	system := actor.NewActorSystem()

	props := actor.PropsFromProducer(func() actor.Actor {
		return &AuditActor{sink: sink, logger: logger.Named(auditActorName)}
	})
	pid, err := system.Root.SpawnNamed(props, auditActorName)
	if err != nil {
		return nil, fmt.Errorf("failed to spawn audit actor: %w", err)
	}

	return &Notifier{system: system, pid: pid, logger: logger}, nil
}

// Publish is safe on a nil Notifier.
func (n *Notifier) Publish(e Event) {
	if n == nil {
		return
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	n.system.Root.Send(n.pid, &e)
}

// Flush waits until every event published before the call has been handled.
func (n *Notifier) Flush(timeout time.Duration) error {
	if n == nil {
		return nil
	}
	if timeout <= 0 {
		timeout = defaultFlushTimeout
	}
	_, err := n.system.Root.RequestFuture(n.pid, &flushRequest{}, timeout).Result()
	return err
}

func (n *Notifier) Close() error {
	if n == nil {
		return nil
	}
	return n.system.Root.PoisonFuture(n.pid).Wait()
}

type flushRequest struct{}

type flushed struct{}

type AuditActor struct {
	sink   AuditSink
	logger *zap.Logger
}

func (a *AuditActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *Event:
		a.logger.Info("Domain event",
			zap.String("type", msg.Type),
			zap.String("entity_id", msg.EntityID),
			zap.String("owner_id", msg.OwnerID))

		if a.sink == nil {
			return
		}
		sinkCtx, cancel := context.WithTimeout(context.Background(), defaultSinkTimeout)
		defer cancel()
		if err := a.sink.RecordEvent(sinkCtx, *msg); err != nil {
			a.logger.Warn("Failed to record audit event",
				zap.String("type", msg.Type),
				zap.String("entity_id", msg.EntityID),
				zap.Error(err))
		}

	case *flushRequest:
		ctx.Respond(&flushed{})

	case *actor.Started:
		a.logger.Info("Audit actor started")

	case *actor.Stopping:
		a.logger.Info("Audit actor stopping")
	}
}
