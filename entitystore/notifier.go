package entitystore

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Kind identifies the entity kind a change event relates to.
type Kind string

const (
	KindTransaction Kind = "transaction"
	KindMessage     Kind = "message"
	KindUpdate      Kind = "update"
	KindSignature   Kind = "signature"
	KindWallet      Kind = "wallet"

	// KindAll subscribes to changes of every kind.
	KindAll Kind = "*"
)

const subscriberQueueSize = 16

// ChangeEvent is emitted after an entity is inserted.
type ChangeEvent struct {
	Kind      Kind
	Subdigest string
	Timestamp time.Time
}

// SubscriberID identifies one subscription for later removal.
type SubscriberID int

// Notifier broadcasts typed change events to subscribers. It replaces
// the ambient "something changed, re-read everything" signal of older
// designs with an explicit per-kind subscription interface.
type Notifier struct {
	mu          sync.RWMutex
	subscribers map[Kind]map[SubscriberID]chan ChangeEvent
	lastSubID   SubscriberID
	logger      zerolog.Logger
}

// NewNotifier creates an empty notifier.
func NewNotifier(logger zerolog.Logger) *Notifier {
	return &Notifier{
		subscribers: make(map[Kind]map[SubscriberID]chan ChangeEvent),
		logger:      logger.With().Str("component", "notifier").Logger(),
	}
}

// Subscribe registers for change events of one kind (or KindAll).
// The returned channel is buffered; events are dropped for subscribers
// that fall more than the buffer size behind, so a stalled observer can
// never block a store mutation.
func (n *Notifier) Subscribe(kind Kind) (SubscriberID, <-chan ChangeEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.lastSubID++
	id := n.lastSubID
	ch := make(chan ChangeEvent, subscriberQueueSize)
	if _, ok := n.subscribers[kind]; !ok {
		n.subscribers[kind] = make(map[SubscriberID]chan ChangeEvent)
	}
	n.subscribers[kind][id] = ch
	return id, ch
}

// Unsubscribe stops delivery for a prior subscription and closes its channel.
func (n *Notifier) Unsubscribe(kind Kind, id SubscriberID) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if subs, ok := n.subscribers[kind]; ok {
		if ch, ok2 := subs[id]; ok2 {
			delete(subs, id)
			if len(subs) == 0 {
				delete(n.subscribers, kind)
			}
			close(ch)
		}
	}
}

// Publish delivers an event to subscribers of its kind and of KindAll.
func (n *Notifier) Publish(kind Kind, subdigest string) {
	evt := ChangeEvent{
		Kind:      kind,
		Subdigest: subdigest,
		Timestamp: time.Now(),
	}

	n.mu.RLock()
	defer n.mu.RUnlock()

	for _, target := range []Kind{kind, KindAll} {
		for id, ch := range n.subscribers[target] {
			select {
			case ch <- evt:
			default:
				n.logger.Debug().
					Str("kind", string(kind)).
					Int("subscriber", int(id)).
					Msg("dropping change event for slow subscriber")
			}
		}
	}
}
