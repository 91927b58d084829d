package registry

import (
	"sync"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/somnia-names/somns/pkg/core/interop"
	"github.com/somnia-names/somns/pkg/core/state"
	"github.com/somnia-names/somns/pkg/util"
)

// EventType is the type of registry change.
type EventType string

// Event types, they're named after the calls producing them.
const (
	EventRegister    EventType = "register"
	EventRenew       EventType = "renew"
	EventTransfer    EventType = "transfer"
	EventSetResolver EventType = "setResolver"
	EventSetMetadata EventType = "setMetadata"
	EventSetPrice    EventType = "setPrice"
	EventWithdraw    EventType = "withdraw"
)

// Event is a notification about a successful registry call. Record fields
// contain the state after the call. For EventWithdraw Owner is the
// recipient. Amount is the paid fee, the new price or the withdrawn amount
// depending on the type.
type Event struct {
	ID        uuid.UUID
	Type      EventType
	Time      uint64
	Caller    util.Uint160
	Name      string
	Owner     util.Uint160
	Resolver  util.Uint160
	ExpiresAt uint64
	Metadata  string
	Amount    *uint256.Int
}

// emit adds an event to the current call, it's only sent if the call
// succeeds. It must be called with the lock held.
func (r *Registry) emit(typ EventType, ic *interop.Context, rec *state.NameRecord, amount *uint256.Int) {
	ev := Event{
		ID:     uuid.New(),
		Type:   typ,
		Caller: ic.Caller,
	}
	if rec != nil {
		ev.Name = rec.Name
		ev.Owner = rec.Owner
		ev.Resolver = rec.Resolver
		ev.ExpiresAt = rec.ExpiresAt
		ev.Metadata = rec.Metadata
	}
	if amount != nil {
		ev.Amount = new(uint256.Int).Set(amount)
	}
	r.pending = append(r.pending, ev)
}

// SubscribeForEvents adds the given channel to the list of event receivers.
// The channel is never closed by the registry, receivers must read from it
// until UnsubscribeFromEvents returns.
func (r *Registry) SubscribeForEvents(ch chan<- Event) {
	r.events.subscribe(ch)
}

// UnsubscribeFromEvents removes the given channel from the list of event
// receivers. Events can still be sent to it until this call returns.
func (r *Registry) UnsubscribeFromEvents(ch chan<- Event) {
	r.events.unsubscribe(ch)
}

// eventDispatcher delivers events to subscribers from a separate routine.
// Its queue is not bounded, so sending never blocks the registry, a
// receiver that doesn't read only delays its own deliveries.
type eventDispatcher struct {
	wake chan struct{}
	done chan struct{}
	exit chan struct{}

	lock  sync.Mutex
	queue []Event
	subs  map[chan<- Event]struct{}
	// sending is held while an event is being delivered.
	sending sync.Mutex
}

func newEventDispatcher() *eventDispatcher {
	d := &eventDispatcher{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
		exit: make(chan struct{}),
		subs: make(map[chan<- Event]struct{}),
	}
	go d.run()
	return d
}

func (d *eventDispatcher) run() {
	defer close(d.done)
	for {
		select {
		case <-d.exit:
			return
		case <-d.wake:
		}
		for {
			d.lock.Lock()
			if len(d.queue) == 0 {
				d.lock.Unlock()
				break
			}
			ev := d.queue[0]
			d.queue[0] = Event{}
			d.queue = d.queue[1:]
			d.sending.Lock()
			subs := make([]chan<- Event, 0, len(d.subs))
			for ch := range d.subs {
				subs = append(subs, ch)
			}
			d.lock.Unlock()
			for _, ch := range subs {
				select {
				case ch <- ev:
				case <-d.exit:
					d.sending.Unlock()
					return
				}
			}
			d.sending.Unlock()
		}
	}
}

// send queues the event for delivery, it never blocks.
func (d *eventDispatcher) send(ev Event) {
	d.lock.Lock()
	d.queue = append(d.queue, ev)
	d.lock.Unlock()
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *eventDispatcher) subscribe(ch chan<- Event) {
	d.lock.Lock()
	d.subs[ch] = struct{}{}
	d.lock.Unlock()
}

func (d *eventDispatcher) unsubscribe(ch chan<- Event) {
	d.lock.Lock()
	delete(d.subs, ch)
	d.lock.Unlock()
	// Wait for the current delivery which may still use ch.
	d.sending.Lock()
	d.sending.Unlock() //nolint:staticcheck // Used as a barrier.
}

func (d *eventDispatcher) close() {
	select {
	case <-d.exit:
	default:
		close(d.exit)
	}
	<-d.done
}
