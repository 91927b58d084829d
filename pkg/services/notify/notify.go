/*
Package notify implements a websocket service streaming registry events to
connected clients.
*/
package notify

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	json "github.com/nspcc-dev/go-ordered-json"
	"github.com/somnia-names/somns/pkg/config"
	"github.com/somnia-names/somns/pkg/encoding/address"
	"github.com/somnia-names/somns/pkg/encoding/fixedn"
	"github.com/somnia-names/somns/pkg/registry"
	"github.com/somnia-names/somns/pkg/services/metrics"
	"go.uber.org/zap"
)

const (
	// Disconnection timeout.
	wsPongLimit = 60 * time.Second

	// Ping period for connection liveness check.
	wsPingPeriod = wsPongLimit / 2

	// Write deadline.
	wsWriteLimit = wsPingPeriod / 2

	// Maximum number of websocket clients.
	maxClients = 64

	// Size of per-client event buffer, clients not keeping up with it are
	// disconnected.
	clientBufSize = 128

	// Path the websocket endpoint is served at.
	wsPath = "/ws"
)

// Events is the part of the registry providing events.
type Events interface {
	SubscribeForEvents(ch chan<- registry.Event)
	UnsubscribeFromEvents(ch chan<- registry.Event)
}

// Event is the JSON representation of a registry event.
type Event struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Time      uint64 `json:"time"`
	Caller    string `json:"caller"`
	Name      string `json:"name,omitempty"`
	Owner     string `json:"owner,omitempty"`
	Resolver  string `json:"resolver,omitempty"`
	ExpiresAt uint64 `json:"expiresat,omitempty"`
	Metadata  string `json:"metadata,omitempty"`
	Amount    string `json:"amount,omitempty"`
}

// Subscription is the first message sent to every client.
type Subscription struct {
	ID   string `json:"subscription"`
	Name string `json:"name,omitempty"`
}

type client struct {
	id       uuid.UUID
	name     string
	writer   chan *websocket.PreparedMessage
	overflow bool
}

// Service is a websocket event streaming service.
type Service struct {
	http     *metrics.Service
	source   Events
	log      *zap.Logger
	upgrader websocket.Upgrader

	events   chan registry.Event
	shutdown chan struct{}
	done     chan struct{}

	lock    sync.RWMutex
	clients map[*client]struct{}
	// conns tracks client connection routines.
	conns sync.WaitGroup
}

// New creates a new notification service for the given event source.
func New(cfg config.BasicService, source Events, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		source:   source,
		log:      log.With(zap.String("service", "Notifications")),
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		events:   make(chan registry.Event),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		clients:  make(map[*client]struct{}),
	}
	handler := http.NewServeMux()
	handler.HandleFunc(wsPath, s.handleWs)
	s.http = metrics.NewHandlerService("Notifications", cfg, handler, log)
	return s
}

// Start subscribes to registry events and starts serving clients.
func (s *Service) Start() error {
	s.source.SubscribeForEvents(s.events)
	go s.handleEvents()
	err := s.http.Start()
	if err != nil {
		s.stopEvents()
	}
	return err
}

// Addresses returns the addresses the service is bound to.
func (s *Service) Addresses() []string {
	return s.http.Addresses()
}

// ShutDown stops the service and disconnects all clients.
func (s *Service) ShutDown() {
	s.http.ShutDown()
	s.stopEvents()
	s.conns.Wait()
}

func (s *Service) stopEvents() {
	select {
	case <-s.shutdown:
		return
	default:
	}
	close(s.shutdown)
	<-s.done
	// Drain events that may be sent until unsubscription completes.
	drained := make(chan struct{})
	go func() {
		for {
			select {
			case <-s.events:
			case <-drained:
				return
			}
		}
	}()
	s.source.UnsubscribeFromEvents(s.events)
	close(drained)
}

func (s *Service) handleEvents() {
	defer close(s.done)
	for {
		select {
		case <-s.shutdown:
			return
		case ev := <-s.events:
			msg, err := prepareEvent(ev)
			if err != nil {
				s.log.Error("failed to prepare event", zap.Error(err))
				continue
			}
			s.lock.RLock()
			for c := range s.clients {
				if c.overflow || (c.name != "" && c.name != ev.Name) {
					continue
				}
				select {
				case c.writer <- msg:
				default:
					c.overflow = true
					close(c.writer)
					s.log.Info("client is too slow, disconnecting", zap.Stringer("subscription", c.id))
				}
			}
			s.lock.RUnlock()
		}
	}
}

// EventToJSON converts an event into its JSON representation.
func EventToJSON(ev registry.Event) Event {
	res := Event{
		ID:        ev.ID.String(),
		Type:      string(ev.Type),
		Time:      ev.Time,
		Caller:    address.Uint160ToString(ev.Caller),
		Name:      ev.Name,
		ExpiresAt: ev.ExpiresAt,
		Metadata:  ev.Metadata,
	}
	if !ev.Owner.IsZero() {
		res.Owner = address.Uint160ToString(ev.Owner)
	}
	if !ev.Resolver.IsZero() {
		res.Resolver = address.Uint160ToString(ev.Resolver)
	}
	if ev.Amount != nil {
		res.Amount = fixedn.AmountToString(ev.Amount)
	}
	return res
}

func prepareEvent(ev registry.Event) (*websocket.PreparedMessage, error) {
	b, err := json.Marshal(EventToJSON(ev))
	if err != nil {
		return nil, err
	}
	return websocket.NewPreparedMessage(websocket.TextMessage, b)
}

func (s *Service) handleWs(w http.ResponseWriter, r *http.Request) {
	s.conns.Add(1)
	defer s.conns.Done()
	s.lock.RLock()
	numOfClients := len(s.clients)
	s.lock.RUnlock()
	if numOfClients >= maxClients {
		http.Error(w, "websocket users limit reached", http.StatusServiceUnavailable)
		return
	}
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Info("websocket connection upgrade failed", zap.Error(err))
		return
	}
	c := &client{
		id:     uuid.New(),
		name:   r.URL.Query().Get("name"),
		writer: make(chan *websocket.PreparedMessage, clientBufSize),
	}
	b, err := json.Marshal(Subscription{ID: c.id.String(), Name: c.name})
	if err == nil {
		_ = ws.SetWriteDeadline(time.Now().Add(wsWriteLimit))
		err = ws.WriteMessage(websocket.TextMessage, b)
	}
	if err != nil {
		ws.Close()
		return
	}
	s.lock.Lock()
	s.clients[c] = struct{}{}
	s.lock.Unlock()
	s.log.Debug("client connected", zap.Stringer("subscription", c.id), zap.String("name", c.name))

	s.conns.Add(1)
	go s.handleWsWrites(ws, c)
	s.handleWsReads(ws, c)
}

func (s *Service) handleWsWrites(ws *websocket.Conn, c *client) {
	pingTicker := time.NewTicker(wsPingPeriod)
eventloop:
	for {
		select {
		case <-s.shutdown:
			break eventloop
		case msg, ok := <-c.writer:
			if !ok {
				break eventloop
			}
			if err := ws.SetWriteDeadline(time.Now().Add(wsWriteLimit)); err != nil {
				break eventloop
			}
			if err := ws.WritePreparedMessage(msg); err != nil {
				break eventloop
			}
		case <-pingTicker.C:
			if err := ws.SetWriteDeadline(time.Now().Add(wsWriteLimit)); err != nil {
				break eventloop
			}
			if err := ws.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				break eventloop
			}
		}
	}
	ws.Close()
	pingTicker.Stop()
	s.conns.Done()
}

// handleWsReads only handles control messages, clients are not expected to
// send anything.
func (s *Service) handleWsReads(ws *websocket.Conn, c *client) {
	ws.SetReadLimit(1024)
	err := ws.SetReadDeadline(time.Now().Add(wsPongLimit))
	ws.SetPongHandler(func(string) error { return ws.SetReadDeadline(time.Now().Add(wsPongLimit)) })
	for err == nil {
		_, _, err = ws.ReadMessage()
	}

	s.lock.Lock()
	delete(s.clients, c)
	if !c.overflow {
		c.overflow = true
		close(c.writer)
	}
	s.lock.Unlock()
	ws.Close()
	s.log.Debug("client disconnected", zap.Stringer("subscription", c.id))
}
