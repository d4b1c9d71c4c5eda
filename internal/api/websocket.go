package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"

	"github.com/nerrad567/duuxlink/internal/device"
	"github.com/nerrad567/duuxlink/internal/dispatch"
	"github.com/nerrad567/duuxlink/internal/infrastructure/logging"
	"github.com/nerrad567/duuxlink/internal/integration"
	"github.com/nerrad567/duuxlink/internal/payload"
)

// Event channels a client can subscribe to.
const (
	ChannelStateChanged  = "device.state_changed"
	ChannelDeviceAdded   = "device.added"
	ChannelDeviceRemoved = "device.removed"
)

var knownChannels = map[string]bool{
	ChannelStateChanged:  true,
	ChannelDeviceAdded:   true,
	ChannelDeviceRemoved: true,
}

// Request operations.
const (
	opSubscribe   = "subscribe"
	opUnsubscribe = "unsubscribe"
)

// Frame kinds sent to clients.
const (
	frameEvent = "event"
	frameAck   = "ack"
	frameError = "error"
)

const (
	wsQueueSize      = 256
	wsPingInterval   = 30 * time.Second
	wsPongWait       = 10 * time.Second
	wsWriteWait      = 10 * time.Second
	wsMaxMessageSize = 4096
)

// wsRequest is a client frame. Devices narrows events to the given device
// ids; an empty filter means every device.
type wsRequest struct {
	Op       string   `json:"op"`
	ID       string   `json:"id,omitempty"`
	Channels []string `json:"channels,omitempty"`
	Devices  []string `json:"devices,omitempty"`
}

// wsFrame is a server frame: an event, or the ack or error for a request.
type wsFrame struct {
	Kind     string   `json:"kind"`
	ID       string   `json:"id,omitempty"`
	Channel  string   `json:"channel,omitempty"`
	DeviceID string   `json:"device_id,omitempty"`
	Time     string   `json:"time,omitempty"`
	Data     any      `json:"data,omitempty"`
	Channels []string `json:"channels,omitempty"`
	Devices  []string `json:"devices,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// StateChangedEvent is the data of a ChannelStateChanged event.
type StateChangedEvent struct {
	DeviceID string        `json:"device_id"`
	Entities []EntityState `json:"entities"`
}

// EntityState is one entity's state inside a StateChangedEvent.
type EntityState struct {
	EntityID string         `json:"entity_id"`
	Key      string         `json:"key"`
	Platform string         `json:"platform"`
	State    map[string]any `json:"state"`
}

// DeviceAddedEvent is the data of a ChannelDeviceAdded event.
type DeviceAddedEvent struct {
	DeviceID string `json:"device_id"`
	Model    string `json:"model"`
	Entities int    `json:"entities"`
}

// Hub fans device events out to WebSocket subscribers.
//
// It implements integration.Hook: each set-up device gets a relay listener,
// registered after the entities, that publishes the entity states once the
// entities have applied a frame.
type Hub struct {
	logger *logging.Logger

	mu          sync.RWMutex
	subscribers map[*subscriber]struct{}

	relayMu sync.Mutex
	relays  map[string]func()
}

// NewHub creates an empty hub.
func NewHub(logger *logging.Logger) *Hub {
	return &Hub{
		logger:      logger,
		subscribers: make(map[*subscriber]struct{}),
		relays:      make(map[string]func()),
	}
}

// Run blocks until ctx is cancelled, then disconnects every subscriber.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	subs := lo.Keys(h.subscribers)
	clear(h.subscribers)
	h.mu.Unlock()

	for _, s := range subs {
		s.stop()
	}
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

func (h *Hub) attach(s *subscriber) {
	h.mu.Lock()
	h.subscribers[s] = struct{}{}
	n := len(h.subscribers)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", n)
}

func (h *Hub) detach(s *subscriber) {
	h.mu.Lock()
	_, ok := h.subscribers[s]
	delete(h.subscribers, s)
	n := len(h.subscribers)
	h.mu.Unlock()

	s.stop()
	if ok {
		h.logger.Debug("websocket client disconnected", "clients", n)
	}
}

// publish encodes one event and queues it for every subscriber whose filter
// accepts channel and deviceID. A subscriber with a full queue is dropped.
func (h *Hub) publish(channel, deviceID string, data any) {
	frame, err := json.Marshal(wsFrame{
		Kind:     frameEvent,
		Channel:  channel,
		DeviceID: deviceID,
		Time:     time.Now().UTC().Format(time.RFC3339Nano),
		Data:     data,
	})
	if err != nil {
		h.logger.Error("encoding websocket event failed", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	subs := lo.Keys(h.subscribers)
	h.mu.RUnlock()

	delivered := 0
	for _, s := range subs {
		if !s.accepts(channel, deviceID) {
			continue
		}
		if !s.enqueue(frame) {
			h.logger.Warn("websocket client too slow, disconnecting", "channel", channel)
			h.detach(s)
			continue
		}
		delivered++
	}
	if delivered > 0 {
		h.logger.Debug("websocket event published", "channel", channel, "device_id", deviceID, "recipients", delivered)
	}
}

// DeviceSetUp attaches the state relay to the device and announces it on
// ChannelDeviceAdded. A relay left over from an earlier setup is replaced.
func (h *Hub) DeviceSetUp(d *integration.Device) {
	id := d.ID()
	relay := dispatch.ListenerFunc(func(payload.Snapshot) {
		h.publish(ChannelStateChanged, id, StateChangedEvent{
			DeviceID: id,
			Entities: entityStates(d),
		})
	})

	dispatcher := d.Session.Dispatcher()
	dispatcher.Register(&relay)

	h.relayMu.Lock()
	previous := h.relays[id]
	h.relays[id] = func() { dispatcher.Unregister(&relay) }
	h.relayMu.Unlock()
	if previous != nil {
		previous()
	}

	h.publish(ChannelDeviceAdded, id, DeviceAddedEvent{
		DeviceID: id,
		Model:    d.Profile.Model,
		Entities: len(d.Entities),
	})
}

// DeviceUnloaded detaches the device's relay and announces the removal.
func (h *Hub) DeviceUnloaded(deviceID string) {
	h.relayMu.Lock()
	release := h.relays[deviceID]
	delete(h.relays, deviceID)
	h.relayMu.Unlock()

	if release != nil {
		release()
	}
	h.publish(ChannelDeviceRemoved, deviceID, map[string]string{"device_id": deviceID})
}

// RelayCount returns the number of devices with a state relay.
func (h *Hub) RelayCount() int {
	h.relayMu.Lock()
	defer h.relayMu.Unlock()
	return len(h.relays)
}

func entityStates(d *integration.Device) []EntityState {
	states := make([]EntityState, 0, len(d.Entities))
	for _, e := range d.Entities {
		m := e.Meta()
		states = append(states, EntityState{
			EntityID: m.EntityID,
			Key:      m.Key,
			Platform: string(m.Platform),
			State:    e.State(),
		})
	}
	return states
}

// subscriber is one WebSocket connection and its event filter. Only the
// write loop writes to conn.
type subscriber struct {
	hub   *Hub
	conn  *websocket.Conn
	queue chan []byte

	quit     chan struct{}
	quitOnce sync.Once

	mu       sync.Mutex
	channels map[string]bool
	devices  map[string]bool
}

func newSubscriber(h *Hub, conn *websocket.Conn, queueSize int) *subscriber {
	return &subscriber{
		hub:      h,
		conn:     conn,
		queue:    make(chan []byte, queueSize),
		quit:     make(chan struct{}),
		channels: make(map[string]bool),
		devices:  make(map[string]bool),
	}
}

// stop ends the write loop, which closes the connection. Safe to call more
// than once.
func (s *subscriber) stop() {
	s.quitOnce.Do(func() { close(s.quit) })
}

// enqueue queues a frame without blocking. It reports false when the queue
// is full; frames for a stopped subscriber are discarded.
func (s *subscriber) enqueue(frame []byte) bool {
	select {
	case <-s.quit:
		return true
	default:
	}
	select {
	case s.queue <- frame:
		return true
	default:
		return false
	}
}

func (s *subscriber) accepts(channel, deviceID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.channels[channel] {
		return false
	}
	return len(s.devices) == 0 || deviceID == "" || s.devices[deviceID]
}

// apply updates the filter for a request and returns the resulting channel
// and device lists.
func (s *subscriber) apply(req wsRequest) ([]string, []string, error) {
	for _, ch := range req.Channels {
		if !knownChannels[ch] {
			return nil, nil, fmt.Errorf("unknown channel %q", ch)
		}
	}
	devices := lo.Map(req.Devices, func(id string, _ int) string { return device.NormalizeID(id) })

	s.mu.Lock()
	defer s.mu.Unlock()

	switch req.Op {
	case opSubscribe:
		if len(req.Channels) == 0 {
			return nil, nil, fmt.Errorf("subscribe needs at least one channel")
		}
		for _, ch := range req.Channels {
			s.channels[ch] = true
		}
		for _, id := range devices {
			s.devices[id] = true
		}
	case opUnsubscribe:
		for _, ch := range req.Channels {
			delete(s.channels, ch)
		}
		for _, id := range devices {
			delete(s.devices, id)
		}
	default:
		return nil, nil, fmt.Errorf("unknown op %q", req.Op)
	}

	channels, ids := lo.Keys(s.channels), lo.Keys(s.devices)
	slices.Sort(channels)
	slices.Sort(ids)
	return channels, ids, nil
}

func (s *subscriber) handle(raw []byte) {
	var req wsRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		s.reply(wsFrame{Kind: frameError, Error: "invalid JSON"})
		return
	}

	channels, devices, err := s.apply(req)
	if err != nil {
		s.reply(wsFrame{Kind: frameError, ID: req.ID, Error: err.Error()})
		return
	}
	s.hub.logger.Debug("websocket filter updated", "op", req.Op, "channels", channels, "devices", devices)
	s.reply(wsFrame{Kind: frameAck, ID: req.ID, Channels: channels, Devices: devices})
}

func (s *subscriber) reply(f wsFrame) {
	data, err := json.Marshal(f)
	if err != nil {
		return
	}
	if !s.enqueue(data) {
		s.hub.detach(s)
	}
}

func (s *subscriber) extendReadDeadline() error {
	return s.conn.SetReadDeadline(time.Now().Add(wsPingInterval + wsPongWait))
}

func (s *subscriber) readLoop() {
	defer s.hub.detach(s)

	s.conn.SetReadLimit(wsMaxMessageSize)
	//nolint:errcheck // a failed deadline surfaces as a read error
	s.extendReadDeadline()
	s.conn.SetPongHandler(func(string) error { return s.extendReadDeadline() })

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.hub.logger.Warn("websocket read failed", "error", err)
			}
			return
		}
		s.handle(raw)
	}
}

func (s *subscriber) writeLoop() {
	ping := time.NewTicker(wsPingInterval)
	defer func() {
		ping.Stop()
		s.conn.Close()
	}()

	write := func(messageType int, data []byte) bool {
		//nolint:errcheck // a failed deadline surfaces as a write error
		s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return s.conn.WriteMessage(messageType, data) == nil
	}

	for {
		select {
		case <-s.quit:
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "")
			//nolint:errcheck // connection is closed right after
			s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
			return
		case frame := <-s.queue:
			if !write(websocket.TextMessage, frame) {
				s.hub.detach(s)
				return
			}
		case <-ping.C:
			if !write(websocket.PingMessage, nil) {
				s.hub.detach(s)
				return
			}
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// handleWebSocket upgrades the request and serves the subscriber until the
// connection drops or the hub stops. The socket is unauthenticated; the API
// listens on loopback by default.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	sub := newSubscriber(s.hub, conn, wsQueueSize)
	s.hub.attach(sub)
	go sub.writeLoop()
	go sub.readLoop()
}
