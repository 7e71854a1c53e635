// Package websocket streams ingestion progress to connected clients. The
// pipeline publishes one BatchEvent per processed batch and the log monitor
// publishes one TailEvent per tailed record; clients pick the topics they
// want with a subscribe request and get an ack back. Delivery is lossy by
// design: each subscriber has a bounded backlog, events that do not fit are
// dropped, and a subscriber that keeps overflowing is evicted so a stalled
// client can never hold up the producers.
package websocket

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/cosmindanescu/logsieve/internal/record"
	"github.com/gorilla/websocket"
)

// Topics a client can subscribe to
const (
	TopicBatches = "batches"
	TopicRecords = "records"
)

// BatchEvent reports one processed batch of the ingestion pipeline.
type BatchEvent struct {
	BatchID        uint64 `json:"batch_id"`
	Records        int    `json:"records"`
	ProcessedLines uint64 `json:"processed_lines"`
	FailedLines    uint64 `json:"failed_lines"`
	MemoryPressure bool   `json:"memory_pressure"`
}

// TailEvent carries one record parsed from a tailed log file.
type TailEvent struct {
	Source string         `json:"source"`
	Fields []record.Field `json:"fields"`
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// backlog is how many undelivered events a subscriber may accumulate
	backlog = 128
	// evictAfter is how many consecutive overflows get a subscriber
	// disconnected
	evictAfter = 256
)

// envelope is the server-to-client wire format
type envelope struct {
	Type  string      `json:"type"` // event, ack, error
	Topic string      `json:"topic,omitempty"`
	Data  interface{} `json:"data,omitempty"`
}

// request is the client-to-server wire format
type request struct {
	Action string   `json:"action"` // subscribe, unsubscribe
	Topics []string `json:"topics"`
}

// Streamer fans events out to websocket subscribers. It implements
// http.Handler for the /ws endpoint.
type Streamer struct {
	mu       sync.RWMutex
	subs     map[*subscriber]struct{}
	upgrader websocket.Upgrader
}

type subscriber struct {
	conn *websocket.Conn
	out  chan envelope

	mu       sync.Mutex
	topics   map[string]bool
	overflow int

	closeOnce sync.Once
}

// NewStreamer creates a streamer with no subscribers.
func NewStreamer() *Streamer {
	return &Streamer{
		subs: make(map[*subscriber]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// PublishBatch delivers a batch event to the batches topic.
func (s *Streamer) PublishBatch(ev BatchEvent) {
	s.publish(TopicBatches, ev)
}

// PublishTail delivers a tailed record to the records topic.
func (s *Streamer) PublishTail(ev TailEvent) {
	s.publish(TopicRecords, ev)
}

// SubscriberCount reports how many connected clients follow a topic.
func (s *Streamer) SubscriberCount(topic string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for sub := range s.subs {
		if sub.subscribed(topic) {
			count++
		}
	}
	return count
}

// ServeHTTP upgrades the request and serves the subscriber until it
// disconnects or is evicted.
func (s *Streamer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	sub := &subscriber{
		conn:   conn,
		out:    make(chan envelope, backlog),
		topics: make(map[string]bool),
	}

	s.mu.Lock()
	s.subs[sub] = struct{}{}
	total := len(s.subs)
	s.mu.Unlock()
	log.Printf("Stream subscriber connected (%d total)", total)

	go s.writeLoop(sub)
	go s.readLoop(sub)
}

// publish delivers an event to every subscriber of the topic. Sends happen
// under the read lock so no send can race the channel close in drop.
func (s *Streamer) publish(topic string, data interface{}) {
	env := envelope{Type: "event", Topic: topic, Data: data}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for sub := range s.subs {
		if !sub.subscribed(topic) {
			continue
		}

		select {
		case sub.out <- env:
			sub.delivered()
		default:
			if sub.overflowed() == evictAfter {
				log.Printf("Evicting slow stream subscriber on topic %s", topic)
				sub.close()
			}
		}
	}
}

// drop detaches a subscriber and releases its backlog. Called exactly once,
// from the subscriber's own read loop.
func (s *Streamer) drop(sub *subscriber) {
	s.mu.Lock()
	if _, ok := s.subs[sub]; ok {
		delete(s.subs, sub)
		close(sub.out)
	}
	total := len(s.subs)
	s.mu.Unlock()

	sub.close()
	log.Printf("Stream subscriber disconnected (%d total)", total)
}

// readLoop handles subscribe/unsubscribe requests and keeps the read
// deadline fresh through pongs. It owns the subscriber's teardown.
func (s *Streamer) readLoop(sub *subscriber) {
	defer s.drop(sub)

	sub.conn.SetReadLimit(512)
	sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	sub.conn.SetPongHandler(func(string) error {
		sub.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var req request
		if err := sub.conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("Stream read error: %v", err)
			}
			return
		}
		s.handleRequest(sub, req)
	}
}

// handleRequest applies a subscription change and acks with the resulting
// topic set. Unknown actions and topics are reported, not fatal.
func (s *Streamer) handleRequest(sub *subscriber, req request) {
	switch req.Action {
	case "subscribe", "unsubscribe":
	default:
		sub.send(envelope{Type: "error", Data: "unknown action: " + req.Action})
		return
	}

	for _, topic := range req.Topics {
		if topic != TopicBatches && topic != TopicRecords {
			sub.send(envelope{Type: "error", Data: "unknown topic: " + topic})
			return
		}
	}

	current := sub.apply(req.Action == "subscribe", req.Topics)
	sub.send(envelope{Type: "ack", Data: map[string]interface{}{
		"action": req.Action,
		"topics": current,
	}})
}

// writeLoop is the only writer on the connection: it drains the backlog and
// keeps the peer alive with pings.
func (s *Streamer) writeLoop(sub *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		sub.close()
	}()

	for {
		select {
		case env, ok := <-sub.out:
			sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				sub.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := sub.conn.WriteJSON(env); err != nil {
				return
			}

		case <-ticker.C:
			sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (sub *subscriber) subscribed(topic string) bool {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return sub.topics[topic]
}

// apply adds or removes topics and returns the subscription set after the
// change.
func (sub *subscriber) apply(add bool, topics []string) []string {
	sub.mu.Lock()
	defer sub.mu.Unlock()

	for _, topic := range topics {
		if add {
			sub.topics[topic] = true
		} else {
			delete(sub.topics, topic)
		}
	}

	current := make([]string, 0, len(sub.topics))
	for topic := range sub.topics {
		current = append(current, topic)
	}
	return current
}

// send enqueues a control reply, dropping it if the backlog is full.
func (sub *subscriber) send(env envelope) {
	select {
	case sub.out <- env:
	default:
	}
}

func (sub *subscriber) delivered() {
	sub.mu.Lock()
	sub.overflow = 0
	sub.mu.Unlock()
}

func (sub *subscriber) overflowed() int {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	sub.overflow++
	return sub.overflow
}

// close shuts the connection down; both loops exit on their next
// read/write.
func (sub *subscriber) close() {
	sub.closeOnce.Do(func() {
		sub.conn.Close()
	})
}
