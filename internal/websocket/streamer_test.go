package websocket

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type wireMsg struct {
	Type  string          `json:"type"`
	Topic string          `json:"topic"`
	Data  json.RawMessage `json:"data"`
}

func dialStreamer(t *testing.T, s *Streamer) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readMsg(t *testing.T, conn *websocket.Conn) wireMsg {
	t.Helper()

	var msg wireMsg
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("failed to read message: %v", err)
	}
	return msg
}

func TestStreamer_SubscribeAndReceiveBatch(t *testing.T) {
	s := NewStreamer()
	conn := dialStreamer(t, s)

	if err := conn.WriteJSON(request{Action: "subscribe", Topics: []string{TopicBatches}}); err != nil {
		t.Fatalf("failed to subscribe: %v", err)
	}

	ack := readMsg(t, conn)
	if ack.Type != "ack" {
		t.Fatalf("expected ack, got %s", ack.Type)
	}

	s.PublishBatch(BatchEvent{BatchID: 7, Records: 42, ProcessedLines: 42})

	msg := readMsg(t, conn)
	if msg.Type != "event" || msg.Topic != TopicBatches {
		t.Fatalf("expected batches event, got type=%s topic=%s", msg.Type, msg.Topic)
	}

	var ev BatchEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		t.Fatalf("failed to decode event: %v", err)
	}
	if ev.BatchID != 7 || ev.Records != 42 {
		t.Errorf("unexpected event payload: %+v", ev)
	}
}

// A subscriber only receives the topics it asked for.
func TestStreamer_TopicIsolation(t *testing.T) {
	s := NewStreamer()
	conn := dialStreamer(t, s)

	if err := conn.WriteJSON(request{Action: "subscribe", Topics: []string{TopicBatches}}); err != nil {
		t.Fatalf("failed to subscribe: %v", err)
	}
	readMsg(t, conn) // ack

	s.PublishTail(TailEvent{Source: "skipped.log"})
	s.PublishBatch(BatchEvent{BatchID: 1})

	// The first delivered message must be the batch event; the tail event
	// was never queued for this subscriber
	msg := readMsg(t, conn)
	if msg.Topic != TopicBatches {
		t.Errorf("expected batches event first, got topic %s", msg.Topic)
	}
}

func TestStreamer_UnsubscribeStopsDelivery(t *testing.T) {
	s := NewStreamer()
	conn := dialStreamer(t, s)

	conn.WriteJSON(request{Action: "subscribe", Topics: []string{TopicBatches, TopicRecords}})
	readMsg(t, conn) // ack

	if got := s.SubscriberCount(TopicBatches); got != 1 {
		t.Fatalf("expected 1 batches subscriber, got %d", got)
	}

	conn.WriteJSON(request{Action: "unsubscribe", Topics: []string{TopicBatches}})
	ack := readMsg(t, conn)

	var data struct {
		Topics []string `json:"topics"`
	}
	if err := json.Unmarshal(ack.Data, &data); err != nil {
		t.Fatalf("failed to decode ack: %v", err)
	}
	if len(data.Topics) != 1 || data.Topics[0] != TopicRecords {
		t.Errorf("expected only records left, got %v", data.Topics)
	}
	if got := s.SubscriberCount(TopicBatches); got != 0 {
		t.Errorf("expected 0 batches subscribers, got %d", got)
	}
}

func TestStreamer_UnknownTopicRejected(t *testing.T) {
	s := NewStreamer()
	conn := dialStreamer(t, s)

	conn.WriteJSON(request{Action: "subscribe", Topics: []string{"nope"}})

	msg := readMsg(t, conn)
	if msg.Type != "error" {
		t.Errorf("expected error reply, got %s", msg.Type)
	}
	if s.SubscriberCount("nope") != 0 {
		t.Error("unknown topic must not be subscribed")
	}
}

func TestStreamer_UnknownActionRejected(t *testing.T) {
	s := NewStreamer()
	conn := dialStreamer(t, s)

	conn.WriteJSON(request{Action: "shout", Topics: []string{TopicBatches}})

	msg := readMsg(t, conn)
	if msg.Type != "error" {
		t.Errorf("expected error reply, got %s", msg.Type)
	}
}

func TestStreamer_PublishWithoutSubscribersIsSafe(t *testing.T) {
	s := NewStreamer()
	s.PublishBatch(BatchEvent{BatchID: 1})
	s.PublishTail(TailEvent{Source: "nobody.log"})
}
