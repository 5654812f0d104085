package queue_test

import (
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/yeisme/depovault/pkg/queue"
)

func TestDeterministicID(t *testing.T) {
	a := queue.DeterministicID("10.5072/depovault.2", "0")
	b := queue.DeterministicID("10.5072/depovault.2", "0")
	c := queue.DeterministicID("10.5072/depovault.2", "1")

	if a != b {
		t.Errorf("same keys must yield the same id: %s vs %s", a, b)
	}

	if a == c {
		t.Error("different revision must yield a different id")
	}

	if len(a) != 16 {
		t.Errorf("id length = %d, want 16 hex chars", len(a))
	}
}

func TestNewWatermillMessageEnvelope(t *testing.T) {
	payload := queue.DOIRegisterRequestedPayload{
		Record: queue.RecordRef{
			Recid:        1002,
			ConceptRecid: 1001,
			RecordUUID:   "3f6e0000-0000-0000-0000-000000000000",
			Revision:     1,
		},
		DOI: "10.5072/depovault.1002",
	}

	msg, err := queue.NewWatermillMessage(queue.TopicDOIRegisterRequested, payload,
		queue.WithProducer("depovault"), queue.WithTraceID("trace-1"))
	if err != nil {
		t.Fatalf("new message: %v", err)
	}

	if msg.UUID == "" {
		t.Error("message must get a generated id")
	}

	if got := msg.Metadata.Get("topic"); got != queue.TopicDOIRegisterRequested {
		t.Errorf("metadata topic = %s", got)
	}

	if got := msg.Metadata.Get("producer"); got != "depovault" {
		t.Errorf("metadata producer = %s", got)
	}

	if got := msg.Metadata.Get("trace_id"); got != "trace-1" {
		t.Errorf("metadata trace_id = %s", got)
	}

	if got := msg.Metadata.Get("version"); got != queue.PayloadVersionV1 {
		t.Errorf("metadata version = %s", got)
	}

	env, err := queue.Decode[queue.DOIRegisterRequestedPayload](msg.Payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if env.Header.Topic != queue.TopicDOIRegisterRequested {
		t.Errorf("header topic = %s", env.Header.Topic)
	}

	if env.Header.Producer != "depovault" || env.Header.TraceID != "trace-1" {
		t.Errorf("header = %+v", env.Header)
	}

	if env.Header.Version != queue.PayloadVersionV1 {
		t.Errorf("header version = %s", env.Header.Version)
	}

	if time.Since(env.Header.OccurredAt) > time.Minute {
		t.Errorf("occurred_at not recent: %s", env.Header.OccurredAt)
	}

	if env.Payload != payload {
		t.Errorf("payload roundtrip = %+v, want %+v", env.Payload, payload)
	}
}

func TestNewWatermillMessageWithID(t *testing.T) {
	id := queue.DeterministicID("10.5072/depovault.7", "3")

	msg, err := queue.NewWatermillMessageWithID(queue.TopicDOIRegisterRequested, id,
		queue.DOIRegisterRequestedPayload{DOI: "10.5072/depovault.7"})
	if err != nil {
		t.Fatalf("new message: %v", err)
	}

	if msg.UUID != id {
		t.Errorf("uuid = %s, want deterministic %s", msg.UUID, id)
	}
}

func TestEncodeDecodeRoundtrip(t *testing.T) {
	in := queue.Message[queue.DepositPublishedPayload]{
		Header: queue.NewEventHeader(queue.TopicDepositPublished),
		Payload: queue.DepositPublishedPayload{
			Deposit:      queue.DepositRef{Depid: 2, Recid: 2, ConceptRecid: 1},
			Record:       queue.RecordRef{Recid: 2, Revision: 0},
			FirstPublish: true,
		},
	}

	data, err := queue.Encode(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	out, err := queue.Decode[queue.DepositPublishedPayload](data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if !out.Payload.FirstPublish || out.Payload.Deposit.Depid != 2 {
		t.Errorf("roundtrip payload = %+v", out.Payload)
	}
}

// fakePublisher 捕获发出的消息，供解析侧断言.
type fakePublisher struct {
	topic string
	msgs  []*message.Message
}

func (p *fakePublisher) Publish(topic string, msgs ...*message.Message) error {
	p.topic = topic
	p.msgs = append(p.msgs, msgs...)

	return nil
}

func (p *fakePublisher) Close() error { return nil }

// TestParseWatermillMessage 发布侧信封经 ParseWatermillMessage 解回原样.
func TestParseWatermillMessage(t *testing.T) {
	pub := &fakePublisher{}
	payload := queue.DOIRegisterRequestedPayload{
		Record: queue.RecordRef{Recid: 7, ConceptRecid: 6, Revision: 0},
		DOI:    "10.5072/depovault.7",
	}

	if err := queue.PublishDOIRegisterRequested(pub, payload, queue.WithProducer("depovault")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if pub.topic != queue.TopicDOIRegisterRequested || len(pub.msgs) != 1 {
		t.Fatalf("unexpected publish: topic=%s msgs=%d", pub.topic, len(pub.msgs))
	}

	env, err := queue.ParseDOIRegisterRequested(pub.msgs[0])
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if env.Payload.DOI != payload.DOI || env.Payload.Record.Recid != payload.Record.Recid {
		t.Errorf("payload roundtrip mismatch: %+v", env.Payload)
	}

	if env.Header.Topic != queue.TopicDOIRegisterRequested || env.Header.Producer != "depovault" {
		t.Errorf("header roundtrip mismatch: %+v", env.Header)
	}

	wantID := queue.DeterministicID(payload.DOI, "0")
	if pub.msgs[0].UUID != wantID {
		t.Errorf("message id = %s, want deterministic %s", pub.msgs[0].UUID, wantID)
	}
}
