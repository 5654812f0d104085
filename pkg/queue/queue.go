// Package queue 管理消息队列，用于异步处理存缴发布后的副作用任务.
//
// 概览
//   - 采用发布/订阅模型，解耦"发布、DOI 注册、索引、社区策展"等环节
//   - 统一的消息封装：Message[Payload] = Header + Payload
//   - 主题常量见 topics.go，负载结构体见 payloads.go
//   - 默认 JSON 编解码（bytedance/sonic），跨语言易解析
//
// 消息信封（Envelope）JSON 结构
//
//	{
//	  "header": {
//	    "topic": "dv.doi.register.requested",
//	    "trace_id": "optional-trace-id",
//	    "producer": "depovault",
//	    "occurred_at": "2025-01-02T03:04:05.123456Z",
//	    "version": "v1"
//	  },
//	  "payload": { ... 取决于具体主题 ... }
//	}
//
// Go 端：发布/订阅示例
//
//	// 1) 构造负载
//	payload := queue.DOIRegisterRequestedPayload{
//	  Record: queue.RecordRef{
//	    Recid: 1002,
//	    ConceptRecid: 1001,
//	    RecordUUID: "3f6e...",
//	    Revision: 1,
//	  },
//	  DOI: "10.5072/depovault.1002",
//	}
//
//	// 2) 构造 watermill 消息（可选设置 TraceID/Producer/确定性 ID）
//	msg, _ := queue.NewWatermillMessage(
//	  queue.TopicDOIRegisterRequested, payload,
//	  queue.WithProducer("depovault"),
//	)
//
//	// 3) 通过 MQ 客户端发布
//	//   client, _ := mq.New(ctx)
//	//   _ = client.Publish(ctx, queue.TopicDOIRegisterRequested, msg)
//
//	// 4) 订阅（简化展示）
//	//   ch, _ := client.Subscribe(ctx, queue.TopicDOIRegisterRequested)
//	//   for m := range ch {
//	//       env, _ := queue.ParseWatermillMessage[queue.DOIRegisterRequestedPayload](m)
//	//       // 使用 env.Header / env.Payload ...
//	//       m.Ack()
//	//   }
//
// 注意事项
//  1. occurred_at 为 UTC，RFC3339 格式
//  2. version 便于后向兼容，建议消费者忽略未知字段
//  3. Header.topic 与消息中间件的 Subject/Topic 可能重复，意在离线可追踪
//  4. 需要业务级幂等时，用 DeterministicID 把消息 ID 设为确定性键
//     （如 doi|revision 的哈希），同一键的重复投递在消费端只生效一次
//
// 参考：topics.go（主题）、payloads.go（负载）、internal/storage/mq（MQ 客户端封装）.
package queue

import (
	"fmt"
	"strings"
	"time"

	watermill "github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/bytedance/sonic"
	"github.com/cespare/xxhash/v2"
)

const (
	PayloadVersionV1 string = "v1"
)

// NewEventHeader 便捷创建事件头.
func NewEventHeader(topic string, opts ...func(*EventHeader)) EventHeader {
	hdr := EventHeader{
		Topic:      topic,
		OccurredAt: time.Now().UTC(),
		Version:    PayloadVersionV1,
	}
	for _, opt := range opts {
		opt(&hdr)
	}

	return hdr
}

// WithTraceID 设置 TraceID.
func WithTraceID(id string) func(*EventHeader) { return func(h *EventHeader) { h.TraceID = id } }

// WithProducer 设置 Producer.
func WithProducer(p string) func(*EventHeader) { return func(h *EventHeader) { h.Producer = p } }

// DeterministicID 由若干业务键拼接后哈希出稳定的消息 ID.
// 相同键得到相同 ID，消费端据此做重复投递去重.
func DeterministicID(parts ...string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(strings.Join(parts, "|")))
}

// Encode 将消息封装为 JSON 字节切片.
func Encode[T any](msg Message[T]) ([]byte, error) { return sonic.Marshal(msg) }

// Decode 从 JSON 字节解码为消息.
func Decode[T any](b []byte) (Message[T], error) {
	var m Message[T]

	err := sonic.Unmarshal(b, &m)

	return m, err
}

// ParseWatermillMessage 从 watermill 消息解出事件信封.
func ParseWatermillMessage[T any](msg *message.Message) (Message[T], error) {
	return Decode[T](msg.Payload)
}

// NewWatermillMessage 构造一个 watermill 消息，设置 ID 与元数据.
func NewWatermillMessage[T any](topic string, payload T, opts ...func(*EventHeader)) (*message.Message, error) {
	return newWatermillMessage(topic, watermill.NewUUID(), payload, opts...)
}

// NewWatermillMessageWithID 与 NewWatermillMessage 相同，但使用调用方提供的消息 ID.
// 配合 DeterministicID 实现发布侧幂等键.
func NewWatermillMessageWithID[T any](topic, id string, payload T, opts ...func(*EventHeader)) (*message.Message, error) {
	return newWatermillMessage(topic, id, payload, opts...)
}

func newWatermillMessage[T any](topic, id string, payload T, opts ...func(*EventHeader)) (*message.Message, error) {
	header := NewEventHeader(topic, opts...)
	env := Message[T]{Header: header, Payload: payload}

	data, err := Encode(env)
	if err != nil {
		return nil, err
	}

	msg := message.NewMessage(id, data)
	msg.Metadata.Set("topic", topic)

	if header.TraceID != "" {
		msg.Metadata.Set("trace_id", header.TraceID)
	}

	if header.Producer != "" {
		msg.Metadata.Set("producer", header.Producer)
	}

	msg.Metadata.Set("occurred_at", header.OccurredAt.Format(time.RFC3339Nano))

	if header.Version != "" {
		msg.Metadata.Set("version", header.Version)
	}

	return msg, nil
}
