package queue

import (
	"strconv"

	"github.com/ThreeDotsLabs/watermill/message"
)

// -------------------------- 基于业务封装 events --------------------------

// PublishDepositPublished 发布 dv.deposit.published 事件.
// 存缴发布事务提交后调用，通知索引、DOI 注册等下游流程.
// 可通过可选项 opts 注入 TraceID、Producer 等头部信息.
func PublishDepositPublished(pub message.Publisher, payload DepositPublishedPayload, opts ...func(*EventHeader)) error {
	msg, err := NewWatermillMessage(TopicDepositPublished, payload, opts...)
	if err != nil {
		return err
	}

	return pub.Publish(TopicDepositPublished, msg)
}

// ParseDepositPublished 将 Watermill 消息解析为强类型 Envelope（DepositPublishedPayload）.
func ParseDepositPublished(msg *message.Message) (Message[DepositPublishedPayload], error) {
	return ParseWatermillMessage[DepositPublishedPayload](msg)
}

// PublishDOIRegisterRequested 发布 dv.doi.register.requested 事件.
// 消息 ID 为 (doi, revision) 的确定性哈希，重复投递在 worker 端幂等.
func PublishDOIRegisterRequested(pub message.Publisher, payload DOIRegisterRequestedPayload, opts ...func(*EventHeader)) error {
	id := DeterministicID(payload.DOI, strconv.Itoa(payload.Record.Revision))

	msg, err := NewWatermillMessageWithID(TopicDOIRegisterRequested, id, payload, opts...)
	if err != nil {
		return err
	}

	return pub.Publish(TopicDOIRegisterRequested, msg)
}

// ParseDOIRegisterRequested 将 Watermill 消息解析为强类型 Envelope（DOIRegisterRequestedPayload）.
func ParseDOIRegisterRequested(msg *message.Message) (Message[DOIRegisterRequestedPayload], error) {
	return ParseWatermillMessage[DOIRegisterRequestedPayload](msg)
}

// PublishDOIRegistered 发布 dv.doi.registered 事件.
func PublishDOIRegistered(pub message.Publisher, payload DOIRegisteredPayload, opts ...func(*EventHeader)) error {
	msg, err := NewWatermillMessage(TopicDOIRegistered, payload, opts...)
	if err != nil {
		return err
	}

	return pub.Publish(TopicDOIRegistered, msg)
}

// PublishDOIRegisterFailed 发布 dv.doi.register.failed 事件.
func PublishDOIRegisterFailed(pub message.Publisher, payload DOIRegisterFailedPayload, opts ...func(*EventHeader)) error {
	msg, err := NewWatermillMessage(TopicDOIRegisterFailed, payload, opts...)
	if err != nil {
		return err
	}

	return pub.Publish(TopicDOIRegisterFailed, msg)
}

// PublishIndexDeposit 发布 dv.index.deposit 事件.
func PublishIndexDeposit(pub message.Publisher, payload IndexDepositPayload, opts ...func(*EventHeader)) error {
	msg, err := NewWatermillMessage(TopicIndexDeposit, payload, opts...)
	if err != nil {
		return err
	}

	return pub.Publish(TopicIndexDeposit, msg)
}

// ParseIndexDeposit 将 Watermill 消息解析为强类型 Envelope（IndexDepositPayload）.
func ParseIndexDeposit(msg *message.Message) (Message[IndexDepositPayload], error) {
	return ParseWatermillMessage[IndexDepositPayload](msg)
}

// PublishIndexRemove 发布 dv.index.remove 事件.
func PublishIndexRemove(pub message.Publisher, payload IndexRemovePayload, opts ...func(*EventHeader)) error {
	msg, err := NewWatermillMessage(TopicIndexRemove, payload, opts...)
	if err != nil {
		return err
	}

	return pub.Publish(TopicIndexRemove, msg)
}
