// Package mq 实现后台 worker 的消息消费循环.
//
// 目前只有一类消费者：DOI 注册 worker，消费 dv.doi.register_requested，
// 调用 DataCite 完成注册；瞬时失败按固定间隔重试，重试耗尽后投递失败事件.
package mq

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/yeisme/depovault/pkg/configs"
	ctxPkg "github.com/yeisme/depovault/pkg/context"
	"github.com/yeisme/depovault/pkg/internal/datacite"
	"github.com/yeisme/depovault/pkg/internal/service"
	nlog "github.com/yeisme/depovault/pkg/log"
	"github.com/yeisme/depovault/pkg/queue"
)

// DOIWorker 消费 DOI 注册请求并驱动注册流程.
type DOIWorker struct {
	svc *service.DOIService
	l   zerolog.Logger

	maxRetries int
	backoff    time.Duration
}

// NewDOIWorker 构造 DOI 注册 worker.
func NewDOIWorker(c context.Context) *DOIWorker {
	cfg := configs.GetConfig().DOI

	return &DOIWorker{
		svc:        service.NewDOIService(c),
		l:          nlog.Component("doi-worker"),
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.GetRetryBackoff(),
	}
}

// Run 订阅注册请求主题并阻塞消费，直到 ctx 取消.
func (w *DOIWorker) Run(ctx context.Context) error {
	mqc := ctxPkg.GetMQClient(ctx)
	if mqc == nil {
		nlog.Logger().Fatal().Msg("mq client not initialized")
	}

	msgs, err := mqc.Subscribe(ctx, queue.TopicDOIRegisterRequested)
	if err != nil {
		return err
	}

	w.l.Info().Str("topic", queue.TopicDOIRegisterRequested).Msg("doi worker started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}

			w.handle(ctx, msg)
		}
	}
}

// handle 处理单条消息；无论结果如何都 Ack，避免 broker 层无限重投，
// 重试由本函数按固定间隔控制.
func (w *DOIWorker) handle(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	envelope, err := queue.ParseDOIRegisterRequested(msg)
	if err != nil {
		w.l.Error().Err(err).Str("uuid", msg.UUID).Msg("drop malformed doi request")

		return
	}

	payload := envelope.Payload

	var lastErr error

	for attempt := 1; attempt <= w.maxRetries+1; attempt++ {
		lastErr = w.svc.Register(ctx, payload)
		if lastErr == nil {
			return
		}

		if !datacite.IsTemporary(lastErr) {
			// 4xx 等永久失败，重试无意义
			break
		}

		if attempt > w.maxRetries {
			break
		}

		w.l.Warn().Err(lastErr).Str("doi", payload.DOI).
			Int("attempt", attempt).Dur("backoff", w.backoff).Msg("doi registration retry")

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.backoff):
		}
	}

	w.svc.ReportFailure(payload, w.maxRetries+1, lastErr)
}
