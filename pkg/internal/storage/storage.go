// Package storage 处理存储操作：对象存储、数据库、消息队列与 KV 缓存的统一初始化.
//
// Example:
//
// 初始化
//
//	 ctx := context.Background()
//	 mgr, err := storage.Init(ctx)
//
//		if err != nil {
//		    // 处理错误
//		}
//
// 获取存储客户端
//
//	s3Client := mgr.GetS3Client()
//	dbClient := mgr.GetDBClient()
package storage

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/yeisme/depovault/pkg/internal/model"
	dbc "github.com/yeisme/depovault/pkg/internal/storage/db"
	kvc "github.com/yeisme/depovault/pkg/internal/storage/kv"
	mqc "github.com/yeisme/depovault/pkg/internal/storage/mq"
	s3c "github.com/yeisme/depovault/pkg/internal/storage/s3"
	nlog "github.com/yeisme/depovault/pkg/log"
)

// Manager 聚合所有存储资源.
type Manager struct {
	S3 *s3c.Client
	DB *dbc.Client
	MQ *mqc.Client
	KV *kvc.Client
}

var (
	mgr     *Manager
	mgrOnce sync.Once
)

// Init 初始化默认存储，使用全局配置.重复调用只返回已初始化实例.
func Init(ctx context.Context) (*Manager, error) {
	var err error

	mgrOnce.Do(func() {
		m := &Manager{}

		// DB
		if dbi, e := dbc.New(ctx); e != nil {
			err = e

			return
		} else {
			m.DB = dbi
		}

		if err = m.DB.AutoMigrate(model.All()...); err != nil {
			return
		}

		// S3 / MQ / KV 相互独立，并发初始化
		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			s3i, e := s3c.New(gctx)
			if e == nil {
				m.S3 = s3i
			}

			return e
		})

		g.Go(func() error {
			mqi, e := mqc.New(gctx)
			if e == nil {
				m.MQ = mqi
			}

			return e
		})

		g.Go(func() error {
			kvi, e := kvc.NewKVClient(gctx)
			if e == nil {
				m.KV = kvi
			}

			return e
		})

		if err = g.Wait(); err != nil {
			return
		}

		mgr = m

		nlog.Logger().Info().Msg("storage manager initialized")
	})

	return mgr, err
}

// GetS3Client 获取 S3 客户端.
func (m *Manager) GetS3Client() *s3c.Client {
	return m.S3
}

// GetDBClient 获取 DB 客户端.
func (m *Manager) GetDBClient() *dbc.Client {
	return m.DB
}

// GetMQClient 获取 MQ 客户端.
func (m *Manager) GetMQClient() *mqc.Client {
	return m.MQ
}

// GetKVClient 获取 KV 客户端.
func (m *Manager) GetKVClient() *kvc.Client {
	return m.KV
}
