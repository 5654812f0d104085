// Package service 实现存缴/记录生命周期的业务逻辑：PID 注册、版本图、
// 记录存储、存缴状态机、文件桶绑定、社区策展与 DOI 注册，不处理 HTTP 细节.
//
// 所有写操作都包在单个数据库事务内；跨版本的并发（new_version/publish）
// 通过概念 recid 行上的写锁串行化. 事务内只收集副作用（索引、MQ 事件），
// 提交成功后统一派发，回滚时不产生任何外部可见效果.
package service

import (
	crand "crypto/rand"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/oklog/ulid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yeisme/depovault/pkg/configs"
	"github.com/yeisme/depovault/pkg/internal/types"
	nlog "github.com/yeisme/depovault/pkg/log"
)

// 全局单例的 ULID 熵源，使用单调递增策略，确保同一毫秒内生成的 ULID 具有排序稳定性。
var ulidEntropy = ulid.Monotonic(crand.Reader, 0)

// newULID 生成按时间排序的 ULID 字符串，用作桶 ID、对象版本 ID 与文件流 ID.
func newULID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now().UTC()), ulidEntropy).String()
}

// forUpdate 为查询附加行级写锁；sqlite 没有行锁（整库写锁已足够），跳过 clause.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}

	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// marshalJSON / unmarshalJSON 统一使用 sonic，与 MQ 信封编码保持一致.
func marshalJSON(v any) string {
	b, err := sonic.Marshal(v)
	if err != nil {
		nlog.Logger().Error().Err(err).Msg("marshal json")
		return ""
	}

	return string(b)
}

func decodeJSON(raw []byte, v any) error {
	return sonic.Unmarshal(raw, v)
}

func unmarshalMetadata(s string) types.DepositMetadata {
	var md types.DepositMetadata
	if s == "" {
		return md
	}

	if err := sonic.Unmarshal([]byte(s), &md); err != nil {
		nlog.Logger().Error().Err(err).Msg("unmarshal metadata json")
	}

	return md
}

func unmarshalManifest(s string) types.FilesManifest {
	var m types.FilesManifest
	if s == "" {
		return m
	}

	if err := sonic.Unmarshal([]byte(s), &m); err != nil {
		nlog.Logger().Error().Err(err).Msg("unmarshal files manifest json")
	}

	return m
}

func unmarshalStrings(s string) []string {
	var out []string
	if s == "" {
		return out
	}

	if err := sonic.Unmarshal([]byte(s), &out); err != nil {
		nlog.Logger().Error().Err(err).Msg("unmarshal string list json")
	}

	return out
}

// localDOIValue 按保留模板生成本地 DOI：<prefix>/depovault.<recid>.
func localDOIValue(recid int64) string {
	cfg := configs.GetConfig().PID

	suffix := strings.Replace(configs.DefaultDOISuffixPattern, "<recid>", strconv.FormatInt(recid, 10), 1)

	return cfg.DefaultDOIPrefix + "/" + suffix
}

// oaiValue 生成 OAI 收割标识：oai:depovault:<recid>.
func oaiValue(recid int64) string {
	return configs.GetConfig().PID.OAIPrefix + strconv.FormatInt(recid, 10)
}
