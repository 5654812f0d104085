// Package queue 定义消息主题常量与通配模式，供发布/订阅使用.
package queue

// 主题命名规范：dv.<域>.<动作>[.<状态>]，尽量稳定且向后兼容.
// 域：deposit(存缴生命周期)、record(已发布记录)、doi(DOI 注册)、community(社区策展)、index(检索索引)
// 动作/状态：created/updated/published/deleted、requested/registered/failed 等

const (
	// 存缴生命周期领域.
	TopicDepositCreated   = "dv.deposit.created"   // 新建存缴草稿（已预留 recid/depid）
	TopicDepositUpdated   = "dv.deposit.updated"   // 草稿元数据更新
	TopicDepositPublished = "dv.deposit.published" // 存缴发布为记录修订
	TopicDepositDeleted   = "dv.deposit.deleted"   // 未发布草稿被删除（预留 recid 作废）

	// 记录领域.
	TopicRecordCommitted  = "dv.record.committed"   // 记录提交新修订（首次发布或再发布）
	TopicRecordNewVersion = "dv.record.new_version" // 概念下出现新版本草稿

	// DOI 注册领域.
	TopicDOIRegisterRequested = "dv.doi.register.requested" // 请求向 DataCite 注册/更新 DOI，worker 消费
	TopicDOIRegistered        = "dv.doi.registered"         // DOI 注册成功，PID 进入 REGISTERED
	TopicDOIRegisterFailed    = "dv.doi.register.failed"    // 重试耗尽后的最终失败，供管理端告警

	// 社区策展领域.
	TopicCommunityRequested = "dv.community.requested" // 创建了收录请求
	TopicCommunityAccepted  = "dv.community.accepted"  // 社区接受记录（概念级生效）
	TopicCommunityRejected  = "dv.community.rejected"  // 社区拒绝或移除记录（概念级生效）

	// 索引领域：发布与元数据变更产生的至少一次索引副作用.
	TopicIndexDeposit = "dv.index.deposit" // 将存缴写入检索索引
	TopicIndexRemove  = "dv.index.remove"  // 将失效存缴从索引移除
)

// 主题分组，用于批量操作或权限控制.
var (
	// 存缴相关主题集合.
	DepositTopics = []string{
		TopicDepositCreated, TopicDepositUpdated,
		TopicDepositPublished, TopicDepositDeleted,
	}

	// 记录相关主题集合.
	RecordTopics = []string{
		TopicRecordCommitted, TopicRecordNewVersion,
	}

	// DOI 注册相关主题集合.
	DOITopics = []string{
		TopicDOIRegisterRequested, TopicDOIRegistered, TopicDOIRegisterFailed,
	}

	// 社区策展相关主题集合.
	CommunityTopics = []string{
		TopicCommunityRequested, TopicCommunityAccepted, TopicCommunityRejected,
	}

	// 索引相关主题集合.
	IndexTopics = []string{
		TopicIndexDeposit, TopicIndexRemove,
	}
)
