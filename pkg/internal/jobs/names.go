package jobs

// 任务名称常量，便于统一管理与引用.
const (
	JobDOISweep              = "doi.sweep"
	JobCleanupIndexedDeleted = "index.cleanup_deleted"
)

// Cron 表达式常量（DOI sweep 的周期来自配置，这里只放固定任务）.
const (
	CronCleanupIndexedDeleted = "*/15 * * * *"
)
