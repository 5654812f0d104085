package metrics

import "github.com/prometheus/client_golang/prometheus"

// 领域指标：存缴发布与 DOI 注册进度.
var (
	// PublishCounter 发布计数，按发布类型（first/edit/new_version）区分.
	PublishCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "depovault_publishes_total",
			Help: "Total number of deposit publishes",
		},
		[]string{"kind"},
	)

	// DOIRegistrationCounter DOI 注册结果计数.
	DOIRegistrationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "depovault_doi_registrations_total",
			Help: "Total number of DOI registration attempts",
		},
		[]string{"result"},
	)

	// DOISweepCounter 元数据补发扫描执行计数.
	DOISweepCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "depovault_doi_sweeps_total",
			Help: "Total number of DOI metadata sweeps",
		},
	)
)

func init() {
	registry.MustRegister(PublishCounter, DOIRegistrationCounter, DOISweepCounter)
}
