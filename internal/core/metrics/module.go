package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// Result Metrics 模块输出
type Result struct {
	fx.Out

	Reporter  Reporter
	Collector *Collector
	Registry  *prometheus.Registry
}

// Module 是 metrics 的 Fx 模块
var Module = fx.Module("metrics",
	fx.Provide(ProvideCollector),
)

// ProvideCollector 提供 Prometheus 指标收集器
func ProvideCollector() Result {
	c := NewCollector()
	return Result{
		Reporter:  c,
		Collector: c,
		Registry:  c.Registry(),
	}
}
