// Package metrics 提供会话监控指标
//
// 基于 prometheus/client_golang，所有指标注册在 Collector 的私有 Registry 上，
// 不污染全局默认 Registry：
//   - pushclient_connection_transitions_total{state}
//   - pushclient_connection_attempts_total
//   - pushclient_connection_backoff_seconds
//   - pushclient_messages_received_total{duplicate}
//   - pushclient_messages_published_total
//   - pushclient_events_sink_panics_total{sink}
//   - pushclient_session_late_responses_dropped_total{kind}
//   - pushclient_session_outbox_depth
//
// 嵌入方暴露 HTTP 端点：
//
//	http.Handle("/metrics", promhttp.HandlerFor(client.MetricsRegistry(), promhttp.HandlerOpts{}))
package metrics
