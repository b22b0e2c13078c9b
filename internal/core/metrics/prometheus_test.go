package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-pushclient/pkg/types"
)

// TestCollector_Counters 测试计数器累加
func TestCollector_Counters(t *testing.T) {
	c := NewCollector()

	c.ConnectionTransition(types.Connected)
	c.ConnectionTransition(types.Connected)
	c.ConnectionTransition(types.DisconnectedError)
	c.ConnectAttempt()
	c.MessageReceived(false)
	c.MessageReceived(true)
	c.MessagePublished()
	c.ObserverPanic("observer")
	c.LateResponseDropped("verify.code")
	c.OutboxDepth(3)
	c.BackoffScheduled(2 * time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.transitions.WithLabelValues("connected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.transitions.WithLabelValues("disconnected_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.attempts))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.received.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.published))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.panics.WithLabelValues("observer")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.lateResponses.WithLabelValues("verify.code")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.outbox))

	// 私有 Registry 可采集
	families, err := c.Registry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

// TestCollector_Isolated 测试多个实例互不冲突
func TestCollector_Isolated(t *testing.T) {
	a := NewCollector()
	b := NewCollector()
	a.ConnectAttempt()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.attempts))
}

// TestModule_Provides 测试 Fx 模块提供 Reporter
func TestModule_Provides(t *testing.T) {
	var reporter Reporter
	var collector *Collector

	app := fxtest.New(t,
		Module,
		fx.Populate(&reporter, &collector),
	)
	defer app.RequireStart().RequireStop()

	require.NotNil(t, reporter)
	reporter.ConnectAttempt()
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.attempts))
}
