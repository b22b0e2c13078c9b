package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewConfig 测试创建默认配置
func TestNewConfig(t *testing.T) {
	cfg := NewConfig()
	require.NotNil(t, cfg)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, time.Second, cfg.Connection.Backoff.Initial.Duration())
}

// TestServerConfig_EffectiveURL 测试开发环境与 TLS 选择
func TestServerConfig_EffectiveURL(t *testing.T) {
	t.Run("Production_TLS", func(t *testing.T) {
		cfg := DefaultServerConfig()
		cfg.URL = "ws://push.acme.com/ws"
		assert.Equal(t, "wss://push.acme.com/ws", cfg.EffectiveURL())
	})

	t.Run("Production_NoTLS", func(t *testing.T) {
		cfg := DefaultServerConfig()
		cfg.URL = "wss://push.acme.com/ws"
		cfg.UseTLS = false
		assert.Equal(t, "ws://push.acme.com/ws", cfg.EffectiveURL())
	})

	t.Run("Development_ForbidsTLS", func(t *testing.T) {
		cfg := DefaultServerConfig()
		cfg.Development = true
		cfg.DevelopmentURL = "wss://dev.acme.com/ws"
		assert.Equal(t, "ws://dev.acme.com/ws", cfg.EffectiveURL())
	})
}

// TestConfig_Validate 测试无效配置
func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"BadScheme", func(c *Config) { c.Server.URL = "http://x"; c.Server.DevelopmentURL = "" }},
		{"ZeroHandshake", func(c *Config) { c.Server.HandshakeTimeout = 0 }},
		{"MaxBelowInitial", func(c *Config) { c.Connection.Backoff.Max = Duration(time.Millisecond) }},
		{"JitterTooLarge", func(c *Config) { c.Connection.Backoff.Jitter = 1 }},
		{"UnknownSource", func(c *Config) { c.Reachability.Source = "carrier-pigeon" }},
		{"EmptyDataDir", func(c *Config) { c.Storage.DataDir = "" }},
		{"UnknownLevel", func(c *Config) { c.Log.Level = "verbose" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	t.Run("InMemoryAllowsEmptyDataDir", func(t *testing.T) {
		cfg := NewConfig()
		cfg.Storage.DataDir = ""
		cfg.Storage.InMemory = true
		assert.NoError(t, cfg.Validate())
	})
}

// TestLoad 测试从 TOML / JSON 文件加载
func TestLoad(t *testing.T) {
	dir := t.TempDir()

	t.Run("TOML", func(t *testing.T) {
		path := filepath.Join(dir, "pushclient.toml")
		data := `
[server]
url = "wss://push.acme.com/ws"
request_timeout = "3s"

[connection.backoff]
initial = "500ms"
max = "10s"
multiplier = 1.5
jitter = 0.1

[reachability]
source = "manual"
`
		require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "wss://push.acme.com/ws", cfg.Server.URL)
		assert.Equal(t, 3*time.Second, cfg.Server.RequestTimeout.Duration())
		assert.Equal(t, 500*time.Millisecond, cfg.Connection.Backoff.Initial.Duration())
		assert.Equal(t, 1.5, cfg.Connection.Backoff.Multiplier)
		assert.Equal(t, ReachabilitySourceManual, cfg.Reachability.Source)
		// 未出现的字段保留默认值
		assert.Equal(t, DefaultServerConfig().HandshakeTimeout, cfg.Server.HandshakeTimeout)
	})

	t.Run("JSON", func(t *testing.T) {
		path := filepath.Join(dir, "pushclient.json")
		data := `{"server": {"url": "wss://json.acme.com/ws", "ping_interval": "0s"}, "storage": {"in_memory": true}}`
		require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "wss://json.acme.com/ws", cfg.Server.URL)
		assert.Zero(t, cfg.Server.PingInterval)
		assert.True(t, cfg.Storage.InMemory)
	})

	t.Run("UnsupportedExtension", func(t *testing.T) {
		path := filepath.Join(dir, "pushclient.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server: {}"), 0o600))
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "nope.toml"))
		assert.Error(t, err)
	})
}

// TestApplyEnv 测试环境变量覆盖
func TestApplyEnv(t *testing.T) {
	cfg := NewConfig()
	cfg.Server.URL = "wss://file.acme.com/ws"
	cfg.Log.Level = "warn"

	l := envconfig.MapLookuper(map[string]string{
		"PUSHCLIENT_SERVER_URL":      "wss://env.acme.com/ws",
		"PUSHCLIENT_BACKOFF_INITIAL": "250ms",
		"PUSHCLIENT_LOG_LEVEL":       "debug",
	})
	require.NoError(t, applyEnv(context.Background(), cfg, l))

	assert.Equal(t, "wss://env.acme.com/ws", cfg.Server.URL)
	assert.Equal(t, 250*time.Millisecond, cfg.Connection.Backoff.Initial.Duration())
	assert.Equal(t, "debug", cfg.Log.Level)
	// 未设置的变量不覆盖
	assert.Equal(t, DefaultServerConfig().DevelopmentURL, cfg.Server.DevelopmentURL)
	assert.Equal(t, "./data", cfg.Storage.DataDir)
}

// TestDuration_JSON 测试 Duration 的 JSON 兼容格式
func TestDuration_JSON(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte(`"1m30s"`)))
	assert.Equal(t, 90*time.Second, d.Duration())

	require.NoError(t, d.UnmarshalJSON([]byte(`1000`)))
	assert.Equal(t, time.Microsecond, d.Duration())

	assert.Error(t, d.UnmarshalJSON([]byte(`"soon"`)))

	out, err := Duration(2 * time.Second).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"2s"`, string(out))
}
