package config

import (
	"fmt"
	"net/url"
	"time"
)

// ServerConfig 推送服务器配置
type ServerConfig struct {
	// URL 生产环境服务器地址（ws:// 或 wss://）
	URL string `json:"url" toml:"url"`

	// DevelopmentURL 开发环境服务器地址
	DevelopmentURL string `json:"development_url" toml:"development_url"`

	// Development 使用开发环境（禁止 TLS）
	Development bool `json:"development" toml:"development"`

	// UseTLS 使用 TLS 连接
	UseTLS bool `json:"use_tls" toml:"use_tls"`

	// HandshakeTimeout 握手超时
	HandshakeTimeout Duration `json:"handshake_timeout" toml:"handshake_timeout"`

	// RequestTimeout 单个请求的响应超时
	RequestTimeout Duration `json:"request_timeout" toml:"request_timeout"`

	// PingInterval 保活 ping 间隔，0 表示不发送
	PingInterval Duration `json:"ping_interval" toml:"ping_interval"`
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		URL:              "wss://push.example.com/ws",
		DevelopmentURL:   "ws://localhost:8080/ws",
		UseTLS:           true,
		HandshakeTimeout: Duration(10 * time.Second),
		RequestTimeout:   Duration(15 * time.Second),
		PingInterval:     Duration(30 * time.Second),
	}
}

// EffectiveURL 返回当前环境实际使用的地址
//
// 开发环境下强制使用 ws://；生产环境按 UseTLS 选择 scheme。
func (c *ServerConfig) EffectiveURL() string {
	raw := c.URL
	if c.Development && c.DevelopmentURL != "" {
		raw = c.DevelopmentURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	switch {
	case c.Development || !c.UseTLS:
		if u.Scheme == "wss" {
			u.Scheme = "ws"
		}
	default:
		if u.Scheme == "ws" {
			u.Scheme = "wss"
		}
	}
	return u.String()
}

// Validate 验证服务器配置
func (c *ServerConfig) Validate() error {
	if c.URL == "" && c.DevelopmentURL == "" {
		return fmt.Errorf("server: url cannot be empty")
	}
	for _, raw := range []string{c.URL, c.DevelopmentURL} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("server: invalid url %q: %w", raw, err)
		}
		if u.Scheme != "ws" && u.Scheme != "wss" {
			return fmt.Errorf("server: url %q must use ws or wss scheme", raw)
		}
	}
	if c.HandshakeTimeout <= 0 {
		return fmt.Errorf("server: handshake_timeout must be positive")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("server: request_timeout must be positive")
	}
	if c.PingInterval < 0 {
		return fmt.Errorf("server: ping_interval cannot be negative")
	}
	return nil
}
