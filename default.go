package pushclient

import (
	"context"
	"sync"
)

// ════════════════════════════════════════════════════════════════════════════
//                              进程级默认实例
// ════════════════════════════════════════════════════════════════════════════

var (
	defaultMu     sync.Mutex
	defaultClient *Client
)

// Init 创建并启动进程级默认客户端
//
// 已存在时返回 ErrAlreadyInitialized，须先调用 Teardown。
func Init(ctx context.Context, opts ...Option) (*Client, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultClient != nil {
		return nil, ErrAlreadyInitialized
	}
	c, err := Start(ctx, opts...)
	if err != nil {
		return nil, err
	}
	defaultClient = c
	return c, nil
}

// Default 返回进程级默认客户端，未初始化时返回 nil
func Default() *Client {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultClient
}

// Teardown 关闭并清除进程级默认客户端
func Teardown() error {
	defaultMu.Lock()
	c := defaultClient
	defaultClient = nil
	defaultMu.Unlock()

	if c == nil {
		return nil
	}
	return c.Close()
}
