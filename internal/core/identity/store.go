package identity

import (
	"fmt"
	"sync"

	"github.com/dep2p/go-pushclient/internal/core/storage/engine"
	"github.com/dep2p/go-pushclient/internal/core/storage/kv"
	"github.com/dep2p/go-pushclient/pkg/lib/log"
	"github.com/dep2p/go-pushclient/pkg/types"
)

var logger = log.Logger("core/identity")

// Prefix 身份键前缀
var Prefix = []byte("id/")

var (
	keyToken    = []byte("token")
	keyApp      = []byte("app")
	keyUser     = []byte("user")
	keyChannels = []byte("channels")
)

// Store 身份存储
type Store struct {
	kv *kv.Store

	mu       sync.RWMutex
	identity types.Identity
}

// NewStore 创建身份存储并加载已持久化的身份
func NewStore(eng engine.InternalEngine) (*Store, error) {
	s := &Store{kv: kv.New(eng, Prefix)}
	if _, err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Load 从存储重新加载身份
//
// 缺失的键视为空字段；损坏或违反不变量的数据返回错误，缓存保持不变。
func (s *Store) Load() (types.Identity, error) {
	var id types.Identity

	token, err := s.kv.Get(keyToken)
	switch {
	case err == nil:
		id.DeviceToken = token
	case !engine.IsNotFound(err):
		return types.Identity{}, fmt.Errorf("identity: load token: %w", err)
	}

	if id.ApplicationID, err = s.getString(keyApp); err != nil {
		return types.Identity{}, err
	}
	if id.UserID, err = s.getString(keyUser); err != nil {
		return types.Identity{}, err
	}

	if err := s.kv.GetJSON(keyChannels, &id.Channels); err != nil && !engine.IsNotFound(err) {
		return types.Identity{}, fmt.Errorf("identity: load channels: %w", err)
	}

	if err := id.Validate(); err != nil {
		return types.Identity{}, fmt.Errorf("identity: stored identity invalid: %w", err)
	}

	s.mu.Lock()
	s.identity = id
	s.mu.Unlock()

	logger.Debug("身份已加载",
		"app", id.ApplicationID,
		"user", id.UserID,
		"channels", len(id.Channels),
		"has_token", len(id.DeviceToken) > 0)
	return id.Clone(), nil
}

func (s *Store) getString(key []byte) (string, error) {
	v, err := s.kv.GetString(key)
	if err != nil {
		if engine.IsNotFound(err) {
			return "", nil
		}
		return "", fmt.Errorf("identity: load %s: %w", key, err)
	}
	return v, nil
}

// Snapshot 返回当前身份的一致副本
func (s *Store) Snapshot() types.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity.Clone()
}

// Save 原子保存身份
func (s *Store) Save(id types.Identity) error {
	if err := id.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(id)
}

// Update 读取-修改-写入
//
// fn 收到当前身份的副本；返回错误时不保存。
func (s *Store) Update(fn func(id *types.Identity) error) (types.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.identity.Clone()
	if err := fn(&next); err != nil {
		return s.identity.Clone(), err
	}
	if err := next.Validate(); err != nil {
		return s.identity.Clone(), err
	}
	if err := s.saveLocked(next); err != nil {
		return s.identity.Clone(), err
	}
	return next.Clone(), nil
}

// Reset 清除全部身份字段
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Clear(); err != nil {
		return fmt.Errorf("identity: reset: %w", err)
	}
	s.identity = types.Identity{}
	logger.Info("身份已清除")
	return nil
}

func (s *Store) saveLocked(id types.Identity) error {
	b := s.kv.NewBatch()

	if len(id.DeviceToken) > 0 {
		b.Put(keyToken, id.DeviceToken)
	} else {
		b.Delete(keyToken)
	}
	putOrDelete(b, keyApp, id.ApplicationID)
	putOrDelete(b, keyUser, id.UserID)
	if len(id.Channels) > 0 {
		if err := b.PutJSON(keyChannels, id.Channels); err != nil {
			return err
		}
	} else {
		b.Delete(keyChannels)
	}

	if err := b.Write(); err != nil {
		return fmt.Errorf("identity: save: %w", err)
	}
	s.identity = id.Clone()
	return nil
}

func putOrDelete(b *kv.Batch, key []byte, value string) {
	if value == "" {
		b.Delete(key)
		return
	}
	b.PutString(key, value)
}
