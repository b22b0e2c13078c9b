package types

import (
	"fmt"
	"strings"
)

// Credentials 应用注册凭据
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate 校验凭据非空
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Username) == "" {
		return ErrInvalidArgument.WithOp("credentials", fmt.Errorf("empty username"))
	}
	if c.Password == "" {
		return ErrInvalidArgument.WithOp("credentials", fmt.Errorf("empty password"))
	}
	return nil
}

// Identity 设备/应用注册与用户身份
//
// Channels 是按插入顺序的集合。UserID 非空时 ApplicationID 必须非空。
type Identity struct {
	DeviceToken   []byte   `json:"device_token,omitempty"`
	ApplicationID string   `json:"application_id,omitempty"`
	UserID        string   `json:"user_id,omitempty"`
	Channels      []string `json:"channels,omitempty"`
}

// Validate 校验不变量
func (id Identity) Validate() error {
	if id.UserID != "" && id.ApplicationID == "" {
		return ErrInvalidArgument.WithOp("identity", fmt.Errorf("user_id %q set without application_id", id.UserID))
	}
	seen := make(map[string]struct{}, len(id.Channels))
	for _, ch := range id.Channels {
		if ch == "" {
			return ErrInvalidArgument.WithOp("identity", fmt.Errorf("empty channel name"))
		}
		if _, dup := seen[ch]; dup {
			return ErrInvalidArgument.WithOp("identity", fmt.Errorf("duplicate channel %q", ch))
		}
		seen[ch] = struct{}{}
	}
	return nil
}

// IsApplicationRegistered 应用注册是否已确认
func (id Identity) IsApplicationRegistered() bool {
	return id.ApplicationID != ""
}

// IsUserRegistered 用户注册是否已确认
func (id Identity) IsUserRegistered() bool {
	return id.ApplicationID != "" && id.UserID != ""
}

// Clone 深拷贝
func (id Identity) Clone() Identity {
	out := id
	if id.DeviceToken != nil {
		out.DeviceToken = append([]byte(nil), id.DeviceToken...)
	}
	if id.Channels != nil {
		out.Channels = append([]string(nil), id.Channels...)
	}
	return out
}

// HasChannel 是否已订阅频道
func (id Identity) HasChannel(channel string) bool {
	for _, ch := range id.Channels {
		if ch == channel {
			return true
		}
	}
	return false
}

// AddChannels 追加不存在的频道，返回实际新增的数量
func (id *Identity) AddChannels(channels ...string) int {
	added := 0
	for _, ch := range channels {
		ch = strings.TrimSpace(ch)
		if ch == "" || id.HasChannel(ch) {
			continue
		}
		id.Channels = append(id.Channels, ch)
		added++
	}
	return added
}

// RemoveChannel 移除频道，返回是否存在
func (id *Identity) RemoveChannel(channel string) bool {
	for i, ch := range id.Channels {
		if ch == channel {
			id.Channels = append(id.Channels[:i], id.Channels[i+1:]...)
			return true
		}
	}
	return false
}
