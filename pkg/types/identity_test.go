package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestIdentity_Validate 测试身份不变量
func TestIdentity_Validate(t *testing.T) {
	assert.NoError(t, Identity{}.Validate())
	assert.NoError(t, Identity{ApplicationID: "com.acme.app"}.Validate())
	assert.NoError(t, Identity{ApplicationID: "com.acme.app", UserID: "u"}.Validate())

	assert.ErrorIs(t, Identity{UserID: "u"}.Validate(), ErrInvalidArgument)
	assert.Error(t, Identity{ApplicationID: "a", Channels: []string{"x", "x"}}.Validate())
	assert.Error(t, Identity{ApplicationID: "a", Channels: []string{""}}.Validate())
}

// TestIdentity_Channels 测试频道集合保持插入顺序且去重
func TestIdentity_Channels(t *testing.T) {
	var id Identity
	assert.Equal(t, 2, id.AddChannels("news", "sport", "news", " "))
	assert.Equal(t, 0, id.AddChannels("news"))
	assert.Equal(t, []string{"news", "sport"}, id.Channels)

	assert.True(t, id.RemoveChannel("news"))
	assert.False(t, id.RemoveChannel("news"))
	assert.Equal(t, []string{"sport"}, id.Channels)
}

// TestIdentity_Clone 测试深拷贝
func TestIdentity_Clone(t *testing.T) {
	id := Identity{DeviceToken: []byte{1, 2}, ApplicationID: "a", Channels: []string{"x"}}
	cp := id.Clone()
	cp.DeviceToken[0] = 9
	cp.Channels[0] = "y"

	assert.Equal(t, byte(1), id.DeviceToken[0])
	assert.Equal(t, "x", id.Channels[0])
}

// TestCredentials_Validate 测试凭据校验
func TestCredentials_Validate(t *testing.T) {
	assert.NoError(t, Credentials{Username: "u", Password: "p"}.Validate())
	assert.Error(t, Credentials{Username: " ", Password: "p"}.Validate())
	assert.Error(t, Credentials{Username: "u"}.Validate())
}

// TestReachabilityStatus_Normalize 测试不可达时网络类型归零
func TestReachabilityStatus_Normalize(t *testing.T) {
	s := ReachabilityStatus{Reachable: false, NetworkType: NetworkWiFi}.Normalize()
	assert.Equal(t, NetworkNone, s.NetworkType)

	s = ReachabilityStatus{Reachable: true, NetworkType: NetworkCellular}.Normalize()
	assert.Equal(t, NetworkCellular, s.NetworkType)
}
