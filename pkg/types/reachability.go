package types

// NetworkType 网络接入类型
type NetworkType int

const (
	// NetworkNone 无网络
	NetworkNone NetworkType = iota
	// NetworkCellular 蜂窝网络
	NetworkCellular
	// NetworkWiFi WiFi
	NetworkWiFi
)

// String 返回网络类型字符串
func (t NetworkType) String() string {
	switch t {
	case NetworkCellular:
		return "cellular"
	case NetworkWiFi:
		return "wifi"
	default:
		return "none"
	}
}

// ReachabilityStatus 网络可达性
type ReachabilityStatus struct {
	Reachable   bool
	NetworkType NetworkType
}

// Normalize 不可达时网络类型归零
func (s ReachabilityStatus) Normalize() ReachabilityStatus {
	if !s.Reachable {
		s.NetworkType = NetworkNone
	}
	return s
}

// Unreachable 不可达状态
var Unreachable = ReachabilityStatus{}
