package reachability

import (
	"context"
	"net"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	pkgif "github.com/dep2p/go-pushclient/pkg/interfaces"
	"github.com/dep2p/go-pushclient/pkg/types"
)

// ============================================================================
//                              接口扫描
// ============================================================================

// Interface 网卡快照
type Interface struct {
	Name       string
	Up         bool
	Loopback   bool
	HasUnicast bool
}

// InterfaceLister 列出本机网卡
type InterfaceLister func() ([]Interface, error)

// SystemInterfaces 基于 net.Interfaces 的默认实现
func SystemInterfaces() ([]Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	out := make([]Interface, 0, len(ifaces))
	for _, iface := range ifaces {
		info := Interface{
			Name:     iface.Name,
			Up:       iface.Flags&net.FlagUp != 0,
			Loopback: iface.Flags&net.FlagLoopback != 0,
		}
		if info.Up && !info.Loopback {
			addrs, err := iface.Addrs()
			if err != nil {
				logger.Debug("获取接口地址失败", "iface", iface.Name, "err", err)
			}
			for _, addr := range addrs {
				if ipnet, ok := addr.(*net.IPNet); ok && isUsableUnicast(ipnet.IP) {
					info.HasUnicast = true
					break
				}
			}
		}
		out = append(out, info)
	}
	return out, nil
}

func isUsableUnicast(ip net.IP) bool {
	return ip != nil &&
		ip.IsGlobalUnicast() &&
		!ip.IsLinkLocalUnicast()
}

var (
	wifiPrefixes     = []string{"wl", "wlan", "wifi"}
	cellularPrefixes = []string{"rmnet", "pdp_ip", "wwan", "ccmni"}
)

// ClassifyInterface 按接口名判定网络类型
func ClassifyInterface(name, goos string) types.NetworkType {
	lower := strings.ToLower(name)
	for _, p := range cellularPrefixes {
		if strings.HasPrefix(lower, p) {
			return types.NetworkCellular
		}
	}
	for _, p := range wifiPrefixes {
		if strings.HasPrefix(lower, p) {
			return types.NetworkWiFi
		}
	}
	if goos == "darwin" && lower == "en0" {
		return types.NetworkWiFi
	}
	// 有线接口没有独立类型，按 WiFi 处理
	return types.NetworkWiFi
}

// Evaluate 根据网卡快照计算可达性
//
// 同时存在 WiFi 与蜂窝接口时优先 WiFi。
func Evaluate(ifaces []Interface, goos string) types.ReachabilityStatus {
	status := types.Unreachable
	for _, iface := range ifaces {
		if !iface.Up || iface.Loopback || !iface.HasUnicast {
			continue
		}
		kind := ClassifyInterface(iface.Name, goos)
		if !status.Reachable || kind == types.NetworkWiFi {
			status = types.ReachabilityStatus{Reachable: true, NetworkType: kind}
		}
	}
	return status
}

// ============================================================================
//                              PollingSource
// ============================================================================

// PollingSource 轮询本机网卡的可达性来源
type PollingSource struct {
	interval time.Duration
	clock    clock.Clock
	lister   InterfaceLister
	goos     string

	pollMu  sync.Mutex
	mu      sync.RWMutex
	current types.ReachabilityStatus

	hub *hub

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

var _ pkgif.ReachabilitySource = (*PollingSource)(nil)

// PollingOption PollingSource 选项
type PollingOption func(*PollingSource)

// WithLister 替换网卡扫描函数
func WithLister(l InterfaceLister) PollingOption {
	return func(s *PollingSource) {
		s.lister = l
	}
}

// WithClock 替换时钟
func WithClock(c clock.Clock) PollingOption {
	return func(s *PollingSource) {
		s.clock = c
	}
}

// WithGOOS 覆盖平台名，用于接口分类
func WithGOOS(goos string) PollingOption {
	return func(s *PollingSource) {
		s.goos = goos
	}
}

// NewPollingSource 创建轮询来源
func NewPollingSource(interval time.Duration, opts ...PollingOption) *PollingSource {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	s := &PollingSource{
		interval: interval,
		clock:    clock.New(),
		lister:   SystemInterfaces,
		goos:     runtime.GOOS,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.hub = newHub(s.clock, 0)
	return s
}

// Current 实现 ReachabilitySource
func (s *PollingSource) Current() types.ReachabilityStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Subscribe 实现 ReachabilitySource
func (s *PollingSource) Subscribe() (<-chan types.ReachabilityStatus, func()) {
	return s.hub.subscribe()
}

// Start 实现 ReachabilitySource
func (s *PollingSource) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return nil
	}

	s.poll()

	ctx, s.cancel = context.WithCancel(ctx)
	ticker := s.clock.Ticker(s.interval)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.poll()
			}
		}
	}()

	logger.Info("网卡轮询已启动", "poll_interval", s.interval)
	return nil
}

// Stop 实现 ReachabilitySource
func (s *PollingSource) Stop() error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	s.cancel()
	s.wg.Wait()
	s.hub.closeAll()
	logger.Info("网卡轮询已停止")
	return nil
}

// Poll 立即扫描一次
func (s *PollingSource) Poll() {
	s.poll()
}

func (s *PollingSource) poll() {
	s.pollMu.Lock()
	defer s.pollMu.Unlock()

	ifaces, err := s.lister()
	if err != nil {
		logger.Debug("获取网络接口失败", "err", err)
		ifaces = nil
	}
	next := Evaluate(ifaces, s.goos)

	s.mu.Lock()
	changed := next != s.current
	s.current = next
	s.mu.Unlock()

	if changed {
		logger.Debug("检测到网络变化",
			"reachable", next.Reachable,
			"network", next.NetworkType.String())
		s.hub.notify(next)
	}
}
