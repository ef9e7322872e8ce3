package fleet

import (
	"context"
	"runtime"
	"time"

	probing "github.com/prometheus-community/pro-bing"
	"go.uber.org/zap"
)

// Pinger confirms whether a host answers before the lost checker marks its
// device offline. A stale heartbeat alone is not proof of loss; the agent
// process may have died while the radio keeps playing.
type Pinger interface {
	Alive(ctx context.Context, ip string) bool
}

// ICMPPinger probes hosts with ICMP echo requests.
type ICMPPinger struct {
	timeout time.Duration
	count   int
	logger  *zap.Logger
}

// NewICMPPinger creates an ICMP pinger.
func NewICMPPinger(timeout time.Duration, count int, logger *zap.Logger) *ICMPPinger {
	return &ICMPPinger{timeout: timeout, count: count, logger: logger}
}

// Alive pings the host and reports whether any echo reply arrived.
func (p *ICMPPinger) Alive(ctx context.Context, ip string) bool {
	if placeholderIP(ip) {
		return false
	}

	pinger, err := probing.NewPinger(ip)
	if err != nil {
		p.logger.Debug("failed to create pinger", zap.String("ip", ip), zap.Error(err))
		return false
	}

	pinger.Count = p.count
	pinger.Timeout = p.timeout
	pinger.SetPrivileged(runtime.GOOS == "windows")

	done := make(chan struct{})
	go func() {
		defer close(done)
		if runErr := pinger.Run(); runErr != nil {
			p.logger.Debug("ping failed", zap.String("ip", ip), zap.Error(runErr))
		}
	}()

	select {
	case <-done:
	case <-ctx.Done():
		pinger.Stop()
		return false
	}

	return pinger.Statistics().PacketsRecv > 0
}
