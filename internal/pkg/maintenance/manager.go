// Package maintenance runs background housekeeping for tier state.
package maintenance

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/BoostBoard/internal/pkg/metrics"
)

// TierNormalizer resets every community whose paid tier has lapsed.
type TierNormalizer interface {
	NormalizeExpired(ctx context.Context) (int64, error)
}

// Manager periodically sweeps lapsed tiers so listings do not depend on a
// read having happened since the expiry.
type Manager struct {
	normalizer TierNormalizer
	interval   time.Duration
	timeout    time.Duration

	ticker  *time.Ticker
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewManager creates a sweep manager. A non-positive interval disables it.
func NewManager(normalizer TierNormalizer, interval time.Duration) *Manager {
	return &Manager{
		normalizer: normalizer,
		interval:   interval,
		timeout:    30 * time.Second,
	}
}

// Start runs one sweep immediately and then every interval.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}
	if m.interval <= 0 {
		log.Info("[TierSweep] Disabled (interval <= 0)")
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	m.ticker = time.NewTicker(m.interval)

	m.wg.Add(1)
	go m.sweepWorker(m.ticker, m.stopCh)

	log.Infof("[TierSweep] Started (interval: %s)", m.interval)
}

// Stop halts the ticker and waits for an in-flight sweep to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	m.ticker.Stop()
	close(m.stopCh)
	m.running = false
	m.wg.Wait()

	log.Info("[TierSweep] Stopped")
}

func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Manager) sweepWorker(ticker *time.Ticker, stopCh <-chan struct{}) {
	defer m.wg.Done()

	m.Sweep()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Sweep runs a single normalization pass and returns how many communities
// were reset.
func (m *Manager) Sweep() int64 {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	n, err := m.normalizer.NormalizeExpired(ctx)
	if err != nil {
		log.Errorf("[TierSweep] Error normalizing lapsed tiers: %v", err)
		return 0
	}
	if n > 0 {
		metrics.TiersNormalized.Add(float64(n))
		log.Infof("[TierSweep] Reset %d lapsed tier(s) to normal", n)
	}
	return n
}
