package locate

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// DefaultWiFiScanInterval is the fixed period between WiFi scans.
const DefaultWiFiScanInterval = 10 * time.Second

// BLESource delivers BLE observations asynchronously through a registered
// callback.
type BLESource interface {
	Subscribe(handler func(Observation)) error
	Unsubscribe() error
}

// WiFiScanner performs one WiFi scan
type WiFiScanner interface {
	Scan(ctx context.Context) ([]WiFiScanRecord, error)
}

// Session couples radio sources to an Engine. Start registers the BLE
// callback and the periodic WiFi timer; Stop halts both, after which no
// further observation reaches the engine.
type Session struct {
	engine   *Engine
	ble      BLESource
	wifi     WiFiScanner
	interval time.Duration

	active atomic.Bool

	mu      sync.Mutex
	id      string
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	scanned int
}

// NewSession creates a stopped session. ble or wifi may be nil.
func NewSession(engine *Engine, ble BLESource, wifi WiFiScanner, interval time.Duration) *Session {
	if interval <= 0 {
		interval = DefaultWiFiScanInterval
	}
	return &Session{
		engine:   engine,
		ble:      ble,
		wifi:     wifi,
		interval: interval,
	}
}

// Start begins scanning. A BLE registration failure is reported through the
// engine status and returned; it is not retried.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active.Load() {
		return fmt.Errorf("session %s already scanning", s.id)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.id = uuid.NewString()
	s.active.Store(true)
	s.cancel = cancel
	s.engine.SetStatus(StatusScanning)

	if s.ble != nil {
		if err := s.ble.Subscribe(s.onBLE); err != nil {
			s.active.Store(false)
			cancel()
			err = fmt.Errorf("registering BLE callback: %w", err)
			s.engine.ReportError(err)
			return err
		}
	}

	// readings queued while no session was active are not ours
	if n := s.engine.Drain(); n > 0 {
		log.Printf("[SESSION] %s: discarded %d stale observations", s.id, n)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_ = s.engine.Run(runCtx)
	}()

	if s.wifi != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.wifiLoop(runCtx)
		}()
	}

	log.Printf("[SESSION] %s started (wifi interval %v)", s.id, s.interval)
	return nil
}

// Stop halts the WiFi timer and the BLE registration and waits for the
// session goroutines to exit. An in-flight fusion step completes; nothing
// new is scheduled afterwards and observations still queued are discarded,
// so a later Start does not ingest readings from this session.
func (s *Session) Stop() {
	s.mu.Lock()
	if !s.active.Swap(false) {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	id := s.id
	s.mu.Unlock()

	if s.ble != nil {
		if err := s.ble.Unsubscribe(); err != nil {
			log.Printf("[SESSION] %s: unsubscribing BLE source: %v", id, err)
		}
	}
	cancel()
	s.wg.Wait()

	if n := s.engine.Drain(); n > 0 {
		log.Printf("[SESSION] %s: discarded %d queued observations", id, n)
	}
	s.engine.SetStatus(StatusIdle)
	log.Printf("[SESSION] %s stopped", id)
}

// Active reports whether the session is scanning
func (s *Session) Active() bool {
	return s.active.Load()
}

// ID returns the identifier of the current or last session
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// WiFiScans returns how many WiFi scans completed successfully
func (s *Session) WiFiScans() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scanned
}

func (s *Session) onBLE(obs Observation) {
	if !s.Active() {
		return
	}
	s.engine.Submit(obs)
}

func (s *Session) wifiLoop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.scanWiFi(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scanWiFi(ctx)
		}
	}
}

// scanWiFi runs one scheduled scan. A failure is reported, not retried; the
// next tick is the regular schedule.
func (s *Session) scanWiFi(ctx context.Context) {
	records, err := s.wifi.Scan(ctx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		s.engine.ReportError(fmt.Errorf("wifi scan: %w", err))
		return
	}

	s.mu.Lock()
	s.scanned++
	s.mu.Unlock()

	received := time.Now()
	for _, rec := range records {
		if ctx.Err() != nil {
			return
		}
		s.engine.Submit(FromWiFi(rec, received))
	}
}
