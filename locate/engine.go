package locate

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultWindow is how long a measurement stays live.
	DefaultWindow = 12 * time.Second
	// DefaultQueueSize is the capacity of the observation channel.
	DefaultQueueSize = 256
)

// EngineConfig configures the fusion engine
type EngineConfig struct {
	Classifier ClassifierConfig
	Window     time.Duration
	QueueSize  int
}

// DefaultEngineConfig returns the default engine configuration
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Classifier: DefaultClassifierConfig(),
		Window:     DefaultWindow,
		QueueSize:  DefaultQueueSize,
	}
}

// Engine owns the measurement windows and device classifier. Observations
// are fed through Submit into a single consumer loop (Run), or processed
// synchronously with Ingest; both paths are serialized by one mutex, so the
// windows are never touched concurrently. Results are published to
// latest-value cells.
type Engine struct {
	cfg        EngineConfig
	classifier *Classifier
	ble        *Window
	wifi       *Window

	mu sync.Mutex

	input   chan Observation
	dropped atomic.Uint64
	closed  atomic.Bool
	now     func() time.Time

	position     *Latest[Position]
	status       *Latest[Status]
	contributing *Latest[[]Measurement]
	lastErr      atomic.Pointer[errBox]
}

type errBox struct{ err error }

// NewEngine creates an idle engine
func NewEngine(cfg EngineConfig, anchors []AnchorConfig, aps []AccessPointConfig) *Engine {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	e := &Engine{
		cfg:          cfg,
		classifier:   NewClassifier(cfg.Classifier, anchors, aps),
		ble:          NewWindow(cfg.Window),
		wifi:         NewWindow(cfg.Window),
		input:        make(chan Observation, cfg.QueueSize),
		now:          time.Now,
		position:     NewLatest[Position](),
		status:       NewLatest[Status](),
		contributing: NewLatest[[]Measurement](),
	}
	e.status.Set(StatusIdle)
	return e
}

// SetClock overrides the time source; used by tests and replays
func (e *Engine) SetClock(now func() time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = now
}

// Submit queues an observation for the consumer loop. It never blocks: when
// the queue is full or the engine is closed the observation is dropped and
// false is returned.
func (e *Engine) Submit(obs Observation) bool {
	if e.closed.Load() {
		return false
	}
	select {
	case e.input <- obs:
		return true
	default:
		if n := e.dropped.Add(1); n%100 == 1 {
			log.Printf("[ENGINE] observation queue full, dropped %d so far", n)
		}
		return false
	}
}

// Run drains submitted observations until ctx is cancelled or the engine is
// closed. Only one Run loop should be active at a time.
func (e *Engine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case obs := <-e.input:
			if e.closed.Load() {
				return nil
			}
			e.Ingest(obs)
		}
	}
}

// Ingest processes one observation synchronously and returns the resulting
// status. It updates the window for the observation's modality, evicts
// expired entries from both windows and recomputes the fused position.
func (e *Engine) Ingest(obs Observation) Status {
	if e.closed.Load() {
		return e.Status()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	e.classifier.Evict(now)
	e.ble.Evict(now)
	e.wifi.Evict(now)

	window := e.ble
	if obs.Modality == ModalityWiFi {
		window = e.wifi
	}

	src, ok := e.classifier.Classify(obs, e.ble.Snapshot())
	if ok {
		dist, hasRange := EstimateDistance(obs.RSSI, src.TxPower, src.PathLossExponent)
		window.Put(Measurement{
			Source:    src,
			RSSI:      obs.RSSI,
			Timestamp: obs.Timestamp,
			Distance:  dist,
			HasRange:  hasRange,
		})
		// a late reading may already be outside the window
		window.Evict(now)
	}

	return e.recomputeLocked()
}

// recomputeLocked fuses both windows as they stand and publishes the
// combined position. A modality only contributes while its own window holds
// enough usable measurements. Caller holds e.mu.
func (e *Engine) recomputeLocked() Status {
	blePos, bleUsed, bleOK := Fuse(e.ble.Snapshot())
	wifiPos, wifiUsed, wifiOK := Fuse(e.wifi.Snapshot())

	if !bleOK && !wifiOK {
		e.contributing.Set(nil)
		e.status.Set(StatusInsufficientSignals)
		return StatusInsufficientSignals
	}

	var ble, wifi *Position
	var contributing []Measurement
	if bleOK {
		ble = &blePos
		contributing = append(contributing, bleUsed...)
	}
	if wifiOK {
		wifi = &wifiPos
		contributing = append(contributing, wifiUsed...)
	}

	combined, _ := FuseCrossModal(ble, wifi)
	// contributing first so a position subscriber always sees its sources
	e.contributing.Set(contributing)
	e.position.Set(combined)
	e.status.Set(StatusPositioned)
	return StatusPositioned
}

// SetStatus publishes a lifecycle status such as scanning or idle
func (e *Engine) SetStatus(s Status) {
	if e.closed.Load() {
		return
	}
	e.status.Set(s)
}

// ReportError records a transient scan failure. The engine does not retry;
// the caller restarts scanning.
func (e *Engine) ReportError(err error) {
	if err == nil {
		return
	}
	e.lastErr.Store(&errBox{err: err})
	log.Printf("[ENGINE] scan error: %v", err)
	e.SetStatus(StatusError)
}

// LastError returns the most recent scan error, if any
func (e *Engine) LastError() error {
	if b := e.lastErr.Load(); b != nil {
		return b.err
	}
	return nil
}

// Close stops the engine permanently. Queued observations are discarded and
// subscribers are released.
func (e *Engine) Close() {
	if e.closed.Swap(true) {
		return
	}
	e.position.Close()
	e.status.Close()
	e.contributing.Close()
}

// Position returns the latest fused position
func (e *Engine) Position() (Position, bool) {
	return e.position.Get()
}

// Status returns the current positioning status
func (e *Engine) Status() Status {
	s, ok := e.status.Get()
	if !ok {
		return StatusIdle
	}
	return s
}

// Contributing returns the measurements behind the last fused position
func (e *Engine) Contributing() []Measurement {
	ms, _ := e.contributing.Get()
	out := make([]Measurement, len(ms))
	copy(out, ms)
	return out
}

// SubscribePosition streams position updates with latest-value semantics
func (e *Engine) SubscribePosition() (<-chan Position, func()) {
	return e.position.Subscribe()
}

// SubscribeStatus streams status updates with latest-value semantics
func (e *Engine) SubscribeStatus() (<-chan Status, func()) {
	return e.status.Subscribe()
}

// Classifier exposes the engine's classifier for diagnostics
func (e *Engine) Classifier() *Classifier {
	return e.classifier
}

// LiveMeasurements returns a copy of both windows
func (e *Engine) LiveMeasurements() []Measurement {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append(e.ble.Snapshot(), e.wifi.Snapshot()...)
}

// Drain discards observations still queued for the consumer loop and
// returns how many were dropped.
func (e *Engine) Drain() int {
	n := 0
	for {
		select {
		case <-e.input:
			n++
		default:
			return n
		}
	}
}

// Dropped returns how many observations were discarded by Submit
func (e *Engine) Dropped() uint64 {
	return e.dropped.Load()
}
