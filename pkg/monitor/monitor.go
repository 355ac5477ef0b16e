package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/gammazero/deque"
	"github.com/kfsoftware/agritrace/pkg/failure"
	"github.com/kfsoftware/agritrace/pkg/ledger"
	"github.com/kfsoftware/agritrace/pkg/metrics"
	"github.com/kfsoftware/agritrace/pkg/store"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	BlocksKey       = "blocks"
	CurrentBlockKey = "current_block"
	// heights fetched per cycle when catching up
	catchUpBatch = 100
)

// Publisher receives every new snapshot. Implementations must not block.
type Publisher interface {
	Publish(snap Snapshot)
}

// Sink exports snapshots to an external index. Failures are logged and the
// cycle carries on.
type Sink interface {
	StoreBulk(snapshots []Snapshot) error
}

type Config struct {
	Interval time.Duration
	Retain   int
	// CatchUp processes every height past the cursor instead of the tip only.
	CatchUp bool
	// StartHeight overrides the persisted cursor; negative resumes from it.
	StartHeight int64
	Publishers  []Publisher
	Sinks       []Sink
}

var DefaultConfig = Config{
	Interval:    2 * time.Second,
	Retain:      10,
	StartHeight: -1,
}

type Option func(*Config)

func WithInterval(interval time.Duration) Option {
	return func(cfg *Config) {
		cfg.Interval = interval
	}
}

func WithRetain(n int) Option {
	return func(cfg *Config) {
		cfg.Retain = n
	}
}

func WithCatchUp(enabled bool) Option {
	return func(cfg *Config) {
		cfg.CatchUp = enabled
	}
}

func WithStartHeight(height int64) Option {
	return func(cfg *Config) {
		cfg.StartHeight = height
	}
}

func WithPublisher(p Publisher) Option {
	return func(cfg *Config) {
		cfg.Publishers = append(cfg.Publishers, p)
	}
}

func WithSink(s Sink) Option {
	return func(cfg *Config) {
		cfg.Sinks = append(cfg.Sinks, s)
	}
}

type cacheDocument struct {
	Blocks []Snapshot `json:"blocks" yaml:"blocks"`
}

// Monitor follows the ledger tip and keeps the most recent snapshots of
// blocks touching the tracked contract.
type Monitor struct {
	reader   ledger.Reader
	contract string
	backend  store.Backend
	cfg      Config

	// mu is held for a whole poll cycle.
	mu     sync.Mutex
	cursor uint64
	cache  *deque.Deque
}

// New restores the cursor and cache from the backend.
func New(reader ledger.Reader, contract string, backend store.Backend, options ...Option) (*Monitor, error) {
	cfg := DefaultConfig
	cfg.Publishers = nil
	cfg.Sinks = nil
	for _, option := range options {
		option(&cfg)
	}
	if cfg.Retain <= 0 {
		return nil, errors.Errorf("retain must be positive, got %d", cfg.Retain)
	}
	if cfg.Interval <= 0 {
		return nil, errors.Errorf("interval must be positive, got %s", cfg.Interval)
	}
	m := &Monitor{
		reader:   reader,
		contract: contract,
		backend:  backend,
		cfg:      cfg,
		cache:    deque.New(),
	}

	var cursor uint64
	err := backend.Load(CurrentBlockKey, &cursor)
	switch {
	case err == nil:
		m.cursor = cursor
		log.Infof("Block cursor found: %d", cursor)
	case errors.Is(err, store.ErrNotFound):
		log.Infof("No block cursor stored, starting from the first block")
	default:
		return nil, failure.Storage(err, "could not read block cursor")
	}
	// the cursor never moves backwards
	if cfg.StartHeight >= 0 {
		if uint64(cfg.StartHeight) > m.cursor {
			m.cursor = uint64(cfg.StartHeight)
			log.Infof("Starting after requested height %d", m.cursor)
		} else if uint64(cfg.StartHeight) < m.cursor {
			log.Warnf("Ignoring start height %d, already processed up to %d", cfg.StartHeight, m.cursor)
		}
	}

	doc := cacheDocument{}
	err = backend.Load(BlocksKey, &doc)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, failure.Storage(err, "could not read block cache")
	}
	for _, snap := range doc.Blocks {
		m.push(snap)
	}
	metrics.Cursor.Set(float64(m.cursor))
	return m, nil
}

// push appends snap unless a block at or above its height is already cached.
func (m *Monitor) push(snap Snapshot) bool {
	if n := m.cache.Len(); n > 0 && snap.BlockNumber <= m.cache.At(n-1).(Snapshot).BlockNumber {
		return false
	}
	m.cache.PushBack(snap)
	for m.cache.Len() > m.cfg.Retain {
		m.cache.PopFront()
	}
	return true
}

func (m *Monitor) restore(snapshots []Snapshot) {
	m.cache = deque.New()
	for _, snap := range snapshots {
		m.push(snap)
	}
}

func (m *Monitor) snapshots() []Snapshot {
	out := make([]Snapshot, 0, m.cache.Len())
	for i := 0; i < m.cache.Len(); i++ {
		out = append(out, m.cache.At(i).(Snapshot).Clone())
	}
	return out
}

// Poll runs one cycle. A fetch failure leaves the cursor where it was and is
// returned as a transient monitor error; the next cycle retries it.
func (m *Monitor) Poll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	height, err := m.reader.CurrentHeight(ctx)
	if err != nil {
		metrics.Polls.WithLabelValues("error").Inc()
		fault := failure.MonitorTransient(err, m.cursor+1)
		log.Warnf("Block monitor error: %v", fault)
		return fault
	}
	if height <= m.cursor {
		metrics.Polls.WithLabelValues("idle").Inc()
		log.Debugf("No new blocks, height=%d", height)
		return nil
	}

	from := height
	if m.cfg.CatchUp {
		from = m.cursor + 1
		if height-from >= catchUpBatch {
			height = from + catchUpBatch - 1
		}
	}
	prior := m.snapshots()
	processed := m.cursor
	var appended []Snapshot
	for h := from; h <= height; h++ {
		block, err := m.reader.Block(ctx, h)
		if err != nil {
			metrics.Polls.WithLabelValues("error").Inc()
			cerr := m.commit(prior, processed, appended)
			if cerr != nil {
				return cerr
			}
			fault := failure.MonitorTransient(err, h)
			log.Warnf("Block monitor error: %v", fault)
			return fault
		}
		snap, relevant := NewSnapshot(block, m.contract)
		if relevant && m.push(snap) {
			appended = append(appended, snap)
			log.Infof("New block %d with %d contract txs", h, len(snap.Transactions))
		}
		processed = h
	}
	err = m.commit(prior, processed, appended)
	if err != nil {
		metrics.Polls.WithLabelValues("error").Inc()
		return err
	}
	metrics.Polls.WithLabelValues("processed").Inc()
	return nil
}

// commit persists the cache and then the cursor, and only then notifies
// publishers and sinks. When the cache cannot be written the cycle is undone
// and the same heights are fetched again next time.
func (m *Monitor) commit(prior []Snapshot, height uint64, appended []Snapshot) error {
	if height == m.cursor {
		return nil
	}
	if len(appended) > 0 {
		err := m.backend.Save(BlocksKey, cacheDocument{Blocks: m.snapshots()})
		if err != nil {
			m.restore(prior)
			log.Errorf("Failed to persist block cache, keeping cursor at %d: %v", m.cursor, err)
			return failure.Storage(err, "could not write block cache")
		}
	}
	m.cursor = height
	metrics.Cursor.Set(float64(height))
	err := m.backend.Save(CurrentBlockKey, height)
	if err != nil {
		log.Errorf("Failed to persist block cursor %d: %v", height, err)
	}
	for _, snap := range appended {
		for _, p := range m.cfg.Publishers {
			p.Publish(snap.Clone())
		}
	}
	for _, sink := range m.cfg.Sinks {
		err := sink.StoreBulk(appended)
		if err != nil {
			log.Errorf("Failed exporting %d blocks: %v", len(appended), err)
		}
	}
	return nil
}

// Run polls until the context is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	log.Infof("Monitoring contract %s every %s, starting after height %d", m.contract, m.cfg.Interval, m.Cursor())
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()
	for {
		// transient errors are logged by Poll and retried on the next tick
		_ = m.Poll(ctx)
		select {
		case <-ctx.Done():
			log.Infof("Block monitor stopped at height %d", m.Cursor())
			return nil
		case <-ticker.C:
		}
	}
}

func (m *Monitor) Cursor() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursor
}

// Recent returns the retained snapshots, oldest first.
func (m *Monitor) Recent() []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshots()
}

// FindTransaction returns the retained snapshot holding txHash.
func (m *Monitor) FindTransaction(txHash string) (Snapshot, bool) {
	if txHash == "" {
		return Snapshot{}, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := m.cache.Len() - 1; i >= 0; i-- {
		snap := m.cache.At(i).(Snapshot)
		if snap.Contains(txHash) {
			return snap.Clone(), true
		}
	}
	return Snapshot{}, false
}
