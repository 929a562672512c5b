package cache

import (
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"argus/internal/config"
	"argus/internal/store"
)

// Snapshot is the latest captured frame for a camera.
type Snapshot struct {
	CameraID   string
	Data       []byte
	CapturedAt time.Time
}

// Stats counts lookups for one cache.
type Stats struct {
	Hits   uint64
	Misses uint64
}

type counters struct {
	hits   atomic.Uint64
	misses atomic.Uint64
}

func (c *counters) record(hit bool) {
	if hit {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
}

func (c *counters) stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// Caches bundles the in-process read caches: a TTL LRU holding the latest
// snapshot per camera, a capacity LRU for hot event lookups, and a
// generation-stamped camera list.
//
// The camera list cache is coherent under writes: every camera mutation
// bumps a generation counter and a stored list is only served while its
// stamp matches, so a read after a write never sees the stale list. The
// TTL on snapshots only bounds staleness; eviction never blocks writers.
type Caches struct {
	snapshots *expirable.LRU[string, Snapshot]
	events    *lru.Cache[int64, *store.Event]

	cameraMu  sync.Mutex
	cameraGen atomic.Uint64
	cameras   []*store.Camera
	camerasAt time.Time
	stampGen  uint64
	cameraTTL time.Duration

	snapshotCounters counters
	eventCounters    counters
	cameraCounters   counters
}

// New builds the cache set from configuration.
func New(cfg *config.Config) *Caches {
	snapshotEntries := cfg.Cache.SnapshotEntries
	if snapshotEntries <= 0 {
		snapshotEntries = 64
	}
	eventEntries := cfg.Cache.EventEntries
	if eventEntries <= 0 {
		eventEntries = 512
	}
	snapshotTTL := time.Duration(cfg.Cache.SnapshotTTLSeconds) * time.Second
	cameraTTL := time.Duration(cfg.Cache.CameraTTLSeconds) * time.Second

	events, err := lru.New[int64, *store.Event](eventEntries)
	if err != nil {
		// Size is validated positive above; New only fails on size <= 0.
		panic(err)
	}
	return &Caches{
		snapshots: expirable.NewLRU[string, Snapshot](snapshotEntries, nil, snapshotTTL),
		events:    events,
		cameraTTL: cameraTTL,
	}
}

// PutSnapshot stores the latest frame for a camera.
func (c *Caches) PutSnapshot(cameraID string, data []byte, capturedAt time.Time) {
	c.snapshots.Add(cameraID, Snapshot{CameraID: cameraID, Data: data, CapturedAt: capturedAt})
}

// Snapshot returns the cached frame for a camera, if fresh.
func (c *Caches) Snapshot(cameraID string) (Snapshot, bool) {
	snap, ok := c.snapshots.Get(cameraID)
	c.snapshotCounters.record(ok)
	return snap, ok
}

// PutEvent stores an event for hot lookups.
func (c *Caches) PutEvent(event *store.Event) {
	if event == nil {
		return
	}
	c.events.Add(event.ID, event)
}

// Event returns a cached event by identifier.
func (c *Caches) Event(id int64) (*store.Event, bool) {
	event, ok := c.events.Get(id)
	c.eventCounters.record(ok)
	return event, ok
}

// CameraList returns the cached full camera list when it is both inside
// its TTL and stamped with the current generation.
func (c *Caches) CameraList() ([]*store.Camera, bool) {
	c.cameraMu.Lock()
	defer c.cameraMu.Unlock()

	ok := c.cameras != nil &&
		c.stampGen == c.cameraGen.Load() &&
		(c.cameraTTL <= 0 || time.Since(c.camerasAt) < c.cameraTTL)
	c.cameraCounters.record(ok)
	if !ok {
		return nil, false
	}
	return c.cameras, true
}

// StoreCameraList caches the camera list stamped with the generation that
// was current when the caller read it. A write racing this store bumps
// the generation and the entry is dead on arrival, never served.
func (c *Caches) StoreCameraList(cameras []*store.Camera, gen uint64) {
	c.cameraMu.Lock()
	defer c.cameraMu.Unlock()
	c.cameras = cameras
	c.camerasAt = time.Now()
	c.stampGen = gen
}

// CameraGeneration returns the current camera write generation. Callers
// read it before querying the store and pass it to StoreCameraList.
func (c *Caches) CameraGeneration() uint64 {
	return c.cameraGen.Load()
}

// InvalidateCameras marks every stored camera list stale. Called on any
// camera write.
func (c *Caches) InvalidateCameras() {
	c.cameraGen.Add(1)
}

// Stats reports hit and miss counts by cache name for the metrics
// sampler.
func (c *Caches) Stats() map[string]Stats {
	return map[string]Stats{
		"snapshots": c.snapshotCounters.stats(),
		"events":    c.eventCounters.stats(),
		"cameras":   c.cameraCounters.stats(),
	}
}
