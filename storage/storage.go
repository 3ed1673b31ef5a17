/*
Copyright (C) 2026  Carl-Philip Hänsch

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package storage is the facade spec.md section 4.3 describes: it binds
// the metadata store, block store, column store, name registry and input
// log into one open/close lifecycle and hands out write Sessions (4.4).
//
// It plays the role the teacher's storage/database.go database type and
// storage/settings.go InitSettings play combined: LoadDatabases' open
// sequence becomes Open's five steps, db.save()'s schema.json snapshot
// becomes the metastore, and InitSettings' onexit.Register graceful-
// shutdown hook is reused verbatim for Storage.Close.
package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dc0d/onexit"
	"github.com/fsnotify/fsnotify"

	"github.com/seriesdb/seriesdb/column"
	"github.com/seriesdb/seriesdb/inputlog"
	"github.com/seriesdb/seriesdb/log"
	"github.com/seriesdb/seriesdb/metastore"
	"github.com/seriesdb/seriesdb/registry"
	"github.com/seriesdb/seriesdb/status"
	"github.com/seriesdb/seriesdb/volume"
)

const (
	defaultNumVolumes       = 4
	defaultPageSize         = 1 << 16
	defaultNumShards        = 4
	defaultTailThreshold    = 1 << 20
	defaultSyncPeriod       = 2 * time.Second
	layoutManifestName      = "layout.json"
	metastoreDefaultName    = "meta.json"
	volumesDefaultDirName   = "volumes"
	inputLogDefaultDirName  = "inputlog"
)

// layoutManifest records where new_database put the metadata file and the
// volume set, so a later open(path) taking only the base directory can
// find them even when they were not placed at the conventional subpaths.
type layoutManifest struct {
	MetaPath    string `json:"meta_path"`
	VolumesPath string `json:"volumes_path"`
}

// Storage is the process-wide facade spec.md section 3 places at the top
// of the ownership graph: "NameRegistry Global: ... lives in Storage."
type Storage struct {
	basePath  string
	ephemeral bool

	meta    *metastore.Store
	backend volume.Backend
	volMgr  *volume.Manager
	colStore *column.Store
	global  *registry.Global
	log     *inputlog.InputLog

	syncPeriod time.Duration
	watcher    *fsnotify.Watcher
	wake       chan struct{}
	syncStop   chan struct{}
	syncWg     sync.WaitGroup

	running  atomic.Bool
	closing  atomic.Bool
	degraded atomic.Bool

	sessionWG sync.WaitGroup
}

// NewDatabase lays down an empty database at base: a metadata store at
// metaPath (base/meta.json if empty) declaring a volume set of numVolumes
// pages of pageSize bytes at volumesPath (base/volumes if empty), using
// the named allocation policy. Matches spec.md section 6's
// "new_database(base, meta_path, volumes_path, num_volumes, page_size,
// allocate)". The only allocation policy implemented is round-robin,
// volume.Manager's sole strategy.
func NewDatabase(base, metaPath, volumesPath string, numVolumes uint32, pageSize int, allocate string) error {
	if allocate != "" && allocate != "round-robin" {
		return status.New(status.BadInput, "unsupported allocation policy: "+allocate)
	}
	if metaPath == "" {
		metaPath = filepath.Join(base, metastoreDefaultName)
	}
	if volumesPath == "" {
		volumesPath = filepath.Join(base, volumesDefaultDirName)
	}
	if numVolumes == 0 {
		numVolumes = defaultNumVolumes
	}
	if pageSize == 0 {
		pageSize = defaultPageSize
	}
	if err := os.MkdirAll(base, 0750); err != nil {
		return status.Wrap(status.IoError, "mkdir database base", err)
	}

	backendArgs, _ := json.Marshal(struct {
		Dir string `json:"dir"`
	}{Dir: volumesPath})

	meta, err := metastore.Open(metaPath)
	if err != nil {
		return err
	}
	if err := meta.SetVolumeCatalog(metastore.VolumeSetConfig{
		Backend:     "file",
		BackendArgs: backendArgs,
		NumVolumes:  numVolumes,
		PageSize:    pageSize,
	}); err != nil {
		return err
	}
	if err := meta.SetEngineParameters(metastore.EngineParameters{
		NumShards:       defaultNumShards,
		BufferThreshold: inputlog.DefaultBufferThreshold,
		SyncPeriodMs:    int(defaultSyncPeriod / time.Millisecond),
	}); err != nil {
		return err
	}

	manifest, _ := json.MarshalIndent(layoutManifest{MetaPath: metaPath, VolumesPath: volumesPath}, "", "  ")
	if err := os.WriteFile(filepath.Join(base, layoutManifestName), manifest, 0640); err != nil {
		return status.Wrap(status.IoError, "write layout manifest", err)
	}
	return nil
}

// Open loads the database at path (construction mode (b): open-from-path),
// running the five-step sequence spec.md section 4.3 names.
func Open(path string) (*Storage, error) {
	return newFromBase(path, false)
}

// OpenEmpty builds a throwaway database under a fresh temp directory
// (construction mode (a): in-memory empty, for tests). It is not actually
// memory-backed — column.Store and volume.Manager need paged backing — but
// behaves like one: Close removes the temp directory.
func OpenEmpty() (*Storage, error) {
	dir, err := os.MkdirTemp("", "seriesdb-empty-*")
	if err != nil {
		return nil, status.Wrap(status.IoError, "create ephemeral database dir", err)
	}
	st, err := newFromBase(dir, true)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}
	return st, nil
}

func newFromBase(base string, ephemeral bool) (*Storage, error) {
	layout := layoutManifest{
		MetaPath:    filepath.Join(base, metastoreDefaultName),
		VolumesPath: filepath.Join(base, volumesDefaultDirName),
	}
	if raw, err := os.ReadFile(filepath.Join(base, layoutManifestName)); err == nil {
		_ = json.Unmarshal(raw, &layout)
	}

	// step 1: open MetadataStore, load dictionary snapshot + rescue points.
	meta, err := metastore.Open(layout.MetaPath)
	if err != nil {
		return nil, err
	}
	entries := meta.LoadSeries()
	seed := make(map[uint64]string, len(entries))
	for _, e := range entries {
		seed[e.ID] = e.Name
	}
	global := registry.NewGlobal(nil)
	global.LoadSnapshot(seed)

	// step 2: open BlockStore for the declared volume set.
	catalog := meta.VolumeCatalog()
	if catalog.Backend == "" {
		catalog = metastore.VolumeSetConfig{Backend: "file", NumVolumes: defaultNumVolumes, PageSize: defaultPageSize}
	}
	backend, err := volume.Open(catalog.Backend, layout.VolumesPath, catalog.BackendArgs)
	if err != nil {
		return nil, err
	}
	volMgr := volume.NewManager(backend, catalog.PageSize, catalog.NumVolumes)

	st := &Storage{
		basePath:  base,
		ephemeral: ephemeral,
		meta:      meta,
		backend:   backend,
		volMgr:    volMgr,
		global:    global,
		wake:      make(chan struct{}, 1),
		syncStop:  make(chan struct{}),
	}

	params := meta.EngineParameters()
	if params.NumShards == 0 {
		params.NumShards = defaultNumShards
	}
	if params.BufferThreshold == 0 {
		params.BufferThreshold = inputlog.DefaultBufferThreshold
	}
	if params.SyncPeriodMs == 0 {
		st.syncPeriod = defaultSyncPeriod
	} else {
		st.syncPeriod = time.Duration(params.SyncPeriodMs) * time.Millisecond
	}

	// step 3: construct ColumnStore, opening each known series at its last
	// known rescue points.
	st.colStore = column.NewStore(volMgr, defaultTailThreshold, st.onRescue)
	for id := range seed {
		if addrs, ok := meta.RescuePointsFor(id); ok {
			if err := st.colStore.OpenSeries(id, addrs); err != nil {
				log.WithComponent("storage").Warn().Uint64("series", id).Err(err).
					Msg("failed to reopen series tail at rescue points")
			}
		}
	}

	// step 4: open InputLog shards and run recovery. Recovery runs on every
	// open and replays every segment still on disk; no watermark check
	// decides whether it is needed.
	ilog, err := inputlog.Open(filepath.Join(base, inputLogDefaultDirName), params.NumShards, params.BufferThreshold)
	if err != nil {
		return nil, err
	}
	st.log = ilog

	report, err := ilog.Recover(inputlog.RecoveryCallbacks{
		DeclareSeries: func(id uint64, canonical string) {
			global.LoadSnapshot(map[uint64]string{id: canonical})
		},
		KnownSeries: func(id uint64) bool {
			_, err := global.NameOf(id)
			return err == nil
		},
		CommitWrite: st.colStore.CommitWrite,
	})
	if err != nil {
		return nil, err
	}
	if report.Collisions > 0 || report.WritesRecovered > 0 || report.TornTails > 0 {
		if err := persistDictionary(meta, global); err != nil {
			return nil, err
		}
		for i := uint64(0); i < report.Collisions; i++ {
			_ = meta.IncrCollisions()
		}
	}

	// step 5: start the sync worker and mark Running.
	st.startSyncWorker()
	st.running.Store(true)

	onexit.Register(func() { _ = st.Close() })
	return st, nil
}

func persistDictionary(meta *metastore.Store, global *registry.Global) error {
	matches := global.Search(func(registry.NamedID) bool { return true })
	out := make([]metastore.SeriesEntry, len(matches))
	for i, m := range matches {
		out[i] = metastore.SeriesEntry{ID: m.ID, Name: m.Name}
	}
	return meta.SaveSeries(out)
}

// Dependencies lets a test assemble a Storage from pre-built collaborators
// (construction mode (c)), skipping the on-disk open sequence entirely.
// Global and ColStore are required; the rest may be nil, in which case the
// corresponding facilities (recovery, the sync worker, write sessions that
// touch the input log) are simply unavailable.
type Dependencies struct {
	Meta        *metastore.Store
	Backend     volume.Backend
	VolMgr      *volume.Manager
	ColStore    *column.Store
	Global      *registry.Global
	Log         *inputlog.InputLog
	SyncPeriod  time.Duration
	StartWorker bool
}

// NewWithDependencies builds a Storage directly from deps, the construction
// mode spec.md section 4.3 calls "injected dependencies (tests), with
// optional worker."
func NewWithDependencies(deps Dependencies) (*Storage, error) {
	if deps.Global == nil {
		return nil, status.New(status.BadInput, "Dependencies.Global is required")
	}
	if deps.ColStore == nil {
		return nil, status.New(status.BadInput, "Dependencies.ColStore is required")
	}
	st := &Storage{
		meta:     deps.Meta,
		backend:  deps.Backend,
		volMgr:   deps.VolMgr,
		colStore: deps.ColStore,
		global:   deps.Global,
		log:      deps.Log,
		wake:     make(chan struct{}, 1),
		syncStop: make(chan struct{}),
	}
	st.syncPeriod = deps.SyncPeriod
	if st.syncPeriod <= 0 {
		st.syncPeriod = defaultSyncPeriod
	}
	if deps.StartWorker && st.log != nil && st.meta != nil {
		st.startSyncWorker()
	}
	st.running.Store(true)
	return st, nil
}

// onRescue is the column store's RescueCallback, wired at construction so
// a tail rotation's fresh addresses are durably recorded without the
// column package needing to know metastore exists (spec.md section 4.4
// step 3: "the session forwards [rescue points] to
// Storage.update_rescue_points").
func (s *Storage) onRescue(id uint64, addrs []volume.Addr) {
	if s.meta == nil {
		return
	}
	if err := s.meta.UpdateRescuePoints(id, addrs); err != nil {
		log.WithComponent("storage").Warn().Uint64("series", id).Err(err).
			Msg("failed to persist rescue points")
		s.degraded.Store(true)
	}
}

func (s *Storage) startSyncWorker() {
	if s.volumesWatchable() {
		s.watchVolumes()
	}
	s.syncWg.Add(1)
	go s.runSyncWorker()
}

func (s *Storage) volumesWatchable() bool {
	return s.basePath != ""
}

// watchVolumes coalesces an externally-triggered change under the volume
// directory (e.g. a concurrent remove_storage on the same mount) into the
// same wakeup channel the periodic ticker uses, per spec.md section 4.3
// "wakeups are coalesced".
func (s *Storage) watchVolumes() {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		log.WithComponent("storage").Warn().Err(err).Msg("fsnotify watcher unavailable")
		return
	}
	volumesPath := filepath.Join(s.basePath, volumesDefaultDirName)
	if err := w.Add(volumesPath); err != nil {
		_ = w.Close()
		return
	}
	s.watcher = w
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
					log.WithComponent("storage").Warn().Str("path", ev.Name).
						Msg("volume path removed or renamed out from under storage")
				}
				select {
				case s.wake <- struct{}{}:
				default:
				}
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			case <-s.syncStop:
				return
			}
		}
	}()
}

// runSyncWorker is the single background thread spec.md section 4.3
// describes: it forces column-store commits, persists rescue points
// (already done eagerly via onRescue, so this step is a safety net for
// tails that never crossed the rotation threshold), advances the
// input-log watermark, and reclaims segments below it.
func (s *Storage) runSyncWorker() {
	defer s.syncWg.Done()
	ticker := time.NewTicker(s.syncPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-s.syncStop:
			return
		case <-ticker.C:
			s.syncOnce()
		case <-s.wake:
			s.syncOnce()
		}
	}
}

func (s *Storage) syncOnce() {
	if s.colStore == nil {
		return
	}
	flushed, err := s.colStore.FlushAll()
	if err != nil {
		log.WithComponent("storage").Error().Err(err).Msg("sync worker flush failed")
		s.degraded.Store(true)
		return
	}
	for id, addrs := range flushed {
		s.onRescue(id, addrs)
	}
	if s.log == nil {
		return
	}
	for i := 0; i < s.log.NumShards(); i++ {
		sh := s.log.Shard(i)
		sh.AdvanceWatermark(sh.CurrentSeq())
		sh.ReclaimBelowWatermark()
	}
}

// CreateWriteSession opens a new Session bound to this Storage, matching
// spec.md section 6's "create_write_session() -> Session". It counts
// against the close barrier until the Session is Closed.
func (s *Storage) CreateWriteSession() (*Session, error) {
	if s.closing.Load() {
		return nil, status.New(status.Closed, "storage closed")
	}
	s.sessionWG.Add(1)
	return &Session{storage: s, local: registry.NewLocal(s.global)}, nil
}

// IsDegraded reports whether an unrecoverable I/O failure has latched the
// engine into the degraded state spec.md section 7 describes.
func (s *Storage) IsDegraded() bool { return s.degraded.Load() }

// GetStats returns the nested report spec.md section 6's "get_stats() ->
// tree" calls for.
func (s *Storage) GetStats() map[string]any {
	stats := map[string]any{
		"running":      s.running.Load(),
		"closed":       s.closing.Load(),
		"degraded":     s.degraded.Load(),
		"series_count": s.global.Len(),
	}
	if s.meta != nil {
		stats["collisions"] = s.meta.Collisions()
	}
	if s.log != nil {
		stats["shards"] = s.log.NumShards()
	}
	return stats
}

// Close waits for every known session to be released, stops the sync
// worker, flushes the column store, persists the dictionary one last time
// and closes the input log. Idempotent; a method called on any Session
// after Close returns Closed (spec.md section 4.3).
func (s *Storage) Close() error {
	if !s.closing.CompareAndSwap(false, true) {
		return nil
	}
	close(s.syncStop)
	s.syncWg.Wait()
	if s.watcher != nil {
		_ = s.watcher.Close()
	}
	s.sessionWG.Wait()

	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if s.colStore != nil {
		if _, err := s.colStore.FlushAll(); err != nil {
			record(err)
		}
	}
	if s.meta != nil && s.global != nil {
		record(persistDictionary(s.meta, s.global))
	}
	if s.log != nil {
		record(s.log.Close())
	}
	if s.volMgr != nil {
		record(s.volMgr.Sync())
		record(s.volMgr.Close())
	}
	s.running.Store(false)

	if s.ephemeral {
		_ = os.RemoveAll(s.basePath)
	}
	return firstErr
}
