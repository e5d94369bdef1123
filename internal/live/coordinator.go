// Package live owns the canonical graph: it runs the initial vault scan,
// consumes filesystem change events, drives incremental reindexing, and
// publishes immutable snapshots to subscribers.
package live

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/cache"
	"github.com/starford/ansuz/internal/graph"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/parser"
	"github.com/starford/ansuz/internal/similarity"
	"github.com/starford/ansuz/internal/vault"
)

// State is the coordinator lifecycle: Idle -> Scanning -> Indexed <-> Reindexing.
type State int32

const (
	StateIdle State = iota
	StateScanning
	StateIndexed
	StateReindexing
)

func (s State) String() string {
	switch s {
	case StateScanning:
		return "scanning"
	case StateIndexed:
		return "indexed"
	case StateReindexing:
		return "reindexing"
	default:
		return "idle"
	}
}

// PublishFunc receives every newly published snapshot.
type PublishFunc func(*graph.Snapshot)

// Coordinator owns the single mutable working graph. All mutation happens
// on one goroutine (Scan, then the Run loop); readers only touch published
// snapshots.
type Coordinator struct {
	store    *vault.FS
	cache    *cache.Store
	engine   *similarity.Engine
	debounce time.Duration
	logger   *slog.Logger

	index   *graph.Index
	snap    atomic.Pointer[graph.Snapshot]
	state   atomic.Int32
	publish PublishFunc
}

// New creates a coordinator. cache may be nil (degraded, always-full-parse
// mode). publish may be nil.
func New(store *vault.FS, c *cache.Store, engine *similarity.Engine, debounce time.Duration, logger *slog.Logger, publish PublishFunc) *Coordinator {
	if debounce <= 0 {
		debounce = 400 * time.Millisecond
	}
	return &Coordinator{
		store:    store,
		cache:    c,
		engine:   engine,
		debounce: debounce,
		logger:   logger,
		index:    graph.NewIndex(),
		publish:  publish,
	}
}

// State returns the current lifecycle state.
func (co *Coordinator) State() State {
	return State(co.state.Load())
}

// Snapshot returns the latest published snapshot, or nil before the first
// scan completes. Snapshots are immutable and shared by reference.
func (co *Coordinator) Snapshot() *graph.Snapshot {
	return co.snap.Load()
}

// Scan performs the initial full walk: every indexable file is parsed (or
// restored from the metadata cache when its fingerprint matches), stale
// cache entries are dropped, and the first snapshot is published.
func (co *Coordinator) Scan(ctx context.Context) error {
	co.state.Store(int32(StateScanning))

	metas, err := co.store.List()
	if err != nil {
		co.state.Store(int32(StateIdle))
		return err
	}

	onDisk := make(map[string]struct{}, len(metas))
	for _, meta := range metas {
		if ctx.Err() != nil {
			co.state.Store(int32(StateIdle))
			return ctx.Err()
		}
		onDisk[meta.Path] = struct{}{}
		if note, ok := co.loadNote(meta); ok {
			co.index.Upsert(note)
		}
	}

	// Drop cache entries whose files no longer exist.
	if cached, err := co.cache.Fingerprints(); err == nil {
		for p := range cached {
			if _, ok := onDisk[p]; !ok {
				if delErr := co.cache.Delete(p); delErr != nil {
					co.logger.Warn("scan: cache delete failed",
						slog.String("path", p), slog.String("error", delErr.Error()))
				}
			}
		}
	} else {
		co.logger.Warn("scan: cache fingerprints failed", slog.String("error", err.Error()))
	}

	co.publishSnapshot()
	co.state.Store(int32(StateIndexed))
	co.logger.Info("scan: complete", slog.Int("files", co.index.Len()))
	return nil
}

// loadNote turns file metadata into a note, going through the cache for
// note kinds. A parse failure keeps the previous good state: if the note
// was already indexed the old record stands, otherwise the file is skipped.
func (co *Coordinator) loadNote(meta models.FileMeta) (models.Note, bool) {
	if !meta.Kind.IsNote() {
		return models.Note{
			Path:        meta.Path,
			Kind:        meta.Kind,
			Size:        meta.Size,
			Fingerprint: meta.Fingerprint,
		}, true
	}

	if n, ok := co.cache.Get(meta.Path, meta.Fingerprint); ok {
		return n, true
	}

	data, err := co.store.Read(meta.Path)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return models.Note{}, false
		}
		co.logger.Warn("index: read failed",
			slog.String("path", meta.Path), slog.String("error", err.Error()))
		return models.Note{}, false
	}

	res, err := parser.Parse(meta.Path, data)
	if err != nil {
		co.logger.Warn("index: parse failed",
			slog.String("path", meta.Path),
			slog.String("fingerprint", meta.Fingerprint),
			slog.String("error", err.Error()))
		if prev, ok := co.index.Get(meta.Path); ok {
			return prev, true
		}
		return models.Note{}, false
	}

	note := models.Note{
		Path:        meta.Path,
		Title:       res.Title,
		Kind:        meta.Kind,
		Size:        meta.Size,
		Tags:        res.Tags,
		Aliases:     res.Aliases,
		Links:       res.Links,
		Body:        res.Body,
		Fingerprint: meta.Fingerprint,
	}
	if err := co.cache.Put(note); err != nil {
		co.logger.Warn("index: cache put failed",
			slog.String("path", meta.Path), slog.String("error", err.Error()))
	}
	return note, true
}

// publishSnapshot builds a new immutable snapshot, recomputes similarity
// scores against it, and swaps it in atomically. Readers see either the
// fully-old or fully-new snapshot, never an interleaving.
func (co *Coordinator) publishSnapshot() {
	snap := co.index.Snapshot()
	co.engine.Compute(snap)
	co.snap.Store(snap)
	if co.publish != nil {
		co.publish(snap)
	}
}

// Run starts the fsnotify watcher on the vault root and processes change
// events until ctx is cancelled. Rapid events for the same path are
// coalesced: the debounce timer resets on every event and one reindex
// batch runs per quiet window.
//
// Rename policy: fsnotify reports Rename on the old path only, with the
// new path arriving as a separate Create event. Renames are therefore
// processed as delete-then-create, and a reconciliation sweep runs after
// any rename in case the paired Create never arrived.
func (co *Coordinator) Run(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := co.addDirsRecursive(w, co.store.Root()); err != nil {
		return err
	}

	co.logger.Info("watcher: started", slog.String("root", co.store.Root()))

	pending := make(map[string]struct{})
	needReconcile := false

	var flushTimer *time.Timer
	var flushCh <-chan time.Time
	scheduleFlush := func() {
		if flushTimer == nil {
			flushTimer = time.NewTimer(co.debounce)
			flushCh = flushTimer.C
		} else {
			flushTimer.Reset(co.debounce)
		}
	}

	enqueue := func(rel string) {
		pending[rel] = struct{}{}
		scheduleFlush()
	}

	for {
		select {
		case <-ctx.Done():
			if flushTimer != nil {
				flushTimer.Stop()
			}
			co.logger.Info("watcher: stopped")
			return nil

		case <-flushCh:
			if len(pending) == 0 && !needReconcile {
				continue
			}
			batch := make([]string, 0, len(pending))
			for p := range pending {
				batch = append(batch, p)
			}
			pending = make(map[string]struct{})
			if needReconcile {
				needReconcile = false
				co.reconcile(batch)
			} else {
				co.reindex(batch)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name

			// New directories: watch them and enqueue their contents.
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := co.addDirsRecursive(w, absPath); addErr != nil {
						co.logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath), slog.String("error", addErr.Error()))
					}
					co.enqueueDir(absPath, enqueue)
					continue
				}
			}

			rel, relErr := filepath.Rel(co.store.Root(), absPath)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)
			if !co.store.Indexable(rel) {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove) != 0:
				enqueue(rel)
			case ev.Op&fsnotify.Rename != 0:
				// Old path of a rename: the stat in the reindex batch will
				// see it gone and remove it; the sweep catches the new path.
				enqueue(rel)
				needReconcile = true
				scheduleFlush()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			co.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reindex processes one coalesced batch of changed paths: each path is
// re-statted, parsed or removed, and a single new snapshot is published.
func (co *Coordinator) reindex(paths []string) {
	co.state.Store(int32(StateReindexing))
	defer co.state.Store(int32(StateIndexed))

	sort.Strings(paths)
	changed := false

	for _, rel := range paths {
		meta, err := co.store.Stat(rel)
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			if co.index.Remove(rel) {
				changed = true
				co.logger.Debug("reindex: removed", slog.String("path", rel))
			}
			if delErr := co.cache.Delete(rel); delErr != nil {
				co.logger.Warn("reindex: cache delete failed",
					slog.String("path", rel), slog.String("error", delErr.Error()))
			}
		case err != nil:
			co.logger.Warn("reindex: stat failed",
				slog.String("path", rel), slog.String("error", err.Error()))
		default:
			if note, ok := co.loadNote(meta); ok {
				co.index.Upsert(note)
				changed = true
				co.logger.Debug("reindex: indexed", slog.String("path", rel))
			}
		}
	}

	if changed {
		co.publishSnapshot()
	}
}

// reconcile runs a full disk/index diff on top of a pending batch. Used
// after renames, where the watcher only names the old path.
func (co *Coordinator) reconcile(pendingPaths []string) {
	metas, err := co.store.List()
	if err != nil {
		co.logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		co.reindex(pendingPaths)
		return
	}

	seen := make(map[string]struct{}, len(metas)+len(pendingPaths))
	batch := make([]string, 0, len(metas)+len(pendingPaths))
	add := func(p string) {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			batch = append(batch, p)
		}
	}
	for _, p := range pendingPaths {
		add(p)
	}
	// Disk files whose fingerprint moved, plus indexed paths gone from disk.
	onDisk := make(map[string]struct{}, len(metas))
	for _, meta := range metas {
		onDisk[meta.Path] = struct{}{}
		if prev, ok := co.index.Get(meta.Path); !ok || prev.Fingerprint != meta.Fingerprint {
			add(meta.Path)
		}
	}
	for _, p := range co.index.Paths() {
		if _, ok := onDisk[p]; !ok {
			add(p)
		}
	}

	co.logger.Debug("reconcile: sweeping", slog.Int("paths", len(batch)))
	co.reindex(batch)
}

// enqueueDir enqueues every indexable file already inside a newly created
// directory.
func (co *Coordinator) enqueueDir(dirPath string, enqueue func(string)) {
	_ = filepath.WalkDir(dirPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(co.store.Root(), p)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if co.store.Indexable(rel) {
			enqueue(rel)
		}
		return nil
	})
}

// addDirsRecursive adds root and its indexable subdirectories to the
// watcher. Ignored and dot directories are skipped whole, mirroring the
// vault walk, so .git or node_modules trees never consume watches. Walk
// errors below the root are logged and skipped rather than aborting the
// watcher.
func (co *Coordinator) addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			co.logger.Warn("watcher: walk error",
				slog.String("path", path), slog.String("error", err.Error()))
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(co.store.Root(), path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if rel != "." && !co.store.Indexable(rel) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
