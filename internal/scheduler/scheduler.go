// Package scheduler drives periodic polling and debounced auto-save.
//
// The scheduler owns two kinds of timers: one poll timer that syncs every
// task file on an interval, and one debounce timer per modified file. All
// resulting work goes through a syncqueue.Queue.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"mdtask/internal/syncqueue"
	"mdtask/internal/taskfile"
)

// pollKey coalesces poll ticks that pile up behind a slow poll.
const pollKey = "poll"

// Syncer is the engine surface the scheduler drives.
type Syncer interface {
	SyncLocalToRemote(ctx context.Context, path string) error
	SyncIfChanged(ctx context.Context, path string) (bool, error)
	HandleRename(ctx context.Context, path, oldPath string) error
	HandleDelete(ctx context.Context, path string) error
	Track(path string) error
}

// Files lists and reads vault files.
type Files interface {
	List(dir string) ([]string, error)
	Read(path string) (string, error)
}

// Settings controls the timers. Zero or negative intervals disable a timer.
type Settings struct {
	TaskFolder       string
	PollInterval     time.Duration
	AutoSaveInterval time.Duration
}

// PollResult counts the outcome of one poll.
type PollResult struct {
	Synced  int
	Skipped int // files without a remote_id
	Failed  int
}

// Scheduler turns timers and file events into queued sync operations.
type Scheduler struct {
	engine Syncer
	files  Files
	queue  *syncqueue.Queue
	timer  Timer
	logger *slog.Logger

	mu       sync.Mutex
	settings Settings
	running  bool
	gen      uint64 // bumped on every Start and Stop
	poll     Handle
	hasPoll  bool
	debounce map[string]Handle
}

// New creates a stopped scheduler.
func New(engine Syncer, files Files, queue *syncqueue.Queue, timer Timer, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		engine:   engine,
		files:    files,
		queue:    queue,
		timer:    timer,
		logger:   logger,
		debounce: make(map[string]Handle),
	}
}

// Start stops any running timers and starts the poll timer for settings.
// Calling Start again never leaves two poll timers behind.
func (s *Scheduler) Start(settings Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.settings = settings
	s.running = true
	if settings.PollInterval > 0 {
		s.schedulePollLocked()
	}
	s.logger.Debug("scheduler started",
		"poll", settings.PollInterval,
		"autosave", settings.AutoSaveInterval)
}

// Update applies new settings. It is Start under another name so callers
// can express intent.
func (s *Scheduler) Update(settings Settings) {
	s.Start(settings)
}

// Stop cancels the poll timer and every pending debounce. Operations
// already in the queue are not affected.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Scheduler) stopLocked() {
	s.gen++
	s.running = false
	if s.hasPoll {
		s.timer.Cancel(s.poll)
		s.hasPoll = false
	}
	for path, h := range s.debounce {
		s.timer.Cancel(h)
		delete(s.debounce, path)
	}
}

func (s *Scheduler) schedulePollLocked() {
	gen := s.gen
	s.poll = s.timer.Schedule(s.settings.PollInterval, func() { s.tick(gen) })
	s.hasPoll = true
}

func (s *Scheduler) tick(gen uint64) {
	s.mu.Lock()
	if !s.running || s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.schedulePollLocked()
	folder := s.settings.TaskFolder
	s.mu.Unlock()

	err := s.queue.Submit(pollKey, func(ctx context.Context) error {
		r := s.pollOnce(ctx, folder)
		s.logger.Info("poll finished", "synced", r.Synced, "skipped", r.Skipped, "failed", r.Failed)
		return nil
	})
	if err != nil {
		s.logger.Warn("poll not queued", "err", err)
	}
}

// PollNow queues a poll and waits for its result.
func (s *Scheduler) PollNow(ctx context.Context) (PollResult, error) {
	s.mu.Lock()
	folder := s.settings.TaskFolder
	s.mu.Unlock()

	var r PollResult
	err := s.queue.Do(ctx, func(ctx context.Context) error {
		r = s.pollOnce(ctx, folder)
		return nil
	})
	if err != nil {
		return PollResult{}, err
	}
	return r, nil
}

// pollOnce syncs every task file under folder in turn. A failing file is
// logged and counted; it does not stop the others.
func (s *Scheduler) pollOnce(ctx context.Context, folder string) PollResult {
	var r PollResult
	paths, err := s.files.List(folder)
	if err != nil {
		s.logger.Error("list task files", "folder", folder, "err", err)
		r.Failed++
		return r
	}
	for _, p := range paths {
		if ctx.Err() != nil {
			break
		}
		content, err := s.files.Read(p)
		if err != nil {
			s.logger.Warn("read task file", "path", p, "err", err)
			r.Failed++
			continue
		}
		if !taskfile.IsTaskFile(content) {
			r.Skipped++
			continue
		}
		if err := s.engine.SyncLocalToRemote(ctx, p); err != nil {
			s.logger.Warn("sync failed", "path", p, "err", err)
			r.Failed++
			continue
		}
		r.Synced++
	}
	return r
}

// TrackAll records every task file under the task folder in the index, so
// files that were never synced can still have their deletes propagated. It
// returns the number of task files found.
func (s *Scheduler) TrackAll() (int, error) {
	s.mu.Lock()
	folder := s.settings.TaskFolder
	s.mu.Unlock()

	paths, err := s.files.List(folder)
	if err != nil {
		return 0, err
	}
	var n int
	var errs []error
	for _, p := range paths {
		content, err := s.files.Read(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !taskfile.IsTaskFile(content) {
			continue
		}
		if err := s.engine.Track(p); err != nil {
			errs = append(errs, err)
			continue
		}
		n++
	}
	return n, errors.Join(errs...)
}

// FileModified tracks path and (re)starts its auto-save debounce. Nothing
// happens while the scheduler is stopped; the debounce is skipped when
// auto-save is disabled or the file has no remote_id.
func (s *Scheduler) FileModified(path string) {
	s.mu.Lock()
	interval := s.settings.AutoSaveInterval
	running := s.running
	s.mu.Unlock()
	if !running {
		return
	}

	if err := s.engine.Track(path); err != nil {
		s.logger.Debug("track failed", "path", path, "err", err)
	}
	if interval <= 0 {
		return
	}
	content, err := s.files.Read(path)
	if err != nil || !taskfile.IsTaskFile(content) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	if h, ok := s.debounce[path]; ok {
		s.timer.Cancel(h)
	}
	var h Handle
	h = s.timer.Schedule(interval, func() {
		s.mu.Lock()
		current, ok := s.debounce[path]
		if !ok || current != h {
			s.mu.Unlock()
			return
		}
		delete(s.debounce, path)
		s.mu.Unlock()
		s.submitAutoSave(path)
	})
	s.debounce[path] = h
}

func (s *Scheduler) submitAutoSave(path string) {
	err := s.queue.Submit(path, func(ctx context.Context) error {
		_, err := s.engine.SyncIfChanged(ctx, path)
		return err
	})
	if err != nil {
		s.logger.Warn("auto-save not queued", "path", path, "err", err)
	}
}

// FileRenamed queues propagation of a rename.
func (s *Scheduler) FileRenamed(path, oldPath string) {
	s.cancelDebounce(oldPath)
	err := s.queue.Submit(path, func(ctx context.Context) error {
		return s.engine.HandleRename(ctx, path, oldPath)
	})
	if err != nil {
		s.logger.Warn("rename not queued", "path", path, "err", err)
	}
}

// FileDeleted queues propagation of a delete.
func (s *Scheduler) FileDeleted(path string) {
	s.cancelDebounce(path)
	err := s.queue.Submit(path, func(ctx context.Context) error {
		return s.engine.HandleDelete(ctx, path)
	})
	if err != nil {
		s.logger.Warn("delete not queued", "path", path, "err", err)
	}
}

func (s *Scheduler) cancelDebounce(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.debounce[path]; ok {
		s.timer.Cancel(h)
		delete(s.debounce, path)
	}
}

// Pending returns the number of files waiting on a debounce.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.debounce)
}

// Settings returns the active settings.
func (s *Scheduler) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}
