package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// TaskFn is a housekeeping job. ctx is cancelled when the scheduler stops.
type TaskFn func(ctx context.Context)

const (
	KindTicker = "ticker"
	KindCron   = "cron"
)

// TaskInfo describes a registered task for the admin endpoints.
type TaskInfo struct {
	Name    string        `json:"name"`
	Kind    string        `json:"kind"`
	Every   time.Duration `json:"every,omitempty"`
	Spec    string        `json:"spec,omitempty"`
	NextRun *time.Time    `json:"next_run,omitempty"`
	LastRun *time.Time    `json:"last_run,omitempty"`
	Runs    int64         `json:"runs"`
	Panics  int64         `json:"panics"`
}

type task struct {
	info   TaskInfo
	cronID cron.EntryID
	cancel context.CancelFunc // tickers only
}

// Scheduler runs named interval and cron tasks. Re-adding a name replaces
// the previous task.
type Scheduler struct {
	mu      sync.Mutex
	tasks   map[string]*task
	cron    *cron.Cron
	logger  *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	stopped bool
}

func New(logger *zap.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		tasks:  make(map[string]*task),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
	// A cron job still running when its next slot comes up is skipped
	// rather than stacked.
	s.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	s.cron.Start()
	return s
}

// exec runs fn once, recording the outcome on t. A panic is logged and
// counted; the task stays scheduled.
func (s *Scheduler) exec(ctx context.Context, t *task, fn TaskFn) {
	start := time.Now()
	defer func() {
		r := recover()
		s.mu.Lock()
		t.info.Runs++
		t.info.LastRun = &start
		if r != nil {
			t.info.Panics++
		}
		s.mu.Unlock()
		if r != nil {
			s.logger.Error("scheduled task panicked", zap.String("task", t.info.Name), zap.Any("recover", r))
		}
	}()
	fn(ctx)
}

// drop must be called with mu held.
func (s *Scheduler) drop(name string) {
	t, ok := s.tasks[name]
	if !ok {
		return
	}
	if t.cancel != nil {
		t.cancel()
	}
	if t.info.Kind == KindCron {
		s.cron.Remove(t.cronID)
	}
	delete(s.tasks, name)
}

// AddTicker runs fn every interval until the task is removed or the
// scheduler stops.
func (s *Scheduler) AddTicker(name string, every time.Duration, fn TaskFn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.drop(name)

	ctx, cancel := context.WithCancel(s.ctx)
	t := &task{info: TaskInfo{Name: name, Kind: KindTicker, Every: every}, cancel: cancel}
	s.tasks[name] = t

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		tk := time.NewTicker(every)
		defer tk.Stop()
		for {
			select {
			case <-tk.C:
				s.exec(ctx, t, fn)
			case <-ctx.Done():
				return
			}
		}
	}()
	s.logger.Info("scheduler task registered", zap.String("name", name), zap.Duration("every", every))
}

// AddCron registers fn under a five-field cron expression or a descriptor
// such as "@daily".
func (s *Scheduler) AddCron(name, spec string, fn TaskFn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &task{info: TaskInfo{Name: name, Kind: KindCron, Spec: spec}}
	id, err := s.cron.AddFunc(spec, func() { s.exec(s.ctx, t, fn) })
	if err != nil {
		return err
	}
	s.drop(name)
	t.cronID = id
	s.tasks[name] = t
	s.logger.Info("cron task registered", zap.String("name", name), zap.String("spec", spec))
	return nil
}

// Remove is a no-op for unknown names.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	s.drop(name)
	s.mu.Unlock()
}

// Stop cancels every task context and waits for running jobs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	s.cancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()
}

// Tasks returns a snapshot of every registered task ordered by name.
func (s *Scheduler) Tasks() []TaskInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TaskInfo, 0, len(s.tasks))
	for _, t := range s.tasks {
		info := t.info
		if info.Kind == KindCron {
			next := s.cron.Entry(t.cronID).Next
			info.NextRun = &next
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Task looks up one task by name.
func (s *Scheduler) Task(name string) (TaskInfo, bool) {
	for _, info := range s.Tasks() {
		if info.Name == name {
			return info, true
		}
	}
	return TaskInfo{}, false
}
