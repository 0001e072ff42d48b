package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ignite/chartermatch/internal/pkg/logger"
)

// TaskKind partitions the registry the way the control routes do.
type TaskKind string

const (
	KindProducer TaskKind = "producer"
	KindConsumer TaskKind = "consumer"
)

// TaskFunc is a task body. It runs on its own goroutine until it finishes
// its work or the signal is raised; workers is the pool width parsed off the
// task name, 1 unless the caller asked for more.
type TaskFunc func(ctx context.Context, rt *Runtime, stop *Signal, workers int)

// Task is one registry entry.
type Task struct {
	Name string
	Kind TaskKind

	fn      TaskFunc
	stop    *Signal
	mu      sync.Mutex
	running bool
}

func (t *Task) markRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return false
	}
	t.running = true
	return true
}

func (t *Task) markStopped() {
	t.mu.Lock()
	t.running = false
	t.mu.Unlock()
}

// Running reports whether the task goroutine is live.
func (t *Task) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// TaskInfo is one dashboard button row.
type TaskInfo struct {
	Name     string `json:"name"`
	StartURL string `json:"start_url"`
	EndURL   string `json:"end_url"`
}

// Supervisor owns the task registry and the goroutines behind it. All
// control-surface traffic lands here.
type Supervisor struct {
	rt    *Runtime
	mu    sync.Mutex
	tasks map[string]*Task
	order []string
	wg    sync.WaitGroup
}

// NewSupervisor returns an empty supervisor bound to rt.
func NewSupervisor(rt *Runtime) *Supervisor {
	rt.ApplyDefaults()
	return &Supervisor{rt: rt, tasks: make(map[string]*Task)}
}

// Register adds a task under its canonical (unprefixed) name. The kind is
// read off the name's last segment.
func (s *Supervisor) Register(name string, fn TaskFunc) {
	kind := KindConsumer
	if strings.HasSuffix(name, "_producer") {
		kind = KindProducer
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[name]; ok {
		return
	}
	s.tasks[name] = &Task{Name: name, Kind: kind, fn: fn, stop: NewSignal()}
	s.order = append(s.order, name)
}

// ParseWorkerPrefix splits an optional integer prefix off a task name:
// "5_gpt_email_consumer" means five workers on gpt_email_consumer. Names
// without a prefix run one worker.
func ParseWorkerPrefix(name string) (int, string) {
	i := strings.Index(name, "_")
	if i <= 0 {
		return 1, name
	}
	n, err := strconv.Atoi(name[:i])
	if err != nil {
		return 1, name
	}
	if n < 1 {
		n = 1
	}
	return n, name[i+1:]
}

func (s *Supervisor) lookup(name string) (*Task, int, error) {
	workers, base := ParseWorkerPrefix(name)
	s.mu.Lock()
	t := s.tasks[base]
	s.mu.Unlock()
	if t == nil {
		return nil, 0, fmt.Errorf("task '%s' not found", base)
	}
	return t, workers, nil
}

// Start launches the named task, honoring a worker-count prefix. Starting a
// running task is reported and ignored.
func (s *Supervisor) Start(ctx context.Context, name string) error {
	t, workers, err := s.lookup(name)
	if err != nil {
		return err
	}
	if !t.markRunning() {
		s.rt.Log.Warningf("task %s is already running, start request ignored", t.Name)
		return nil
	}
	t.stop.Clear()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer t.markStopped()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("task panicked", "task", t.Name, "panic", fmt.Sprint(r))
				s.rt.Log.Errorf("task %s crashed: %v", t.Name, r)
			}
		}()
		t.fn(ctx, s.rt, t.stop, workers)
	}()
	return nil
}

// Stop raises the named task's signal. The task exits after its in-flight
// unit of work.
func (s *Supervisor) Stop(name string) error {
	t, _, err := s.lookup(name)
	if err != nil {
		return err
	}
	if !t.Running() {
		s.rt.Log.Warningf("task %s is not running, end request ignored", t.Name)
		return nil
	}
	t.stop.Set()
	return nil
}

// StopAll raises every signal and waits up to timeout for the goroutines to
// drain. Used on process shutdown.
func (s *Supervisor) StopAll(timeout time.Duration) {
	s.mu.Lock()
	for _, name := range s.order {
		s.tasks[name].stop.Set()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		logger.Warn("tasks still running at shutdown deadline")
	}
}

// Describe lists every registered task as a dashboard button row, in
// registration order.
func (s *Supervisor) Describe() []TaskInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TaskInfo, 0, len(s.order))
	for _, name := range s.order {
		t := s.tasks[name]
		out = append(out, TaskInfo{
			Name:     displayName(name),
			StartURL: fmt.Sprintf("/start/%s/%s", t.Kind, name),
			EndURL:   fmt.Sprintf("/end/%s/%s", t.Kind, name),
		})
	}
	return out
}

// displayName turns "mailbox_read_producer" into "Mailbox read producer".
func displayName(name string) string {
	s := strings.ReplaceAll(name, "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
