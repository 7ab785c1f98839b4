package platform

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

type RestartPolicy string

const (
	RestartPermanent RestartPolicy = "permanent"
	RestartTransient RestartPolicy = "transient"
	RestartTemporary RestartPolicy = "temporary"
)

type SupervisorPolicy struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
	MaxRestarts    int
}

func defaultSupervisorPolicy() SupervisorPolicy {
	return SupervisorPolicy{
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     200 * time.Millisecond,
		BackoffFactor:  2.0,
	}
}

type RunStatus struct {
	Name         string `json:"name"`
	RestartCount int    `json:"restart_count"`
	LastError    string `json:"last_error,omitempty"`
	Failed       bool   `json:"failed"`
}

// Supervisor keeps long-lived background runs alive. A permanent run is
// restarted with exponential backoff whenever it exits; a transient run only
// when it exits with an error.
type Supervisor struct {
	policy SupervisorPolicy

	mu    sync.Mutex
	tasks map[string]*supervisedTask
}

type supervisedTask struct {
	cancel context.CancelFunc
	done   chan struct{}

	restart      RestartPolicy
	restartCount int
	lastErr      error
	failed       bool
}

func NewSupervisor(policy SupervisorPolicy) *Supervisor {
	def := defaultSupervisorPolicy()
	if policy.InitialBackoff <= 0 {
		policy.InitialBackoff = def.InitialBackoff
	}
	if policy.MaxBackoff < policy.InitialBackoff {
		policy.MaxBackoff = def.MaxBackoff
	}
	if policy.MaxBackoff < policy.InitialBackoff {
		policy.MaxBackoff = policy.InitialBackoff
	}
	if policy.BackoffFactor < 1 {
		policy.BackoffFactor = def.BackoffFactor
	}
	return &Supervisor{
		policy: policy,
		tasks:  make(map[string]*supervisedTask),
	}
}

func (s *Supervisor) Start(name string, restart RestartPolicy, run func(ctx context.Context) error) error {
	if name == "" {
		return errors.New("run name is required")
	}
	if run == nil {
		return errors.New("run function is required")
	}
	switch restart {
	case RestartPermanent, RestartTransient, RestartTemporary:
	case "":
		restart = RestartPermanent
	default:
		return fmt.Errorf("unsupported restart policy: %s", restart)
	}

	ctx, cancel := context.WithCancel(context.Background())
	task := &supervisedTask{
		cancel:  cancel,
		done:    make(chan struct{}),
		restart: restart,
	}

	s.mu.Lock()
	if _, exists := s.tasks[name]; exists {
		s.mu.Unlock()
		cancel()
		return fmt.Errorf("run already supervised: %s", name)
	}
	s.tasks[name] = task
	s.mu.Unlock()

	go s.loop(ctx, name, task, run)
	return nil
}

func (s *Supervisor) loop(ctx context.Context, name string, task *supervisedTask, run func(ctx context.Context) error) {
	defer close(task.done)

	backoff := s.policy.InitialBackoff
	for {
		err := run(ctx)
		if ctx.Err() != nil {
			return
		}

		s.mu.Lock()
		task.lastErr = err
		restart := task.restart == RestartPermanent || (task.restart == RestartTransient && err != nil)
		if !restart {
			s.mu.Unlock()
			return
		}
		if s.policy.MaxRestarts > 0 && task.restartCount >= s.policy.MaxRestarts {
			task.failed = true
			s.mu.Unlock()
			return
		}
		task.restartCount++
		s.mu.Unlock()

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		backoff = time.Duration(float64(backoff) * s.policy.BackoffFactor)
		if backoff > s.policy.MaxBackoff {
			backoff = s.policy.MaxBackoff
		}
	}
}

func (s *Supervisor) Stop(name string) {
	s.mu.Lock()
	task, ok := s.tasks[name]
	s.mu.Unlock()
	if !ok {
		return
	}
	task.cancel()
	<-task.done

	s.mu.Lock()
	delete(s.tasks, name)
	s.mu.Unlock()
}

func (s *Supervisor) StopAll() {
	s.mu.Lock()
	tasks := make([]*supervisedTask, 0, len(s.tasks))
	for _, task := range s.tasks {
		tasks = append(tasks, task)
	}
	s.tasks = make(map[string]*supervisedTask)
	s.mu.Unlock()

	for _, task := range tasks {
		task.cancel()
	}
	for _, task := range tasks {
		<-task.done
	}
}

func (s *Supervisor) Runs() []RunStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]RunStatus, 0, len(names))
	for _, name := range names {
		task := s.tasks[name]
		status := RunStatus{
			Name:         name,
			RestartCount: task.restartCount,
			Failed:       task.failed,
		}
		if task.lastErr != nil {
			status.LastError = task.lastErr.Error()
		}
		out = append(out, status)
	}
	return out
}
