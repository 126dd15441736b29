package schedule

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "matrixconsole/pkg/logx"
)

// JobInfo is one row of the active-job snapshot.
type JobInfo struct {
	ID   string
	Name string
	Next time.Time // zero when the engine is stopped
}

type job struct {
	id      string
	name    string
	rule    Rule
	action  Action
	entryID cron.EntryID
	running bool
}

// Runner is the recurrence engine: a cron-driven timer plus a job table
// guarded by one mutex. Job ids move absent -> scheduled -> running ->
// scheduled (or absent); at most one execution per id runs at a time.
type Runner struct {
	log logx.Logger
	loc *time.Location

	mu      sync.Mutex
	c       *cron.Cron
	jobs    map[string]*job
	baseCtx context.Context
}

func NewRunner(timezone string, log logx.Logger) *Runner {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Runner{
		log:  log,
		loc:  loadLocation(timezone, log),
		jobs: map[string]*job{},
	}
}

func loadLocation(tz string, log logx.Logger) *time.Location {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Warn("invalid timezone, falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

// Start begins firing. Jobs added before Start are registered now.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.c != nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	r.baseCtx = ctx
	r.c = cron.New(cron.WithLocation(r.loc))
	for _, j := range r.jobs {
		r.scheduleLocked(j)
	}
	r.c.Start()
	r.log.Info("recurrence engine started", logx.String("tz", r.loc.String()), logx.Int("jobs", len(r.jobs)))
}

// Stop halts firing. In-flight executions complete on their own; job
// definitions stay in the table so a later Start resumes them.
func (r *Runner) Stop(ctx context.Context) {
	r.mu.Lock()
	c := r.c
	r.c = nil
	for _, j := range r.jobs {
		j.entryID = 0
	}
	r.mu.Unlock()

	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		// best-effort
	}
	r.log.Info("recurrence engine stopped")
}

// AddJob registers a job, replacing any existing job with the same id.
// The old job's pending firing is cancelled; there are never two entries
// for one id.
func (r *Runner) AddJob(id, name string, rule Rule, action Action) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("job id required")
	}
	if rule.Schedule == nil {
		return errors.New("job rule has no trigger")
	}
	if action == nil {
		return errors.New("job action required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.jobs[id]; ok && r.c != nil && old.entryID != 0 {
		r.c.Remove(old.entryID)
	}
	j := &job{id: id, name: name, rule: rule, action: action}
	r.jobs[id] = j
	if r.c != nil {
		r.scheduleLocked(j)
	}
	r.log.Debug("job registered", logx.String("id", id), logx.String("spec", rule.Spec))
	return nil
}

// RemoveJob cancels a job's pending firing and drops it from the table.
// Removing an unknown id is a no-op; an in-flight execution completes but
// nothing further is scheduled.
func (r *Runner) RemoveJob(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return
	}
	if r.c != nil && j.entryID != 0 {
		r.c.Remove(j.entryID)
	}
	delete(r.jobs, id)
	r.log.Debug("job removed", logx.String("id", id))
}

// Jobs returns a stable snapshot of the scheduled jobs, sorted by id.
func (r *Runner) Jobs() []JobInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().In(r.loc)
	out := make([]JobInfo, 0, len(r.jobs))
	for _, j := range r.jobs {
		info := JobInfo{ID: j.id, Name: j.name}
		if r.c != nil {
			info.Next = j.rule.Schedule.Next(now)
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out
}

func (r *Runner) scheduleLocked(j *job) {
	id := j.id
	j.entryID = r.c.Schedule(j.rule.Schedule, cron.FuncJob(func() { r.fire(id) }))
}

// fire runs one due slot for id. If the previous execution is still in
// flight the slot is skipped outright; the cron entry recomputes its next
// fire time from "now", so skipped work is never stacked.
func (r *Runner) fire(id string) {
	r.mu.Lock()
	j, ok := r.jobs[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	if j.running {
		r.mu.Unlock()
		r.log.Warn("job still running, skipping this slot", logx.String("id", id))
		return
	}
	j.running = true
	name := j.name
	action := j.action
	ctx := r.baseCtx
	r.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}

	start := time.Now()
	err := runAction(ctx, action)

	r.mu.Lock()
	if cur, ok := r.jobs[id]; ok && cur == j {
		cur.running = false
	}
	r.mu.Unlock()

	if err != nil {
		r.log.Error("job failed", logx.String("id", id), logx.String("name", name),
			logx.Duration("took", time.Since(start)), logx.Err(err))
		return
	}
	r.log.Info("job ok", logx.String("id", id), logx.String("name", name),
		logx.Duration("took", time.Since(start)))
}

// runAction contains failures (errors and panics) to the execution
// boundary so a broken action never takes the engine down.
func runAction(ctx context.Context, action Action) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("action panic: %v", rec)
		}
	}()
	return action(ctx)
}
