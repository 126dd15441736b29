package schedule

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"matrixconsole/internal/store"
	logx "matrixconsole/pkg/logx"
)

// Service ties the persistent schedule store, the task registry and the
// recurrence engine together. The store is the source of truth for what
// should exist; the runner for what will fire next in this process.
type Service struct {
	log    logx.Logger
	store  store.Store
	reg    *Registry
	runner *Runner

	// Serializes every load-modify-save sequence against the store;
	// the store itself provides no finer-grained locking.
	mu sync.Mutex

	now func() time.Time
}

func NewService(st store.Store, reg *Registry, runner *Runner, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		log:    log,
		store:  st,
		reg:    reg,
		runner: runner,
		now:    time.Now,
	}
}

// newRecordID builds "{task_type}_{yyyymmddhhmmss}". Two creates for the
// same type within one second would mint the same id, so the timestamp is
// advanced past any id already taken in records.
func (s *Service) newRecordID(t TaskType, records []store.Record) string {
	taken := make(map[string]struct{}, len(records))
	for _, r := range records {
		taken[r.ID] = struct{}{}
	}
	ts := s.now()
	for {
		id := fmt.Sprintf("%s_%s", t, ts.Format("20060102150405"))
		if _, ok := taken[id]; !ok {
			return id
		}
		ts = ts.Add(time.Second)
	}
}

// jobName renders the human label shown in job listings, e.g. "Backup - weekly".
func jobName(t TaskType, descriptor string) string {
	tag := string(t)
	if tag != "" {
		tag = strings.ToUpper(tag[:1]) + tag[1:]
	}
	return tag + " - " + descriptor
}

// Create validates, activates (when enabled) and persists a new schedule.
//
// On a store write failure the in-memory job stays registered and the id is
// still returned alongside a PersistenceError: the change took effect for
// this process but may not survive a restart.
func (s *Service) Create(ctx context.Context, taskType, descriptor string, enabled bool) (string, error) {
	if strings.TrimSpace(taskType) == "" || strings.TrimSpace(descriptor) == "" {
		return "", validationf("Missing required fields")
	}
	t, err := ParseTaskType(taskType)
	if err != nil {
		return "", err
	}
	rule, err := ParseDescriptor(descriptor)
	if err != nil {
		return "", err
	}
	action, err := s.reg.Resolve(taskType)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.store.Load(ctx)
	if err != nil {
		s.log.Warn("schedule load failed, starting from empty list", logx.Err(err))
		records = nil
	}

	id := s.newRecordID(t, records)
	if enabled {
		if err := s.runner.AddJob(id, jobName(t, descriptor), rule, action); err != nil {
			return "", err
		}
	}

	records = append(records, store.Record{
		ID:       id,
		Type:     string(t),
		Schedule: descriptor,
		Enabled:  enabled,
		Created:  s.now().Format(time.RFC3339),
	})
	if err := s.store.Save(ctx, records); err != nil {
		s.log.Warn("schedule save failed", logx.String("id", id), logx.Err(err))
		return id, &PersistenceError{Op: "create", Err: err}
	}
	s.log.Info("schedule created", logx.String("id", id), logx.String("descriptor", descriptor), logx.Bool("enabled", enabled))
	return id, nil
}

// Delete removes a schedule. Deleting an unknown or inactive id is a valid
// no-op; the runner removal is idempotent by design.
func (s *Service) Delete(ctx context.Context, id string) error {
	s.runner.RemoveJob(id)

	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.store.Load(ctx)
	if err != nil {
		s.log.Warn("schedule load failed, nothing to delete", logx.Err(err))
		return nil
	}
	kept := records[:0]
	for _, r := range records {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(records) {
		return nil
	}
	if err := s.store.Save(ctx, kept); err != nil {
		s.log.Warn("schedule save failed", logx.String("id", id), logx.Err(err))
		return &PersistenceError{Op: "delete", Err: err}
	}
	s.log.Info("schedule deleted", logx.String("id", id))
	return nil
}

// List returns the persisted records and the active-job snapshot.
func (s *Service) List(ctx context.Context) ([]store.Record, []JobInfo, error) {
	s.mu.Lock()
	records, err := s.store.Load(ctx)
	s.mu.Unlock()
	if err != nil {
		s.log.Warn("schedule load failed, listing empty", logx.Err(err))
		records = []store.Record{}
	}
	return records, s.runner.Jobs(), nil
}

// Restore re-registers every enabled persisted schedule on startup.
// A record that no longer parses or resolves is logged and skipped; it
// stays in the store and is retried on the next restart. One bad record
// never aborts bootstrap of the others.
func (s *Service) Restore(ctx context.Context) {
	s.mu.Lock()
	records, err := s.store.Load(ctx)
	s.mu.Unlock()
	if err != nil {
		s.log.Warn("schedule load failed, starting with no schedules", logx.Err(err))
		return
	}

	restored := 0
	for _, rec := range records {
		if !rec.Enabled {
			continue
		}
		rule, err := ParseDescriptor(rec.Schedule)
		if err != nil {
			s.log.Warn("skipping schedule: bad descriptor", logx.String("id", rec.ID),
				logx.String("descriptor", rec.Schedule), logx.Err(err))
			continue
		}
		action, err := s.reg.Resolve(rec.Type)
		if err != nil {
			s.log.Warn("skipping schedule: bad task type", logx.String("id", rec.ID),
				logx.String("type", rec.Type), logx.Err(err))
			continue
		}
		t, _ := ParseTaskType(rec.Type)
		if err := s.runner.AddJob(rec.ID, jobName(t, rec.Schedule), rule, action); err != nil {
			s.log.Warn("skipping schedule: register failed", logx.String("id", rec.ID), logx.Err(err))
			continue
		}
		restored++
	}
	s.log.Info("schedules restored", logx.Int("restored", restored), logx.Int("persisted", len(records)))
}
