package schedule

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"matrixconsole/internal/store"
	logx "matrixconsole/pkg/logx"
)

type fakeStore struct {
	mu       sync.Mutex
	records  []store.Record
	failSave bool
	failLoad bool
}

func (f *fakeStore) Load(ctx context.Context) ([]store.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failLoad {
		return nil, errors.New("load broken")
	}
	out := make([]store.Record, len(f.records))
	copy(out, f.records)
	return out, nil
}

func (f *fakeStore) Save(ctx context.Context, records []store.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSave {
		return errors.New("save broken")
	}
	f.records = make([]store.Record, len(records))
	copy(f.records, records)
	return nil
}

func (f *fakeStore) Close() error { return nil }

func newTestService(t *testing.T, st store.Store) (*Service, *Runner) {
	t.Helper()
	reg := NewRegistry()
	reg.Register(TaskUpdate, noopAction)
	reg.Register(TaskRestart, noopAction)
	reg.Register(TaskBackup, noopAction)
	runner := NewRunner("", logx.Nop())
	return NewService(st, reg, runner, logx.Nop()), runner
}

func TestCreateBackupWeekly(t *testing.T) {
	fs := &fakeStore{}
	svc, runner := newTestService(t, fs)
	runner.Start(context.Background())
	defer runner.Stop(context.Background())

	id, err := svc.Create(context.Background(), "backup", "weekly", true)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ok, _ := regexp.MatchString(`^backup_\d{14}$`, id); !ok {
		t.Fatalf("id %q does not match backup_<14-digit-timestamp>", id)
	}

	records, jobs, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 1 || records[0].ID != id {
		t.Fatalf("persisted records = %+v, want one with id %s", records, id)
	}
	if records[0].Schedule != "weekly" || !records[0].Enabled {
		t.Fatalf("record fields not preserved: %+v", records[0])
	}
	if len(jobs) != 1 || jobs[0].ID != id {
		t.Fatalf("active jobs = %+v, want one with id %s", jobs, id)
	}
	if jobs[0].Next.IsZero() {
		t.Fatal("active job has no next fire time")
	}
}

func TestCreateRecordIDFormat(t *testing.T) {
	fs := &fakeStore{}
	svc, _ := newTestService(t, fs)
	svc.now = func() time.Time { return time.Date(2024, 3, 15, 4, 5, 6, 0, time.UTC) }

	id, err := svc.Create(context.Background(), "update", "daily", false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id != "update_20240315040506" {
		t.Fatalf("id = %q", id)
	}
}

func TestCreateSameSecondDistinctIDs(t *testing.T) {
	fs := &fakeStore{}
	svc, _ := newTestService(t, fs)
	svc.now = func() time.Time { return time.Date(2024, 3, 15, 4, 5, 6, 0, time.UTC) }

	first, err := svc.Create(context.Background(), "backup", "daily", false)
	if err != nil {
		t.Fatalf("first Create: %v", err)
	}
	second, err := svc.Create(context.Background(), "backup", "weekly", false)
	if err != nil {
		t.Fatalf("second Create: %v", err)
	}
	if first == second {
		t.Fatalf("both creates minted id %q", first)
	}
	if first != "backup_20240315040506" || second != "backup_20240315040507" {
		t.Fatalf("ids = %q, %q", first, second)
	}

	records, _, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 2 || records[0].ID == records[1].ID {
		t.Fatalf("persisted records = %+v, want two with distinct ids", records)
	}
}

func TestCreateValidation(t *testing.T) {
	fs := &fakeStore{}
	svc, _ := newTestService(t, fs)
	ctx := context.Background()

	tests := []struct {
		name       string
		taskType   string
		descriptor string
		wantMsg    string
	}{
		{"missing type", "", "daily", "Missing required fields"},
		{"missing descriptor", "backup", "", "Missing required fields"},
		{"unknown type", "snapshot", "daily", "Invalid task type: snapshot"},
		{"bad descriptor", "backup", "x y", "Invalid schedule format"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.taskType, tt.descriptor, true)
			if err == nil {
				t.Fatal("expected error")
			}
			if !IsValidation(err) {
				t.Fatalf("want ValidationError, got %T: %v", err, err)
			}
			if err.Error() != tt.wantMsg {
				t.Fatalf("message = %q, want %q", err.Error(), tt.wantMsg)
			}
		})
	}
	if len(fs.records) != 0 {
		t.Fatalf("rejected schedules were persisted: %+v", fs.records)
	}
}

func TestCreateDisabledNotActive(t *testing.T) {
	fs := &fakeStore{}
	svc, _ := newTestService(t, fs)

	_, err := svc.Create(context.Background(), "restart", "daily", false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	records, jobs, _ := svc.List(context.Background())
	if len(records) != 1 {
		t.Fatalf("expected persisted record, got %d", len(records))
	}
	if len(jobs) != 0 {
		t.Fatalf("disabled schedule became active: %+v", jobs)
	}
}

func TestCreateSaveFailure(t *testing.T) {
	fs := &fakeStore{failSave: true}
	svc, runner := newTestService(t, fs)

	id, err := svc.Create(context.Background(), "backup", "daily", true)
	if err == nil {
		t.Fatal("expected persistence error")
	}
	if !IsPersistence(err) {
		t.Fatalf("want PersistenceError, got %T: %v", err, err)
	}
	if id == "" {
		t.Fatal("id must still be returned; the job is live in this process")
	}
	if got := len(runner.Jobs()); got != 1 {
		t.Fatalf("job not registered despite save failure, have %d", got)
	}
}

func TestDeleteIdempotent(t *testing.T) {
	fs := &fakeStore{}
	svc, runner := newTestService(t, fs)

	if err := svc.Delete(context.Background(), "backup_19700101000000"); err != nil {
		t.Fatalf("deleting unknown id: %v", err)
	}

	id, err := svc.Create(context.Background(), "backup", "weekly", true)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.Delete(context.Background(), id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	records, jobs, _ := svc.List(context.Background())
	if len(records) != 0 || len(jobs) != 0 {
		t.Fatalf("delete left state behind: records=%+v jobs=%+v", records, jobs)
	}
	if err := svc.Delete(context.Background(), id); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	_ = runner
}

func TestRestoreSkipsBadRecords(t *testing.T) {
	fs := &fakeStore{records: []store.Record{
		{ID: "update_20240101010101", Type: "update", Schedule: "daily", Enabled: false, Created: "2024-01-01T01:01:01Z"},
		{ID: "restart_20240101010102", Type: "restart", Schedule: "x y", Enabled: true, Created: "2024-01-01T01:01:02Z"},
		{ID: "backup_20240101010103", Type: "backup", Schedule: "weekly", Enabled: true, Created: "2024-01-01T01:01:03Z"},
	}}
	svc, runner := newTestService(t, fs)
	runner.Start(context.Background())
	defer runner.Stop(context.Background())

	svc.Restore(context.Background())

	jobs := runner.Jobs()
	if len(jobs) != 1 {
		t.Fatalf("expected exactly one active job after bootstrap, got %d: %+v", len(jobs), jobs)
	}
	if jobs[0].ID != "backup_20240101010103" {
		t.Fatalf("wrong record restored: %+v", jobs[0])
	}

	// Skipped records stay in the store for the next restart.
	records, _, _ := svc.List(context.Background())
	if len(records) != 3 {
		t.Fatalf("bootstrap mutated the store: %+v", records)
	}
}

func TestRestoreLoadFailure(t *testing.T) {
	fs := &fakeStore{failLoad: true}
	svc, runner := newTestService(t, fs)

	svc.Restore(context.Background()) // must not panic or abort
	if got := len(runner.Jobs()); got != 0 {
		t.Fatalf("expected no jobs, got %d", got)
	}
}

func TestRestoreUnknownTaskType(t *testing.T) {
	fs := &fakeStore{records: []store.Record{
		{ID: "prune_20240101010101", Type: "prune", Schedule: "daily", Enabled: true, Created: "2024-01-01T01:01:01Z"},
	}}
	svc, runner := newTestService(t, fs)

	svc.Restore(context.Background())
	if got := len(runner.Jobs()); got != 0 {
		t.Fatalf("unknown task type was registered, have %d jobs", got)
	}
}
