package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/lensportal/lensportal-backend/pkg/logger"
)

type fakeLock struct {
	acquired bool
	held     bool
	extends  int
	lostOn   int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.held || f.acquired {
		return false, nil
	}
	f.acquired = true
	return true, nil
}

func (f *fakeLock) Extend(context.Context) error {
	f.extends++
	if f.lostOn > 0 && f.extends >= f.lostOn {
		return ErrLockLost
	}
	return nil
}

func (f *fakeLock) Release(context.Context) error { f.acquired = false; return nil }

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

type fakeRecorder struct {
	success, failure []string
	observed         int
}

func (f *fakeRecorder) ObserveDuration(string, time.Duration) { f.observed++ }
func (f *fakeRecorder) IncSuccess(job string)                 { f.success = append(f.success, job) }
func (f *fakeRecorder) IncFailure(job string)                 { f.failure = append(f.failure, job) }

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
}

func TestServiceRunCycleRunsAllJobsEvenOnFailure(t *testing.T) {
	success := &testJob{name: "success"}
	failure := &testJob{name: "fail", err: errors.New("boom")}
	registry, err := NewRegistry(success, failure)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	recorder := &fakeRecorder{}
	lock := &fakeLock{}
	service, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: registry,
		Lock:     lock,
		Metrics:  recorder,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if success.runs != 1 || failure.runs != 1 {
		t.Fatalf("expected each job once, got %d/%d", success.runs, failure.runs)
	}
	if len(recorder.success) != 1 || len(recorder.failure) != 1 || recorder.observed != 2 {
		t.Fatalf("unexpected metrics %+v", recorder)
	}
	if lock.acquired {
		t.Fatal("lock should be released after the cycle")
	}
	if lock.extends != 1 {
		t.Fatalf("expected the lease extended between jobs, got %d", lock.extends)
	}
}

func TestServiceRunCycleStopsWhenLeaseLost(t *testing.T) {
	first := &testJob{name: "first"}
	second := &testJob{name: "second"}
	registry, _ := NewRegistry(first, second)
	lock := &fakeLock{lostOn: 1}
	service, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: registry,
		Lock:     lock,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	err = service.runCycle(context.Background())
	if !errors.Is(err, ErrLockLost) {
		t.Fatalf("expected lock lost, got %v", err)
	}
	if first.runs != 1 || second.runs != 0 {
		t.Fatalf("expected only the first job to run, got %d/%d", first.runs, second.runs)
	}
	if lock.acquired {
		t.Fatal("lock should still be released")
	}
}

func TestServiceRunCycleSkipsWhenLockHeld(t *testing.T) {
	job := &testJob{name: "job"}
	registry, _ := NewRegistry(job)
	service, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: registry,
		Lock:     &fakeLock{held: true},
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("job should not run without the lock")
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	registry, _ := NewRegistry()
	if _, err := NewService(ServiceParams{Registry: registry, Lock: &fakeLock{}}); err == nil {
		t.Fatal("expected logger error")
	}
	if _, err := NewService(ServiceParams{Logger: testLogger(), Registry: registry}); err == nil {
		t.Fatal("expected lock error")
	}
	if _, err := NewService(ServiceParams{Logger: testLogger(), Lock: &fakeLock{}}); err == nil {
		t.Fatal("expected registry error")
	}
}
