package vdd

import (
	"context"
	"errors"
	"testing"
)

type fakeRunner struct {
	failures int
	calls    []string
}

func (f *fakeRunner) Run(ctx context.Context, action string) error {
	f.calls = append(f.calls, action)
	if len(f.calls) <= f.failures {
		return errors.New("transient failure")
	}
	return nil
}

type fakePipe struct {
	command string
	reply   string
	err     error
}

func (p *fakePipe) RequestResponse(ctx context.Context, command string) (string, error) {
	p.command = command
	return p.reply, p.err
}

func TestEnableRetriesThroughTransientFailures(t *testing.T) {
	runner := &fakeRunner{failures: 2}
	svc := &SubprocessService{Runner: runner}

	if err := svc.Enable(context.Background()); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if len(runner.calls) != 3 {
		t.Fatalf("expected 3 attempts (2 failures + 1 success), got %d", len(runner.calls))
	}
	for _, c := range runner.calls {
		if c != "enable" {
			t.Fatalf("expected every attempt to be 'enable', got %q", c)
		}
	}
}

func TestDisableGivesUpAfterMaxRetryCount(t *testing.T) {
	runner := &fakeRunner{failures: maxRetryCount}
	svc := &SubprocessService{Runner: runner}

	if err := svc.Disable(context.Background()); err == nil {
		t.Fatal("expected Disable to report the last failure once retries are exhausted")
	}
	if len(runner.calls) != maxRetryCount {
		t.Fatalf("expected exactly %d attempts, got %d", maxRetryCount, len(runner.calls))
	}
}

func TestReloadSendsReloadDriverOverThePipe(t *testing.T) {
	pipe := &fakePipe{reply: "OK"}
	svc := &SubprocessService{Runner: &fakeRunner{}, Pipe: pipe}

	if err := svc.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if pipe.command != "RELOAD_DRIVER" {
		t.Fatalf("expected RELOAD_DRIVER command, got %q", pipe.command)
	}
}

func TestReloadFailsWithoutAPipeClient(t *testing.T) {
	svc := &SubprocessService{Runner: &fakeRunner{}}
	if err := svc.Reload(context.Background()); err == nil {
		t.Fatal("expected Reload to fail without a configured PipeClient")
	}
}

func TestNullServiceIsAlwaysANoop(t *testing.T) {
	var svc Service = NullService{}
	ctx := context.Background()
	if err := svc.Enable(ctx); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if err := svc.Disable(ctx); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	if err := svc.Toggle(ctx); err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if err := svc.Reload(ctx); err != nil {
		t.Fatalf("Reload: %v", err)
	}
}
