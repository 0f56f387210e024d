package analytics

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"
)

func TestWorkerConfig_Defaults(t *testing.T) {
	cfg := WorkerConfig{BatchSize: 25}.withDefaults()

	if cfg.BatchSize != 25 {
		t.Errorf("expected explicit batch size to be kept, got %d", cfg.BatchSize)
	}
	if cfg.BlockTimeout != DefaultBlockTimeout || cfg.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.ClaimIdle != DefaultClaimIdle || cfg.ClaimEvery != DefaultClaimEvery || cfg.DepthEvery != DefaultDepthEvery {
		t.Errorf("unexpected claim defaults: %+v", cfg)
	}
	if cfg.ConsumerID == "" {
		t.Error("expected a generated consumer id")
	}
}

func TestSleepCtx(t *testing.T) {
	if !sleepCtx(context.Background(), time.Millisecond) {
		t.Error("expected the full sleep to complete")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	if sleepCtx(ctx, time.Minute) {
		t.Error("expected cancelled sleep to report false")
	}
	if time.Since(start) > time.Second {
		t.Error("cancelled sleep should return immediately")
	}
}

func TestWorker_ShutdownBeforeRun(t *testing.T) {
	w := NewWorker(nil, nil, WorkerConfig{}, testLogger(), nil)
	if err := w.Shutdown(context.Background()); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestNewConsumerID_Unique(t *testing.T) {
	a, b := NewConsumerID(), NewConsumerID()
	if a == b {
		t.Errorf("expected distinct consumer ids, got %q twice", a)
	}
	if !strings.Contains(a, fmt.Sprintf("-%d-", os.Getpid())) {
		t.Errorf("expected the pid in %q", a)
	}
}
