package config

import (
	"testing"
	"time"

	"github.com/shaiso/Chronos/internal/domain"
)

func TestLoadWorker_Defaults(t *testing.T) {
	cfg := LoadWorker()

	if cfg.PollInterval != 5*time.Second {
		t.Errorf("expected 5s poll interval, got %v", cfg.PollInterval)
	}
	if cfg.LeaseTTL != 30*time.Second {
		t.Errorf("expected 30s lease TTL, got %v", cfg.LeaseTTL)
	}
	if cfg.RetryMaxAttempts != 5 {
		t.Errorf("expected 5 retry attempts, got %d", cfg.RetryMaxAttempts)
	}
	if cfg.RecoveryPolicy != domain.RecoverFireImmediately {
		t.Errorf("expected FIRE_IMMEDIATELY, got %s", cfg.RecoveryPolicy)
	}
}

func TestLoadWorker_FromEnv(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "500ms")
	t.Setenv("LEASE_TTL", "1m")
	t.Setenv("BATCH_SIZE", "25")
	t.Setenv("RECOVERY_POLICY", "SKIP_TO_NEXT")

	cfg := LoadWorker()

	if cfg.PollInterval != 500*time.Millisecond {
		t.Errorf("expected 500ms, got %v", cfg.PollInterval)
	}
	if cfg.LeaseTTL != time.Minute {
		t.Errorf("expected 1m, got %v", cfg.LeaseTTL)
	}
	if cfg.BatchSize != 25 {
		t.Errorf("expected 25, got %d", cfg.BatchSize)
	}
	if cfg.RecoveryPolicy != domain.RecoverSkipToNext {
		t.Errorf("expected SKIP_TO_NEXT, got %s", cfg.RecoveryPolicy)
	}
}

func TestLoadWorker_RejectsGarbage(t *testing.T) {
	// Некорректные значения молча заменяются дефолтами
	t.Setenv("POLL_INTERVAL", "soon")
	t.Setenv("BATCH_SIZE", "-10")
	t.Setenv("RECOVERY_POLICY", "TIME_TRAVEL")

	cfg := LoadWorker()

	if cfg.PollInterval != 5*time.Second {
		t.Errorf("expected default 5s, got %v", cfg.PollInterval)
	}
	if cfg.BatchSize != 100 {
		t.Errorf("expected default 100, got %d", cfg.BatchSize)
	}
	if cfg.RecoveryPolicy != domain.RecoverFireImmediately {
		t.Errorf("expected default FIRE_IMMEDIATELY, got %s", cfg.RecoveryPolicy)
	}
}
