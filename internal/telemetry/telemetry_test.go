package telemetry

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/querysense/querysense/config"
)

func TestInitDisabledReturnsNoop(t *testing.T) {
	p, err := Init(config.TelemetryConfig{Enabled: false}, zap.NewNop())
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if p.tp != nil || p.mp != nil {
		t.Error("disabled telemetry must not build providers")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.Shutdown(ctx); err != nil {
		t.Errorf("shutdown noop: %v", err)
	}
}

func TestShutdownNilProviders(t *testing.T) {
	var p *Providers
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("shutdown nil: %v", err)
	}
}
