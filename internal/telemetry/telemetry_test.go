package telemetry_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/seantiz/taskroute/internal/model"
	"github.com/seantiz/taskroute/internal/platform"
	"github.com/seantiz/taskroute/internal/telemetry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRegistry(t *testing.T) *platform.Registry {
	t.Helper()
	reg := platform.NewRegistry()
	for _, p := range []model.ExecutionPlatform{
		{
			ID:       "cloud_compute",
			Name:     "Cloud Compute",
			Category: model.CategoryElasticCompute,
			Telemetry: model.Telemetry{
				Status: model.PlatformAvailable, CurrentLoad: 30, QueueLength: 5,
				AvgResponseTime: 1.8, SuccessRate: 97.3,
			},
		},
		{
			ID:       "local_dev",
			Name:     "Local Development",
			Category: model.CategoryLocal,
			Telemetry: model.Telemetry{
				Status: model.PlatformAvailable, CurrentLoad: 10, QueueLength: 0,
				AvgResponseTime: 0.3, SuccessRate: 99.9,
			},
		},
	} {
		if err := reg.Register(p); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
	return reg
}

func TestJitterStaysWithinDrift(t *testing.T) {
	reg := newRegistry(t)
	src := telemetry.NewJitterSource(42)
	p, _ := reg.Get("cloud_compute")

	for range 200 {
		adj, err := src.Sample(context.Background(), p)
		if err != nil {
			t.Fatalf("Sample: %v", err)
		}
		u := adj(p.Telemetry)
		if d := *u.CurrentLoad - p.Telemetry.CurrentLoad; d < -5 || d > 5 {
			t.Fatalf("load drift %v out of ±5", d)
		}
		if d := *u.QueueLength - p.Telemetry.QueueLength; d < -1 || d > 1 {
			t.Fatalf("queue drift %d out of ±1", d)
		}
		if d := *u.AvgResponseTime - p.Telemetry.AvgResponseTime; d < -0.15 || d > 0.15 {
			t.Fatalf("response drift %v out of ±0.15", d)
		}
		if d := *u.SuccessRate - p.Telemetry.SuccessRate; d < -1 || d > 1 {
			t.Fatalf("success drift %v out of ±1", d)
		}
		if u.Status != nil {
			t.Fatal("jitter changed status")
		}
	}
}

func TestPollAppliesClampedUpdates(t *testing.T) {
	reg := newRegistry(t)
	poller := telemetry.NewPoller(reg, time.Second, testLogger(), telemetry.NewJitterSource(7))

	for range 100 {
		if n := poller.Poll(context.Background()); n != 2 {
			t.Fatalf("Poll updated %d platforms, want 2", n)
		}
	}
	for _, p := range reg.Snapshot() {
		tel := p.Telemetry
		if tel.CurrentLoad < 0 || tel.CurrentLoad > 100 {
			t.Errorf("%s load %v out of range", p.ID, tel.CurrentLoad)
		}
		if tel.QueueLength < 0 {
			t.Errorf("%s queue %d negative", p.ID, tel.QueueLength)
		}
		if tel.AvgResponseTime < model.MinAvgResponseTime {
			t.Errorf("%s response %v below floor", p.ID, tel.AvgResponseTime)
		}
		if tel.SuccessRate < 0 || tel.SuccessRate > 100 {
			t.Errorf("%s success %v out of range", p.ID, tel.SuccessRate)
		}
	}
}

func TestHostSourceOnlyTouchesLocal(t *testing.T) {
	reg := newRegistry(t)
	host := telemetry.NewHostSourceWith(func(context.Context, time.Duration) (float64, error) {
		return 63.5, nil
	})
	poller := telemetry.NewPoller(reg, time.Second, testLogger(), host)

	if n := poller.Poll(context.Background()); n != 1 {
		t.Errorf("Poll updated %d platforms, want 1", n)
	}
	local, _ := reg.Get("local_dev")
	if local.Telemetry.CurrentLoad != 63.5 {
		t.Errorf("local load = %v, want 63.5", local.Telemetry.CurrentLoad)
	}
	cloud, _ := reg.Get("cloud_compute")
	if cloud.Telemetry.CurrentLoad != 30 {
		t.Errorf("cloud load = %v, want unchanged 30", cloud.Telemetry.CurrentLoad)
	}
}

func TestLaterSourceOverrides(t *testing.T) {
	reg := newRegistry(t)
	host := telemetry.NewHostSourceWith(func(context.Context, time.Duration) (float64, error) {
		return 12, nil
	})
	poller := telemetry.NewPoller(reg, time.Second, testLogger(), telemetry.NewJitterSource(1), host)
	poller.Poll(context.Background())

	local, _ := reg.Get("local_dev")
	if local.Telemetry.CurrentLoad != 12 {
		t.Errorf("local load = %v, want host value 12", local.Telemetry.CurrentLoad)
	}
}

func TestJitterAppliesToConcurrentRefresh(t *testing.T) {
	reg := newRegistry(t)
	load, queue := 90.0, 50

	// Simulates an operator refresh landing while the poller is sampling.
	refresh := telemetry.SourceFunc(func(_ context.Context, p model.ExecutionPlatform) (telemetry.Adjustment, error) {
		if p.ID == "cloud_compute" {
			if _, err := reg.UpdateTelemetry(p.ID, platform.TelemetryUpdate{CurrentLoad: &load, QueueLength: &queue}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	poller := telemetry.NewPoller(reg, time.Second, testLogger(), refresh, telemetry.NewJitterSource(42))
	poller.Poll(context.Background())

	cloud, _ := reg.Get("cloud_compute")
	if d := cloud.Telemetry.CurrentLoad - load; d < -5 || d > 5 {
		t.Errorf("load = %v, want within ±5 of refreshed %v", cloud.Telemetry.CurrentLoad, load)
	}
	if d := cloud.Telemetry.QueueLength - queue; d < -1 || d > 1 {
		t.Errorf("queue = %d, want within ±1 of refreshed %d", cloud.Telemetry.QueueLength, queue)
	}
}

func TestSourceErrorSkipsPlatform(t *testing.T) {
	reg := newRegistry(t)
	failing := telemetry.SourceFunc(func(context.Context, model.ExecutionPlatform) (telemetry.Adjustment, error) {
		return nil, errors.New("feed down")
	})
	poller := telemetry.NewPoller(reg, time.Second, testLogger(), failing)

	if n := poller.Poll(context.Background()); n != 0 {
		t.Errorf("Poll updated %d platforms, want 0", n)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	reg := newRegistry(t)
	calls := make(chan string, 16)
	src := telemetry.SourceFunc(func(_ context.Context, p model.ExecutionPlatform) (telemetry.Adjustment, error) {
		select {
		case calls <- p.ID:
		default:
		}
		return nil, nil
	})
	poller := telemetry.NewPoller(reg, 5*time.Millisecond, testLogger(), src)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		poller.Run(ctx)
		close(done)
	}()

	select {
	case <-calls:
	case <-time.After(2 * time.Second):
		t.Fatal("poller never sampled")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
