package pipeline

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/futureCreator/autoship/internal/config"
)

func TestPlan(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   []string
	}{
		{
			name:   "defaults",
			mutate: func(*config.Config) {},
			want:   []string{StageLocate, StageLaunch, StageWait, StagePublish, StageDeploy},
		},
		{
			name:   "with build",
			mutate: func(c *config.Config) { c.Build.Enabled = true },
			want:   []string{StageBuild, StageLocate, StageLaunch, StageWait, StagePublish, StageDeploy},
		},
		{
			name: "headless",
			mutate: func(c *config.Config) {
				c.DevServer.Enabled = false
				c.Deploy.Enabled = false
			},
			want: []string{StageLocate, StagePublish},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Defaults()
			tt.mutate(cfg)
			got := Plan(cfg)
			if !reflect.DeepEqual(got.Stages, tt.want) {
				t.Errorf("Plan() = %v, want %v", got.Stages, tt.want)
			}
		})
	}
}

func TestPipelineHas(t *testing.T) {
	p := &Pipeline{Stages: []string{StageLocate, StagePublish}}
	if !p.Has(StagePublish) {
		t.Error("expected publish stage")
	}
	if p.Has(StageDeploy) {
		t.Error("unexpected deploy stage")
	}
}

func TestTimerCountdown(t *testing.T) {
	timer := &Timer{Seconds: 3, Interval: time.Millisecond}
	var ticks []int
	if err := timer.Countdown(context.Background(), func(r int) { ticks = append(ticks, r) }); err != nil {
		t.Fatalf("Countdown() error: %v", err)
	}
	if !reflect.DeepEqual(ticks, []int{2, 1, 0}) {
		t.Errorf("ticks = %v, want [2 1 0]", ticks)
	}
}

func TestTimerZeroSecondsSkips(t *testing.T) {
	timer := &Timer{Seconds: 0}
	called := false
	if err := timer.Countdown(context.Background(), func(int) { called = true }); err != nil {
		t.Fatalf("Countdown() error: %v", err)
	}
	if called {
		t.Error("tick called for a zero-second window")
	}
}

func TestTimerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	timer := &Timer{Seconds: 1000, Interval: time.Millisecond}

	ticks := 0
	err := timer.Countdown(ctx, func(int) {
		ticks++
		if ticks == 2 {
			cancel()
		}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if ticks != 2 {
		t.Errorf("expected 2 ticks before cancellation, got %d", ticks)
	}
}
