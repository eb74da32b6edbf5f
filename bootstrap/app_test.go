package bootstrap

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/eventfeed/component"
	"github.com/kbukum/eventfeed/config"
	"github.com/kbukum/eventfeed/logger"
)

type testConfig struct {
	config.ServiceConfig `mapstructure:",squash"`
}

type recorder struct {
	name   string
	events *[]string
	status component.HealthStatus
}

func (r *recorder) Name() string { return r.name }
func (r *recorder) Start(context.Context) error {
	*r.events = append(*r.events, "start:"+r.name)
	return nil
}
func (r *recorder) Stop(context.Context) error {
	*r.events = append(*r.events, "stop:"+r.name)
	return nil
}
func (r *recorder) Health(context.Context) component.Health {
	return component.Health{Name: r.name, Status: r.status}
}

func newTestApp(t *testing.T) *App[*testConfig] {
	t.Helper()
	cfg := &testConfig{ServiceConfig: config.ServiceConfig{Name: "eventfeed-test"}}
	app, err := NewApp(cfg, WithLogger(logger.Nop()), WithGracefulTimeout(time.Second))
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	return app
}

func TestNewApp_AppliesDefaultsAndValidates(t *testing.T) {
	app := newTestApp(t)
	if app.Version != "dev" {
		t.Errorf("expected default version, got %q", app.Version)
	}
	if app.Cfg.Environment != "development" {
		t.Errorf("expected default environment, got %q", app.Cfg.Environment)
	}

	_, err := NewApp(&testConfig{}, WithLogger(logger.Nop()))
	if err == nil || !strings.Contains(err.Error(), "config validation") {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestApp_RunLifecycle(t *testing.T) {
	app := newTestApp(t)
	var events []string

	app.OnConfigure(func(ctx context.Context, a *App[*testConfig]) error {
		events = append(events, "configure")
		if err := a.RegisterComponent(&recorder{name: "store", events: &events, status: component.StatusHealthy}); err != nil {
			return err
		}
		return a.RegisterComponent(&recorder{name: "server", events: &events, status: component.StatusHealthy})
	})
	app.OnStart(func(context.Context) error {
		events = append(events, "onstart")
		return nil
	})
	app.OnStop(func(context.Context) error {
		events = append(events, "onstop")
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := app.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := "configure,start:store,start:server,onstart,onstop,stop:server,stop:store"
	if got := strings.Join(events, ","); got != want {
		t.Errorf("got %s\nwant %s", got, want)
	}
}

func TestApp_ConfigureErrorStopsStartup(t *testing.T) {
	app := newTestApp(t)
	app.OnConfigure(func(context.Context, *App[*testConfig]) error {
		return errors.New("no backend")
	})
	err := app.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "no backend") {
		t.Fatalf("expected configure error, got %v", err)
	}
}

func TestApp_ReadyCheck(t *testing.T) {
	app := newTestApp(t)
	var events []string
	_ = app.RegisterComponent(&recorder{name: "redis", events: &events, status: component.StatusUnhealthy})

	err := app.ReadyCheck(context.Background())
	if err == nil || !strings.Contains(err.Error(), "redis=unhealthy") {
		t.Fatalf("unexpected ready check result: %v", err)
	}
}
