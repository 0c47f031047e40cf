package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/samirrijal/pinmap/internal/pkg/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("pinmap-api")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Telemetry.ServiceName != "pinmap-api" {
		t.Errorf("expected service name pinmap-api, got %q", cfg.Telemetry.ServiceName)
	}
	if cfg.Mapbox.DrivingProfile != "driving-traffic" || cfg.Mapbox.ItineraryProfile != "walking" {
		t.Errorf("unexpected profiles: %q / %q", cfg.Mapbox.DrivingProfile, cfg.Mapbox.ItineraryProfile)
	}
	if cfg.Session.RouteTimeout != 10*time.Second {
		t.Errorf("expected 10s route timeout, got %s", cfg.Session.RouteTimeout)
	}
	if cfg.CMS.PerPage != 100 {
		t.Errorf("expected per_page 100, got %d", cfg.CMS.PerPage)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PINMAP_SERVER_PORT", "9090")
	t.Setenv("PINMAP_MAPBOX_ACCESS_TOKEN", "pk.test")
	t.Setenv("PINMAP_SESSION_ROUTE_TIMEOUT", "3s")
	t.Setenv("PINMAP_SESSION_RECONCILE_STRATEGY", "keyed")

	cfg, err := config.Load("pinmap-api")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Mapbox.AccessToken != "pk.test" {
		t.Errorf("expected token from env, got %q", cfg.Mapbox.AccessToken)
	}
	if cfg.Session.RouteTimeout != 3*time.Second {
		t.Errorf("expected 3s, got %s", cfg.Session.RouteTimeout)
	}
	if cfg.Session.ReconcileStrategy != "keyed" {
		t.Errorf("expected keyed, got %q", cfg.Session.ReconcileStrategy)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	t.Setenv("PINMAP_SERVER_PORT", "0")
	t.Setenv("PINMAP_CMS_PER_PAGE", "500")
	t.Setenv("PINMAP_SESSION_RECONCILE_STRATEGY", "magic")

	_, err := config.Load("pinmap-api")
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{"server.port", "cms.per_page", "session.reconcile_strategy"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected %q in error, got:\n%s", want, msg)
		}
	}
}
