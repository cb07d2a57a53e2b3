package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AUTH_BACKEND_URL", "")
	t.Setenv("ROUTES_PUBLIC", "")
	t.Setenv("REDIS_ADDR", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Auth.AccessTTL() != 7*24*time.Hour {
		t.Errorf("AccessTTL = %v", cfg.Auth.AccessTTL())
	}
	if cfg.Auth.RefreshTTL() != 30*24*time.Hour {
		t.Errorf("RefreshTTL = %v", cfg.Auth.RefreshTTL())
	}
	if !cfg.Auth.EdgeVerify {
		t.Error("edge verification should default on")
	}
	if !reflect.DeepEqual(cfg.Routes.StaffPrefixes, []string{"/staff"}) {
		t.Errorf("StaffPrefixes = %v", cfg.Routes.StaffPrefixes)
	}
	if cfg.Routes.Public != nil {
		t.Errorf("Public = %v, want nil to use the built-in table", cfg.Routes.Public)
	}
	if cfg.Redis.Addr != "" {
		t.Error("redis should be disabled by default")
	}
	if cfg.Tasks.PersistOverdue {
		t.Error("overdue persistence should be opt-in")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("AUTH_BACKEND_URL", "https://api.example.com/")
	t.Setenv("AUTH_EDGE_VERIFY", "false")
	t.Setenv("ROUTES_PUBLIC", " /login , /about ,,")
	t.Setenv("ROUTES_MANAGER_PREFIXES", "/manager,/reports")
	t.Setenv("TASKS_PERSIST_OVERDUE", "true")
	t.Setenv("TASKS_SWEEP_INTERVAL_SECONDS", "60")
	t.Setenv("RATE_LIMIT_LOGIN_RPS", "0.5")
	t.Setenv("AUTH_ACCESS_TOKEN_TTL_HOURS", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Auth.BackendURL != "https://api.example.com" {
		t.Errorf("BackendURL = %q", cfg.Auth.BackendURL)
	}
	if cfg.Auth.EdgeVerify {
		t.Error("EdgeVerify override ignored")
	}
	if !reflect.DeepEqual(cfg.Routes.Public, []string{"/login", "/about"}) {
		t.Errorf("Public = %v", cfg.Routes.Public)
	}
	if !reflect.DeepEqual(cfg.Routes.ManagerPrefixes, []string{"/manager", "/reports"}) {
		t.Errorf("ManagerPrefixes = %v", cfg.Routes.ManagerPrefixes)
	}
	if !cfg.Tasks.PersistOverdue || cfg.Tasks.SweepInterval() != time.Minute {
		t.Errorf("Tasks = %+v", cfg.Tasks)
	}
	if cfg.RateLimit.LoginRPS != 0.5 {
		t.Errorf("LoginRPS = %v", cfg.RateLimit.LoginRPS)
	}
	if cfg.Auth.AccessTokenTTLHours != 7*24 {
		t.Error("invalid integer should fall back to default")
	}
}

func TestLoad_InvalidRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "x")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid REDIS_DB")
	}
}
