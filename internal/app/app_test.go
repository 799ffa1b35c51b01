package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/guiqiqi/itmo-moodle-agent/bootstrap"
	"github.com/guiqiqi/itmo-moodle-agent/config"
	"github.com/guiqiqi/itmo-moodle-agent/database"
	"github.com/guiqiqi/itmo-moodle-agent/internal/account"
	"github.com/guiqiqi/itmo-moodle-agent/internal/api"
	"github.com/guiqiqi/itmo-moodle-agent/internal/task"
	"github.com/guiqiqi/itmo-moodle-agent/logger"
)

var dbSeq atomic.Int64

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg := &Config{ServiceConfig: config.ServiceConfig{Name: "itmo-moodle-agent", Environment: config.EnvTest}}
	cfg.Database.DSN = fmt.Sprintf("file:app_%d?mode=memory&cache=shared&_foreign_keys=on", dbSeq.Add(1))
	cfg.Database.LogLevel = "silent"
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = freePort(t)
	cfg.Auth.JWT.Secret = "0123456789abcdef0123456789abcdef"
	cfg.Auth.Password.Argon2Memory = 1024
	return cfg
}

func quiet() []bootstrap.Option {
	return []bootstrap.Option{bootstrap.WithLogger(logger.NewNop()), bootstrap.WithSummaryOutput(io.Discard)}
}

func TestConfig_Defaults(t *testing.T) {
	cfg := &Config{ServiceConfig: config.ServiceConfig{Name: "agent"}}
	cfg.ApplyDefaults()
	if cfg.Environment != config.EnvTest || cfg.APIVersion != DefaultAPIVersion {
		t.Errorf("unexpected defaults %q %q", cfg.Environment, cfg.APIVersion)
	}
	if cfg.Database.Driver != database.DriverSQLite {
		t.Errorf("expected sqlite in test, got %q", cfg.Database.Driver)
	}
	if cfg.Task.Backend != task.BackendNone {
		t.Errorf("expected no task backend without redis, got %q", cfg.Task.Backend)
	}

	prod := &Config{ServiceConfig: config.ServiceConfig{Name: "agent", Environment: config.EnvProd}}
	prod.Redis.Enabled = true
	prod.ApplyDefaults()
	if prod.Database.Driver != database.DriverPostgres || prod.Database.Migrate != database.MigrateSQL {
		t.Errorf("expected postgres with sql migrations in prod, got %q/%q", prod.Database.Driver, prod.Database.Migrate)
	}
	if prod.Task.Backend != task.BackendRedis {
		t.Errorf("expected redis task backend, got %q", prod.Task.Backend)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing secret", func(c *Config) { c.Auth.JWT.Secret = "" }, "auth"},
		{"redis task backend without redis", func(c *Config) { c.Task.Backend = task.BackendRedis }, "requires redis.enabled"},
		{"sqlite in prod", func(c *Config) {
			c.Environment = config.EnvProd
			c.Database.Driver = database.DriverSQLite
		}, "sqlite"},
		{"moodle without credentials", func(c *Config) {
			c.Moodle.Enabled = true
			c.Moodle.BaseURL = "https://moodle.example"
		}, "moodle"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig(t)
			tc.mutate(cfg)
			cfg.ApplyDefaults()
			err := cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func serve(t *testing.T, h http.Handler, method, path, bearer, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestServer_Routes(t *testing.T) {
	agent, err := NewServer(testConfig(t), quiet()...)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	err = agent.RunTask(context.Background(), func(ctx context.Context) error {
		h := agent.Server().Handler()

		rr := serve(t, h, http.MethodGet, "/health", "", "")
		if rr.Code != http.StatusOK {
			t.Errorf("health: expected 200, got %d: %s", rr.Code, rr.Body.String())
		}
		if rr.Header().Get("X-Request-Id") == "" {
			t.Error("expected request id header")
		}

		rr = serve(t, h, http.MethodPost, "/api/v1/auth/basic/register", "",
			`{"email":"student@itmo.ru","password":"password"}`)
		if rr.Code != http.StatusOK {
			t.Fatalf("register: expected 200, got %d: %s", rr.Code, rr.Body.String())
		}
		rr = serve(t, h, http.MethodPost, "/api/v1/auth/basic/login", "",
			`{"email":"student@itmo.ru","password":"password"}`)
		if rr.Code != http.StatusOK {
			t.Fatalf("login: expected 200, got %d: %s", rr.Code, rr.Body.String())
		}
		var tokens account.Tokens
		if err := json.Unmarshal(rr.Body.Bytes(), &tokens); err != nil {
			t.Fatalf("decode tokens: %v", err)
		}

		rr = serve(t, h, http.MethodGet, "/api/v1/auth/me", tokens.AccessToken, "")
		if rr.Code != http.StatusOK {
			t.Errorf("me: expected 200, got %d", rr.Code)
		}
		rr = serve(t, h, http.MethodGet, "/api/v1/auth/confidential", tokens.AccessToken, "")
		if rr.Code != http.StatusForbidden {
			t.Errorf("confidential: expected 403 outside %s, got %d", api.ConfidentialGroup, rr.Code)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunTask: %v", err)
	}

	tracked := map[string]bool{}
	for _, r := range agent.Summary.Routes() {
		tracked[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{"GET /health", "GET /version", "POST /api/v1/auth/basic/login", "GET /api/v1/task/:id"} {
		if !tracked[want] {
			t.Errorf("expected %s in the startup summary, got %v", want, tracked)
		}
	}
}

func TestServer_NoConfidentialRouteOutsideTest(t *testing.T) {
	cfg := testConfig(t)
	cfg.Environment = config.EnvDev
	cfg.Database.Driver = database.DriverSQLite
	agent, err := NewServer(cfg, quiet()...)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	err = agent.RunTask(context.Background(), func(ctx context.Context) error {
		rr := serve(t, agent.Server().Handler(), http.MethodGet, "/api/v1/auth/confidential", "", "")
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rr.Code)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunTask: %v", err)
	}
}

func TestAdmin_RunTask(t *testing.T) {
	agent, err := NewAdmin(testConfig(t), quiet()...)
	if err != nil {
		t.Fatalf("NewAdmin: %v", err)
	}
	if agent.Server() != nil {
		t.Error("admin agent must not build the HTTP server")
	}

	err = agent.RunTask(context.Background(), func(ctx context.Context) error {
		svc := agent.Services()
		if _, err := svc.Sessions.PurgeExpired(ctx); err != nil {
			return err
		}
		info, err := svc.Accounts.Register(ctx, account.Registration{Email: "admin@itmo.ru", Password: "password"})
		if err != nil {
			return err
		}
		if err := svc.Accounts.AddToGroup(ctx, info.ID, api.ConfidentialGroup); err != nil {
			return err
		}
		me, err := svc.Accounts.Current(ctx, info.ID.String())
		if err != nil {
			return err
		}
		if len(me.Groups) != 1 {
			t.Errorf("expected one group, got %+v", me.Groups)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunTask: %v", err)
	}
	if agent.Moodle() != nil {
		t.Error("expected no Moodle client when disabled")
	}
}
