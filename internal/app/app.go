// Package app assembles the agent from its components: storage, redis,
// the Moodle client, the account and task services and the HTTP server.
package app

import (
	"context"
	"fmt"

	"github.com/guiqiqi/itmo-moodle-agent/auth/jwt"
	"github.com/guiqiqi/itmo-moodle-agent/auth/oidc"
	"github.com/guiqiqi/itmo-moodle-agent/auth/password"
	"github.com/guiqiqi/itmo-moodle-agent/authz"
	"github.com/guiqiqi/itmo-moodle-agent/bootstrap"
	"github.com/guiqiqi/itmo-moodle-agent/component"
	"github.com/guiqiqi/itmo-moodle-agent/database"
	"github.com/guiqiqi/itmo-moodle-agent/internal/account"
	"github.com/guiqiqi/itmo-moodle-agent/internal/api"
	"github.com/guiqiqi/itmo-moodle-agent/internal/credential"
	"github.com/guiqiqi/itmo-moodle-agent/internal/identity"
	"github.com/guiqiqi/itmo-moodle-agent/internal/moodle"
	"github.com/guiqiqi/itmo-moodle-agent/internal/session"
	"github.com/guiqiqi/itmo-moodle-agent/internal/task"
	"github.com/guiqiqi/itmo-moodle-agent/logger"
	"github.com/guiqiqi/itmo-moodle-agent/migrations"
	"github.com/guiqiqi/itmo-moodle-agent/observability"
	"github.com/guiqiqi/itmo-moodle-agent/redis"
	"github.com/guiqiqi/itmo-moodle-agent/server"
	"github.com/guiqiqi/itmo-moodle-agent/server/endpoint"
)

// Models lists every table for auto-migration.
func Models() []interface{} {
	var models []interface{}
	models = append(models, identity.Models()...)
	models = append(models, credential.Models()...)
	models = append(models, session.Models()...)
	models = append(models, task.Models()...)
	return models
}

// Agent is the assembled application.
type Agent struct {
	*bootstrap.App[*Config]

	services *Services
	server   *server.Server
	moodle   *moodle.Component
}

// NewServer builds the agent with its HTTP server.
func NewServer(cfg *Config, opts ...bootstrap.Option) (*Agent, error) {
	return build(cfg, true, opts)
}

// NewAdmin builds the agent without the HTTP server, for one-off
// administrative tasks run through RunTask.
func NewAdmin(cfg *Config, opts ...bootstrap.Option) (*Agent, error) {
	return build(cfg, false, opts)
}

func build(cfg *Config, serve bool, opts []bootstrap.Option) (*Agent, error) {
	a, err := bootstrap.NewApp(cfg, opts...)
	if err != nil {
		return nil, err
	}
	log := a.Logger

	obs := observability.NewComponent(cfg.Observability, cfg.Name, cfg.Version, cfg.Environment, log)
	db := database.NewComponent(cfg.Database, log).
		WithModels(Models()...).
		WithMigrations(migrations.FS, ".")
	var rc *redis.Component
	if cfg.Redis.Enabled {
		rc = redis.NewComponent(cfg.Redis, log)
	}

	agent := &Agent{App: a, moodle: moodle.NewComponent(cfg.Moodle, cfg.Auth.JWT.Secret, rc, log)}
	svc := &servicesComponent{cfg: cfg, db: db, redis: rc, obs: obs, log: log, agent: agent}

	components := []component.Component{obs, db}
	if rc != nil {
		components = append(components, rc)
	}
	components = append(components, agent.moodle, svc)
	if serve {
		agent.server = server.New(cfg.Server, cfg.Debug, log)
		agent.server.ApplyMiddleware()
		svc.health = a.Components.HealthAll
		components = append(components, server.NewComponent(agent.server))
		a.OnConfigure(trackRoutes(agent.server))
	}

	for _, c := range components {
		if err := a.RegisterComponent(c); err != nil {
			return nil, err
		}
	}
	return agent, nil
}

func trackRoutes(s *server.Server) func(context.Context, *bootstrap.App[*Config]) error {
	return func(_ context.Context, a *bootstrap.App[*Config]) error {
		for _, r := range s.Routes() {
			a.Summary.TrackRoute(r.Method, r.Path, r.Handler)
		}
		return nil
	}
}

// Services returns the account and task services. Nil until started.
func (a *Agent) Services() *Services { return a.services }

// Server returns the HTTP server, or nil for an admin agent.
func (a *Agent) Server() *server.Server { return a.server }

// Moodle returns the Moodle client, or nil when it is disabled.
func (a *Agent) Moodle() *moodle.Client { return a.moodle.Client() }

// Services are the domain services built once storage is up.
type Services struct {
	Accounts   *account.Service
	Identities *identity.Store
	Sessions   *session.RefreshStore
	Tasks      *task.Store
	Tracker    *task.Tracker
	Issuer     *jwt.Issuer
}

// servicesComponent builds the services after the stores it depends on
// have started and, for a server agent, mounts the routes before the
// server starts listening.
type servicesComponent struct {
	cfg    *Config
	db     *database.Component
	redis  *redis.Component
	obs    *observability.Component
	log    *logger.Logger
	agent  *Agent
	health endpoint.HealthChecker
}

var _ component.Component = (*servicesComponent)(nil)

func (c *servicesComponent) Name() string { return "services" }

func (c *servicesComponent) Start(ctx context.Context) error {
	cfg := c.cfg
	db := c.db.DB()
	if db == nil {
		return fmt.Errorf("services start: database not started")
	}

	issuer, err := jwt.NewIssuer(cfg.Auth.JWT)
	if err != nil {
		return fmt.Errorf("services start: %w", err)
	}
	identities := identity.NewStore(db)
	passwords := credential.NewPassword(db, identities, password.NewHasher(cfg.Auth.Password), c.log)
	variants := []credential.Credential{passwords}
	opts := []account.Option{account.WithMetrics(c.obs.Metrics())}
	if cfg.Auth.OIDC.Enabled {
		federated := credential.NewFederated(db, identities, oidc.NewVerifier(cfg.Auth.OIDC, nil), c.log)
		variants = append(variants, federated)
		opts = append(opts, account.WithFederated(federated))
	}
	sessions := session.NewRefreshStore(db, identities, issuer, cfg.Auth.RefreshTokenTTL, c.log)
	accounts := account.New(db, identities, credential.NewRegistry(variants...), passwords, issuer, sessions, c.log, opts...)

	var backend task.ResultBackend
	if cfg.Task.Backend == task.BackendRedis && c.redis != nil {
		backend = task.NewRedisBackend(c.redis.Client())
	}
	tasks := task.NewStore(db)
	tracker := task.NewTracker(tasks, backend, c.log)

	c.agent.services = &Services{
		Accounts:   accounts,
		Identities: identities,
		Sessions:   sessions,
		Tasks:      tasks,
		Tracker:    tracker,
		Issuer:     issuer,
	}

	if s := c.agent.server; s != nil {
		deps := api.Deps{
			Accounts:   accounts,
			Tokens:     issuer,
			Tasks:      tracker,
			Metrics:    c.obs.Metrics(),
			LoginLimit: cfg.Server.LoginRateLimit,
			Federated:  cfg.Auth.OIDC.Enabled,
		}
		if cfg.IsTest() {
			c.log.Info("Including test-only route /auth/confidential")
			deps.Confidential = authz.MustGuard(identities, api.ConfidentialGroup)
		}
		engine := s.Engine()
		engine.GET("/health", endpoint.Health(cfg.Name, cfg.Version, c.health))
		engine.GET("/version", endpoint.Version(cfg.Name, cfg.APIVersion))
		api.Register(engine.Group("/api/"+cfg.APIVersion), deps)
	}
	return nil
}

func (c *servicesComponent) Stop(context.Context) error { return nil }

func (c *servicesComponent) Health(context.Context) component.Health {
	if c.agent.services == nil {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: "not started"}
	}
	return component.Health{Name: c.Name(), Status: component.StatusHealthy}
}

func (c *servicesComponent) Describe() component.Description {
	return component.Description{Type: "services", Details: c.cfg.Auth.Describe()}
}
