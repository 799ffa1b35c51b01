package moodle

import (
	"context"
	"fmt"

	"github.com/guiqiqi/itmo-moodle-agent/component"
	apperrors "github.com/guiqiqi/itmo-moodle-agent/errors"
	"github.com/guiqiqi/itmo-moodle-agent/logger"
	"github.com/guiqiqi/itmo-moodle-agent/redis"
	"github.com/guiqiqi/itmo-moodle-agent/resilience"
)

const siteInfoPrefix = "moodle:siteinfo"

// Component owns the Moodle client. A Moodle outage at start is logged and
// reported through Health; it never stops the service.
type Component struct {
	cfg    Config
	secret string
	redis  *redis.Component
	log    *logger.Logger

	client *Client
}

var _ component.Component = (*Component)(nil)

// NewComponent creates the Moodle component. secret seals cached tokens;
// rc may be nil, in which case nothing is cached.
func NewComponent(cfg Config, secret string, rc *redis.Component, log *logger.Logger) *Component {
	cfg.ApplyDefaults()
	return &Component{cfg: cfg, secret: secret, redis: rc, log: log.WithComponent("moodle")}
}

// Client returns the client, or nil when disabled or not started.
func (c *Component) Client() *Client { return c.client }

// Name returns the component name.
func (c *Component) Name() string { return "moodle" }

// Start builds the client and tries a first site-info sync.
func (c *Component) Start(ctx context.Context) error {
	if !c.cfg.Enabled {
		return nil
	}

	var opts []Option
	if c.redis != nil && c.redis.Client() != nil {
		rc := c.redis.Client()
		cache, err := NewTokenCache(rc, c.secret, c.cfg.TokenTTL)
		if err != nil {
			return fmt.Errorf("moodle start: %w", err)
		}
		opts = append(opts,
			WithTokenCache(cache),
			WithSiteInfoStore(redis.NewTypedStore[SiteInfo](rc, siteInfoPrefix)),
		)
	}

	client, err := New(c.cfg, c.log, opts...)
	if err != nil {
		return fmt.Errorf("moodle start: %w", err)
	}
	c.client = client

	if site, err := client.SyncSiteInfo(ctx); err != nil {
		c.log.Warn("Moodle site info sync failed", logger.ErrorFields("sync_site_info", err))
	} else {
		c.log.Info("Moodle site info synchronized", logger.Fields("site", site.SiteName, "user_id", site.UserID))
	}
	return nil
}

// Stop is a no-op; the client holds no long-lived connections of its own.
func (c *Component) Stop(_ context.Context) error { return nil }

// Health reports degraded while the circuit is open or site info is
// missing.
func (c *Component) Health(ctx context.Context) component.Health {
	h := component.Health{Name: c.Name(), Status: component.StatusHealthy}
	switch {
	case !c.cfg.Enabled:
		h.Message = "disabled"
	case c.client == nil:
		h.Status = component.StatusUnhealthy
		h.Message = "moodle not initialized"
	case c.client.http.BreakerState() == resilience.StateOpen:
		h.Status = component.StatusDegraded
		h.Message = "circuit open"
	default:
		if _, err := c.client.SiteInfo(ctx); apperrors.HasCode(err, apperrors.ErrCodeMoodleSiteInfoMissing) {
			h.Status = component.StatusDegraded
			h.Message = "site info not synchronized"
		}
	}
	return h
}

// Describe summarizes the configuration for the startup log.
func (c *Component) Describe() component.Description {
	if !c.cfg.Enabled {
		return component.Description{Type: "moodle", Details: "disabled"}
	}
	return component.Description{
		Type:    "moodle",
		Details: fmt.Sprintf("%s user=%s service=%s", c.cfg.BaseURL, c.cfg.Username, c.cfg.Service),
	}
}
