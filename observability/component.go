package observability

import (
	"context"
	"errors"
	"fmt"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/guiqiqi/itmo-moodle-agent/component"
	"github.com/guiqiqi/itmo-moodle-agent/logger"
)

// Component installs the OpenTelemetry providers on Start and flushes them
// on Stop.
type Component struct {
	cfg         Config
	service     string
	version     string
	environment string
	log         *logger.Logger

	tp      *sdktrace.TracerProvider
	mp      *sdkmetric.MeterProvider
	metrics *Metrics
}

var _ component.Component = (*Component)(nil)

// NewComponent creates the observability component.
func NewComponent(cfg Config, service, version, environment string, log *logger.Logger) *Component {
	cfg.ApplyDefaults()
	return &Component{
		cfg:         cfg,
		service:     service,
		version:     version,
		environment: environment,
		log:         log.WithComponent("observability"),
	}
}

// Name returns the component name.
func (c *Component) Name() string { return "observability" }

// Metrics returns the agent's instruments. They are bound to the global
// meter provider, so instruments created before Start follow it.
func (c *Component) Metrics() *Metrics {
	if c.metrics == nil {
		m, err := NewMetrics(Meter())
		if err != nil {
			c.log.Warn("Failed to create metrics", logger.ErrorFields("new_metrics", err))
			return nil
		}
		c.metrics = m
	}
	return c.metrics
}

// Start installs the exporters when enabled.
func (c *Component) Start(ctx context.Context) error {
	if !c.cfg.Enabled {
		return nil
	}
	res, err := newResource(ctx, c.service, c.version, c.environment)
	if err != nil {
		return fmt.Errorf("observability resource: %w", err)
	}
	if c.tp, err = newTracerProvider(ctx, c.cfg, res); err != nil {
		return err
	}
	if c.mp, err = newMeterProvider(ctx, c.cfg, res); err != nil {
		_ = c.tp.Shutdown(ctx)
		return err
	}
	c.log.Info("OpenTelemetry export enabled", logger.Fields(
		"endpoint", c.cfg.Endpoint,
		"sample_rate", c.cfg.SampleRate,
	))
	return nil
}

// Stop flushes and shuts down the providers.
func (c *Component) Stop(ctx context.Context) error {
	var errs []error
	if c.tp != nil {
		errs = append(errs, c.tp.Shutdown(ctx))
	}
	if c.mp != nil {
		errs = append(errs, c.mp.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// Health is always healthy; export failures do not affect serving.
func (c *Component) Health(_ context.Context) component.Health {
	h := component.Health{Name: c.Name(), Status: component.StatusHealthy}
	if !c.cfg.Enabled {
		h.Message = "disabled"
	}
	return h
}

// Describe summarizes the configuration for the startup log.
func (c *Component) Describe() component.Description {
	if !c.cfg.Enabled {
		return component.Description{Type: "otel", Details: "disabled"}
	}
	return component.Description{
		Type:    "otel",
		Details: fmt.Sprintf("otlp/http %s sample=%.2f", c.cfg.Endpoint, c.cfg.SampleRate),
	}
}
