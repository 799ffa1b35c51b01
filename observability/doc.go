// Package observability wires OpenTelemetry tracing and metrics for the
// agent and summarizes component health.
//
// The Component installs OTLP/HTTP tracer and meter providers when
// enabled; otherwise the global no-op providers stay in place and spans
// and instruments cost nothing.
//
//	ctx, op := observability.StartOperation(ctx, metrics, "auth.login")
//	defer func() { op.End(err) }()
package observability
