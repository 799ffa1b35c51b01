// Package bootstrap runs the agent's lifecycle: validate config, start
// components in order, run configure callbacks, block until SIGINT or
// SIGTERM, then stop components in reverse order.
//
//	app, err := bootstrap.NewApp(&cfg)
//	app.RegisterComponent(dbComponent)
//	app.OnConfigure(func(ctx context.Context, a *bootstrap.App[*Config]) error {
//	    return registerRoutes(a)
//	})
//	err = app.Run(ctx)
package bootstrap
