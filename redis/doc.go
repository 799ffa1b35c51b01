// Package redis wraps go-redis with the service logger, configuration
// conventions and component lifecycle.
//
// The agent uses Redis for two things: reading task state written by the
// worker pool's result backend, and caching Moodle session data.
// TypedStore adds JSON get/set under a key prefix:
//
//	store := redis.NewTypedStore[moodle.SiteInfo](client, "moodle:site-info")
//	err := store.Save(ctx, username, &info, time.Hour)
package redis
