// Package config loads service configuration with viper.
//
// Values come from an optional YAML file, then a .env file loaded with
// godotenv, then the process environment. Environment variables map onto
// nested keys by splitting on underscores, so DATABASE_POSTGRES_HOST sets
// database.postgres.host and AUTH_JWT_ACCESS_TOKEN_TTL sets
// auth.jwt.access_token_ttl.
//
//	var cfg app.Config
//	if err := config.LoadConfig("itmo-moodle-agent", &cfg); err != nil { ... }
package config
