// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// Secrets can also be supplied directly through environment variables (ODDS_API_KEY,
// POSTGRES_PASSWORD, REDIS_URL, AMQP_URL, TELEGRAM_BOT_TOKEN), which override the file.
// See configs/collector.example.yaml for a complete example.
package config
