package database

import (
	"fmt"
	"net/url"

	"github.com/rickgao/odds-history/internal/config"
)

// BuildConnString builds a PostgreSQL connection string from config.
// The password may come from POSTGRES_PASSWORD instead of the file and is
// omitted from the URL when empty, so a .pgpass entry can supply it.
func BuildConnString(cfg config.DBConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = config.DefaultDBSSLMode
	}
	port := cfg.Port
	if port == 0 {
		port = config.DefaultDBPort
	}

	userInfo := url.QueryEscape(cfg.User)
	if cfg.Password != "" {
		// URL-encode password to handle special characters
		userInfo += ":" + url.QueryEscape(cfg.Password)
	}

	return fmt.Sprintf(
		"postgres://%s@%s:%d/%s?sslmode=%s",
		userInfo,
		cfg.Host,
		port,
		cfg.Name,
		sslMode,
	)
}
