package app

import (
	"strings"

	"github.com/charlesng35/partyfinder/internal/database"
)

// ConnectionConfig picks the vendor block matching the configured driver.
func (c DatabaseConfig) ConnectionConfig() database.Config {
	cfg := database.Config{
		Driver: strings.ToLower(strings.TrimSpace(c.Driver)),
		Path:   strings.TrimSpace(c.Path),
		DSN:    strings.TrimSpace(c.DSN),
	}

	var vendor DBAuthConfig
	switch cfg.Driver {
	case "postgres", "postgresql":
		vendor = c.Postgres
	case "mysql", "mariadb":
		vendor = c.MySQL
	default:
		return cfg
	}
	cfg.Host = strings.TrimSpace(vendor.Host)
	cfg.Port = vendor.Port
	cfg.Name = strings.TrimSpace(vendor.Database)
	cfg.User = strings.TrimSpace(vendor.Username)
	cfg.Password = vendor.Password
	return cfg
}
