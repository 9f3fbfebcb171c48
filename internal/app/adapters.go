package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/mrimoveis/leadcache/internal/crm"
	"github.com/mrimoveis/leadcache/internal/database"
	"github.com/mrimoveis/leadcache/internal/services"
)

// ClientConfig converts the CRM settings into the crm package representation.
func (c CRMConfig) ClientConfig() crm.Config {
	return crm.Config{
		BaseURL: strings.TrimSpace(c.BaseURL),
		Token:   strings.TrimSpace(c.Token),
		Timeout: c.Timeout,
	}
}

// Location resolves the configured timezone. An empty value selects the local zone.
func (c LeadsConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Timezone)
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("config: leads.timezone: %w", err)
	}
	return loc, nil
}

// ServiceConfig converts the leads settings into the lead service representation.
func (c LeadsConfig) ServiceConfig() (services.LeadServiceConfig, error) {
	loc, err := c.Location()
	if err != nil {
		return services.LeadServiceConfig{}, err
	}
	return services.LeadServiceConfig{
		TTL:      c.TTL,
		Limit:    c.Limit,
		MaxPages: c.MaxPages,
		Location: loc,
	}, nil
}

// ConnConfig converts the database settings, picking host credentials for the
// configured driver.
func (c DatabaseConfig) ConnConfig() database.Config {
	cfg := database.Config{
		Driver: strings.ToLower(strings.TrimSpace(c.Driver)),
		Path:   strings.TrimSpace(c.Path),
		DSN:    strings.TrimSpace(c.DSN),
	}

	var auth DBAuthConfig
	switch cfg.Driver {
	case "postgres", "postgresql":
		auth = c.Postgres
	case "mysql", "mariadb":
		auth = c.MySQL
	default:
		return cfg
	}

	cfg.Host = strings.TrimSpace(auth.Host)
	cfg.Port = auth.Port
	cfg.Name = strings.TrimSpace(auth.Database)
	cfg.User = strings.TrimSpace(auth.Username)
	cfg.Password = auth.Password
	return cfg
}
