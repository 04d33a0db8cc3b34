/**
 * @description
 * This file handles configuration management for the user-manager service.
 * It loads settings from environment variables, providing defaults for cron
 * schedules, lifecycle thresholds and org-unit paths.
 */
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds all configuration for the user-manager service.
type Config struct {
	ServerPort  string `mapstructure:"SERVER_PORT"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	AMQPURL     string `mapstructure:"AMQP_URL"`

	DirectoryBaseURL string `mapstructure:"DIRECTORY_BASE_URL"`
	DirectoryAPIKey  string `mapstructure:"DIRECTORY_API_KEY"`

	// AccountDomain is appended to derived identifiers to form the primary
	// address, e.g. jan.kowalski@example.org.
	AccountDomain string `mapstructure:"ACCOUNT_DOMAIN"`
	// PhonePrefix is the national dialing prefix prepended to recovery phone
	// numbers on provisioning.
	PhonePrefix string `mapstructure:"PHONE_PREFIX"`

	AdminEmail   string `mapstructure:"ADMIN_EMAIL"`
	ManagerEmail string `mapstructure:"MANAGER_EMAIL"`
	SurveyLink   string `mapstructure:"SURVEY_LINK"`
	// ConfirmBaseURL is the public base of the confirmation page; intake and
	// reminder mails embed links under it.
	ConfirmBaseURL string `mapstructure:"CONFIRM_BASE_URL"`

	JWKSEndpoint  string `mapstructure:"JWKS_ENDPOINT"`
	OAuthClientID string `mapstructure:"OAUTH_CLIENT_ID"`

	// AdminAPIKey protects the admin endpoints (provisioning, group sync).
	AdminAPIKey string `mapstructure:"ADMIN_API_KEY"`

	MembersOrgUnit string `mapstructure:"MEMBERS_ORG_UNIT"`
	LeadersOrgUnit string `mapstructure:"LEADERS_ORG_UNIT"`
	UnitsOrgUnit   string `mapstructure:"UNITS_ORG_UNIT"`
	ReserveOrgUnit string `mapstructure:"RESERVE_ORG_UNIT"`

	LifecycleSweepSchedule string `mapstructure:"LIFECYCLE_SWEEP_SCHEDULE"`
	CleanupSweepSchedule   string `mapstructure:"CLEANUP_SWEEP_SCHEDULE"`

	// RateLimitDelayMS is the fixed pause inserted between rate-limited
	// directory patches and notification sends during batch passes.
	RateLimitDelayMS int `mapstructure:"RATE_LIMIT_DELAY_MS"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("ACCOUNT_DOMAIN", "example.org")
	viper.SetDefault("PHONE_PREFIX", "+48")
	viper.SetDefault("MEMBERS_ORG_UNIT", "/members")
	viper.SetDefault("LEADERS_ORG_UNIT", "/leaders")
	viper.SetDefault("UNITS_ORG_UNIT", "/units")
	viper.SetDefault("RESERVE_ORG_UNIT", "/members/reserve")
	viper.SetDefault("JWKS_ENDPOINT", "https://www.googleapis.com/oauth2/v3/certs")
	viper.SetDefault("LIFECYCLE_SWEEP_SCHEDULE", "0 6 * * *")  // At 06:00 daily.
	viper.SetDefault("CLEANUP_SWEEP_SCHEDULE", "30 6 * * *")   // At 06:30 daily.
	viper.SetDefault("RATE_LIMIT_DELAY_MS", 200)
	viper.AutomaticEnv()

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	for _, key := range []string{
		"SERVER_PORT", "DATABASE_URL", "AMQP_URL",
		"DIRECTORY_BASE_URL", "DIRECTORY_API_KEY",
		"ACCOUNT_DOMAIN", "PHONE_PREFIX",
		"ADMIN_EMAIL", "MANAGER_EMAIL", "SURVEY_LINK", "CONFIRM_BASE_URL",
		"JWKS_ENDPOINT", "OAUTH_CLIENT_ID", "ADMIN_API_KEY",
		"MEMBERS_ORG_UNIT", "LEADERS_ORG_UNIT", "UNITS_ORG_UNIT", "RESERVE_ORG_UNIT",
		"LIFECYCLE_SWEEP_SCHEDULE", "CLEANUP_SWEEP_SCHEDULE",
		"RATE_LIMIT_DELAY_MS",
	} {
		_ = viper.BindEnv(key)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if config.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if config.DirectoryBaseURL == "" {
		return nil, fmt.Errorf("DIRECTORY_BASE_URL is required")
	}
	if config.AdminEmail == "" {
		return nil, fmt.Errorf("ADMIN_EMAIL is required")
	}

	return &config, nil
}
