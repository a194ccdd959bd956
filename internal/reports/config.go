package reports

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config defines report scheduling and delivery.
type Config struct {
	DailyAt       string `yaml:"daily_at"`
	WeeklyAt      string `yaml:"weekly_at"`
	WeeklyWeekday string `yaml:"weekly_weekday"`
	WebhookURL    string `yaml:"webhook_url"`
}

// LoadConfig loads config from yaml or env.
func LoadConfig() (Config, error) {
	cfg := Config{}

	if path := os.Getenv("REPORTS_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.DailyAt == "" {
		cfg.DailyAt = getenvDefault("REPORTS_DAILY_AT", "06:00")
	}
	if cfg.WeeklyAt == "" {
		cfg.WeeklyAt = getenvDefault("REPORTS_WEEKLY_AT", "06:30")
	}
	if cfg.WeeklyWeekday == "" {
		cfg.WeeklyWeekday = getenvDefault("REPORTS_WEEKLY_WEEKDAY", "Monday")
	}
	if cfg.WebhookURL == "" {
		cfg.WebhookURL = os.Getenv("REPORTS_WEBHOOK_URL")
	}
	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
