// Package config defines the tap's configuration: the enumerated recognized
// options with their defaults, loaded from a JSON file and validated once at
// startup. No component re-reads raw configuration deeper in the call stack.
package config

import (
	"os"
	"strings"
	"time"

	gojson "github.com/goccy/go-json"

	"github.com/datastitch/tap-amazon-sp/pkg/errors"
	"github.com/datastitch/tap-amazon-sp/pkg/spapi"
)

// Granularity is the bucket size for pre-aggregated sales data.
type Granularity string

const (
	GranularityHour  Granularity = "HOUR"
	GranularityDay   Granularity = "DAY"
	GranularityWeek  Granularity = "WEEK"
	GranularityMonth Granularity = "MONTH"
	GranularityYear  Granularity = "YEAR"
	GranularityTotal Granularity = "TOTAL"
)

var validGranularities = map[Granularity]bool{
	GranularityHour:  true,
	GranularityDay:   true,
	GranularityWeek:  true,
	GranularityMonth: true,
	GranularityYear:  true,
	GranularityTotal: true,
}

// Config holds every recognized tap option. Credentials are immutable inputs;
// the auth package owns the derived token lifecycle.
type Config struct {
	RefreshToken string `json:"refresh_token"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	AWSAccessKey string `json:"aws_access_key"`
	AWSSecretKey string `json:"aws_secret_key"`
	RoleARN      string `json:"role_arn"`
	StartDate    string `json:"start_date"`

	Marketplaces         []string    `json:"marketplaces,omitempty"`
	SalesDataGranularity Granularity `json:"sales_data_granularity,omitempty"`

	// Derived during Validate
	startTime   time.Time
	marketplace []spapi.Marketplace
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read config file")
	}

	var cfg Config
	if err := gojson.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse config file")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks required options, applies defaults, and resolves derived
// values. It runs before any network call; every failure is run-fatal.
func (c *Config) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"refresh_token", c.RefreshToken},
		{"client_id", c.ClientID},
		{"client_secret", c.ClientSecret},
		{"aws_access_key", c.AWSAccessKey},
		{"aws_secret_key", c.AWSSecretKey},
		{"role_arn", c.RoleARN},
		{"start_date", c.StartDate},
	}
	var missing []string
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.name)
		}
	}
	if len(missing) > 0 {
		return errors.Newf(errors.ErrorTypeConfig,
			"missing required config keys: %s", strings.Join(missing, ", "))
	}

	start, err := parseDate(c.StartDate)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid start_date")
	}
	c.startTime = start

	if len(c.Marketplaces) == 0 {
		c.Marketplaces = []string{"US"}
	}
	resolved, err := spapi.ResolveMarketplaces(c.Marketplaces)
	if err != nil {
		return err
	}
	c.marketplace = resolved

	if c.SalesDataGranularity == "" {
		c.SalesDataGranularity = GranularityDay
	}
	c.SalesDataGranularity = Granularity(strings.ToUpper(string(c.SalesDataGranularity)))
	if !validGranularities[c.SalesDataGranularity] {
		return errors.Newf(errors.ErrorTypeConfig,
			"unsupported sales_data_granularity %q", c.SalesDataGranularity)
	}

	return nil
}

// StartTime returns the parsed start date in UTC.
func (c *Config) StartTime() time.Time {
	return c.startTime
}

// ResolvedMarketplaces returns the validated marketplace set.
func (c *Config) ResolvedMarketplaces() []spapi.Marketplace {
	return c.marketplace
}

// Endpoint returns the regional API endpoint shared by the configured
// marketplaces.
func (c *Config) Endpoint() string {
	return c.marketplace[0].Endpoint
}

// Region returns the AWS signing region for the configured marketplaces.
func (c *Config) Region() string {
	return c.marketplace[0].Region
}

// parseDate accepts RFC3339 timestamps as well as bare dates.
func parseDate(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	_, err := time.Parse(time.RFC3339, value)
	return time.Time{}, err
}
