package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datastitch/tap-amazon-sp/pkg/errors"
)

func validConfig() *Config {
	return &Config{
		RefreshToken: "Atzr|refresh",
		ClientID:     "amzn1.application-oa2-client.test",
		ClientSecret: "secret",
		AWSAccessKey: "AKIATEST",
		AWSSecretKey: "aws-secret",
		RoleARN:      "arn:aws:iam::123456789012:role/SellingPartnerRole",
		StartDate:    "2024-01-01T00:00:00Z",
	}
}

func TestValidateDefaults(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, GranularityDay, cfg.SalesDataGranularity)
	assert.Equal(t, []string{"US"}, cfg.Marketplaces)
	assert.Equal(t, "https://sellingpartnerapi-na.amazon.com", cfg.Endpoint())
	assert.Equal(t, "us-east-1", cfg.Region())
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), cfg.StartTime())
}

func TestValidateMissingKeys(t *testing.T) {
	cfg := validConfig()
	cfg.RefreshToken = ""
	cfg.RoleARN = "  "

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	assert.Contains(t, err.Error(), "refresh_token")
	assert.Contains(t, err.Error(), "role_arn")
}

func TestValidateStartDateFormats(t *testing.T) {
	tests := []struct {
		date string
		want time.Time
	}{
		{"2024-01-01T00:00:00Z", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"2024-01-01T12:30:00", time.Date(2024, 1, 1, 12, 30, 0, 0, time.UTC)},
		{"2024-06-15", time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		cfg := validConfig()
		cfg.StartDate = tt.date
		require.NoError(t, cfg.Validate(), "start_date %q", tt.date)
		assert.Equal(t, tt.want, cfg.StartTime())
	}
}

func TestValidateBadStartDate(t *testing.T) {
	cfg := validConfig()
	cfg.StartDate = "January 1st"

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestValidateGranularity(t *testing.T) {
	cfg := validConfig()
	cfg.SalesDataGranularity = "hour"
	require.NoError(t, cfg.Validate())
	assert.Equal(t, GranularityHour, cfg.SalesDataGranularity)

	cfg = validConfig()
	cfg.SalesDataGranularity = "FORTNIGHT"
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestValidateMarketplaces(t *testing.T) {
	cfg := validConfig()
	cfg.Marketplaces = []string{"GB", "DE"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "https://sellingpartnerapi-eu.amazon.com", cfg.Endpoint())
	assert.Equal(t, "eu-west-1", cfg.Region())
}

func TestValidateUnknownMarketplace(t *testing.T) {
	cfg := validConfig()
	cfg.Marketplaces = []string{"XX"}

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestValidateMixedRegionMarketplaces(t *testing.T) {
	cfg := validConfig()
	cfg.Marketplaces = []string{"US", "GB"}

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{
		"refresh_token": "Atzr|refresh",
		"client_id": "amzn1.application-oa2-client.test",
		"client_secret": "secret",
		"aws_access_key": "AKIATEST",
		"aws_secret_key": "aws-secret",
		"role_arn": "arn:aws:iam::123456789012:role/SellingPartnerRole",
		"start_date": "2024-01-01",
		"marketplaces": ["CA", "MX"],
		"sales_data_granularity": "WEEK"
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, GranularityWeek, cfg.SalesDataGranularity)
	assert.Len(t, cfg.ResolvedMarketplaces(), 2)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.json")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
