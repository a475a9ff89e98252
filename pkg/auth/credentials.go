// Package auth manages the tap's two credential chains: the LWA bearer
// token exchanged from the long-lived refresh token, and the SigV4 signing
// material derived from static keys plus an assumed role. The chains
// refresh on independent schedules and never block each other.
package auth

import "github.com/datastitch/tap-amazon-sp/pkg/config"

// Credentials is the immutable credential input for both chains.
type Credentials struct {
	RefreshToken string
	ClientID     string
	ClientSecret string
	AWSAccessKey string
	AWSSecretKey string
	RoleARN      string
}

// FromConfig extracts credentials from a validated configuration.
func FromConfig(cfg *config.Config) Credentials {
	return Credentials{
		RefreshToken: cfg.RefreshToken,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		AWSAccessKey: cfg.AWSAccessKey,
		AWSSecretKey: cfg.AWSSecretKey,
		RoleARN:      cfg.RoleARN,
	}
}
