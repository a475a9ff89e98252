package spapi

import (
	"sort"
	"strings"

	"github.com/datastitch/tap-amazon-sp/pkg/errors"
)

// Marketplace describes one Amazon marketplace: its identifier, the regional
// API endpoint serving it, and the AWS region used for request signing.
type Marketplace struct {
	CountryCode string
	ID          string
	Endpoint    string
	Region      string
}

const (
	endpointNA = "https://sellingpartnerapi-na.amazon.com"
	endpointEU = "https://sellingpartnerapi-eu.amazon.com"
	endpointFE = "https://sellingpartnerapi-fe.amazon.com"

	regionNA = "us-east-1"
	regionEU = "eu-west-1"
	regionFE = "us-west-2"
)

// marketplaces maps country codes to marketplace definitions, mirroring the
// published SP-API marketplace registry.
var marketplaces = map[string]Marketplace{
	"US": {CountryCode: "US", ID: "ATVPDKIKX0DER", Endpoint: endpointNA, Region: regionNA},
	"CA": {CountryCode: "CA", ID: "A2EUQ1WTGCTBG2", Endpoint: endpointNA, Region: regionNA},
	"MX": {CountryCode: "MX", ID: "A1AM78C64UM0Y8", Endpoint: endpointNA, Region: regionNA},
	"BR": {CountryCode: "BR", ID: "A2Q3Y263D00KWC", Endpoint: endpointNA, Region: regionNA},
	"GB": {CountryCode: "GB", ID: "A1F83G8C2ARO7P", Endpoint: endpointEU, Region: regionEU},
	"DE": {CountryCode: "DE", ID: "A1PA6795UKMFR9", Endpoint: endpointEU, Region: regionEU},
	"FR": {CountryCode: "FR", ID: "A13V1IB3VIYZZH", Endpoint: endpointEU, Region: regionEU},
	"IT": {CountryCode: "IT", ID: "APJ6JRA9NG5V4", Endpoint: endpointEU, Region: regionEU},
	"ES": {CountryCode: "ES", ID: "A1RKKUPIHCS9HS", Endpoint: endpointEU, Region: regionEU},
	"NL": {CountryCode: "NL", ID: "A1805IZSGTT6HS", Endpoint: endpointEU, Region: regionEU},
	"SE": {CountryCode: "SE", ID: "A2NODRKZP88ZB9", Endpoint: endpointEU, Region: regionEU},
	"PL": {CountryCode: "PL", ID: "A1C3SOZRARQ6R3", Endpoint: endpointEU, Region: regionEU},
	"TR": {CountryCode: "TR", ID: "A33AVAJ2PDY3EV", Endpoint: endpointEU, Region: regionEU},
	"AE": {CountryCode: "AE", ID: "A2VIGQ35RCS4UG", Endpoint: endpointEU, Region: regionEU},
	"IN": {CountryCode: "IN", ID: "A21TJRUUN4KGV", Endpoint: endpointEU, Region: regionEU},
	"SA": {CountryCode: "SA", ID: "A17E79C6D8DWNP", Endpoint: endpointEU, Region: regionEU},
	"EG": {CountryCode: "EG", ID: "ARBP9OOSHTCHU", Endpoint: endpointEU, Region: regionEU},
	"JP": {CountryCode: "JP", ID: "A1VC38T7YXB528", Endpoint: endpointFE, Region: regionFE},
	"AU": {CountryCode: "AU", ID: "A39IBJ37TRP1C6", Endpoint: endpointFE, Region: regionFE},
	"SG": {CountryCode: "SG", ID: "A19VAU5U5O7RUS", Endpoint: endpointFE, Region: regionFE},
}

// MarketplaceFor resolves a country code to its marketplace definition.
// Unknown codes are a configuration error carrying the valid set.
func MarketplaceFor(countryCode string) (Marketplace, error) {
	mp, ok := marketplaces[strings.ToUpper(strings.TrimSpace(countryCode))]
	if !ok {
		return Marketplace{}, errors.Newf(errors.ErrorTypeConfig,
			"provided marketplace %q is not in marketplaces set: %s",
			countryCode, strings.Join(ValidMarketplaces(), ", "))
	}
	return mp, nil
}

// ResolveMarketplaces resolves a set of country codes. All resolved
// marketplaces must share one regional endpoint: the API does not accept
// cross-region marketplace sets on a single connection.
func ResolveMarketplaces(countryCodes []string) ([]Marketplace, error) {
	if len(countryCodes) == 0 {
		countryCodes = []string{"US"}
	}

	resolved := make([]Marketplace, 0, len(countryCodes))
	for _, code := range countryCodes {
		mp, err := MarketplaceFor(code)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, mp)
	}

	endpoint := resolved[0].Endpoint
	for _, mp := range resolved[1:] {
		if mp.Endpoint != endpoint {
			return nil, errors.Newf(errors.ErrorTypeConfig,
				"marketplaces %s and %s belong to different API regions and cannot be synced together",
				resolved[0].CountryCode, mp.CountryCode)
		}
	}

	return resolved, nil
}

// ValidMarketplaces returns the supported country codes in sorted order.
func ValidMarketplaces() []string {
	codes := make([]string, 0, len(marketplaces))
	for code := range marketplaces {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// MarketplaceIDs extracts the marketplace identifiers for request parameters.
func MarketplaceIDs(mps []Marketplace) []string {
	ids := make([]string, len(mps))
	for i, mp := range mps {
		ids[i] = mp.ID
	}
	return ids
}
