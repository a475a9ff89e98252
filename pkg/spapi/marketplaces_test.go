package spapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datastitch/tap-amazon-sp/pkg/errors"
)

func TestMarketplaceFor(t *testing.T) {
	mp, err := MarketplaceFor("US")
	require.NoError(t, err)
	assert.Equal(t, "ATVPDKIKX0DER", mp.ID)
	assert.Equal(t, "us-east-1", mp.Region)

	_, err = MarketplaceFor("XX")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestResolveMarketplacesSameRegion(t *testing.T) {
	mps, err := ResolveMarketplaces([]string{"GB", "DE", "FR"})
	require.NoError(t, err)
	require.Len(t, mps, 3)
	for _, mp := range mps {
		assert.Equal(t, "eu-west-1", mp.Region)
	}
}

func TestResolveMarketplacesRejectsMixedRegions(t *testing.T) {
	_, err := ResolveMarketplaces([]string{"US", "JP"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestResolveMarketplacesCaseInsensitive(t *testing.T) {
	mps, err := ResolveMarketplaces([]string{"us", "ca"})
	require.NoError(t, err)
	assert.Len(t, mps, 2)
}

func TestMarketplaceIDs(t *testing.T) {
	mps, err := ResolveMarketplaces([]string{"US", "CA", "MX"})
	require.NoError(t, err)

	ids := MarketplaceIDs(mps)
	assert.Equal(t, []string{"ATVPDKIKX0DER", "A2EUQ1WTGCTBG2", "A1AM78C64UM0Y8"}, ids)
}
