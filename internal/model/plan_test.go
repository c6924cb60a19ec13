package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultPlanCatalogListsTiers(testingT *testing.T) {
	catalog, err := DefaultPlanCatalog()
	require.NoError(testingT, err)
	require.Len(testingT, catalog.Tiers, 4)

	freeTier, ok := catalog.Tier("free")
	require.True(testingT, ok)
	require.False(testingT, freeTier.Purchasable())

	turboTier, ok := catalog.Tier("TURBO")
	require.True(testingT, ok)
	require.True(testingT, turboTier.Popular)
	require.True(testingT, turboTier.Purchasable())
}

func TestPlanCatalogPriceOverrides(testingT *testing.T) {
	catalog, err := DefaultPlanCatalog()
	require.NoError(testingT, err)

	overridden := catalog.WithPriceOverrides(map[string]string{"power": "price_test", "ultra": "  "})
	powerTier, _ := overridden.Tier("power")
	require.Equal(testingT, "price_test", powerTier.PriceID)

	originalPower, _ := catalog.Tier("power")
	require.NotEqual(testingT, "price_test", originalPower.PriceID)

	ultraTier, _ := overridden.Tier("ultra")
	require.Equal(testingT, "price_1S4out38EcxtIJ87KG0DUNcf", ultraTier.PriceID)
}

func TestParsePlanCatalogValidation(testingT *testing.T) {
	_, err := ParsePlanCatalog([]byte("tiers: []"))
	require.True(testingT, errors.Is(err, ErrEmptyPlanCatalog))

	_, err = ParsePlanCatalog([]byte("tiers:\n  - key: a\n    name: A\n  - key: a\n    name: B\n"))
	require.True(testingT, errors.Is(err, ErrInvalidPlanTier))

	_, err = ParsePlanCatalog([]byte("tiers:\n  - key: ''\n    name: A\n"))
	require.True(testingT, errors.Is(err, ErrInvalidPlanTier))

	_, err = ParsePlanCatalog([]byte("tiers: ["))
	require.Error(testingT, err)
}
