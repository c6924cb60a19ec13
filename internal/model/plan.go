package model

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed plans.yaml
var defaultPlanCatalogYAML []byte

var (
	ErrEmptyPlanCatalog = errors.New("empty_plan_catalog")
	ErrInvalidPlanTier  = errors.New("invalid_plan_tier")
)

// PlanTier is one purchasable (or informational) subscription tier.
type PlanTier struct {
	Key         string `yaml:"key"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Price       string `yaml:"price"`
	PriceID     string `yaml:"price_id"`
	Popular     bool   `yaml:"popular"`
}

// Purchasable reports whether a checkout can be started for the tier.
func (tier PlanTier) Purchasable() bool {
	return strings.TrimSpace(tier.PriceID) != ""
}

// PlanCatalog is the fixed set of tiers offered on the plans page.
type PlanCatalog struct {
	Tiers []PlanTier `yaml:"tiers"`
}

// DefaultPlanCatalog parses the catalog shipped with the binary.
func DefaultPlanCatalog() (PlanCatalog, error) {
	return ParsePlanCatalog(defaultPlanCatalogYAML)
}

// ParsePlanCatalog decodes a YAML catalog and validates every tier.
func ParsePlanCatalog(data []byte) (PlanCatalog, error) {
	var catalog PlanCatalog
	if decodeErr := yaml.Unmarshal(data, &catalog); decodeErr != nil {
		return PlanCatalog{}, fmt.Errorf("decode plan catalog: %w", decodeErr)
	}
	if len(catalog.Tiers) == 0 {
		return PlanCatalog{}, ErrEmptyPlanCatalog
	}
	seenKeys := make(map[string]struct{}, len(catalog.Tiers))
	for index := range catalog.Tiers {
		tier := &catalog.Tiers[index]
		tier.Key = strings.ToLower(strings.TrimSpace(tier.Key))
		tier.Name = strings.TrimSpace(tier.Name)
		tier.PriceID = strings.TrimSpace(tier.PriceID)
		if tier.Key == "" || tier.Name == "" {
			return PlanCatalog{}, fmt.Errorf("%w: tier %d", ErrInvalidPlanTier, index)
		}
		if _, duplicate := seenKeys[tier.Key]; duplicate {
			return PlanCatalog{}, fmt.Errorf("%w: duplicate key %s", ErrInvalidPlanTier, tier.Key)
		}
		seenKeys[tier.Key] = struct{}{}
	}
	return catalog, nil
}

// WithPriceOverrides replaces price ids for the given tier keys; blank overrides are ignored.
func (catalog PlanCatalog) WithPriceOverrides(overrides map[string]string) PlanCatalog {
	tiers := make([]PlanTier, len(catalog.Tiers))
	copy(tiers, catalog.Tiers)
	for index := range tiers {
		override := strings.TrimSpace(overrides[tiers[index].Key])
		if override != "" {
			tiers[index].PriceID = override
		}
	}
	return PlanCatalog{Tiers: tiers}
}

// Tier looks up a tier by key.
func (catalog PlanCatalog) Tier(key string) (PlanTier, bool) {
	normalizedKey := strings.ToLower(strings.TrimSpace(key))
	for _, tier := range catalog.Tiers {
		if tier.Key == normalizedKey {
			return tier, true
		}
	}
	return PlanTier{}, false
}
