package common

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"
)

// SubscriptionPlan describes a recurring plan that grants monthly credits.
type SubscriptionPlan struct {
	Id             string `yaml:"id"`
	Name           string `yaml:"name"`
	MonthlyCredits int64  `yaml:"monthly_credits"`
	StripePriceId  string `yaml:"stripe_price_id"`
	Price          string `yaml:"price_usd"`

	// PriceUSD is Price parsed during validation.
	PriceUSD decimal.Decimal `yaml:"-"`
}

// CreditPackage describes a one-time credit purchase.
type CreditPackage struct {
	Id            string `yaml:"id"`
	Name          string `yaml:"name"`
	Credits       int64  `yaml:"credits"`
	StripePriceId string `yaml:"stripe_price_id"`
	Price         string `yaml:"price_usd"`

	PriceUSD decimal.Decimal `yaml:"-"`
}

// PricingCatalog maps Stripe price ids to credit amounts.
type PricingCatalog struct {
	Plans    []SubscriptionPlan `yaml:"plans"`
	Packages []CreditPackage    `yaml:"packages"`
}

func LoadPricingCatalog(catalogFile string) (*PricingCatalog, error) {
	var catalogPath string
	if filepath.IsAbs(catalogFile) {
		catalogPath = catalogFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		catalogPath = filepath.Join(wd, catalogFile)
	}

	data, err := os.ReadFile(catalogPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", catalogFile, err)
	}

	var catalog PricingCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", catalogFile, err)
	}

	for i := range catalog.Plans {
		plan := &catalog.Plans[i]
		if plan.Id == "" {
			return nil, fmt.Errorf("plan at index %d missing id", i)
		}
		if plan.MonthlyCredits <= 0 {
			return nil, fmt.Errorf("plan %q must grant a positive number of monthly credits", plan.Id)
		}
		if plan.StripePriceId == "" {
			return nil, fmt.Errorf("plan %q missing stripe_price_id", plan.Id)
		}
		plan.PriceUSD, err = decimal.NewFromString(plan.Price)
		if err != nil {
			return nil, fmt.Errorf("plan %q has invalid price_usd %q: %w", plan.Id, plan.Price, err)
		}
	}

	for i := range catalog.Packages {
		pkg := &catalog.Packages[i]
		if pkg.Id == "" {
			return nil, fmt.Errorf("package at index %d missing id", i)
		}
		if pkg.Credits <= 0 {
			return nil, fmt.Errorf("package %q must contain a positive number of credits", pkg.Id)
		}
		if pkg.StripePriceId == "" {
			return nil, fmt.Errorf("package %q missing stripe_price_id", pkg.Id)
		}
		pkg.PriceUSD, err = decimal.NewFromString(pkg.Price)
		if err != nil {
			return nil, fmt.Errorf("package %q has invalid price_usd %q: %w", pkg.Id, pkg.Price, err)
		}
	}

	return &catalog, nil
}

// PlanByPriceId returns the subscription plan sold under the given Stripe
// price id, or nil if none matches.
func (c *PricingCatalog) PlanByPriceId(priceId string) *SubscriptionPlan {
	for i := range c.Plans {
		if c.Plans[i].StripePriceId == priceId {
			return &c.Plans[i]
		}
	}
	return nil
}

// PackageByPriceId returns the credit package sold under the given Stripe
// price id, or nil if none matches.
func (c *PricingCatalog) PackageByPriceId(priceId string) *CreditPackage {
	for i := range c.Packages {
		if c.Packages[i].StripePriceId == priceId {
			return &c.Packages[i]
		}
	}
	return nil
}
