package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"group-shipment-go/internal/models"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"
)

// policyFile mirrors models.Policy with optional fields; anything left out
// keeps its default. Money and percentages are strings so they parse
// exactly.
type policyFile struct {
	PartialThreshold    string                  `yaml:"partial_threshold"`
	EarlyCloseThreshold string                  `yaml:"early_close_threshold"`
	PlatformRate        string                  `yaml:"platform_rate"`
	AgentRate           string                  `yaml:"agent_rate"`
	CompanyRates        map[string]companyRates `yaml:"company_rates"`
	MinPayout           string                  `yaml:"min_payout"`
	ClearanceHold       time.Duration           `yaml:"clearance_hold"`
	UrgencySlots        int                     `yaml:"urgency_slots"`
	UrgencyWindow       time.Duration           `yaml:"urgency_window"`
	MinMembers          int                     `yaml:"min_members"`
	MaxMembers          int                     `yaml:"max_members"`
	MinDiscount         string                  `yaml:"min_discount"`
	MaxDiscount         string                  `yaml:"max_discount"`
	MinDeadlineOffset   time.Duration           `yaml:"min_deadline_offset"`
	MaxDeadlineOffset   time.Duration           `yaml:"max_deadline_offset"`
}

type companyRates struct {
	PlatformRate string `yaml:"platform_rate"`
	AgentRate    string `yaml:"agent_rate"`
}

// LoadPolicy reads the business policy from policyPath. A missing file
// yields the default policy unless required is set.
func LoadPolicy(policyPath string, required bool) (models.Policy, error) {
	policy := models.DefaultPolicy()

	if !filepath.IsAbs(policyPath) {
		wd, err := os.Getwd()
		if err != nil {
			return policy, fmt.Errorf("failed to get working directory: %w", err)
		}
		policyPath = filepath.Join(wd, policyPath)
	}

	data, err := os.ReadFile(policyPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return policy, nil
		}
		return policy, fmt.Errorf("unable to read %s: %w", policyPath, err)
	}

	return ParsePolicy(data)
}

// ParsePolicy overlays the YAML document onto the default policy and
// validates the result.
func ParsePolicy(data []byte) (models.Policy, error) {
	policy := models.DefaultPolicy()

	var file policyFile
	if err := yaml.UnmarshalStrict(data, &file); err != nil {
		return policy, fmt.Errorf("unable to parse policy: %w", err)
	}

	decimals := []struct {
		name  string
		value string
		dst   *decimal.Decimal
	}{
		{"partial_threshold", file.PartialThreshold, &policy.PartialThreshold},
		{"early_close_threshold", file.EarlyCloseThreshold, &policy.EarlyCloseThreshold},
		{"platform_rate", file.PlatformRate, &policy.PlatformRate},
		{"agent_rate", file.AgentRate, &policy.AgentRate},
		{"min_payout", file.MinPayout, &policy.MinPayout},
		{"min_discount", file.MinDiscount, &policy.MinDiscount},
		{"max_discount", file.MaxDiscount, &policy.MaxDiscount},
	}
	for _, d := range decimals {
		if err := overlayDecimal(d.name, d.value, d.dst); err != nil {
			return policy, err
		}
	}

	overlayInt(file.UrgencySlots, &policy.UrgencySlots)
	overlayInt(file.MinMembers, &policy.MinMembers)
	overlayInt(file.MaxMembers, &policy.MaxMembers)
	overlayDuration(file.ClearanceHold, &policy.ClearanceHold)
	overlayDuration(file.UrgencyWindow, &policy.UrgencyWindow)
	overlayDuration(file.MinDeadlineOffset, &policy.MinDeadlineOffset)
	overlayDuration(file.MaxDeadlineOffset, &policy.MaxDeadlineOffset)

	for companyId, rates := range file.CompanyRates {
		r := models.CommissionRates{PlatformRate: policy.PlatformRate, AgentRate: policy.AgentRate}
		if err := overlayDecimal("company_rates."+companyId+".platform_rate", rates.PlatformRate, &r.PlatformRate); err != nil {
			return policy, err
		}
		if err := overlayDecimal("company_rates."+companyId+".agent_rate", rates.AgentRate, &r.AgentRate); err != nil {
			return policy, err
		}
		policy.CompanyRates[companyId] = r
	}

	if err := Validate(policy); err != nil {
		return policy, err
	}
	return policy, nil
}

// Validate checks that the policy values are usable together.
func Validate(p models.Policy) error {
	one, hundred := decimal.NewFromInt(1), decimal.NewFromInt(100)

	if !p.PartialThreshold.IsPositive() || p.PartialThreshold.GreaterThan(one) {
		return fmt.Errorf("partial_threshold must be in (0, 1], got %s", p.PartialThreshold)
	}
	if !p.EarlyCloseThreshold.IsPositive() || p.EarlyCloseThreshold.GreaterThan(one) {
		return fmt.Errorf("early_close_threshold must be in (0, 1], got %s", p.EarlyCloseThreshold)
	}
	if err := validateRates("default", p.PlatformRate, p.AgentRate); err != nil {
		return err
	}
	for companyId, r := range p.CompanyRates {
		if err := validateRates(companyId, r.PlatformRate, r.AgentRate); err != nil {
			return err
		}
	}
	if !p.MinPayout.IsPositive() {
		return fmt.Errorf("min_payout must be positive, got %s", p.MinPayout)
	}
	if p.ClearanceHold < 0 {
		return fmt.Errorf("clearance_hold cannot be negative, got %s", p.ClearanceHold)
	}
	if p.UrgencySlots < 1 || p.UrgencyWindow <= 0 {
		return fmt.Errorf("urgency_slots and urgency_window must be positive")
	}
	if p.MinMembers < 1 || p.MaxMembers < p.MinMembers {
		return fmt.Errorf("group capacity range %d-%d is invalid", p.MinMembers, p.MaxMembers)
	}
	if p.MinDiscount.IsNegative() || p.MaxDiscount.GreaterThan(hundred) || p.MaxDiscount.LessThan(p.MinDiscount) {
		return fmt.Errorf("discount range %s-%s is invalid", p.MinDiscount, p.MaxDiscount)
	}
	if p.MinDeadlineOffset <= 0 || p.MaxDeadlineOffset < p.MinDeadlineOffset {
		return fmt.Errorf("deadline range %s-%s is invalid", p.MinDeadlineOffset, p.MaxDeadlineOffset)
	}
	return nil
}

func validateRates(name string, platformRate, agentRate decimal.Decimal) error {
	if platformRate.IsNegative() || agentRate.IsNegative() {
		return fmt.Errorf("%s commission rates cannot be negative", name)
	}
	if platformRate.Add(agentRate).GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("%s platform and agent rates exceed 100%%", name)
	}
	return nil
}

func overlayDecimal(name, value string, dst *decimal.Decimal) error {
	if value == "" {
		return nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", name, value, err)
	}
	*dst = d
	return nil
}

func overlayInt(value int, dst *int) {
	if value != 0 {
		*dst = value
	}
}

func overlayDuration(value time.Duration, dst *time.Duration) {
	if value != 0 {
		*dst = value
	}
}
