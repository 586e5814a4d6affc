package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config represents the application configuration
type Config struct {
	Database     DatabaseConfig
	Server       ServerConfig
	Sweeps       SweepConfig
	Redis        RedisConfig
	Notification NotificationConfig
	Payment      PaymentConfig
	Formance     FormanceConfig
	PolicyFile   string
	Policy       Policy
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	BusyTimeout     time.Duration
}

type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AuthUser        string
	AuthPass        string
}

// SweepConfig holds the background sweep intervals
type SweepConfig struct {
	DeadlineInterval  time.Duration
	UrgencyInterval   time.Duration
	ClearanceInterval time.Duration
	BatchSize         int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Enabled  bool
}

type NotificationConfig struct {
	SNSTopicArn      string
	AWSRegion        string
	TwilioAccountSid string
	TwilioAuthToken  string
	TwilioFromNumber string
}

// PaymentConfig points at the payment collaborator's refund endpoint
type PaymentConfig struct {
	RefundURL string
	APIKey    string
	Timeout   time.Duration
}

// FormanceConfig enables the optional ledger mirror
type FormanceConfig struct {
	StackURL     string
	ClientID     string
	ClientSecret string
	LedgerName   string
	Asset        string
}

// Policy holds the business constants. They are tuning knobs, not
// structural invariants, and can be overridden from the policy file.
// Percentages are 0-100, thresholds are fill ratios in (0, 1].
type Policy struct {
	PartialThreshold    decimal.Decimal
	EarlyCloseThreshold decimal.Decimal
	PlatformRate        decimal.Decimal
	AgentRate           decimal.Decimal
	CompanyRates        map[string]CommissionRates
	MinPayout           decimal.Decimal
	ClearanceHold       time.Duration
	UrgencySlots        int
	UrgencyWindow       time.Duration
	MinMembers          int
	MaxMembers          int
	MinDiscount         decimal.Decimal
	MaxDiscount         decimal.Decimal
	MinDeadlineOffset   time.Duration
	MaxDeadlineOffset   time.Duration
}

// CommissionRates overrides the platform and agent percentages for one company.
type CommissionRates struct {
	PlatformRate decimal.Decimal
	AgentRate    decimal.Decimal
}

// RatesFor returns the commission rates that apply to a company.
func (p Policy) RatesFor(companyId string) CommissionRates {
	if r, ok := p.CompanyRates[companyId]; ok {
		return r
	}
	return CommissionRates{PlatformRate: p.PlatformRate, AgentRate: p.AgentRate}
}

// DefaultPolicy returns the built-in business constants.
func DefaultPolicy() Policy {
	return Policy{
		PartialThreshold:    decimal.RequireFromString("0.70"),
		EarlyCloseThreshold: decimal.RequireFromString("0.50"),
		PlatformRate:        decimal.NewFromInt(10),
		AgentRate:           decimal.NewFromInt(20),
		CompanyRates:        map[string]CommissionRates{},
		MinPayout:           decimal.NewFromInt(100),
		ClearanceHold:       72 * time.Hour,
		UrgencySlots:        3,
		UrgencyWindow:       time.Hour,
		MinMembers:          2,
		MaxMembers:          50,
		MinDiscount:         decimal.NewFromInt(10),
		MaxDiscount:         decimal.NewFromInt(50),
		MinDeadlineOffset:   6 * time.Hour,
		MaxDeadlineOffset:   168 * time.Hour,
	}
}
