package config

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Thresholds defines what magnitude of change counts as significant
type Thresholds struct {
	MembershipPercent    float64 `yaml:"membership_percent" json:"membershipPercent"`
	ClubCountAbsolute    int     `yaml:"club_count_absolute" json:"clubCountAbsolute"`
	DistinguishedPercent float64 `yaml:"distinguished_percent" json:"distinguishedPercent"`
}

// ReconciliationConfig holds the tunable parameters of the reconciliation
// policy. A copy is frozen into every job at start time, so later changes to
// the global config never retroactively affect in-flight jobs.
type ReconciliationConfig struct {
	MaxReconciliationDays int        `yaml:"max_reconciliation_days" json:"maxReconciliationDays"`
	StabilityPeriodDays   int        `yaml:"stability_period_days" json:"stabilityPeriodDays"`
	CheckFrequencyHours   int        `yaml:"check_frequency_hours" json:"checkFrequencyHours"`
	MaxExtensionDays      int        `yaml:"max_extension_days" json:"maxExtensionDays"`
	AutoExtensionEnabled  bool       `yaml:"auto_extension_enabled" json:"autoExtensionEnabled"`
	Thresholds            Thresholds `yaml:"significant_change_thresholds" json:"significantChangeThresholds"`
}

// Default returns the stock reconciliation policy
func Default() ReconciliationConfig {
	return ReconciliationConfig{
		MaxReconciliationDays: 21,
		StabilityPeriodDays:   5,
		CheckFrequencyHours:   24,
		MaxExtensionDays:      7,
		AutoExtensionEnabled:  true,
		Thresholds: Thresholds{
			MembershipPercent:    3.0,
			ClubCountAbsolute:    2,
			DistinguishedPercent: 5.0,
		},
	}
}

// Load reads a config file and merges it over the defaults
func Load(path string) (ReconciliationConfig, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	var override Override
	if err := yaml.Unmarshal(data, &override); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}

	result := Validate(&override, cfg)
	if !result.IsValid {
		return cfg, fmt.Errorf("invalid config file %s: %v", path, result.Errors)
	}
	return *result.Validated, nil
}

// Override is a partial config. Nil fields keep the base value.
type Override struct {
	MaxReconciliationDays *int                `yaml:"max_reconciliation_days" json:"maxReconciliationDays,omitempty"`
	StabilityPeriodDays   *int                `yaml:"stability_period_days" json:"stabilityPeriodDays,omitempty"`
	CheckFrequencyHours   *int                `yaml:"check_frequency_hours" json:"checkFrequencyHours,omitempty"`
	MaxExtensionDays      *int                `yaml:"max_extension_days" json:"maxExtensionDays,omitempty"`
	AutoExtensionEnabled  *bool               `yaml:"auto_extension_enabled" json:"autoExtensionEnabled,omitempty"`
	Thresholds            *ThresholdsOverride `yaml:"significant_change_thresholds" json:"significantChangeThresholds,omitempty"`
}

// ThresholdsOverride is a partial Thresholds
type ThresholdsOverride struct {
	MembershipPercent    *float64 `yaml:"membership_percent" json:"membershipPercent,omitempty"`
	ClubCountAbsolute    *int     `yaml:"club_count_absolute" json:"clubCountAbsolute,omitempty"`
	DistinguishedPercent *float64 `yaml:"distinguished_percent" json:"distinguishedPercent,omitempty"`
}

// Merge applies an override onto a base config and returns the result
func Merge(base ReconciliationConfig, o *Override) ReconciliationConfig {
	merged := base
	if o == nil {
		return merged
	}
	if o.MaxReconciliationDays != nil {
		merged.MaxReconciliationDays = *o.MaxReconciliationDays
	}
	if o.StabilityPeriodDays != nil {
		merged.StabilityPeriodDays = *o.StabilityPeriodDays
	}
	if o.CheckFrequencyHours != nil {
		merged.CheckFrequencyHours = *o.CheckFrequencyHours
	}
	if o.MaxExtensionDays != nil {
		merged.MaxExtensionDays = *o.MaxExtensionDays
	}
	if o.AutoExtensionEnabled != nil {
		merged.AutoExtensionEnabled = *o.AutoExtensionEnabled
	}
	if o.Thresholds != nil {
		if o.Thresholds.MembershipPercent != nil {
			merged.Thresholds.MembershipPercent = *o.Thresholds.MembershipPercent
		}
		if o.Thresholds.ClubCountAbsolute != nil {
			merged.Thresholds.ClubCountAbsolute = *o.Thresholds.ClubCountAbsolute
		}
		if o.Thresholds.DistinguishedPercent != nil {
			merged.Thresholds.DistinguishedPercent = *o.Thresholds.DistinguishedPercent
		}
	}
	return merged
}

// Service is the process-wide configuration store. It hands out copies of the
// current policy and applies validated updates.
type Service struct {
	mu      sync.RWMutex
	current ReconciliationConfig
}

// NewService creates a config service seeded with the given policy
func NewService(cfg ReconciliationConfig) *Service {
	return &Service{current: cfg}
}

// Current returns a copy of the active policy
func (s *Service) Current() ReconciliationConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Apply validates an override against the active policy and, if valid,
// installs the merged result. The validation result is returned either way.
func (s *Service) Apply(o *Override) ValidationResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := Validate(o, s.current)
	if result.IsValid {
		s.current = *result.Validated
	}
	return result
}
