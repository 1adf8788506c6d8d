package config

import "fmt"

// ValidationResult reports the outcome of validating a config override.
// Errors reject the override outright; warnings flag suspicious but legal
// values. Validated holds the merged config when IsValid is true.
type ValidationResult struct {
	IsValid   bool                  `json:"isValid"`
	Errors    []string              `json:"errors,omitempty"`
	Warnings  []string              `json:"warnings,omitempty"`
	Validated *ReconciliationConfig `json:"validatedConfig,omitempty"`
}

// Validate checks a partial config against the given base. Each overridden
// field is checked on its own, then the merged result is re-checked for
// cross-field violations, since an update to one field can invalidate
// another already-stored field.
func Validate(o *Override, base ReconciliationConfig) ValidationResult {
	var errs, warnings []string

	if o != nil {
		if o.MaxReconciliationDays != nil {
			if *o.MaxReconciliationDays <= 0 {
				errs = append(errs, fmt.Sprintf("maxReconciliationDays must be a positive integer, got %d", *o.MaxReconciliationDays))
			} else if *o.MaxReconciliationDays > 30 {
				warnings = append(warnings, fmt.Sprintf("maxReconciliationDays of %d is unusually long; reports freeze late", *o.MaxReconciliationDays))
			}
		}
		if o.StabilityPeriodDays != nil {
			if *o.StabilityPeriodDays <= 0 {
				errs = append(errs, fmt.Sprintf("stabilityPeriodDays must be a positive integer, got %d", *o.StabilityPeriodDays))
			}
		}
		if o.CheckFrequencyHours != nil {
			if *o.CheckFrequencyHours <= 0 {
				errs = append(errs, fmt.Sprintf("checkFrequencyHours must be a positive integer, got %d", *o.CheckFrequencyHours))
			} else if *o.CheckFrequencyHours < 6 {
				warnings = append(warnings, fmt.Sprintf("checkFrequencyHours of %d polls the upstream source aggressively", *o.CheckFrequencyHours))
			} else if *o.CheckFrequencyHours > 48 {
				warnings = append(warnings, fmt.Sprintf("checkFrequencyHours of %d may miss short-lived revisions", *o.CheckFrequencyHours))
			}
		}
		if o.MaxExtensionDays != nil {
			if *o.MaxExtensionDays < 0 {
				errs = append(errs, fmt.Sprintf("maxExtensionDays must be a non-negative integer, got %d", *o.MaxExtensionDays))
			} else if *o.MaxExtensionDays > 15 {
				warnings = append(warnings, fmt.Sprintf("maxExtensionDays of %d allows very long extensions", *o.MaxExtensionDays))
			}
		}
		if o.Thresholds != nil {
			if o.Thresholds.MembershipPercent != nil {
				if *o.Thresholds.MembershipPercent < 0 {
					errs = append(errs, "significantChangeThresholds.membershipPercent must not be negative")
				} else if *o.Thresholds.MembershipPercent > 10 {
					warnings = append(warnings, fmt.Sprintf("membershipPercent threshold of %.1f may mask real changes", *o.Thresholds.MembershipPercent))
				}
			}
			if o.Thresholds.ClubCountAbsolute != nil && *o.Thresholds.ClubCountAbsolute < 0 {
				errs = append(errs, "significantChangeThresholds.clubCountAbsolute must not be negative")
			}
			if o.Thresholds.DistinguishedPercent != nil {
				if *o.Thresholds.DistinguishedPercent < 0 {
					errs = append(errs, "significantChangeThresholds.distinguishedPercent must not be negative")
				} else if *o.Thresholds.DistinguishedPercent > 20 {
					warnings = append(warnings, fmt.Sprintf("distinguishedPercent threshold of %.1f may mask real changes", *o.Thresholds.DistinguishedPercent))
				}
			}
		}
	}

	merged := Merge(base, o)

	// Cross-field checks run on the merged config so that overriding either
	// side of the relationship is caught.
	if merged.StabilityPeriodDays > merged.MaxReconciliationDays {
		errs = append(errs, fmt.Sprintf("stabilityPeriodDays (%d) must not exceed maxReconciliationDays (%d)",
			merged.StabilityPeriodDays, merged.MaxReconciliationDays))
	}
	if merged.MaxExtensionDays > 0 && !merged.AutoExtensionEnabled {
		warnings = append(warnings, "maxExtensionDays is set but auto-extension is disabled; extensions must be granted manually")
	}

	result := ValidationResult{
		IsValid:  len(errs) == 0,
		Errors:   errs,
		Warnings: warnings,
	}
	if result.IsValid {
		result.Validated = &merged
	}
	return result
}
