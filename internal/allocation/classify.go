// Package allocation implements the slot/priority allocation policy: cargo
// classification, slot ranking, permit code generation, and vessel surge
// advisories. Everything here is pure; persistence and atomicity live in the
// store.
package allocation

import (
	"strings"

	"portgate/internal/model"
)

var tierByCargo = map[string]model.Tier{
	"MEDICAL":        model.TierEmergency,
	"PERISHABLE":     model.TierEmergency,
	"HAZARDOUS":      model.TierEmergency,
	"TIME_SENSITIVE": model.TierEssential,
	"STANDARD":       model.TierNormal,
	"OTHER":          model.TierNormal,
	"BULK":           model.TierLow,
}

// Classify maps a cargo type to its priority tier. Unknown cargo types map
// to NORMAL.
func Classify(cargoType string) model.Tier {
	if t, ok := tierByCargo[strings.ToUpper(strings.TrimSpace(cargoType))]; ok {
		return t
	}
	return model.TierNormal
}

// Authorized reports whether an organization may request the given tier.
// An empty authorization list means unrestricted.
func Authorized(authorized []string, tier model.Tier) bool {
	if len(authorized) == 0 {
		return true
	}
	for _, a := range authorized {
		if strings.EqualFold(a, string(tier)) {
			return true
		}
	}
	return false
}
