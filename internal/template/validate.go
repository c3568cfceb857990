package template

import (
	"strings"

	"github.com/roach88/evpatch/internal/config"
	"github.com/roach88/evpatch/internal/engine"
)

// requiredGroups are the segment combinations every boss must provide:
// something that disables it, something that sets it up, something that
// starts the fight, and an end condition.
var requiredGroups = [][]string{
	{config.SegDead, config.SegDisable},
	{config.SegSetup, config.SegAltSetup, config.SegSecondSetup},
	{config.SegStart, config.SegQuickStart},
	{config.SegEnd, config.SegEndPhase},
}

// presetup segments come as a set.
var presetup = []string{config.SegFirstSetup, config.SegSecondSetup, config.SegFirstStart, config.SegSecondStart}

// CheckComplete reports an INCOMPLETE_TEMPLATE error when types does not
// cover the mandatory segment combination. A template with any presetup
// segment must have all four, and a miniboss (not encounter) started by
// quickstart alone needs healthbar and unhealthbar.
func CheckComplete(types map[string]bool, encounter bool) error {
	var missing []string
	for _, group := range requiredGroups {
		if !anyOf(types, group) {
			missing = append(missing, strings.Join(group, "/"))
		}
	}
	if anyOf(types, presetup) {
		for _, t := range presetup {
			if !types[t] {
				missing = append(missing, t)
			}
		}
	}
	if !encounter && types[config.SegQuickStart] && !types[config.SegStart] {
		for _, t := range []string{config.SegHealthbar, config.SegUnhealthbar} {
			if !types[t] {
				missing = append(missing, t)
			}
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &engine.PatchError{
		Code:    engine.ErrCodeIncompleteTemplate,
		Message: "segments are incomplete, missing " + strings.Join(missing, ", "),
		Details: map[string]string{"missing": strings.Join(missing, ", ")},
	}
}

func anyOf(types map[string]bool, group []string) bool {
	for _, t := range group {
		if types[t] {
			return true
		}
	}
	return false
}
