package schedule

import (
	"strings"

	"github.com/robfig/cron/v3"
)

// Rule is the normalized recurrence derived from a descriptor. It is never
// persisted; the raw descriptor string is, and the rule is recomputed every
// time a record becomes active.
type Rule struct {
	Spec     string // normalized 5-field cron expression
	Schedule cron.Schedule
}

// Standard five cron fields; descriptors never carry seconds or @-macros.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ParseDescriptor resolves a schedule descriptor into a recurrence rule.
//
// Supported forms:
//   - "daily":   03:00 every day
//   - "weekly":  03:00 every Sunday
//   - "monthly": 03:00 on the 1st
//   - 5-field cron expression: "minute hour day-of-month month day-of-week"
//
// Anything else is a ValidationError. Pure function of its input.
func ParseDescriptor(descriptor string) (Rule, error) {
	var spec string
	switch strings.TrimSpace(descriptor) {
	case "daily":
		spec = "0 3 * * *"
	case "weekly":
		spec = "0 3 * * 0"
	case "monthly":
		spec = "0 3 1 * *"
	default:
		fields := strings.Fields(descriptor)
		if len(fields) != 5 {
			return Rule{}, validationf("Invalid schedule format")
		}
		spec = strings.Join(fields, " ")
	}

	sched, err := cronParser.Parse(spec)
	if err != nil {
		// Field grammar is the trigger constructor's call; surface its
		// complaint as caller input error, not a server fault.
		return Rule{}, validationf("Invalid schedule format: %v", err)
	}
	return Rule{Spec: spec, Schedule: sched}, nil
}
