// Package schedule is the scheduler core: it turns human-friendly
// descriptors (daily/weekly/monthly/cron) into recurrence rules, keeps the
// persisted schedule list and the in-memory job table in step, and fires
// maintenance actions with at-most-one concurrent execution per job id.
package schedule
