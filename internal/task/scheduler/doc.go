// Package scheduler triggers named jobs on cron or interval schedules.
//
// A trigger that fires while the previous run of the same job is still in
// flight is skipped and recorded as such. Runs execute on cron's goroutine
// with a per-job timeout.
package scheduler
