// Package housekeeping periodically publishes the size of the local stores
// (uploaded files and assistants records) as metrics gauges. The schedule is
// a standard five-field cron expression from housekeeping.schedule.
package housekeeping
