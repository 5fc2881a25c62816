// Package janitor removes what finished builds leave behind.
//
// On a cron schedule it sweeps superseded published trees that no request
// holds any more, staging directories of builds that are no longer
// running, and build history beyond the retention count.
package janitor
