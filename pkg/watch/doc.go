// Package watch invalidates the published output when source files change.
//
// Directories are watched recursively with fsnotify. Events are filtered
// by extension, hidden entries are skipped on request, and bursts are
// debounced into a single notification. Each notification calls
// Invalidate on the target and, when Config.Rebuild is set, Rebuild.
package watch
