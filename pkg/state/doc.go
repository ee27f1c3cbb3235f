// Package state persists the gateway's user configuration: provider
// connections, model aliases, combos, pricing, and settings. Everything
// lives in a single local.json under the data directory.
//
// The store is read-mostly. Readers take snapshots (aliases, pricing,
// combos) on request entry so a concurrent admin edit never tears a
// request mid-flight. Writes rewrite the whole file atomically. An
// fsnotify watcher picks up external edits to local.json and reloads.
package state
