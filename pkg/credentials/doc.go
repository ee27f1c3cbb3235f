// Package credentials manages provider connections: the stored accounts
// with their secret material, the ordered selector that picks the best
// eligible connection for a request, and the fallback policy that
// decides whether a failed account should cool down and for how long.
//
// Connections are read-mostly. All mutations (cooldown marking, error
// clearing, refreshed tokens) go through the Store, which serializes
// writes per connection. Concurrent token refreshes of one connection
// collapse into a single in-flight call.
package credentials
