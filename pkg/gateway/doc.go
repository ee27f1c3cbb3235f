// Package gateway is the HTTP surface and request orchestration.
//
// The chat endpoints accept any client wire format, resolve the model
// string through the alias and combo tables, pick a credential per
// provider, translate the request to the provider's format, execute it,
// and pipe the answer back in the client's format. Failed attempts walk
// the fallback policy: next account, then next combo model, then a 503
// carrying the last upstream error.
//
// The admin endpoints manage connections, aliases, combos, pricing, and
// settings; secrets are stripped before anything leaves the process.
package gateway
