// Helios is a local gateway that serves one OpenAI/Anthropic/Gemini
// compatible API surface over many upstream LLM accounts.
//
// It translates between client and provider wire formats, rotates
// through stored credentials with automatic OAuth refresh, falls back
// across accounts and providers on upstream failures, and records
// usage and per-request debug snapshots.
//
// Usage:
//
//	# Start with defaults ($HOME/.helios, 127.0.0.1:8080)
//	helios run
//
//	# Start with a config file
//	helios run --config /etc/helios/helios.yaml
//
//	# Validate configuration without starting
//	helios run --dry-run
//
//	# Show version information
//	helios version
package main

func main() {
	Execute()
}
