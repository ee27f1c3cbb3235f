// Package logging builds the process-wide slog logger.
//
// Every log line passes through a redactor that masks api keys and
// bearer tokens, so a careless log call cannot leak a credential.
package logging
