// Package server owns the HTTP server lifecycle around the gateway
// handler.
//
// The server package is the top-level HTTP orchestrator that:
//   - Binds the configured listen address
//   - Serves the gateway's handler (chat, admin, metrics endpoints)
//   - Manages graceful shutdown
//   - Handles OS signals (SIGTERM, SIGINT)
//
// # Basic Usage
//
//	cfg, err := config.Load(path)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	srv := server.New(&cfg.Server, gw.Routes(), logger)
//	if err := srv.Start(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
//
// # Graceful Shutdown
//
// Start blocks until the context is cancelled, a shutdown signal
// arrives, or the listener fails. Shutdown then:
//  1. Stops accepting new connections
//  2. Waits for active requests, streams included, up to the shutdown
//     timeout
//  3. Forces connection closure when the timeout is exceeded
//
// # Timeouts
//
// The server sets no write timeout: streaming chat responses stay open
// for as long as the upstream produces chunks. Idle and read-header
// timeouts come from the configuration.
package server
