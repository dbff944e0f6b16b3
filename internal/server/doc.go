// Package server manages HTTP server lifecycle: non-blocking start,
// graceful shutdown, and OS signal handling.
package server
