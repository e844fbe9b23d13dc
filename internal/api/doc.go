// Package api implements the HTTP REST API and WebSocket server for calibright.
//
// This package provides:
//   - REST endpoints to list displays and to read, set and adjust brightness
//   - Config inspection, file reloads and the reload audit history
//   - A WebSocket hub that relays engine events to subscribed clients
//   - Middleware (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// Every request goes through the engine, so HTTP callers share the
// per-display lanes with the MQTT bridge and the watcher. Nothing in this
// package talks to hardware directly.
//
// # Graceful Degradation
//
// The inventory repository is optional. Without a database the reload
// history endpoint returns 503 and everything else keeps working.
package api
