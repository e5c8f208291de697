// Package api exposes the HTTP JSON API: question answering plus health
// and readiness probes. Handlers depend on narrow interfaces so the full
// application wiring is not needed in tests.
package api
