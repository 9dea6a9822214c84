// Package server hosts the Fiber HTTP service, the request middleware chain and
// the scope that resolves request targets against the journal origin.
// Keep exports narrow and accept explicit dependencies; the proxy and
// diagnostics routes plug in from their own packages.
package server
