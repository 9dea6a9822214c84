// Package cache defines the named, versioned response stores used by the
// offline controller. A Registry hands out Store instances by name (for example
// learning-journal-v2) and can enumerate or delete them wholesale, which is how
// the controller retires stale versions. Entries map a GET request Key to an
// immutable Response snapshot (status, headers, buffered body).
//
// Three registries ship with the package: an in-memory one for tests and
// ephemeral deployments, a disk-backed one that lays stores out as
// StoragePath/<store>/<sha1>.{body,meta}, and a SQLite-backed one.
package cache
