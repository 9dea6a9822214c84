// Package journal implements the Learning Journal origin: an in-memory
// reflections/projects REST API plus the embedded application shell that the
// cache controller precaches.
package journal
