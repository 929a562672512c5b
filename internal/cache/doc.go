// Package cache holds the in-process read caches serving the HTTP API:
// latest camera snapshots (TTL LRU), hot event lookups (capacity LRU),
// and a generation-stamped camera list that is invalidated on every
// camera write.
package cache
