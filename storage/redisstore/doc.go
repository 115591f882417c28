// Package redisstore keeps short lived auth state in Redis: one-time codes,
// revoked session ids, OAuth states and consumed reset tickets.
//
// Keys are namespaced by a prefix so several environments can share a
// database.
package redisstore
