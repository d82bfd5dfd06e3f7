// Package sharestore provides type-safe Go definitions and Redis schema patterns
// for the Warren share store. The share store is the durable source of truth for
// everything that must stay consistent across conversation replicas: share
// membership, conversation role records, the replicated file index, and the
// append-only event log.
//
// All Redis keys and channels are namespaced by instance name so multiple Warren
// instances can safely coexist on a single Redis server.
//
// # Data model
//
// A Share binds one coordinator conversation, one shareable template
// conversation, and any number of team conversations. Shares are stored as
// hashes; the team membership set uses SADD so that two concurrent link
// redemptions cannot lose an update; the event log uses RPUSH so appends are
// atomic and ordered by append completion; file versions use HINCRBY so two
// concurrent upserts of the same filename cannot take the same number.
//
// Each conversation that joins a share gets a role record at
// warren:{instance}:conversation:{id}. The share binding and the role are
// written with HSETNX and are immutable once set: a conversation can never
// move between shares or flip from team to coordinator.
//
// # Pub/Sub
//
// Three channel families carry live signals:
//
//   - conversation_events: inbound platform events consumed by the engine
//   - share_events: every appended log event, for monitoring (warren watch)
//   - conversation:{id}:refresh: per-replica state refresh triggers; the
//     payload names the affected views only, never their content
//
// Pub/Sub delivery is at-most-once. Consumers must treat signals as hints to
// re-read the store, never as the data itself.
package sharestore
