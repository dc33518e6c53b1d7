// Package queue persists pipeline items in SQLite and exposes helpers for
// driving their lifecycle.
//
// The Store manages database connections, schema initialization, stats
// queries, interrupted-item rollback, and the atomic claim transitions the
// workflow manager uses to hand items to stages. Queue items carry source
// identity, scratch and artifact paths, serialized silence and clip plans,
// and progress fields so stages can coordinate without additional state.
//
// The database is treated as transient storage for in-flight jobs rather than
// a long-term archive. Schema changes bump the version in schema.go; users
// clear the database to adopt the new schema.
package queue
