// Package journal provides a SQLite-backed, append-only log of entity events.
//
// The journal is written by observer.JournalSink; the entity store itself
// keeps nothing on disk besides its bootstrap file.
//
// # Ordering
//
// Every entry carries a logical sequence number from Clock. Queries order by
// seq ASC, never by wall time, so the same run always reads back the same way.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//
// Payloads are stored as canonical JSON (see attr.MarshalCanonical).
package journal
