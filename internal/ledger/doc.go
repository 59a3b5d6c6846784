// Package ledger serves a digest-linked chain to concurrent callers.
//
// A chain.Chain is single-threaded; ChainLedger puts it behind one
// sync.RWMutex so appends are serialised and reads never observe a
// half-linked tail. A ledger may optionally mirror every record to a Store:
//   - PostgresStore: durable, shared by several processes.
//   - SQLiteStore: single-file embedded database.
//   - BadgerStore: embedded key/value store.
//
// With no store the ledger lives in process memory only and is discarded on
// exit. With a store, Open restores the chain from the stored fields and
// rejects it if any record fails verification.
package ledger
