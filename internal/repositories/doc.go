// Package repositories implements key-value persistence for authentication state and color caching.
//
// Every backend implements [Store], a flat "read/write named keys" interface:
//   - [SQLiteStore] : the kv_store table, created by the embedded migrations (default)
//   - [MemoryStore] : a mutex-guarded map for tests and one-shot commands
//   - [RedisStore] : a shared Redis instance
//
// Two typed views are built on top of a Store:
//   - [TokenStore] : sealed client credentials and the current token pair
//   - [ColorCache] : color-cache-<entityId> -> [r,g,b]
//
// Writers are last-write-wins; concurrent refreshes are collapsed one layer up in the services package.
package repositories
