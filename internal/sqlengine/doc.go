// Package sqlengine runs query IR nodes on an embedded SQLite database.
//
// Two drivers are supported, both in-memory by default:
//   - sqlite3: github.com/mattn/go-sqlite3 (cgo, the SQLite C library)
//   - sqlite: modernc.org/sqlite (SQLite transpiled to pure Go)
//
// Input tables are copied into the database once, keyed by identity, so
// repeated timed runs over the same table only pay for the query. Dates are
// stored as YYYY-MM-DD text, which sorts and compares like the dates
// themselves. Result cells are coerced back into the schema the query IR
// derives, since SQLite columns are dynamically typed.
//
// # Database Configuration
//
//   - single connection: an in-memory database lives on its connection
//   - synchronous=OFF: nothing here needs durability
//   - temp_store=MEMORY: sorts and window buffers stay off disk
package sqlengine
