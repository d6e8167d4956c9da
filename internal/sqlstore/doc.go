// Package sqlstore implements store.Backend over relational databases.
//
// Each store.Query is compiled by querysql into a single parameterized
// SELECT. Result columns come back under aliases ("city", "accounts__city")
// and are reshaped into store rows, with joined columns nested under their
// table name.
//
// Two backends are provided:
//
//   - SQLite via mattn/go-sqlite3. Open applies the connection pragmas and
//     the reference CRM schema, and Seed inserts fixture rows. The harness
//     and the CLI seed command run against it.
//   - PostgreSQL via a pgx connection pool. The schema is owned by the
//     operator; the backend only reads.
//
// A left-joined table whose selected columns are all NULL is treated as
// unmatched and its nested entry is nil.
package sqlstore
