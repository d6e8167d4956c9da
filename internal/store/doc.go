// Package store defines the abstract query-building interface between the
// engine and a relational backing store.
//
// The engine never issues raw query language. It describes each read as a
// Query (primary table projection, joins, predicates, ordering and a row
// limit) and hands it to a Backend. Backends translate the Query into
// whatever their store speaks: the sqlstore package compiles it into
// parameterized SQL, and Memory evaluates it directly over in-process rows.
//
// Result rows are maps. Primary-table columns appear under their bare names;
// the columns of each joined table are nested under the table name:
//
//	{"id": "v1", "account_id": "a1", "accounts": {"id": "a1", "city": "Verona"}}
//
// A left join without a match leaves the nested entry nil.
package store
