// Package postgres implements the store using pgx/v5 with raw SQL.
// Claims are single-row conditional UPDATEs carrying the full readiness
// predicate; schema lives in embedded SQL migrations tracked in a
// foreman_migrations table.
package postgres
