// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db handles schema creation for the SQL preference store.

# Schema Creation

	if err := db.CreateSchema(conn, db.TypeSQLite); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS. The same DDL runs on
sqlite (modernc.org/sqlite) and PostgreSQL (lib/pq).

# Tables

  - preference: key, value, updated_at (unix millis)

Nothing stored here is authoritative. Rows are last-write-wins caches of
user preferences and may be dropped at any time.

# Placeholders

Queries are written with ? placeholders and passed through Rebind, which
rewrites them to $1, $2, ... for PostgreSQL.
*/
package db
