// Package database provides the SQLite connection used for device records
// and motion history.
//
// The database runs in WAL mode with a single writer connection. Schema
// changes are versioned migration files supplied as an fs.FS (normally the
// embedded migrations package) and applied with Migrate:
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    log.Fatal(err)
//	}
//
// Every migration ships with a .down.sql so the latest change can be
// rolled back during development.
package database
