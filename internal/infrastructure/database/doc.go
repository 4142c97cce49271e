// Package database opens the controller's local SQLite store.
//
// The store is optional and holds only the event journal. The controller
// never reads it to decide behaviour.
//
// Open configures WAL mode and a busy timeout through the go-sqlite3
// connection string and limits the pool to a single connection. Migrate
// applies an ordered list of schema steps, tracking progress in
// PRAGMA user_version.
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Journal.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, journal.Schema); err != nil {
//	    return err
//	}
package database
