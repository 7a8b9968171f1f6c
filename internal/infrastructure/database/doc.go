// Package database provides SQLite connectivity for the payment history store.
//
// The event stream is transient; this package holds its durable projection.
// It manages:
//   - Database connection with WAL mode for concurrent access
//   - Embedded schema migrations (versioned, per-migration transactions)
//   - Connection lifecycle and health checks
//
// Security Considerations:
//   - All queries use parameterised statements (no SQL injection)
//   - Database file permissions are set to 0600 (owner read/write only)
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
package database
