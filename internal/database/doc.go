// Package database provides the GORM database connection and migrations.
//
// Repositories for each aggregate live in subpackages:
//
//   - profiles: requester profile operations
//   - books: catalog entry operations
//   - requests: book request lifecycle operations
//   - audit: audit event log
package database
