package config

const (
	// DefaultDatabasePath is the default path for the main application database
	DefaultDatabasePath = "./kitabu.db"

	// DefaultStorageDir is the default directory for stored book files and covers
	DefaultStorageDir = "./data"

	// DefaultLookupBaseURL is the Google Books volumes search endpoint
	DefaultLookupBaseURL = "https://www.googleapis.com/books/v1/volumes"
)
