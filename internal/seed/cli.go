package seed

import "os"

// ShowHelp prints usage information for the seed tool.
func ShowHelp() {
	os.Stdout.WriteString(`Face Quiz Seed Tool
===================

Imports person records from a JSON array into the people collection.
Records without a name are rejected and reported; all others are inserted.

Usage:
  go run ./cmd/seed -file people.json [options]

Options:
  -file string
        JSON array of person records (required)
  -mongo-uri string
        MongoDB connection string (default from FACEQUIZ_MONGO_URI / MONGO_URI)
  -db string
        Database name (default from FACEQUIZ_MONGO_DATABASE)
  -collection string
        People collection (default from FACEQUIZ_PEOPLE_COLLECTION)
  -batch int
        Records per insert (default 500)
  -dry-run
        Validate the file without writing anything
  -help
        Show this help message

Examples:
  # Validate an export before importing it
  go run ./cmd/seed -file people.json -dry-run

  # Import into a local database
  go run ./cmd/seed -file people.json -mongo-uri mongodb://localhost:27017
`)
}
