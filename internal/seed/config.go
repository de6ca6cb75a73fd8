package seed

// Config holds configuration for one import run.
type Config struct {
	File             string // JSON array of person records
	MongoURI         string // Target store
	MongoDatabase    string
	PeopleCollection string
	BatchSize        int  // Records per insert call
	DryRun           bool // Validate only; nothing is written
}

// Rejection explains why one record of the input was not imported.
type Rejection struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// Stats summarizes an import.
type Stats struct {
	Read     int         `json:"read"`
	Inserted int         `json:"inserted"`
	Skipped  int         `json:"skipped"`
	Rejected []Rejection `json:"rejected,omitempty"`
}

// record is the import shape of a person. Source ids (often extended JSON
// objects) are ignored; the store assigns its own.
type record struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Occupation  string `json:"occupation"`
	ImageURL    string `json:"imageUrl"`
	Ethnicity   string `json:"ethnicity"`
	NativeName  string `json:"nativeName"`
	BirthDate   string `json:"birthDate"`
	BirthPlace  string `json:"birthPlace"`
	DeathDate   string `json:"deathDate"`
	NotableWork string `json:"notableWork"`
	Gender      string `json:"gender"`
}
