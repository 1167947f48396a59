package database

// Stats summarises the run archive.
type Stats struct {
	Runs     int
	Articles int
	Days     int
	// FirstDay and LastDay are YYYY-MM-DD, empty when no run carries a
	// timestamp.
	FirstDay string
	LastDay  string
	LastRun  string
}
