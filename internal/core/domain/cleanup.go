package domain

// CleanupResult reports one retention sweep.
type CleanupResult struct {
	Entity       string `json:"entity"`
	Success      bool   `json:"success"`
	DeletedCount int64  `json:"deleted_count"`
	Message      string `json:"message"`
}
