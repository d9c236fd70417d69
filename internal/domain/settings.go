package domain

// Settings holds the global toggles persisted next to the collections.
type Settings struct {
	AutoProcessQueue bool   `json:"autoProcessQueue" db:"auto_process_queue"`
	ActiveDomainID   string `json:"activeDomainId" db:"active_domain_id"`
}
