package models

// RecordPreview is a truncated view of one recent record.
type RecordPreview struct {
	ID      string `json:"id"`
	Preview string `json:"preview"`
}

// CollectionSummary briefs an upstream planner on one collection.
// A collection that could not be read is reported as the zero value.
type CollectionSummary struct {
	Total         int             `json:"total"`
	Recent        []RecordPreview `json:"recent"`
	Published     int             `json:"published"`
	Drafts        int             `json:"drafts"`
	Stale         int             `json:"stale"`
	MissingFields int             `json:"missing_fields"`
}
