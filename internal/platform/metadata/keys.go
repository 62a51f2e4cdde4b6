package metadata

// These keys are used for the 'key' column in the 'metadata' table.
const (
	// LastSyncAtKey stores the RFC3339 time of the last markdown sync run.
	LastSyncAtKey = "last_sync_at"

	// LastSyncCountKey stores how many memes the last sync run upserted.
	LastSyncCountKey = "last_sync_count"

	// SeededAtKey stores when the default memes were inserted into an empty table.
	SeededAtKey = "seeded_at"
)
