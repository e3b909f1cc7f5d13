package storage

// CursorToolCount is one external tool-usage aggregate keyed by tool name,
// with first/last-seen provenance ids sourced from the aggregation
// subprocess rather than transcripts.
type CursorToolCount struct {
	Name               string
	Count              int64
	FirstRowID         *int64
	LastRowID          *int64
	FirstTraceID       *string
	LastTraceID        *string
	FirstBlobPrefixHex *string
	LastBlobPrefixHex  *string
	SourceDBPath       *string
	MaxKeys            int64
	FiltersJSON        string
	GeneratedAtUTC     string
}

// UpsertCursorToolCount writes one tool-count row, replacing by name.
func (db *DB) UpsertCursorToolCount(c *CursorToolCount) error {
	_, err := db.Exec(`
		INSERT INTO cursor_tool_counts(
		  name, count, first_rowid, last_rowid,
		  first_trace_id, last_trace_id,
		  first_blob_prefix_hex, last_blob_prefix_hex,
		  source_db_path, max_keys, filters_json, generated_at_utc
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
		  count=excluded.count,
		  first_rowid=excluded.first_rowid,
		  last_rowid=excluded.last_rowid,
		  first_trace_id=excluded.first_trace_id,
		  last_trace_id=excluded.last_trace_id,
		  first_blob_prefix_hex=excluded.first_blob_prefix_hex,
		  last_blob_prefix_hex=excluded.last_blob_prefix_hex,
		  source_db_path=excluded.source_db_path,
		  max_keys=excluded.max_keys,
		  filters_json=excluded.filters_json,
		  generated_at_utc=excluded.generated_at_utc
	`, c.Name, c.Count, c.FirstRowID, c.LastRowID,
		c.FirstTraceID, c.LastTraceID,
		c.FirstBlobPrefixHex, c.LastBlobPrefixHex,
		c.SourceDBPath, c.MaxKeys, c.FiltersJSON, c.GeneratedAtUTC)
	return err
}
