package storage

import "database/sql"

// UpsertMeta writes one key/value pair into the meta table.
func (db *DB) UpsertMeta(k, v string) error {
	_, err := db.Exec(`
		INSERT INTO meta(k, v) VALUES (?, ?)
		ON CONFLICT(k) DO UPDATE SET v=excluded.v
	`, k, v)
	return err
}

// GetMeta reads one meta value; ok is false when the key is absent.
func (db *DB) GetMeta(k string) (string, bool, error) {
	var v string
	err := db.QueryRow("SELECT v FROM meta WHERE k = ?", k).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}
