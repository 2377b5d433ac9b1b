package sqlitedb

import (
	"database/sql"
	"fmt"
	"time"

	"recordbook-ui/model"
	"recordbook-ui/store"
)

// SaveEntry func to insert a new entry. The creation timestamp is set
// here, server-side, in UTC.
func (o *SqliteDB) SaveEntry(entry model.Entry) (model.Entry, error) {
	entry.CreatedAt = time.Now().UTC()

	res, err := o.conn.Exec(`
INSERT INTO entries (title, subject, person_name, phone_number, age, email, details, additional_links, creator, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.Title, entry.Subject, entry.PersonName, entry.PhoneNumber,
		entry.Age, entry.Email, entry.Details, entry.AdditionalLinks,
		entry.Creator, entry.CreatedAt,
	)
	if err != nil {
		return model.Entry{}, fmt.Errorf("insert entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Entry{}, fmt.Errorf("entry last insert id: %w", err)
	}
	entry.ID = id
	return entry, nil
}

// GetEntry func to get a single entry from the database
func (o *SqliteDB) GetEntry(id int64) (model.Entry, error) {
	row := o.conn.QueryRow(`
SELECT id, title, subject, person_name, phone_number, age, email, details, additional_links, creator, created_at
FROM entries WHERE id = ?`,
		id,
	)
	var entry model.Entry
	if err := scanEntry(row.Scan, &entry); err != nil {
		if err == sql.ErrNoRows {
			return model.Entry{}, store.ErrNotFound
		}
		return model.Entry{}, fmt.Errorf("scan entry: %w", err)
	}
	return entry, nil
}

// GetEntries func to get all entries from the database
func (o *SqliteDB) GetEntries() ([]model.Entry, error) {
	rows, err := o.conn.Query(`
SELECT id, title, subject, person_name, phone_number, age, email, details, additional_links, creator, created_at
FROM entries ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []model.Entry
	for rows.Next() {
		var entry model.Entry
		if err := scanEntry(rows.Scan, &entry); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// UpdateEntry func to persist the editable fields of an entry. The
// creator and created_at columns are never written here, so edits
// cannot change them.
func (o *SqliteDB) UpdateEntry(entry model.Entry) error {
	res, err := o.conn.Exec(`
UPDATE entries
SET title = ?, subject = ?, person_name = ?, phone_number = ?, age = ?, email = ?, details = ?, additional_links = ?
WHERE id = ?`,
		entry.Title, entry.Subject, entry.PersonName, entry.PhoneNumber,
		entry.Age, entry.Email, entry.Details, entry.AdditionalLinks,
		entry.ID,
	)
	if err != nil {
		return fmt.Errorf("update entry: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update entry rows: %w", err)
	}
	if rows == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteEntry func to remove an entry from the database
func (o *SqliteDB) DeleteEntry(id int64) error {
	res, err := o.conn.Exec(`DELETE FROM entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete entry rows: %w", err)
	}
	if rows == 0 {
		return store.ErrNotFound
	}
	return nil
}

func scanEntry(scan func(dest ...any) error, entry *model.Entry) error {
	return scan(
		&entry.ID,
		&entry.Title,
		&entry.Subject,
		&entry.PersonName,
		&entry.PhoneNumber,
		&entry.Age,
		&entry.Email,
		&entry.Details,
		&entry.AdditionalLinks,
		&entry.Creator,
		&entry.CreatedAt,
	)
}
