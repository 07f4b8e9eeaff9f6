package db

import "fmt"

// AppendHistory records one submitted console line.
func (db *DB) AppendHistory(line string) error {
	if _, err := db.Exec("INSERT INTO command_history (line) VALUES (?)", line); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// RecentHistory returns up to limit of the most recently entered
// lines, oldest first, ready to seed a history ring.
func (db *DB) RecentHistory(limit int) ([]string, error) {
	rows, err := db.Query(`
		SELECT line FROM (
			SELECT id, line FROM command_history ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}
