package store

import (
	"fmt"
)

// Columns added after the initial schema shipped. Migrations are
// forward-only and additive: existing rows get the declared default.
var addedColumns = map[string][]struct {
	name string
	ddl  string
}{
	"portfolios": {
		{"total_bets", "INTEGER NOT NULL DEFAULT 0"},
		{"winning_bets", "INTEGER NOT NULL DEFAULT 0"},
		{"total_profit", "REAL NOT NULL DEFAULT 0"},
	},
	"bets": {
		{"consecutive_strikes", "INTEGER NOT NULL DEFAULT 0"},
		{"reviews", "TEXT NOT NULL DEFAULT '[]'"},
	},
	"daily_counters": {
		{"realized_loss", "REAL NOT NULL DEFAULT 0"},
	},
}

// migrate inspects each table and adds any missing columns.
func (s *SQLiteStore) migrate() error {
	for table, cols := range addedColumns {
		existing, err := s.tableColumns(table)
		if err != nil {
			return err
		}
		for _, col := range cols {
			if existing[col.name] {
				continue
			}
			ddl := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, col.name, col.ddl)
			if _, err := s.db.Exec(ddl); err != nil {
				return fmt.Errorf("adding %s.%s: %w", table, col.name, err)
			}
		}
	}
	return nil
}

func (s *SQLiteStore) tableColumns(table string) (map[string]bool, error) {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("inspecting %s: %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols[name] = true
	}
	return cols, rows.Err()
}
