package database

import (
	"database/sql"
	"fmt"
	"sort"
)

// SchemaValidator checks a migrated database against the structure the
// stores rely on.
type SchemaValidator struct {
	db *sql.DB
}

// NewSchemaValidator creates a new schema validator
func NewSchemaValidator(db *sql.DB) *SchemaValidator {
	return &SchemaValidator{db: db}
}

var requiredTables = []string{
	"users",
	"materials",
	"user_bookmarks",
	"user_notes",
	"rooms",
	"room_members",
	"messages",
	"transactions",
	"goose_db_version",
}

var requiredColumns = map[string]map[string]string{
	"users": {
		"id":              "INTEGER",
		"email":           "TEXT",
		"xp":              "INTEGER",
		"level":           "INTEGER",
		"coins":           "INTEGER",
		"streak_days":     "INTEGER",
		"last_login_date": "TEXT",
		"is_premium":      "BOOLEAN",
	},
	"rooms": {
		"id":         "INTEGER",
		"level_tag":  "TEXT",
		"subject":    "TEXT",
		"mode":       "TEXT",
		"status":     "TEXT",
		"created_at": "DATETIME",
	},
	"room_members": {
		"room_id":   "INTEGER",
		"user_id":   "INTEGER",
		"joined_at": "DATETIME",
	},
	"messages": {
		"id":         "INTEGER",
		"room_id":    "INTEGER",
		"user_id":    "INTEGER",
		"content":    "TEXT",
		"created_at": "DATETIME",
	},
}

var requiredIndexes = []string{
	"idx_users_xp",
	"idx_materials_filter",
	"idx_rooms_match",
	"idx_room_members_room",
	"idx_messages_room_time",
	"idx_transactions_user",
}

// ValidateTablesExist verifies that all required tables exist
func (v *SchemaValidator) ValidateTablesExist() error {
	for _, table := range requiredTables {
		exists, err := v.objectExists("table", table)
		if err != nil {
			return fmt.Errorf("error checking table %s: %w", table, err)
		}
		if !exists {
			return fmt.Errorf("required table %s does not exist", table)
		}
	}
	return nil
}

// ValidateTableStructure verifies column types for the tables the realtime
// core reads and writes.
func (v *SchemaValidator) ValidateTableStructure() error {
	tables := make([]string, 0, len(requiredColumns))
	for table := range requiredColumns {
		tables = append(tables, table)
	}
	sort.Strings(tables)

	for _, table := range tables {
		if err := v.validateColumns(table, requiredColumns[table]); err != nil {
			return fmt.Errorf("%s table structure invalid: %w", table, err)
		}
	}
	return nil
}

// ValidateIndexes verifies that all lookup indexes exist
func (v *SchemaValidator) ValidateIndexes() error {
	for _, index := range requiredIndexes {
		exists, err := v.objectExists("index", index)
		if err != nil {
			return fmt.Errorf("error checking index %s: %w", index, err)
		}
		if !exists {
			return fmt.Errorf("required index %s does not exist", index)
		}
	}
	return nil
}

// ValidateConstraints exercises the foreign key, uniqueness and check
// constraints inside a transaction that is always rolled back.
func (v *SchemaValidator) ValidateConstraints() error {
	tx, err := v.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin constraint check transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT INTO room_members (room_id, user_id) VALUES (-1, -1)`); err == nil {
		return fmt.Errorf("foreign key constraint not enforced: room_members.room_id")
	}

	if _, err := tx.Exec(`INSERT INTO rooms (level_tag, subject, mode, status) VALUES ('x', 'x', 'trio', 'waiting')`); err == nil {
		return fmt.Errorf("check constraint not enforced: rooms.mode")
	}

	res, err := tx.Exec(`INSERT INTO users (name, email, password_hash, level_tag) VALUES ('check', 'check@invalid', 'x', 'x')`)
	if err != nil {
		return fmt.Errorf("failed to insert sample user: %w", err)
	}
	userID, _ := res.LastInsertId()
	res, err = tx.Exec(`INSERT INTO rooms (level_tag, subject, mode, status) VALUES ('x', 'x', 'group', 'waiting')`)
	if err != nil {
		return fmt.Errorf("failed to insert sample room: %w", err)
	}
	roomID, _ := res.LastInsertId()

	if _, err := tx.Exec(`INSERT INTO room_members (room_id, user_id) VALUES (?, ?)`, roomID, userID); err != nil {
		return fmt.Errorf("failed to insert sample membership: %w", err)
	}
	if _, err := tx.Exec(`INSERT INTO room_members (room_id, user_id) VALUES (?, ?)`, roomID, userID); err == nil {
		return fmt.Errorf("unique constraint not enforced: room_members(room_id, user_id)")
	}

	return nil
}

func (v *SchemaValidator) objectExists(kind, name string) (bool, error) {
	var count int
	err := v.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = ? AND name = ?",
		kind, name,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// validateColumns checks that a table has the expected columns with correct types
func (v *SchemaValidator) validateColumns(tableName string, expectedColumns map[string]string) error {
	rows, err := v.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	found := make(map[string]string)
	for rows.Next() {
		var (
			cid          int
			name         string
			dataType     string
			notNull      int
			defaultValue interface{}
			pk           int
		)
		if err := rows.Scan(&cid, &name, &dataType, &notNull, &defaultValue, &pk); err != nil {
			return err
		}
		found[name] = dataType
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for col, want := range expectedColumns {
		got, ok := found[col]
		if !ok {
			return fmt.Errorf("column %s not found", col)
		}
		if got != want {
			return fmt.Errorf("column %s has type %s, expected %s", col, got, want)
		}
	}
	return nil
}
