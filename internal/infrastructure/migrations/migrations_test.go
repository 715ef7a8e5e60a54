package migrations

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// TestRun_FreshDB verifies all migrations apply to an empty :memory: database.
func TestRun_FreshDB(t *testing.T) {
	db, err := sql.Open("sqlite3", "file::memory:")
	require.NoError(t, err, "ncruces driver should open :memory: database")
	defer db.Close()

	err = Run(db)
	require.NoError(t, err, "Run should succeed on fresh database")

	for _, table := range []string{"definitions", "instances", "transitions"} {
		var name string
		err = db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		require.NoError(t, err, "%s table should exist", table)
		require.Equal(t, table, name)
	}
}

// TestRun_Idempotent verifies calling Run twice doesn't error.
func TestRun_Idempotent(t *testing.T) {
	db, err := sql.Open("sqlite3", "file::memory:")
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, Run(db), "first migration run should succeed")
	require.NoError(t, Run(db), "second migration run should not error")
}

// TestSchema_Columns verifies the transitions table carries both clocks.
func TestSchema_Columns(t *testing.T) {
	db, err := sql.Open("sqlite3", "file::memory:")
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, Run(db))

	rows, err := db.Query(`PRAGMA table_info(transitions)`)
	require.NoError(t, err)
	defer rows.Close()

	columns := make(map[string]bool)
	for rows.Next() {
		var cid int
		var name, typ string
		var notnull, pk int
		var dflt interface{}
		require.NoError(t, rows.Scan(&cid, &name, &typ, &notnull, &dflt, &pk))
		columns[name] = true
	}
	require.NoError(t, rows.Err())

	for _, col := range []string{"id", "guid", "instance_id", "from_state", "to_state", "actor", "effective_at", "recorded_at", "metadata"} {
		require.True(t, columns[col], "column %s should exist", col)
	}
}

// TestSchema_ImmutabilityTriggers verifies raw UPDATE/DELETE against the
// transitions table is rejected at the storage layer.
func TestSchema_ImmutabilityTriggers(t *testing.T) {
	db, err := sql.Open("sqlite3", "file::memory:")
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, Run(db))

	_, err = db.Exec(`INSERT INTO definitions (key, name, states, transitions, initial_state, terminal_states, created_at, updated_at)
		VALUES ('k', 'K', '["a"]', '{}', 'a', '["a"]', 0, 0)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO instances (guid, definition_id, subject_kind, subject_id, state, started_at, updated_at)
		VALUES ('g', 1, 'thing', 't-1', 'a', 0, 0)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO transitions (guid, instance_id, from_state, to_state, effective_at, recorded_at)
		VALUES ('r', 1, 'a', 'a', 0, 0)`)
	require.NoError(t, err)

	_, err = db.Exec(`UPDATE transitions SET to_state = 'tampered' WHERE guid = 'r'`)
	require.Error(t, err, "update must be rejected")
	require.Contains(t, err.Error(), "immutable")

	_, err = db.Exec(`DELETE FROM transitions WHERE guid = 'r'`)
	require.Error(t, err, "delete must be rejected")
	require.Contains(t, err.Error(), "immutable")

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM transitions`).Scan(&count))
	require.Equal(t, 1, count, "record survives tampering attempts")
}
