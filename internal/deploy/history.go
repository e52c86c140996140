package deploy

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"shipway/internal/feature"
)

// HistoryName is the deployment history database filename inside a
// feature directory.
const HistoryName = "deployments.db"

// History is the append-only side log of superseded deployment records.
// The workflow document keeps only the current record per environment;
// rollback verification needs at least the immediately-previous one, and
// the log retains all of them.
type History struct {
	conn *sql.DB
}

// OpenHistory creates or opens the history database for a feature directory.
func OpenHistory(dir string) (*History, error) {
	path := filepath.Join(dir, HistoryName)
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open deployment history: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	h := &History{conn: conn}
	if err := h.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return h, nil
}

// Close closes the database connection.
func (h *History) Close() error {
	return h.conn.Close()
}

func (h *History) migrate() error {
	schema := `
CREATE TABLE IF NOT EXISTS deployments (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    environment     TEXT NOT NULL,
    commit_sha      TEXT NOT NULL,
    run_id          TEXT NOT NULL,
    deployment_ids  TEXT NOT NULL,
    url             TEXT,
    deployed        INTEGER NOT NULL,
    deployed_at     DATETIME NOT NULL,
    archived_at     DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_deployments_env ON deployments(environment, id);
`
	if _, err := h.conn.Exec(schema); err != nil {
		return fmt.Errorf("migrate deployment history: %w", err)
	}
	return nil
}

// Append archives a deployment record that is about to be superseded.
func (h *History) Append(env feature.Environment, rec *feature.DeploymentRecord) error {
	ids, err := json.Marshal(rec.DeploymentIDs)
	if err != nil {
		return fmt.Errorf("marshal deployment ids: %w", err)
	}

	_, err = h.conn.Exec(`
		INSERT INTO deployments (environment, commit_sha, run_id, deployment_ids, url, deployed, deployed_at, archived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(env), rec.CommitSHA, rec.RunID, string(ids), rec.URL,
		rec.Deployed, rec.Timestamp, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("append deployment history: %w", err)
	}
	return nil
}

// Latest returns the most recently archived successful deployment for
// an environment, or nil when none exists.
func (h *History) Latest(env feature.Environment) (*feature.DeploymentRecord, error) {
	row := h.conn.QueryRow(`
		SELECT commit_sha, run_id, deployment_ids, url, deployed, deployed_at
		FROM deployments
		WHERE environment = ? AND deployed = 1
		ORDER BY id DESC
		LIMIT 1`, string(env))

	rec := &feature.DeploymentRecord{}
	var ids string
	err := row.Scan(&rec.CommitSHA, &rec.RunID, &ids, &rec.URL, &rec.Deployed, &rec.Timestamp)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read deployment history: %w", err)
	}

	if err := json.Unmarshal([]byte(ids), &rec.DeploymentIDs); err != nil {
		return nil, fmt.Errorf("unmarshal deployment ids: %w", err)
	}
	return rec, nil
}

// Count returns how many archived records exist for an environment.
func (h *History) Count(env feature.Environment) (int, error) {
	var n int
	err := h.conn.QueryRow(`SELECT COUNT(*) FROM deployments WHERE environment = ?`, string(env)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count deployment history: %w", err)
	}
	return n, nil
}
