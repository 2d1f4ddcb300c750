package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/batonlabs/baton/pkg/config"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// SQLRepository stores turns in a relational database. It is a drop-in
// replacement for the in-memory repository, selected by
// memory.backend: sql.
type SQLRepository struct {
	db      *sql.DB
	dialect string

	// Serializes writers so sequence numbers stay dense under
	// concurrent saves within one process.
	mu sync.Mutex
}

var sqlSchemas = map[string][]string{
	"sqlite": {
		`CREATE TABLE IF NOT EXISTS memory_agents (
    agent_id VARCHAR(255) PRIMARY KEY,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS memory_turns (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    agent_id VARCHAR(255) NOT NULL,
    role VARCHAR(50) NOT NULL,
    content TEXT NOT NULL,
    metadata TEXT,
    sequence_num INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL,
    FOREIGN KEY (agent_id) REFERENCES memory_agents(agent_id) ON DELETE CASCADE
)`,
		`CREATE INDEX IF NOT EXISTS idx_memory_turns_agent ON memory_turns(agent_id)`,
		`CREATE INDEX IF NOT EXISTS idx_memory_turns_sequence ON memory_turns(agent_id, sequence_num)`,
	},
	"postgres": {
		`CREATE TABLE IF NOT EXISTS memory_agents (
    agent_id VARCHAR(255) PRIMARY KEY,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS memory_turns (
    id SERIAL PRIMARY KEY,
    agent_id VARCHAR(255) NOT NULL,
    role VARCHAR(50) NOT NULL,
    content TEXT NOT NULL,
    metadata TEXT,
    sequence_num BIGINT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    FOREIGN KEY (agent_id) REFERENCES memory_agents(agent_id) ON DELETE CASCADE
)`,
		`CREATE INDEX IF NOT EXISTS idx_memory_turns_agent ON memory_turns(agent_id)`,
		`CREATE INDEX IF NOT EXISTS idx_memory_turns_sequence ON memory_turns(agent_id, sequence_num)`,
	},
	"mysql": {
		`CREATE TABLE IF NOT EXISTS memory_agents (
    agent_id VARCHAR(255) PRIMARY KEY,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS memory_turns (
    id BIGINT PRIMARY KEY AUTO_INCREMENT,
    agent_id VARCHAR(255) NOT NULL,
    role VARCHAR(50) NOT NULL,
    content TEXT NOT NULL,
    metadata TEXT,
    sequence_num BIGINT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    FOREIGN KEY (agent_id) REFERENCES memory_agents(agent_id) ON DELETE CASCADE
)`,
		`CREATE INDEX idx_memory_turns_agent ON memory_turns(agent_id)`,
		`CREATE INDEX idx_memory_turns_sequence ON memory_turns(agent_id, sequence_num)`,
	},
}

// NewSQLRepository wraps an open database connection. The schema is
// created when missing.
func NewSQLRepository(db *sql.DB, dialect string) (*SQLRepository, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	switch dialect {
	case "postgres", "mysql", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported dialect: %s (supported: postgres, mysql, sqlite)", dialect)
	}

	r := &SQLRepository{
		db:      db,
		dialect: dialect,
	}

	if err := r.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return r, nil
}

// NewSQLRepositoryFromConfig opens the configured database and wraps it.
func NewSQLRepositoryFromConfig(cfg *config.DatabaseConfig) (*SQLRepository, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration is required")
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	db, err := sql.Open(cfg.DriverName(), cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s database %q: %w (is the server running and reachable?)",
			cfg.Driver, cfg.Database, err)
	}

	return NewSQLRepository(db, cfg.Dialect())
}

func (r *SQLRepository) initSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, stmt := range sqlSchemas[r.dialect] {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			// MySQL has no CREATE INDEX IF NOT EXISTS; a duplicate key
			// name on re-init is fine.
			if r.dialect == "mysql" && strings.Contains(err.Error(), "Duplicate key name") {
				continue
			}
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// bind rewrites ? placeholders to $1..$n for postgres.
func (r *SQLRepository) bind(query string) string {
	if r.dialect != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

func (r *SQLRepository) ensureAgent(ctx context.Context, tx *sql.Tx, agentID string, now time.Time) error {
	var query string
	switch r.dialect {
	case "postgres":
		query = `INSERT INTO memory_agents (agent_id, created_at, updated_at) VALUES ($1, $2, $3) ON CONFLICT (agent_id) DO NOTHING`
	case "mysql":
		query = `INSERT IGNORE INTO memory_agents (agent_id, created_at, updated_at) VALUES (?, ?, ?)`
	default:
		query = `INSERT OR IGNORE INTO memory_agents (agent_id, created_at, updated_at) VALUES (?, ?, ?)`
	}

	_, err := tx.ExecContext(ctx, query, agentID, now, now)
	return err
}

func (r *SQLRepository) nextSequence(ctx context.Context, tx *sql.Tx, agentID string) (int64, error) {
	var max int64
	query := r.bind(`SELECT COALESCE(MAX(sequence_num), 0) FROM memory_turns WHERE agent_id = ?`)
	if err := tx.QueryRowContext(ctx, query, agentID).Scan(&max); err != nil {
		return 0, err
	}
	return max + 1, nil
}

func encodeMetadata(metadata map[string]any) (sql.NullString, error) {
	if metadata == nil {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func (r *SQLRepository) SaveTurn(agentID, role, content string, metadata map[string]any) error {
	return r.AppendTurns(agentID, []Turn{{Role: role, Content: content, Metadata: metadata}})
}

func (r *SQLRepository) AppendTurns(agentID string, turns []Turn) error {
	if agentID == "" {
		return fmt.Errorf("agentID cannot be empty")
	}
	if len(turns) == 0 {
		return nil
	}
	for i, t := range turns {
		if t.Role == "" {
			return fmt.Errorf("turn at index %d has no role", i)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ctx := context.Background()
	now := time.Now()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = r.ensureAgent(ctx, tx, agentID, now); err != nil {
		return fmt.Errorf("failed to ensure agent row: %w", err)
	}

	var seq int64
	if seq, err = r.nextSequence(ctx, tx, agentID); err != nil {
		return fmt.Errorf("failed to get sequence number: %w", err)
	}

	insert := r.bind(`INSERT INTO memory_turns (agent_id, role, content, metadata, sequence_num, created_at) VALUES (?, ?, ?, ?, ?, ?)`)
	for i, t := range turns {
		ts := t.Timestamp
		if ts.IsZero() {
			ts = now
		}

		var meta sql.NullString
		if meta, err = encodeMetadata(t.Metadata); err != nil {
			return fmt.Errorf("turn at index %d: %w", i, err)
		}

		if _, err = tx.ExecContext(ctx, insert, agentID, t.Role, t.Content, meta, seq+int64(i), ts); err != nil {
			return fmt.Errorf("failed to insert turn at index %d: %w", i, err)
		}
	}

	update := r.bind(`UPDATE memory_agents SET updated_at = ? WHERE agent_id = ?`)
	if _, err = tx.ExecContext(ctx, update, now, agentID); err != nil {
		return fmt.Errorf("failed to update agent timestamp: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *SQLRepository) History(agentID string, maxTurns int) ([]Turn, error) {
	if agentID == "" {
		return nil, fmt.Errorf("agentID cannot be empty")
	}

	ctx := context.Background()

	query := r.bind(`
SELECT role, content, metadata, created_at
FROM memory_turns
WHERE agent_id = ?
ORDER BY sequence_num ASC`)
	args := []any{agentID}

	if maxTurns > 0 {
		query = r.bind(`
SELECT role, content, metadata, created_at FROM (
    SELECT role, content, metadata, created_at, sequence_num
    FROM memory_turns
    WHERE agent_id = ?
    ORDER BY sequence_num DESC
    LIMIT ?
) sub ORDER BY sequence_num ASC`)
		args = append(args, maxTurns)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		turn, err := scanTurn(rows)
		if err != nil {
			return nil, err
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating turns: %w", err)
	}

	return turns, nil
}

func scanTurn(rows *sql.Rows) (Turn, error) {
	var (
		turn Turn
		meta sql.NullString
	)
	if err := rows.Scan(&turn.Role, &turn.Content, &meta, &turn.Timestamp); err != nil {
		return Turn{}, fmt.Errorf("failed to scan turn: %w", err)
	}
	if meta.Valid {
		if err := json.Unmarshal([]byte(meta.String), &turn.Metadata); err != nil {
			return Turn{}, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return turn, nil
}

func (r *SQLRepository) LastTurn(agentID string) (Turn, bool, error) {
	if agentID == "" {
		return Turn{}, false, fmt.Errorf("agentID cannot be empty")
	}

	ctx := context.Background()

	query := r.bind(`
SELECT role, content, metadata, created_at
FROM memory_turns
WHERE agent_id = ?
ORDER BY sequence_num DESC
LIMIT 1`)

	var (
		turn Turn
		meta sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, agentID).Scan(&turn.Role, &turn.Content, &meta, &turn.Timestamp)
	if err == sql.ErrNoRows {
		return Turn{}, false, nil
	}
	if err != nil {
		return Turn{}, false, fmt.Errorf("failed to query last turn: %w", err)
	}
	if meta.Valid {
		if err := json.Unmarshal([]byte(meta.String), &turn.Metadata); err != nil {
			return Turn{}, false, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return turn, true, nil
}

func (r *SQLRepository) TurnCount(agentID string) (int, error) {
	if agentID == "" {
		return 0, fmt.Errorf("agentID cannot be empty")
	}

	ctx := context.Background()

	var count int
	query := r.bind(`SELECT COUNT(*) FROM memory_turns WHERE agent_id = ?`)
	if err := r.db.QueryRowContext(ctx, query, agentID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count turns: %w", err)
	}
	return count, nil
}

func (r *SQLRepository) Exists(agentID string) (bool, error) {
	if agentID == "" {
		return false, fmt.Errorf("agentID cannot be empty")
	}

	ctx := context.Background()

	var one int
	query := r.bind(`SELECT 1 FROM memory_agents WHERE agent_id = ?`)
	err := r.db.QueryRowContext(ctx, query, agentID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check agent: %w", err)
	}
	return true, nil
}

func (r *SQLRepository) ClearAgent(agentID string) error {
	if agentID == "" {
		return fmt.Errorf("agentID cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ctx := context.Background()

	query := r.bind(`DELETE FROM memory_turns WHERE agent_id = ?`)
	if _, err := r.db.ExecContext(ctx, query, agentID); err != nil {
		return fmt.Errorf("failed to clear turns: %w", err)
	}
	return nil
}

func (r *SQLRepository) DeleteAgent(agentID string) error {
	if agentID == "" {
		return fmt.Errorf("agentID cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ctx := context.Background()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, r.bind(`DELETE FROM memory_turns WHERE agent_id = ?`), agentID); err != nil {
		return fmt.Errorf("failed to delete turns: %w", err)
	}
	if _, err = tx.ExecContext(ctx, r.bind(`DELETE FROM memory_agents WHERE agent_id = ?`), agentID); err != nil {
		return fmt.Errorf("failed to delete agent row: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *SQLRepository) AllAgentIDs() ([]string, error) {
	ctx := context.Background()

	rows, err := r.db.QueryContext(ctx, `SELECT agent_id FROM memory_agents ORDER BY agent_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query agents: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan agent id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating agents: %w", err)
	}
	return ids, nil
}

func (r *SQLRepository) ClearAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx := context.Background()

	if _, err := r.db.ExecContext(ctx, `DELETE FROM memory_turns`); err != nil {
		return fmt.Errorf("failed to clear turns: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM memory_agents`); err != nil {
		return fmt.Errorf("failed to clear agents: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

var _ Repository = (*SQLRepository)(nil)
