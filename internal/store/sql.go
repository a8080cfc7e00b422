package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/golang/glog"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// dialect holds what differs between the SQL backends.
type dialect struct {
	driver string
	// dollar placeholders ($1) instead of ?
	dollar bool
	schema []string
}

var dialects = map[string]dialect{
	"sqlite": {
		driver: "sqlite",
		schema: []string{
			`CREATE TABLE IF NOT EXISTS chats (
				id         INTEGER PRIMARY KEY AUTOINCREMENT,
				room_id    TEXT NOT NULL,
				message    TEXT NOT NULL,
				user_id    TEXT NOT NULL,
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE INDEX IF NOT EXISTS idx_chats_room ON chats(room_id, id)`,
		},
	},
	"postgres": {
		driver: "postgres",
		dollar: true,
		schema: []string{
			`CREATE TABLE IF NOT EXISTS chats (
				id         BIGSERIAL PRIMARY KEY,
				room_id    TEXT NOT NULL,
				message    TEXT NOT NULL,
				user_id    TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`,
			`CREATE INDEX IF NOT EXISTS idx_chats_room ON chats(room_id, id)`,
		},
	},
	"mysql": {
		driver: "mysql",
		schema: []string{
			`CREATE TABLE IF NOT EXISTS chats (
				id         BIGINT AUTO_INCREMENT PRIMARY KEY,
				room_id    VARCHAR(191) NOT NULL,
				message    MEDIUMTEXT NOT NULL,
				user_id    VARCHAR(191) NOT NULL,
				created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
				INDEX idx_chats_room (room_id, id)
			)`,
		},
	},
}

// SQLStore keeps room logs in a "chats" table, one row per message.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

// OpenSQL opens driver ("sqlite", "postgres" or "mysql") at dsn and ensures
// the schema exists. For sqlite the dsn is a file path.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("%q: %w", driver, ErrUnknownDriver)
	}
	if driver == "sqlite" {
		dsn = sqliteDSN(dsn)
	}
	if driver == "mysql" && !strings.Contains(dsn, "parseTime=") {
		if strings.Contains(dsn, "?") {
			dsn += "&parseTime=true"
		} else {
			dsn += "?parseTime=true"
		}
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == "sqlite" {
		// single writer
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(10 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	s := &SQLStore{db: db, dialect: d}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func sqliteDSN(path string) string {
	if path == "" {
		path = "zidraw.db"
	}
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

func (s *SQLStore) migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	glog.Infof("[store] %s schema ready", s.dialect.driver)
	return nil
}

// rebind rewrites ? placeholders for dialects that number them.
func (s *SQLStore) rebind(query string) string {
	if !s.dialect.dollar {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) Append(ctx context.Context, roomID, userID, message string) error {
	_, err := s.db.ExecContext(ctx,
		s.rebind(`INSERT INTO chats (room_id, message, user_id, created_at) VALUES (?, ?, ?, ?)`),
		roomID, message, userID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("append to room %s: %w", roomID, err)
	}
	return nil
}

func (s *SQLStore) List(ctx context.Context, roomID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT id, room_id, message, user_id, created_at FROM chats WHERE room_id = ? ORDER BY id ASC`),
		roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("list room %s: %w", roomID, err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.RoomID, &r.Message, &r.UserID, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan room %s: %w", roomID, err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *SQLStore) Purge(ctx context.Context, roomID string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM chats WHERE room_id = ?`), roomID)
	if err != nil {
		return fmt.Errorf("purge room %s: %w", roomID, err)
	}
	if n, err := res.RowsAffected(); err == nil {
		glog.V(1).Infof("[store] purged %d rows of room %s", n, roomID)
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
