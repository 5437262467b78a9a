// ABOUTME: Optional SQLite journal recording every frame a connection exchanges
// ABOUTME: Provides per-connection message history for debugging and audit

package journal

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/harper/rpcmux/internal/logger"
)

//go:embed schema.sql
var schemaSQL string

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Recorder receives a copy of every frame a connection sends or receives.
// Record must not block the connection's pump; failures are logged, never
// propagated.
type Recorder interface {
	Record(connID string, dir Direction, frame []byte)
}

// SQLite is a Recorder backed by a local SQLite database.
type SQLite struct {
	conn *sql.DB
}

// Open opens or creates the journal database at path.
func Open(path string) (*SQLite, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	// WAL mode keeps concurrent connection pumps from serializing on writes.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create journal schema: %w", err)
	}

	logger.Info("journal initialized at %s", path)
	return &SQLite{conn: conn}, nil
}

func (j *SQLite) Close() error {
	if j.conn != nil {
		return j.conn.Close()
	}
	return nil
}

// Record stores one frame. Classification failures are tolerated: a frame
// that does not parse is still journaled with empty metadata.
func (j *SQLite) Record(connID string, dir Direction, frame []byte) {
	messageType, method, rpcID := classify(frame)
	_, err := j.conn.Exec(
		"INSERT INTO frames (conn_id, direction, message_type, method, jsonrpc_id, raw) VALUES (?, ?, ?, ?, ?, ?)",
		connID, string(dir), messageType, method, rpcID, string(frame),
	)
	if err != nil {
		logger.Warn("journal write failed for conn %s: %v", connID, err)
	}
}

// Frame is one journaled message, as returned by Frames.
type Frame struct {
	ConnID      string
	Direction   Direction
	MessageType string
	Method      string
	RPCID       string
	Raw         string
	CreatedAt   time.Time
}

// Frames returns the journaled frames for one connection in arrival order.
func (j *SQLite) Frames(connID string) ([]Frame, error) {
	rows, err := j.conn.Query(
		"SELECT conn_id, direction, message_type, method, jsonrpc_id, raw, created_at FROM frames WHERE conn_id = ? ORDER BY id",
		connID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query frames: %w", err)
	}
	defer rows.Close()

	var frames []Frame
	for rows.Next() {
		var f Frame
		var dir string
		if err := rows.Scan(&f.ConnID, &dir, &f.MessageType, &f.Method, &f.RPCID, &f.Raw, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan frame: %w", err)
		}
		f.Direction = Direction(dir)
		frames = append(frames, f)
	}
	return frames, rows.Err()
}

// classify extracts message type, method, and id for indexed queries.
func classify(frame []byte) (messageType, method, rpcID string) {
	var msg map[string]json.RawMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		return "", "", ""
	}

	if rawID, ok := msg["id"]; ok {
		rpcID = string(rawID)
	}
	if rawMethod, ok := msg["method"]; ok {
		_ = json.Unmarshal(rawMethod, &method)
		if rpcID == "" {
			messageType = "notification"
		} else {
			messageType = "request"
		}
		return messageType, method, rpcID
	}
	if _, ok := msg["result"]; ok {
		return "response", "", rpcID
	}
	if _, ok := msg["error"]; ok {
		return "error_response", "", rpcID
	}
	return "", "", rpcID
}
