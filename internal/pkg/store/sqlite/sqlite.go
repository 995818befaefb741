// Package sqlite persists flagged records in an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/endorses/lippyguard/internal/pkg/types"
	_ "modernc.org/sqlite"
)

// Store writes flagged records to the flagged_packets table.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open flagged packet db: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize flagged packet db: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS flagged_packets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ip_version INTEGER NOT NULL,
		source_ip TEXT NOT NULL,
		destination_ip TEXT NOT NULL,
		source_port INTEGER,
		destination_port INTEGER,
		protocol TEXT NOT NULL,
		timestamp INTEGER NOT NULL, -- Unix nanoseconds
		header_length INTEGER NOT NULL,
		total_length INTEGER NOT NULL,
		application_layer_text TEXT,
		is_suspicious INTEGER NOT NULL,
		is_malicious INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_flagged_packets_time ON flagged_packets(timestamp);
	CREATE INDEX IF NOT EXISTS idx_flagged_packets_source ON flagged_packets(source_ip);
	`
	_, err := s.db.Exec(schema)
	return err
}

// InsertFlagged writes records in one transaction. An empty batch is a no-op.
func (s *Store) InsertFlagged(ctx context.Context, records []*types.PacketRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO flagged_packets (
			ip_version, source_ip, destination_ip, source_port, destination_port, protocol,
			timestamp, header_length, total_length, application_layer_text, is_suspicious, is_malicious
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		_, err := stmt.ExecContext(ctx,
			int(r.IPVersion),
			r.SourceIP,
			r.DestinationIP,
			nullPort(r.SourcePort),
			nullPort(r.DestinationPort),
			string(r.Protocol),
			r.Timestamp.UnixNano(),
			r.HeaderLength,
			r.TotalLength,
			nullText(r.ApplicationLayerText),
			r.IsSuspicious,
			r.IsMalicious,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert flagged record: %w", err)
		}
	}

	return tx.Commit()
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]*types.PacketRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ip_version, source_ip, destination_ip, source_port, destination_port, protocol,
			timestamp, header_length, total_length, application_layer_text, is_suspicious, is_malicious
		FROM flagged_packets
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*types.PacketRecord
	for rows.Next() {
		var (
			r         types.PacketRecord
			ipVersion int
			srcPort   sql.NullInt64
			dstPort   sql.NullInt64
			protocol  string
			timestamp int64
			appText   sql.NullString
		)
		if err := rows.Scan(&ipVersion, &r.SourceIP, &r.DestinationIP, &srcPort, &dstPort, &protocol,
			&timestamp, &r.HeaderLength, &r.TotalLength, &appText, &r.IsSuspicious, &r.IsMalicious); err != nil {
			return nil, err
		}
		r.IPVersion = types.IPVersion(ipVersion)
		r.Protocol = types.Protocol(protocol)
		r.Timestamp = time.Unix(0, timestamp).UTC()
		if srcPort.Valid {
			p := uint16(srcPort.Int64)
			r.SourcePort = &p
		}
		if dstPort.Valid {
			p := uint16(dstPort.Int64)
			r.DestinationPort = &p
		}
		if appText.Valid {
			text := appText.String
			r.ApplicationLayerText = &text
		}
		records = append(records, &r)
	}
	return records, rows.Err()
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM flagged_packets`).Scan(&n)
	return n, err
}

func nullPort(p *uint16) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func nullText(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
