// Copyright (c) 2026 Gatekeep. All rights reserved.
// Author: minh.vo.sg@gmail.com

package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minhvo/gatekeep/pkg/uuid"
)

// # Postgres Implementation

// PostgresLog implements [Recorder] and [Reader] over the users.auditlog table.
//
// The table carries no UPDATE or DELETE path anywhere in the codebase; the
// only statements issued here are INSERT and SELECT.
type PostgresLog struct {
	pool *pgxpool.Pool
}

// NewPostgresLog creates a new PostgreSQL-backed audit log.
func NewPostgresLog(pool *pgxpool.Pool) *PostgresLog {
	return &PostgresLog{pool: pool}
}

/*
Record appends a single entry into users.auditlog.

Parameters:
  - context: context.Context
  - entry: *Entry

Returns:
  - error: Constraint violations or connectivity errors
*/
func (log *PostgresLog) Record(context context.Context, entry *Entry) error {
	const query = `
		INSERT INTO users.auditlog (id, userid, action, ipaddress, useragent, createdat)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6)`

	if entry.ID == "" {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	_, err := log.pool.Exec(context, query,
		entry.ID,
		entry.UserID,
		entry.Action,
		entry.IPAddress,
		entry.UserAgent,
		entry.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("postgres_audit_record_failed: %w", err)
	}

	return nil
}

/*
ListByUser returns a page of the user's entries, newest first, plus the total count.

Parameters:
  - context: context.Context
  - userID: string
  - limit: int
  - offset: int

Returns:
  - []Entry: Page of entries
  - int: Total entry count for the user
  - error: Retrieval failures
*/
func (log *PostgresLog) ListByUser(context context.Context, userID string, limit, offset int) ([]Entry, int, error) {
	const countQuery = `SELECT COUNT(*) FROM users.auditlog WHERE userid = $1`

	var total int
	if err := log.pool.QueryRow(context, countQuery, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("postgres_audit_count_failed: %w", err)
	}

	const listQuery = `
		SELECT id, COALESCE(userid::text, ''), action, ipaddress, useragent, createdat
		FROM users.auditlog
		WHERE userid = $1
		ORDER BY createdat DESC
		LIMIT $2 OFFSET $3`

	rows, err := log.pool.Query(context, listQuery, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres_audit_list_failed: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var entry Entry
		if err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.Action,
			&entry.IPAddress,
			&entry.UserAgent,
			&entry.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("postgres_audit_scan_failed: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("postgres_audit_rows_failed: %w", err)
	}

	return entries, total, nil
}
