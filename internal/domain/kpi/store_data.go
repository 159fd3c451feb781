package kpi

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

const requestColumns = `id, teacher_id, kpi_title, description, justification, category, target_value,
  measurement_criteria, status, COALESCE(reviewer_id::text, ''), COALESCE(reviewer_comments, ''), reviewed_at, created_at`

func scanRequest(row pgx.Row) (Request, error) {
	var r Request
	err := row.Scan(&r.ID, &r.TeacherID, &r.Title, &r.Description, &r.Justification, &r.Category, &r.TargetValue,
		&r.MeasurementCriteria, &r.Status, &r.ReviewerID, &r.ReviewerComments, &r.ReviewedAt, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Request{}, ErrNotFound
	}
	return r, err
}

func (s *Store) Create(ctx context.Context, teacherID string, in RequestInput) (Request, error) {
	return scanRequest(s.DB.QueryRow(ctx, `
    INSERT INTO kpi_requests (teacher_id, kpi_title, description, justification, category, target_value, measurement_criteria)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
    RETURNING `+requestColumns,
		teacherID, in.Title, in.Description, in.Justification, in.Category, in.TargetValue, in.MeasurementCriteria))
}

func (s *Store) Get(ctx context.Context, requestID string) (Request, error) {
	return scanRequest(s.DB.QueryRow(ctx, "SELECT "+requestColumns+" FROM kpi_requests WHERE id = $1", requestID))
}

func (s *Store) List(ctx context.Context, filter Filter) ([]Request, error) {
	var clauses []string
	var args []any
	if filter.TeacherID != "" {
		args = append(args, filter.TeacherID)
		clauses = append(clauses, fmt.Sprintf("teacher_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	query := "SELECT " + requestColumns + " FROM kpi_requests"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// Review moves a pending request to its final status; reviewed rows are immutable.
func (s *Store) Review(ctx context.Context, requestID, status, reviewerID, comments string) (Request, error) {
	req, err := scanRequest(s.DB.QueryRow(ctx, `
    UPDATE kpi_requests
    SET status = $2, reviewer_id = $3, reviewer_comments = $4, reviewed_at = now()
    WHERE id = $1 AND status = 'pending'
    RETURNING `+requestColumns, requestID, status, reviewerID, comments))
	if errors.Is(err, ErrNotFound) {
		if _, getErr := s.Get(ctx, requestID); getErr == nil {
			return Request{}, ErrAlreadyReviewed
		}
	}
	return req, err
}

func (s *Store) CountPending(ctx context.Context, teacherID string) (int, error) {
	var count int
	err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM kpi_requests WHERE teacher_id = $1 AND status = 'pending'", teacherID).Scan(&count)
	return count, err
}
