package cpe

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

const recordColumns = `id, teacher_id, course_title, provider, location, description,
  COALESCE(certificate_path, ''), date_attended, duration_hours::float8, cpe_points::float8, status,
  COALESCE(reviewer_id::text, ''), reviewed_at, created_at, updated_at`

// Records in a calendar year are matched on date_attended.
const yearFilter = "date_attended >= make_date($2, 1, 1) AND date_attended < make_date($2 + 1, 1, 1)"

func scanRecord(row pgx.Row) (Record, error) {
	var r Record
	err := row.Scan(&r.ID, &r.TeacherID, &r.CourseTitle, &r.Provider, &r.Location, &r.Description,
		&r.CertificatePath, &r.DateAttended, &r.DurationHours, &r.CPEPoints, &r.Status,
		&r.ReviewerID, &r.ReviewedAt, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return r, err
}

// Create writes duration_hours and its derived cpe_points in one statement.
func (s *Store) Create(ctx context.Context, teacherID string, in RecordInput, points float64) (Record, error) {
	return scanRecord(s.DB.QueryRow(ctx, `
    INSERT INTO cpe_records (teacher_id, course_title, provider, location, description, certificate_path,
      date_attended, duration_hours, cpe_points)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
    RETURNING `+recordColumns,
		teacherID, in.CourseTitle, in.Provider, in.Location, in.Description, nullIfEmpty(in.CertificatePath),
		in.DateAttended, in.DurationHours, points))
}

// Update only touches pending records and rewrites points with the duration.
func (s *Store) Update(ctx context.Context, recordID string, in RecordInput, points float64) (Record, error) {
	rec, err := scanRecord(s.DB.QueryRow(ctx, `
    UPDATE cpe_records
    SET course_title = $2, provider = $3, location = $4, description = $5, certificate_path = $6,
        date_attended = $7, duration_hours = $8, cpe_points = $9, updated_at = now()
    WHERE id = $1 AND status = 'pending'
    RETURNING `+recordColumns,
		recordID, in.CourseTitle, in.Provider, in.Location, in.Description, nullIfEmpty(in.CertificatePath),
		in.DateAttended, in.DurationHours, points))
	if errors.Is(err, ErrNotFound) {
		if _, getErr := s.Get(ctx, recordID); getErr == nil {
			return Record{}, ErrNotEditable
		}
	}
	return rec, err
}

func (s *Store) Get(ctx context.Context, recordID string) (Record, error) {
	return scanRecord(s.DB.QueryRow(ctx, "SELECT "+recordColumns+" FROM cpe_records WHERE id = $1", recordID))
}

func (s *Store) Review(ctx context.Context, recordID, status, reviewerID string) (Record, error) {
	rec, err := scanRecord(s.DB.QueryRow(ctx, `
    UPDATE cpe_records
    SET status = $2, reviewer_id = $3, reviewed_at = now(), updated_at = now()
    WHERE id = $1 AND status = 'pending'
    RETURNING `+recordColumns, recordID, status, reviewerID))
	if errors.Is(err, ErrNotFound) {
		if _, getErr := s.Get(ctx, recordID); getErr == nil {
			return Record{}, ErrAlreadyReviewed
		}
	}
	return rec, err
}

func (s *Store) ListByTeacherYear(ctx context.Context, teacherID string, year int, status string) ([]Record, error) {
	query := "SELECT " + recordColumns + " FROM cpe_records WHERE teacher_id = $1 AND " + yearFilter
	args := []any{teacherID, year}
	if status != "" {
		query += " AND status = $3"
		args = append(args, status)
	}
	query += " ORDER BY date_attended DESC"

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) SumApprovedPoints(ctx context.Context, teacherID string, year int) (float64, error) {
	var total float64
	err := s.DB.QueryRow(ctx, `
    SELECT COALESCE(SUM(cpe_points), 0)::float8
    FROM cpe_records
    WHERE teacher_id = $1 AND status = 'approved' AND `+yearFilter, teacherID, year).Scan(&total)
	return total, err
}

func (s *Store) TeacherPoints(ctx context.Context, year int, departmentID string) ([]TeacherPoints, error) {
	query := fmt.Sprintf(`
    SELECT t.id, t.employee_id, t.full_name, COALESCE(d.id::text, ''), COALESCE(d.name, ''), COALESCE(d.code, ''),
      COALESCE(SUM(c.cpe_points), 0)::float8
    FROM teachers t
    LEFT JOIN departments d ON d.id = t.department_id AND d.is_active
    LEFT JOIN cpe_records c ON c.teacher_id = t.id AND c.status = 'approved'
      AND c.date_attended >= make_date($1, 1, 1) AND c.date_attended < make_date($1 + 1, 1, 1)
    WHERE t.is_active %s
    GROUP BY t.id, t.employee_id, t.full_name, d.id, d.name, d.code
    ORDER BY t.full_name
  `, departmentFilter(departmentID))
	args := []any{year}
	if departmentID != "" {
		args = append(args, departmentID)
	}

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TeacherPoints
	for rows.Next() {
		var tp TeacherPoints
		if err := rows.Scan(&tp.TeacherID, &tp.EmployeeID, &tp.FullName, &tp.DepartmentID, &tp.DepartmentName, &tp.DepartmentCode, &tp.Points); err != nil {
			return nil, err
		}
		out = append(out, tp)
	}
	return out, rows.Err()
}

func departmentFilter(departmentID string) string {
	if departmentID == "" {
		return ""
	}
	return "AND t.department_id = $2"
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
