package teachers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{DB: pool}
}

const teacherColumns = `t.id, t.employee_id, t.full_name, t.email, COALESCE(t.department_id::text, ''),
  COALESCE(d.name, ''), t.is_active, t.created_at`

const teacherFrom = " FROM teachers t LEFT JOIN departments d ON d.id = t.department_id"

func scanTeacher(row pgx.Row) (Teacher, error) {
	var t Teacher
	err := row.Scan(&t.ID, &t.EmployeeID, &t.FullName, &t.Email, &t.DepartmentID, &t.DepartmentName, &t.IsActive, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Teacher{}, ErrNotFound
	}
	return t, err
}

func (s *Store) ListTeachers(ctx context.Context, filter Filter) ([]Teacher, error) {
	query := "SELECT " + teacherColumns + teacherFrom
	var clauses []string
	var args []any
	if filter.DepartmentID != "" {
		args = append(args, filter.DepartmentID)
		clauses = append(clauses, fmt.Sprintf("t.department_id = $%d", len(args)))
	}
	if filter.ActiveOnly {
		clauses = append(clauses, "t.is_active")
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY t.full_name"

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Teacher
	for rows.Next() {
		t, err := scanTeacher(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) GetTeacher(ctx context.Context, teacherID string) (Teacher, error) {
	return scanTeacher(s.DB.QueryRow(ctx, "SELECT "+teacherColumns+teacherFrom+" WHERE t.id = $1", teacherID))
}

func (s *Store) CreateTeacher(ctx context.Context, in TeacherInput) (Teacher, error) {
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO teachers (employee_id, full_name, email, department_id, is_active)
    VALUES ($1,$2,$3,$4,$5)
    RETURNING id
  `, in.EmployeeID, in.FullName, in.Email, nullIfEmpty(in.DepartmentID), active).Scan(&id)
	if err != nil {
		return Teacher{}, mapWriteError(err)
	}
	return s.GetTeacher(ctx, id)
}

func (s *Store) UpdateTeacher(ctx context.Context, teacherID string, in TeacherInput) (Teacher, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE teachers
    SET employee_id = $2, full_name = $3, email = $4, department_id = $5, is_active = COALESCE($6, is_active)
    WHERE id = $1
  `, teacherID, in.EmployeeID, in.FullName, in.Email, nullIfEmpty(in.DepartmentID), in.IsActive)
	if err != nil {
		return Teacher{}, mapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return Teacher{}, ErrNotFound
	}
	return s.GetTeacher(ctx, teacherID)
}

func (s *Store) ListDepartments(ctx context.Context) ([]Department, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, name, code, COALESCE(principal_id::text, ''), is_active, created_at
    FROM departments
    ORDER BY name
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Department
	for rows.Next() {
		var d Department
		if err := rows.Scan(&d.ID, &d.Name, &d.Code, &d.PrincipalID, &d.IsActive, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) CreateDepartment(ctx context.Context, in DepartmentInput) (Department, error) {
	var d Department
	err := s.DB.QueryRow(ctx, `
    INSERT INTO departments (name, code, principal_id)
    VALUES ($1,$2,$3)
    RETURNING id, name, code, COALESCE(principal_id::text, ''), is_active, created_at
  `, in.Name, in.Code, nullIfEmpty(in.PrincipalID)).Scan(&d.ID, &d.Name, &d.Code, &d.PrincipalID, &d.IsActive, &d.CreatedAt)
	if err != nil {
		return Department{}, mapWriteError(err)
	}
	return d, nil
}

// UserIDForTeacher returns the login linked to the teacher, or "" when the
// teacher has no account.
func (s *Store) UserIDForTeacher(ctx context.Context, teacherID string) (string, error) {
	var userID string
	err := s.DB.QueryRow(ctx, "SELECT id FROM users WHERE teacher_id = $1 AND status = 'active' LIMIT 1", teacherID).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return userID, err
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return ErrDuplicate
		case "23503":
			return fmt.Errorf("%w: unknown department or principal", ErrInvalidInput)
		}
	}
	return err
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
