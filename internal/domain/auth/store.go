package auth

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{DB: pool}
}

type AuthUser struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FullName  string `json:"fullName"`
	Role      string `json:"role"`
	TeacherID string `json:"teacherId,omitempty"`
	Password  string `json:"-"`
}

const userColumns = "id, email, full_name, role, COALESCE(teacher_id::text, ''), password_hash"

func scanUser(row interface{ Scan(...any) error }) (AuthUser, error) {
	var out AuthUser
	err := row.Scan(&out.ID, &out.Email, &out.FullName, &out.Role, &out.TeacherID, &out.Password)
	return out, err
}

func (s *Store) FindActiveUserByEmail(ctx context.Context, email string) (AuthUser, error) {
	return scanUser(s.DB.QueryRow(ctx, `
    SELECT `+userColumns+`
    FROM users
    WHERE lower(email) = lower($1) AND status = 'active'
  `, email))
}

func (s *Store) UserByID(ctx context.Context, userID string) (AuthUser, error) {
	return scanUser(s.DB.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", userID))
}

func (s *Store) UpdateLastLogin(ctx context.Context, userID string) error {
	_, err := s.DB.Exec(ctx, "UPDATE users SET last_login = now() WHERE id = $1", userID)
	return err
}

// EnsureUser inserts the user when the email is unknown and returns its id either way.
func (s *Store) EnsureUser(ctx context.Context, email, passwordHash, fullName, role string, teacherID any) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO users (email, password_hash, full_name, role, teacher_id)
    VALUES ($1,$2,$3,$4,$5)
    ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
    RETURNING id
  `, email, passwordHash, fullName, role, teacherID).Scan(&id)
	return id, err
}
