package reports

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

// StatusCounts groups the year's appraisals by status, optionally for one teacher.
func (s *Store) StatusCounts(ctx context.Context, year int, teacherID string) (map[string]int, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT status, COUNT(1)
    FROM annual_appraisals
    WHERE appraisal_year = $1 AND ($2 = '' OR teacher_id::text = $2)
    GROUP BY status
  `, year, teacherID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		out[status] = count
	}
	return out, rows.Err()
}

func (s *Store) PendingKPIRequests(ctx context.Context, teacherID string) (int, error) {
	var total int
	err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1) FROM kpi_requests
    WHERE status = 'pending' AND ($1 = '' OR teacher_id::text = $1)
  `, teacherID).Scan(&total)
	return total, err
}

func (s *Store) PendingCPERecords(ctx context.Context, teacherID string) (int, error) {
	var total int
	err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1) FROM cpe_records
    WHERE status = 'pending' AND ($1 = '' OR teacher_id::text = $1)
  `, teacherID).Scan(&total)
	return total, err
}
