package appraisal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"teacherhr/internal/domain/scoring"
	"teacherhr/internal/platform/db"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{DB: pool}
}

const appraisalColumns = `a.id, a.teacher_id, a.appraisal_year, a.status, a.teaching_load_lessons_per_week,
  a.curriculum_content_score, a.aligned_curriculum_score, a.student_outcome_score, a.classroom_management_score,
  a.marking_students_work_score, a.cocurricular_activities_score, a.duties_other_tasks_score, a.event_management_score,
  a.other_responsibilities_score, a.competition_score, a.community_quantity_score, a.community_quality_score,
  a.management_skills_score, a.resilience_score, a.motivation_score, a.compassion_score,
  a.networking_communication_score, a.core_values_score, a.attendance_score,
  COALESCE(a.self_strengths, ''), COALESCE(a.self_areas_for_improvement, ''), COALESCE(a.self_goals_next_period, ''),
  COALESCE(a.principal_overall_comment, ''), COALESCE(a.principal_career_advancement, ''),
  COALESCE(a.hr_overall_comment, ''), COALESCE(a.hr_career_advancement, ''),
  COALESCE(a.revision_reason, ''), COALESCE(a.revision_comments, ''),
  a.part_2_score, a.part_3_score, a.cpe_score, a.final_weighted_score, a.calculated_at,
  a.original_final_score, COALESCE(a.score_override_justification, ''), a.score_overridden_at,
  COALESCE(a.score_overridden_by::text, ''), a.is_locked, a.completed_at, a.created_at, a.updated_at`

func scanAppraisal(row pgx.Row) (Appraisal, error) {
	var a Appraisal
	s, p := &a.Scores, &a.Personality
	err := row.Scan(&a.ID, &a.TeacherID, &a.AppraisalYear, &a.Status, &a.TeachingLoad,
		&s.CurriculumContent, &s.AlignedCurriculum, &s.StudentOutcome, &s.ClassroomManagement,
		&s.MarkingStudentsWork, &s.CocurricularActivities, &s.DutiesOtherTasks, &s.EventManagement,
		&s.OtherResponsibilities, &s.Competition, &s.CommunityQuantity, &s.CommunityQuality,
		&p.ManagementSkills, &p.Resilience, &p.Motivation, &p.Compassion,
		&p.NetworkingCommunication, &p.CoreValues, &p.Attendance,
		&a.Self.Strengths, &a.Self.AreasForImprovement, &a.Self.GoalsNextPeriod,
		&a.Review.PrincipalOverallComment, &a.Review.PrincipalCareerAdvancement,
		&a.Review.HROverallComment, &a.Review.HRCareerAdvancement,
		&a.Review.RevisionReason, &a.Review.RevisionComments,
		&a.Part2Score, &a.Part3Score, &a.CPEScore, &a.FinalWeightedScore, &a.CalculatedAt,
		&a.OriginalFinalScore, &a.OverrideJustification, &a.OverriddenAt,
		&a.OverriddenBy, &a.IsLocked, &a.CompletedAt, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) || invalidID(err) {
		return Appraisal{}, ErrNotFound
	}
	return a, err
}

// invalidID reports a malformed uuid parameter. No row can match it.
func invalidID(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}

func (s *Store) Create(ctx context.Context, teacherID string, year int) (Appraisal, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO annual_appraisals (teacher_id, appraisal_year, status)
    VALUES ($1, $2, 'draft')
    RETURNING id
  `, teacherID, year).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Appraisal{}, ErrAlreadyExists
		}
		return Appraisal{}, err
	}
	return s.Get(ctx, id)
}

func (s *Store) Get(ctx context.Context, appraisalID string) (Appraisal, error) {
	return scanAppraisal(s.DB.QueryRow(ctx, "SELECT "+appraisalColumns+" FROM annual_appraisals a WHERE a.id = $1", appraisalID))
}

func (s *Store) List(ctx context.Context, filter Filter) ([]Appraisal, error) {
	query := "SELECT " + appraisalColumns + " FROM annual_appraisals a JOIN teachers t ON t.id = a.teacher_id"
	var clauses []string
	var args []any
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.TeacherID != "" {
		add("a.teacher_id = $%d", filter.TeacherID)
	}
	if filter.DepartmentID != "" {
		add("t.department_id = $%d", filter.DepartmentID)
	}
	if filter.Year > 0 {
		add("a.appraisal_year = $%d", filter.Year)
	}
	if filter.Status != "" {
		add("a.status = $%d", string(filter.Status))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY a.appraisal_year DESC, t.full_name"

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Appraisal
	for rows.Next() {
		a, err := scanAppraisal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// updateUnlocked runs an UPDATE guarded by NOT is_locked and explains a
// missing row as either ErrLocked or ErrNotFound.
func (s *Store) updateUnlocked(ctx context.Context, appraisalID, set string, args ...any) (Appraisal, error) {
	params := append([]any{appraisalID}, args...)
	a, err := scanAppraisal(s.DB.QueryRow(ctx, `
    UPDATE annual_appraisals a
    SET `+set+`, updated_at = now()
    WHERE a.id = $1 AND NOT a.is_locked
    RETURNING `+appraisalColumns, params...))
	if !errors.Is(err, ErrNotFound) {
		return a, err
	}
	var locked bool
	lookupErr := s.DB.QueryRow(ctx, "SELECT is_locked FROM annual_appraisals WHERE id = $1", appraisalID).Scan(&locked)
	switch {
	case errors.Is(lookupErr, pgx.ErrNoRows), invalidID(lookupErr):
		return Appraisal{}, ErrNotFound
	case lookupErr != nil:
		return Appraisal{}, lookupErr
	case locked:
		return Appraisal{}, ErrLocked
	}
	return Appraisal{}, ErrNotFound
}

func (s *Store) UpdateSelf(ctx context.Context, appraisalID string, in SelfInput) (Appraisal, error) {
	return s.updateUnlocked(ctx, appraisalID, `
      teaching_load_lessons_per_week = $2, self_strengths = $3,
      self_areas_for_improvement = $4, self_goals_next_period = $5`,
		in.TeachingLoad, nullIfEmpty(in.Strengths), nullIfEmpty(in.AreasForImprovement), nullIfEmpty(in.GoalsNextPeriod))
}

func (s *Store) UpdateScores(ctx context.Context, appraisalID string, in ScoresInput) (Appraisal, error) {
	sc, p := in.Scores, in.Personality
	return s.updateUnlocked(ctx, appraisalID, `
      curriculum_content_score = $2, aligned_curriculum_score = $3, student_outcome_score = $4,
      classroom_management_score = $5, marking_students_work_score = $6, cocurricular_activities_score = $7,
      duties_other_tasks_score = $8, event_management_score = $9, other_responsibilities_score = $10,
      competition_score = $11, community_quantity_score = $12, community_quality_score = $13,
      management_skills_score = $14, resilience_score = $15, motivation_score = $16, compassion_score = $17,
      networking_communication_score = $18, core_values_score = $19, attendance_score = $20`,
		sc.CurriculumContent, sc.AlignedCurriculum, sc.StudentOutcome,
		sc.ClassroomManagement, sc.MarkingStudentsWork, sc.CocurricularActivities,
		sc.DutiesOtherTasks, sc.EventManagement, sc.OtherResponsibilities,
		sc.Competition, sc.CommunityQuantity, sc.CommunityQuality,
		p.ManagementSkills, p.Resilience, p.Motivation, p.Compassion,
		p.NetworkingCommunication, p.CoreValues, p.Attendance)
}

// UpdateReview writes only the fields present in the input, so reviewers saving
// their own comments at the same time do not overwrite each other.
func (s *Store) UpdateReview(ctx context.Context, appraisalID string, in ReviewInput) (Appraisal, error) {
	return s.updateUnlocked(ctx, appraisalID, `
      principal_overall_comment = `+keepUnlessSet("principal_overall_comment", 2)+`,
      principal_career_advancement = `+keepUnlessSet("principal_career_advancement", 3)+`,
      hr_overall_comment = `+keepUnlessSet("hr_overall_comment", 4)+`,
      hr_career_advancement = `+keepUnlessSet("hr_career_advancement", 5)+`,
      revision_reason = `+keepUnlessSet("revision_reason", 6)+`,
      revision_comments = `+keepUnlessSet("revision_comments", 7),
		in.PrincipalOverallComment, in.PrincipalCareerAdvancement,
		in.HROverallComment, in.HRCareerAdvancement,
		in.RevisionReason, in.RevisionComments)
}

// keepUnlessSet keeps column when parameter n is NULL and otherwise stores the
// parameter, with an empty string clearing the column.
func keepUnlessSet(column string, n int) string {
	return fmt.Sprintf("CASE WHEN $%[2]d::text IS NULL THEN a.%[1]s ELSE NULLIF($%[2]d::text, '') END", column, n)
}

// SaveScores writes the derived score fields. When a principal override is in
// place the recalculated score replaces original_final_score and the override
// stays in effect.
func (s *Store) SaveScores(ctx context.Context, appraisalID string, result scoring.Result) (Appraisal, error) {
	return s.updateUnlocked(ctx, appraisalID, `
      part_2_score = $2, part_3_score = $3, cpe_score = $4,
      final_weighted_score = CASE WHEN a.original_final_score IS NULL THEN $5 ELSE a.final_weighted_score END,
      original_final_score = CASE WHEN a.original_final_score IS NULL THEN NULL ELSE $5 END,
      calculated_at = $6`,
		result.Part2Score, result.Part3Score, result.CPEScore, result.FinalWeightedScore, result.CalculatedAt)
}

func (s *Store) SaveOverride(ctx context.Context, appraisalID string, override Override) (Appraisal, error) {
	return s.updateUnlocked(ctx, appraisalID, `
      original_final_score = COALESCE(a.original_final_score, a.final_weighted_score),
      final_weighted_score = $2, score_override_justification = $3,
      score_overridden_by = $4, score_overridden_at = $5`,
		override.Score, override.Justification, override.ActorID, override.At)
}

func (s *Store) ApplyTransition(ctx context.Context, appraisalID string, decide func(Appraisal) (StatusChange, error)) (Appraisal, HistoryEntry, error) {
	var updated Appraisal
	var entry HistoryEntry
	err := db.InTx(ctx, s.DB, func(tx pgx.Tx) error {
		current, err := scanAppraisal(tx.QueryRow(ctx,
			"SELECT "+appraisalColumns+" FROM annual_appraisals a WHERE a.id = $1 FOR UPDATE", appraisalID))
		if err != nil {
			return err
		}
		change, err := decide(current)
		if err != nil {
			return err
		}

		updated, err = scanAppraisal(tx.QueryRow(ctx, `
      UPDATE annual_appraisals a
      SET status = $2,
          is_locked = a.is_locked OR $3::boolean,
          completed_at = CASE WHEN $3::boolean THEN now() ELSE a.completed_at END,
          updated_at = now()
      WHERE a.id = $1
      RETURNING `+appraisalColumns, appraisalID, string(change.To), change.Lock))
		if err != nil {
			return err
		}

		metadata := change.Metadata
		if metadata == nil {
			metadata = map[string]any{}
		}
		metadataJSON, err := json.Marshal(metadata)
		if err != nil {
			return err
		}
		entry = HistoryEntry{
			AppraisalID: appraisalID,
			FromStatus:  change.From,
			ToStatus:    change.To,
			ActorID:     change.ActorID,
			ActorRole:   change.ActorRole,
			Comment:     change.Comment,
			Metadata:    metadata,
		}
		return tx.QueryRow(ctx, `
      INSERT INTO appraisal_status_history (appraisal_id, from_status, to_status, actor_id, actor_role, comment, metadata)
      VALUES ($1,$2,$3,$4,$5,$6,$7)
      RETURNING id, transitioned_at
    `, appraisalID, string(change.From), string(change.To), change.ActorID, change.ActorRole,
			nullIfEmpty(change.Comment), metadataJSON).Scan(&entry.ID, &entry.TransitionedAt)
	})
	if err != nil {
		return Appraisal{}, HistoryEntry{}, err
	}
	return updated, entry, nil
}

func (s *Store) History(ctx context.Context, appraisalID string) ([]HistoryEntry, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, appraisal_id, from_status, to_status, actor_id, actor_role, COALESCE(comment, ''), metadata, transitioned_at
    FROM appraisal_status_history
    WHERE appraisal_id = $1
    ORDER BY transitioned_at, id
  `, appraisalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var entry HistoryEntry
		var metadata []byte
		if err := rows.Scan(&entry.ID, &entry.AppraisalID, &entry.FromStatus, &entry.ToStatus, &entry.ActorID,
			&entry.ActorRole, &entry.Comment, &metadata, &entry.TransitionedAt); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &entry.Metadata); err != nil {
				return nil, err
			}
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func nullIfEmpty(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
