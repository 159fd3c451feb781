package appraisal

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"teacherhr/internal/domain/cpe"
	"teacherhr/internal/domain/rubric"
	"teacherhr/internal/domain/scoring"
)

// memStore mirrors the Postgres store: ApplyTransition holds one mutex for the
// whole decide-and-write step the way SELECT ... FOR UPDATE holds the row.
type memStore struct {
	mu         sync.Mutex
	appraisals map[string]Appraisal
	history    []HistoryEntry
	seq        int
	failWrites error
	applying   atomic.Bool
}

func newMemStore() *memStore {
	return &memStore{appraisals: map[string]Appraisal{}}
}

func (m *memStore) put(a Appraisal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appraisals[a.ID] = a
}

func (m *memStore) Create(ctx context.Context, teacherID string, year int) (Appraisal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.appraisals {
		if a.TeacherID == teacherID && a.AppraisalYear == year {
			return Appraisal{}, ErrAlreadyExists
		}
	}
	m.seq++
	a := Appraisal{ID: fmt.Sprintf("a%d", m.seq), TeacherID: teacherID, AppraisalYear: year, Status: StateDraft}
	m.appraisals[a.ID] = a
	return a, nil
}

func (m *memStore) Get(ctx context.Context, appraisalID string) (Appraisal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appraisals[appraisalID]
	if !ok {
		return Appraisal{}, ErrNotFound
	}
	return a, nil
}

func (m *memStore) List(ctx context.Context, filter Filter) ([]Appraisal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Appraisal
	for _, a := range m.appraisals {
		if filter.TeacherID != "" && a.TeacherID != filter.TeacherID {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (m *memStore) update(appraisalID string, edit func(*Appraisal)) (Appraisal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrites != nil {
		return Appraisal{}, m.failWrites
	}
	a, ok := m.appraisals[appraisalID]
	if !ok {
		return Appraisal{}, ErrNotFound
	}
	if a.IsLocked {
		return Appraisal{}, ErrLocked
	}
	edit(&a)
	m.appraisals[appraisalID] = a
	return a, nil
}

func (m *memStore) UpdateSelf(ctx context.Context, appraisalID string, in SelfInput) (Appraisal, error) {
	return m.update(appraisalID, func(a *Appraisal) {
		a.TeachingLoad = in.TeachingLoad
		a.Self = in.SelfAssessment
	})
}

func (m *memStore) UpdateScores(ctx context.Context, appraisalID string, in ScoresInput) (Appraisal, error) {
	return m.update(appraisalID, func(a *Appraisal) {
		a.Scores = in.Scores
		a.Personality = in.Personality
	})
}

func (m *memStore) UpdateReview(ctx context.Context, appraisalID string, in ReviewInput) (Appraisal, error) {
	return m.update(appraisalID, func(a *Appraisal) {
		for dst, src := range map[*string]*string{
			&a.Review.PrincipalOverallComment:    in.PrincipalOverallComment,
			&a.Review.PrincipalCareerAdvancement: in.PrincipalCareerAdvancement,
			&a.Review.HROverallComment:           in.HROverallComment,
			&a.Review.HRCareerAdvancement:        in.HRCareerAdvancement,
			&a.Review.RevisionReason:             in.RevisionReason,
			&a.Review.RevisionComments:           in.RevisionComments,
		} {
			if src != nil {
				*dst = *src
			}
		}
	})
}

func (m *memStore) SaveScores(ctx context.Context, appraisalID string, result scoring.Result) (Appraisal, error) {
	return m.update(appraisalID, func(a *Appraisal) {
		a.Part2Score = &result.Part2Score
		a.Part3Score = &result.Part3Score
		a.CPEScore = &result.CPEScore
		final := result.FinalWeightedScore
		if a.OriginalFinalScore != nil {
			a.OriginalFinalScore = &final
		} else {
			a.FinalWeightedScore = &final
		}
		at := result.CalculatedAt
		a.CalculatedAt = &at
	})
}

func (m *memStore) SaveOverride(ctx context.Context, appraisalID string, override Override) (Appraisal, error) {
	return m.update(appraisalID, func(a *Appraisal) {
		if a.OriginalFinalScore == nil {
			a.OriginalFinalScore = a.FinalWeightedScore
		}
		score, at := override.Score, override.At
		a.FinalWeightedScore = &score
		a.OverrideJustification = override.Justification
		a.OverriddenBy = override.ActorID
		a.OverriddenAt = &at
	})
}

func (m *memStore) ApplyTransition(ctx context.Context, appraisalID string, decide func(Appraisal) (StatusChange, error)) (Appraisal, HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applying.Store(true)
	defer m.applying.Store(false)
	current, ok := m.appraisals[appraisalID]
	if !ok {
		return Appraisal{}, HistoryEntry{}, ErrNotFound
	}
	change, err := decide(current)
	if err != nil {
		return Appraisal{}, HistoryEntry{}, err
	}
	if m.failWrites != nil {
		return Appraisal{}, HistoryEntry{}, m.failWrites
	}
	now := time.Now().UTC()
	current.Status = change.To
	if change.Lock {
		current.IsLocked = true
		current.CompletedAt = &now
	}
	m.appraisals[appraisalID] = current
	entry := HistoryEntry{
		ID:             fmt.Sprintf("h%d", len(m.history)+1),
		AppraisalID:    appraisalID,
		FromStatus:     change.From,
		ToStatus:       change.To,
		ActorID:        change.ActorID,
		ActorRole:      change.ActorRole,
		Comment:        change.Comment,
		Metadata:       change.Metadata,
		TransitionedAt: now,
	}
	m.history = append(m.history, entry)
	return current, entry, nil
}

func (m *memStore) History(ctx context.Context, appraisalID string) ([]HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []HistoryEntry
	for _, entry := range m.history {
		if entry.AppraisalID == appraisalID {
			out = append(out, entry)
		}
	}
	return out, nil
}

type staticRubrics struct {
	r   rubric.Rubric
	err error
}

func (s staticRubrics) Active(context.Context, string) (rubric.Rubric, error) {
	return s.r, s.err
}

// cpeTotals evaluates compliance like cpe.Service: against required, or the
// default minimum when required is zero.
type cpeTotals struct {
	mu       sync.Mutex
	points   map[string]float64
	required float64
	checked  func()
}

func (c *cpeTotals) set(teacherID string, year int, points float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.points == nil {
		c.points = map[string]float64{}
	}
	c.points[fmt.Sprintf("%s/%d", teacherID, year)] = points
}

func (c *cpeTotals) SumApprovedPoints(_ context.Context, teacherID string, year int) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.points[fmt.Sprintf("%s/%d", teacherID, year)], nil
}

func (c *cpeTotals) CheckCompliance(ctx context.Context, teacherID string, year int) (cpe.Compliance, error) {
	if c.checked != nil {
		c.checked()
	}
	total, _ := c.SumApprovedPoints(ctx, teacherID, year)
	required := c.required
	if required == 0 {
		required = cpe.MinimumPoints
	}
	return cpe.Evaluate(teacherID, year, total, required), nil
}

type kpiCounts map[string]int

func (k kpiCounts) CountPending(_ context.Context, teacherID string) (int, error) {
	return k[teacherID], nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []TransitionEvent
}

func (r *recordingSink) Publish(_ context.Context, event TransitionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

type countingRecorder struct {
	mu        sync.Mutex
	committed int
	rejected  map[string]int
	scoring   int
}

func (c *countingRecorder) TransitionCommitted(string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.committed++
}

func (c *countingRecorder) TransitionRejected(kind string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rejected == nil {
		c.rejected = map[string]int{}
	}
	c.rejected[kind]++
}

func (c *countingRecorder) ScoringFailed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scoring++
}

type auditCall struct {
	actorID, action, entityID string
	before, after             any
}

type recordingAuditor struct {
	calls []auditCall
}

func (r *recordingAuditor) Record(_ context.Context, actorID, action, entityType, entityID string, before, after any) error {
	r.calls = append(r.calls, auditCall{actorID: actorID, action: action, entityID: entityID, before: before, after: after})
	return nil
}
