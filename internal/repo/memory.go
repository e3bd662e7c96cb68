package repo

import (
	"context"
	"slices"
	stdsort "sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"mockly/internal/model"
	"mockly/internal/utils/sort"
	"mockly/schema"
)

// MemoryInterview keeps interviews in process memory. It is used when no
// database is configured and by tests.
type MemoryInterview struct {
	mu    sync.RWMutex
	items map[string]*model.Interview
	seq   map[string]uint64
	next  uint64
	now   func() time.Time
}

func NewMemoryInterviewRepository() *MemoryInterview {
	return &MemoryInterview{
		items: make(map[string]*model.Interview),
		seq:   make(map[string]uint64),
		now:   time.Now,
	}
}

func (m *MemoryInterview) List(_ context.Context, ownerID string, sorts ...sort.Method) ([]*model.Interview, error) {
	if len(sorts) == 0 {
		sorts = defaultSort
	}
	if err := sort.Validate(SortColumns, sorts); err != nil {
		return nil, err
	}

	m.mu.RLock()
	out := []*model.Interview{}
	seq := make(map[string]uint64)
	for _, i := range m.items {
		if i.OwnerID == ownerID {
			out = append(out, clone(i))
			seq[i.ID] = m.seq[i.ID]
		}
	}
	m.mu.RUnlock()

	stdsort.SliceStable(out, func(a, b int) bool {
		for _, s := range sorts {
			c := compare(out[a], out[b], s.Column)
			if c == 0 {
				continue
			}
			if s.Desc {
				return c > 0
			}
			return c < 0
		}
		return seq[out[a].ID] < seq[out[b].ID]
	})
	return out, nil
}

func (m *MemoryInterview) Create(_ context.Context, ownerID string, in model.NewInterview) (*model.Interview, error) {
	now := m.now().UTC()
	i := &model.Interview{
		ID:              uuid.NewString(),
		OwnerID:         ownerID,
		JobPosition:     in.Position,
		JobDescription:  in.Description,
		ExperienceLevel: in.Experience,
		Status:          model.StatusNotStarted,
		Questions:       []model.Question{},
		Answers:         []string{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	m.mu.Lock()
	m.items[i.ID] = i
	m.next++
	m.seq[i.ID] = m.next
	m.mu.Unlock()
	return clone(i), nil
}

func (m *MemoryInterview) Get(_ context.Context, id, ownerID string) (*model.Interview, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i, ok := m.items[id]
	if !ok || i.OwnerID != ownerID {
		return nil, model.ErrNotFound
	}
	return clone(i), nil
}

func (m *MemoryInterview) Update(_ context.Context, id, ownerID string, patch model.Patch) (*model.Interview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.items[id]
	if !ok || i.OwnerID != ownerID {
		return nil, model.ErrNotFound
	}

	next := clone(i)
	if patch.Status != nil {
		next.Status = *patch.Status
	}
	if patch.Questions != nil {
		next.Questions = cloneQuestions(*patch.Questions)
	}
	if patch.Answers != nil {
		next.Answers = append([]string{}, *patch.Answers...)
	}
	switch {
	case patch.ClearFeedback:
		next.Feedback = nil
	case patch.Feedback != nil:
		next.Feedback = cloneFeedback(patch.Feedback)
	}
	switch {
	case patch.ClearStartedAt:
		next.StartedAt = nil
	case patch.StartedAt != nil:
		t := patch.StartedAt.UTC()
		next.StartedAt = &t
	}
	switch {
	case patch.ClearCompletedAt:
		next.CompletedAt = nil
	case patch.CompletedAt != nil:
		t := patch.CompletedAt.UTC()
		next.CompletedAt = &t
	}
	next.UpdatedAt = m.now().UTC()

	m.items[id] = next
	return clone(next), nil
}

func (m *MemoryInterview) Delete(_ context.Context, id, ownerID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.items[id]
	if !ok || i.OwnerID != ownerID {
		return false, nil
	}
	delete(m.items, id)
	delete(m.seq, id)
	return true, nil
}

func (m *MemoryInterview) Stats(ctx context.Context, ownerID string) (model.Stats, error) {
	interviews, err := m.List(ctx, ownerID)
	if err != nil {
		return model.Stats{}, err
	}
	return model.CountStats(interviews), nil
}

func compare(a, b *model.Interview, column string) int {
	switch column {
	case schema.FieldCreatedAt:
		return a.CreatedAt.Compare(b.CreatedAt)
	case schema.FieldUpdatedAt:
		return a.UpdatedAt.Compare(b.UpdatedAt)
	case schema.FieldJobPosition:
		return strings.Compare(a.JobPosition, b.JobPosition)
	case schema.FieldStatus:
		return strings.Compare(string(a.Status), string(b.Status))
	}
	return 0
}

func clone(i *model.Interview) *model.Interview {
	c := *i
	c.Questions = cloneQuestions(i.Questions)
	c.Answers = append([]string{}, i.Answers...)
	c.Feedback = cloneFeedback(i.Feedback)
	if i.StartedAt != nil {
		t := *i.StartedAt
		c.StartedAt = &t
	}
	if i.CompletedAt != nil {
		t := *i.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// Stored records share no backing arrays with what callers hold.
func cloneQuestions(qs []model.Question) []model.Question {
	out := make([]model.Question, len(qs))
	for n, q := range qs {
		q.FollowUpQuestions = slices.Clone(q.FollowUpQuestions)
		q.KeyPoints = slices.Clone(q.KeyPoints)
		out[n] = q
	}
	return out
}

func cloneFeedback(f *model.Feedback) *model.Feedback {
	if f == nil {
		return nil
	}
	c := *f
	c.Strengths = slices.Clone(f.Strengths)
	c.AreasForImprovement = slices.Clone(f.AreasForImprovement)
	c.Recommendations = slices.Clone(f.Recommendations)
	c.ImprovementPlan.ShortTerm = slices.Clone(f.ImprovementPlan.ShortTerm)
	c.ImprovementPlan.LongTerm = slices.Clone(f.ImprovementPlan.LongTerm)
	if f.DetailedFeedback != nil {
		c.DetailedFeedback = make([]model.QuestionFeedback, len(f.DetailedFeedback))
		for n, d := range f.DetailedFeedback {
			d.KeyPointsCovered = slices.Clone(d.KeyPointsCovered)
			d.MissedPoints = slices.Clone(d.MissedPoints)
			c.DetailedFeedback[n] = d
		}
	}
	return &c
}
