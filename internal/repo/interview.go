package repo

import (
	"context"
	stdsql "database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"mockly/internal/model"
	"mockly/internal/utils/sort"
	"mockly/internal/utils/tx"
	"mockly/schema"
)

// IInterview is the interview record store. Every call is scoped by owner:
// a record that belongs to someone else behaves exactly like a missing one.
type IInterview interface {
	List(ctx context.Context, ownerID string, sorts ...sort.Method) ([]*model.Interview, error)
	Create(ctx context.Context, ownerID string, in model.NewInterview) (*model.Interview, error)
	Get(ctx context.Context, id, ownerID string) (*model.Interview, error)
	Update(ctx context.Context, id, ownerID string, patch model.Patch) (*model.Interview, error)
	Delete(ctx context.Context, id, ownerID string) (bool, error)
	Stats(ctx context.Context, ownerID string) (model.Stats, error)
}

// SortColumns are the columns List accepts sort methods for.
var SortColumns = []string{
	schema.FieldCreatedAt,
	schema.FieldUpdatedAt,
	schema.FieldJobPosition,
	schema.FieldStatus,
}

var defaultSort = []sort.Method{{Column: schema.FieldCreatedAt}}

type SQLInterview struct {
	db      *stdsql.DB
	dialect string
	now     func() time.Time
}

func NewInterviewRepository(db *stdsql.DB, dialect string) IInterview {
	return &SQLInterview{db: db, dialect: dialect, now: time.Now}
}

func (r *SQLInterview) builder() *sql.DialectBuilder {
	return sql.Dialect(r.dialect)
}

func (r *SQLInterview) timestamp() time.Time {
	return r.now().UTC().Truncate(time.Microsecond)
}

// List returns the owner's interviews, oldest first unless sorts say otherwise.
func (r *SQLInterview) List(ctx context.Context, ownerID string, sorts ...sort.Method) ([]*model.Interview, error) {
	if len(sorts) == 0 {
		sorts = defaultSort
	}
	order, err := sort.GetSort(SortColumns, sorts)
	if err != nil {
		return nil, err
	}

	b := r.builder()
	selector := b.Select(schema.Columns...).
		From(b.Table(schema.Table)).
		Where(sql.EQ(schema.FieldOwnerID, ownerID))
	order(selector)
	selector.OrderBy(selector.C(schema.FieldID))

	query, args := selector.Query()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	interviews := []*model.Interview{}
	for rows.Next() {
		i, err := scanInterview(rows)
		if err != nil {
			return nil, err
		}
		interviews = append(interviews, i)
	}
	return interviews, rows.Err()
}

// Create inserts a fresh not-started interview with a server-assigned id.
func (r *SQLInterview) Create(ctx context.Context, ownerID string, in model.NewInterview) (*model.Interview, error) {
	now := r.timestamp()
	interview := &model.Interview{
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

	query, args := r.builder().Insert(schema.Table).
		Columns(
			schema.FieldID,
			schema.FieldOwnerID,
			schema.FieldJobPosition,
			schema.FieldJobDescription,
			schema.FieldExperienceLevel,
			schema.FieldStatus,
			schema.FieldQuestions,
			schema.FieldAnswers,
			schema.FieldCreatedAt,
			schema.FieldUpdatedAt,
		).
		Values(
			interview.ID,
			interview.OwnerID,
			interview.JobPosition,
			interview.JobDescription,
			interview.ExperienceLevel,
			string(interview.Status),
			"[]",
			"[]",
			now,
			now,
		).
		Query()

	if err := tx.WithTransaction(ctx, r.db, func(ctx context.Context, t tx.Tx) error {
		_, err := t.ExecContext(ctx, query, args...)
		return err
	}); err != nil {
		return nil, err
	}
	return interview, nil
}

func (r *SQLInterview) Get(ctx context.Context, id, ownerID string) (*model.Interview, error) {
	return r.get(ctx, r.db, id, ownerID)
}

func (r *SQLInterview) get(ctx context.Context, t tx.Tx, id, ownerID string) (*model.Interview, error) {
	b := r.builder()
	query, args := b.Select(schema.Columns...).
		From(b.Table(schema.Table)).
		Where(sql.And(
			sql.EQ(schema.FieldID, id),
			sql.EQ(schema.FieldOwnerID, ownerID),
		)).
		Query()

	interview, err := scanInterview(t.QueryRowContext(ctx, query, args...))
	if errors.Is(err, stdsql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	return interview, err
}

// Update applies the non-nil fields of patch and refreshes updatedAt.
func (r *SQLInterview) Update(ctx context.Context, id, ownerID string, patch model.Patch) (*model.Interview, error) {
	update := r.builder().Update(schema.Table).
		Set(schema.FieldUpdatedAt, r.timestamp())

	if patch.Status != nil {
		update.Set(schema.FieldStatus, string(*patch.Status))
	}
	if patch.Questions != nil {
		data, err := marshalJSON(*patch.Questions, []model.Question{})
		if err != nil {
			return nil, err
		}
		update.Set(schema.FieldQuestions, data)
	}
	if patch.Answers != nil {
		data, err := marshalJSON(*patch.Answers, []string{})
		if err != nil {
			return nil, err
		}
		update.Set(schema.FieldAnswers, data)
	}
	switch {
	case patch.ClearFeedback:
		update.SetNull(schema.FieldFeedback)
	case patch.Feedback != nil:
		data, err := json.Marshal(patch.Feedback)
		if err != nil {
			return nil, err
		}
		update.Set(schema.FieldFeedback, string(data))
	}
	switch {
	case patch.ClearStartedAt:
		update.SetNull(schema.FieldStartedAt)
	case patch.StartedAt != nil:
		update.Set(schema.FieldStartedAt, patch.StartedAt.UTC().Truncate(time.Microsecond))
	}
	switch {
	case patch.ClearCompletedAt:
		update.SetNull(schema.FieldCompletedAt)
	case patch.CompletedAt != nil:
		update.Set(schema.FieldCompletedAt, patch.CompletedAt.UTC().Truncate(time.Microsecond))
	}

	query, args := update.Where(sql.And(
		sql.EQ(schema.FieldID, id),
		sql.EQ(schema.FieldOwnerID, ownerID),
	)).Query()

	var interview *model.Interview
	err := tx.WithTransaction(ctx, r.db, func(ctx context.Context, t tx.Tx) error {
		res, err := t.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return model.ErrNotFound
		}
		interview, err = r.get(ctx, t, id, ownerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return interview, nil
}

// Delete reports whether a record owned by ownerID was removed.
func (r *SQLInterview) Delete(ctx context.Context, id, ownerID string) (bool, error) {
	query, args := r.builder().Delete(schema.Table).
		Where(sql.And(
			sql.EQ(schema.FieldID, id),
			sql.EQ(schema.FieldOwnerID, ownerID),
		)).
		Query()

	var deleted bool
	err := tx.WithTransaction(ctx, r.db, func(ctx context.Context, t tx.Tx) error {
		res, err := t.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		deleted = n > 0
		return err
	})
	return deleted, err
}

// Stats scans the owner's statuses and counts them.
func (r *SQLInterview) Stats(ctx context.Context, ownerID string) (model.Stats, error) {
	b := r.builder()
	query, args := b.Select(schema.FieldStatus).
		From(b.Table(schema.Table)).
		Where(sql.EQ(schema.FieldOwnerID, ownerID)).
		Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return model.Stats{}, err
	}
	defer rows.Close()

	var interviews []*model.Interview
	for rows.Next() {
		var status string
		if err := rows.Scan(&status); err != nil {
			return model.Stats{}, err
		}
		interviews = append(interviews, &model.Interview{Status: model.Status(status)})
	}
	if err := rows.Err(); err != nil {
		return model.Stats{}, err
	}
	return model.CountStats(interviews), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInterview(row rowScanner) (*model.Interview, error) {
	var (
		i                      model.Interview
		status                 string
		questions, answers     []byte
		feedback               []byte
		startedAt, completedAt stdsql.NullTime
	)
	if err := row.Scan(
		&i.ID,
		&i.OwnerID,
		&i.JobPosition,
		&i.JobDescription,
		&i.ExperienceLevel,
		&status,
		&questions,
		&answers,
		&feedback,
		&i.CreatedAt,
		&i.UpdatedAt,
		&startedAt,
		&completedAt,
	); err != nil {
		return nil, err
	}

	i.Status = model.Status(status)
	i.Questions = []model.Question{}
	i.Answers = []string{}
	if len(questions) > 0 {
		if err := json.Unmarshal(questions, &i.Questions); err != nil {
			return nil, fmt.Errorf("decode questions of %s: %w", i.ID, err)
		}
	}
	if len(answers) > 0 {
		if err := json.Unmarshal(answers, &i.Answers); err != nil {
			return nil, fmt.Errorf("decode answers of %s: %w", i.ID, err)
		}
	}
	if len(feedback) > 0 && string(feedback) != "null" {
		i.Feedback = &model.Feedback{}
		if err := json.Unmarshal(feedback, i.Feedback); err != nil {
			return nil, fmt.Errorf("decode feedback of %s: %w", i.ID, err)
		}
	}
	if startedAt.Valid {
		t := startedAt.Time
		i.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		i.CompletedAt = &t
	}
	return &i, nil
}

// marshalJSON encodes v, writing empty instead of null for nil slices.
func marshalJSON[T any](v []T, empty []T) (string, error) {
	if v == nil {
		v = empty
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
