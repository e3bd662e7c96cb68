// Package schema describes the relational layout of the interview store and
// migrates it with the ent schema engine.
package schema

import (
	"context"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

const (
	// Table is the name of the interviews table.
	Table = "interviews"

	FieldID              = "id"
	FieldOwnerID         = "owner_id"
	FieldJobPosition     = "job_position"
	FieldJobDescription  = "job_description"
	FieldExperienceLevel = "experience_level"
	FieldStatus          = "status"
	FieldQuestions       = "questions"
	FieldAnswers         = "answers"
	FieldFeedback        = "feedback"
	FieldCreatedAt       = "created_at"
	FieldUpdatedAt       = "updated_at"
	FieldStartedAt       = "started_at"
	FieldCompletedAt     = "completed_at"
)

// Columns holds all interview columns in select order.
var Columns = []string{
	FieldID,
	FieldOwnerID,
	FieldJobPosition,
	FieldJobDescription,
	FieldExperienceLevel,
	FieldStatus,
	FieldQuestions,
	FieldAnswers,
	FieldFeedback,
	FieldCreatedAt,
	FieldUpdatedAt,
	FieldStartedAt,
	FieldCompletedAt,
}

var timeType = map[string]string{
	dialect.MySQL:    "datetime(6)",
	dialect.Postgres: "timestamp with time zone",
}

var (
	InterviewsColumns = []*schema.Column{
		{Name: FieldID, Type: field.TypeString, Unique: true, Size: 36},
		{Name: FieldOwnerID, Type: field.TypeString, Size: 191},
		{Name: FieldJobPosition, Type: field.TypeString},
		{Name: FieldJobDescription, Type: field.TypeString, Size: 2147483647},
		{Name: FieldExperienceLevel, Type: field.TypeString, Size: 32},
		{Name: FieldStatus, Type: field.TypeString, Size: 32, Default: "not-started"},
		{Name: FieldQuestions, Type: field.TypeJSON},
		{Name: FieldAnswers, Type: field.TypeJSON},
		{Name: FieldFeedback, Type: field.TypeJSON, Nullable: true},
		{Name: FieldCreatedAt, Type: field.TypeTime, SchemaType: timeType},
		{Name: FieldUpdatedAt, Type: field.TypeTime, SchemaType: timeType},
		{Name: FieldStartedAt, Type: field.TypeTime, Nullable: true, SchemaType: timeType},
		{Name: FieldCompletedAt, Type: field.TypeTime, Nullable: true, SchemaType: timeType},
	}
	InterviewsTable = &schema.Table{
		Name:       Table,
		Columns:    InterviewsColumns,
		PrimaryKey: []*schema.Column{InterviewsColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "interview_owner_id",
				Unique:  false,
				Columns: []*schema.Column{InterviewsColumns[1]},
			},
			{
				Name:    "interview_owner_id_created_at",
				Unique:  false,
				Columns: []*schema.Column{InterviewsColumns[1], InterviewsColumns[9]},
			},
		},
	}
	Tables = []*schema.Table{InterviewsTable}
)

// Create runs the migration for every table on drv.
func Create(ctx context.Context, drv dialect.Driver, opts ...schema.MigrateOption) error {
	migrate, err := schema.NewMigrate(drv, opts...)
	if err != nil {
		return err
	}
	return migrate.Create(ctx, Tables...)
}
