package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"projectdash/internal/apperr"
	"projectdash/internal/model"
	"projectdash/pkg/metrics"
	"projectdash/pkg/outbox"
)

type TaskRepository struct {
	db     *pgxpool.Pool
	txm    *TxManager
	outbox *outbox.Repository
	logger *zap.Logger
}

func NewTaskRepository(db *pgxpool.Pool, txm *TxManager, ob *outbox.Repository, logger *zap.Logger) *TaskRepository {
	return &TaskRepository{db: db, txm: txm, outbox: ob, logger: logger}
}

const taskColumns = `id, project_id, title, description, status, priority,
	assigned_to, due_date, estimated_hours, created_by, created_at, updated_at`

func scanTask(row pgx.Row, t *model.Task) error {
	return row.Scan(
		&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Status, &t.Priority,
		&t.AssignedTo, &t.DueDate, &t.EstimatedHours, &t.CreatedBy,
		&t.CreatedAt, &t.UpdatedAt,
	)
}

type taskEventPayload struct {
	ID        int    `json:"id"`
	ProjectID int    `json:"project_id"`
	Title     string `json:"title"`
	Status    string `json:"status"`
}

// Create inserts the task and its participant links, recording the
// task.created event in the same transaction.
func (r *TaskRepository) Create(ctx context.Context, t *model.Task) error {
	start := time.Now()
	defer func() { metrics.RecordDBQueryDuration("insert", "tasks", time.Since(start)) }()

	err := r.txm.InTx(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO tasks (project_id, title, description, status, priority,
				assigned_to, due_date, estimated_hours, created_by, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
			RETURNING id, created_at, updated_at
		`
		err := tx.QueryRow(ctx, query,
			t.ProjectID, t.Title, t.Description, t.Status, t.Priority,
			t.AssignedTo, t.DueDate, t.EstimatedHours, t.CreatedBy,
		).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
		if err != nil {
			return err
		}

		if err := syncParticipants(ctx, tx, t.ID, t.Participants); err != nil {
			return err
		}

		evt, err := outbox.NewEvent("task", int64(t.ID), "task.created",
			taskEventPayload{ID: t.ID, ProjectID: t.ProjectID, Title: t.Title, Status: t.Status})
		if err != nil {
			return err
		}
		return r.outbox.InsertEvent(ctx, tx, evt)
	})
	if err != nil {
		r.logger.Error("Failed to insert task",
			zap.Int("project_id", t.ProjectID),
			zap.String("title", t.Title),
			zap.Error(err),
		)
		return err
	}

	r.logger.Info("Task created",
		zap.Int("id", t.ID),
		zap.Int("project_id", t.ProjectID),
		zap.Int("assigned_to", t.AssignedTo),
	)
	return nil
}

func syncParticipants(ctx context.Context, tx pgx.Tx, taskID int, userIDs []int) error {
	if _, err := tx.Exec(ctx, `DELETE FROM task_user WHERE task_id = $1`, taskID); err != nil {
		return err
	}
	for _, uid := range userIDs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO task_user (task_id, user_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, taskID, uid); err != nil {
			return err
		}
	}
	return nil
}

// GetByID returns the task with its participant ids.
func (r *TaskRepository) GetByID(ctx context.Context, id int) (*model.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	var t model.Task
	if err := scanTask(r.db.QueryRow(ctx, query, id), &t); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		r.logger.Error("Failed to get task", zap.Int("id", id), zap.Error(err))
		return nil, err
	}

	participants, err := r.participants(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Participants = participants
	return &t, nil
}

func (r *TaskRepository) participants(ctx context.Context, taskID int) ([]int, error) {
	rows, err := r.db.Query(ctx,
		`SELECT user_id FROM task_user WHERE task_id = $1 ORDER BY user_id`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListByProject returns the project's tasks matching the filter, newest
// first.
func (r *TaskRepository) ListByProject(ctx context.Context, projectID int, f TaskFilter) ([]model.Task, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQueryDuration("list", "tasks", time.Since(start)) }()

	where := []string{"project_id = $1"}
	args := []any{projectID}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, "status = "+placeholder(len(args)))
	}
	if f.Priority != "" {
		args = append(args, f.Priority)
		where = append(where, "priority = "+placeholder(len(args)))
	}
	if f.AssignedTo != 0 {
		args = append(args, f.AssignedTo)
		where = append(where, "assigned_to = "+placeholder(len(args)))
	}

	query := "SELECT " + taskColumns + " FROM tasks WHERE " +
		strings.Join(where, " AND ") + " ORDER BY created_at DESC"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query tasks",
			zap.Int("project_id", projectID),
			zap.Error(err),
		)
		return nil, err
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		var t model.Task
		if err := scanTask(rows, &t); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// Update applies a partial update; a non-nil participant list replaces the
// task's participant set in the same transaction.
func (r *TaskRepository) Update(ctx context.Context, id int, upd model.TaskUpdate) (*model.Task, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQueryDuration("update", "tasks", time.Since(start)) }()

	set := []string{}
	args := []any{}
	add := func(col string, v any) {
		args = append(args, v)
		set = append(set, col+" = "+placeholder(len(args)))
	}

	if upd.Title != nil {
		add("title", *upd.Title)
	}
	if upd.Description != nil {
		add("description", *upd.Description)
	}
	if upd.Status != nil {
		add("status", *upd.Status)
	}
	if upd.Priority != nil {
		add("priority", *upd.Priority)
	}
	if upd.AssignedTo != nil {
		add("assigned_to", *upd.AssignedTo)
	}
	if upd.DueDate != nil {
		add("due_date", *upd.DueDate)
	}
	if upd.EstimatedHours != nil {
		add("estimated_hours", *upd.EstimatedHours)
	}

	var t model.Task
	err := r.txm.InTx(ctx, func(tx pgx.Tx) error {
		if len(set) > 0 {
			set = append(set, "updated_at = NOW()")
			args = append(args, id)
			query := "UPDATE tasks SET " + strings.Join(set, ", ") +
				" WHERE id = " + placeholder(len(args)) + " RETURNING " + taskColumns
			if err := scanTask(tx.QueryRow(ctx, query, args...), &t); err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return apperr.ErrNotFound
				}
				return err
			}
		} else {
			query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
			if err := scanTask(tx.QueryRow(ctx, query, id), &t); err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return apperr.ErrNotFound
				}
				return err
			}
		}

		if upd.Participants != nil {
			if err := syncParticipants(ctx, tx, id, *upd.Participants); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			r.logger.Error("Failed to update task", zap.Int("id", id), zap.Error(err))
		}
		return nil, err
	}

	participants, err := r.participants(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Participants = participants

	r.logger.Info("Task updated", zap.Int("id", id))
	return &t, nil
}

// BulkUpdate applies the same patch to every task in ids.
func (r *TaskRepository) BulkUpdate(ctx context.Context, ids []int, status, priority *string, assignedTo *int) error {
	set := []string{}
	args := []any{}
	add := func(col string, v any) {
		args = append(args, v)
		set = append(set, col+" = "+placeholder(len(args)))
	}
	if status != nil {
		add("status", *status)
	}
	if priority != nil {
		add("priority", *priority)
	}
	if assignedTo != nil {
		add("assigned_to", *assignedTo)
	}
	if len(set) == 0 {
		return nil
	}
	set = append(set, "updated_at = NOW()")

	args = append(args, ids)
	query := "UPDATE tasks SET " + strings.Join(set, ", ") +
		" WHERE id = ANY(" + placeholder(len(args)) + ")"

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to bulk update tasks",
			zap.Int("task_count", len(ids)),
			zap.Error(err),
		)
		return err
	}

	r.logger.Info("Tasks bulk updated",
		zap.Int("requested", len(ids)),
		zap.Int64("updated", tag.RowsAffected()),
	)
	return nil
}

// Delete removes the task and its participant links, recording the
// task.deleted event in the same transaction.
func (r *TaskRepository) Delete(ctx context.Context, id int) error {
	start := time.Now()
	defer func() { metrics.RecordDBQueryDuration("delete", "tasks", time.Since(start)) }()

	err := r.txm.InTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM task_user WHERE task_id = $1`, id); err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return apperr.ErrNotFound
		}

		evt, err := outbox.NewEvent("task", int64(id), "task.deleted",
			taskEventPayload{ID: id})
		if err != nil {
			return err
		}
		return r.outbox.InsertEvent(ctx, tx, evt)
	})
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			r.logger.Error("Failed to delete task", zap.Int("id", id), zap.Error(err))
		}
		return err
	}

	r.logger.Info("Task deleted", zap.Int("id", id))
	return nil
}
