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

type ProjectRepository struct {
	db     *pgxpool.Pool
	txm    *TxManager
	outbox *outbox.Repository
	logger *zap.Logger
}

func NewProjectRepository(db *pgxpool.Pool, txm *TxManager, ob *outbox.Repository, logger *zap.Logger) *ProjectRepository {
	return &ProjectRepository{db: db, txm: txm, outbox: ob, logger: logger}
}

const projectColumns = `id, name, description, status, priority, start_date, end_date,
	actual_end_date, progress, budget, client_name, notes,
	project_manager_id, created_by, created_at, updated_at`

func scanProject(row pgx.Row, p *model.Project) error {
	return row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Status, &p.Priority,
		&p.StartDate, &p.EndDate, &p.ActualEndDate, &p.Progress, &p.Budget,
		&p.ClientName, &p.Notes, &p.ProjectManagerID, &p.CreatedBy,
		&p.CreatedAt, &p.UpdatedAt,
	)
}

type projectEventPayload struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Create inserts the project, attaches its manager as a team member, and
// records the project.created event, all in one transaction.
func (r *ProjectRepository) Create(ctx context.Context, p *model.Project) error {
	start := time.Now()
	defer func() { metrics.RecordDBQueryDuration("insert", "projects", time.Since(start)) }()

	err := r.txm.InTx(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO projects (name, description, status, priority, start_date, end_date,
				actual_end_date, progress, budget, client_name, notes,
				project_manager_id, created_by, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
			RETURNING id, created_at, updated_at
		`
		err := tx.QueryRow(ctx, query,
			p.Name, p.Description, p.Status, p.Priority, p.StartDate, p.EndDate,
			p.ActualEndDate, p.Progress, p.Budget, p.ClientName, p.Notes,
			p.ProjectManagerID, p.CreatedBy,
		).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return err
		}

		if p.ProjectManagerID != 0 {
			_, err = tx.Exec(ctx, `
				INSERT INTO project_team (project_id, user_id)
				VALUES ($1, $2)
				ON CONFLICT DO NOTHING
			`, p.ID, p.ProjectManagerID)
			if err != nil {
				return err
			}
		}

		evt, err := outbox.NewEvent("project", int64(p.ID), "project.created",
			projectEventPayload{ID: p.ID, Name: p.Name, Status: p.Status})
		if err != nil {
			return err
		}
		return r.outbox.InsertEvent(ctx, tx, evt)
	})
	if err != nil {
		r.logger.Error("Failed to insert project",
			zap.String("name", p.Name),
			zap.Error(err),
		)
		return err
	}

	r.logger.Info("Project created",
		zap.Int("id", p.ID),
		zap.Int("created_by", p.CreatedBy),
		zap.Int("project_manager_id", p.ProjectManagerID),
	)
	return nil
}

// GetByID returns a live (not soft-deleted) project.
func (r *ProjectRepository) GetByID(ctx context.Context, id int) (*model.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1 AND deleted_at IS NULL`

	var p model.Project
	if err := scanProject(r.db.QueryRow(ctx, query, id), &p); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		r.logger.Error("Failed to get project", zap.Int("id", id), zap.Error(err))
		return nil, err
	}
	return &p, nil
}

// List returns one page of projects matching the filter plus the total.
func (r *ProjectRepository) List(ctx context.Context, f ProjectFilter) ([]model.Project, int, error) {
	return r.list(ctx, f, 0)
}

// ListForUser lists projects where the user is creator, manager, or a team
// member.
func (r *ProjectRepository) ListForUser(ctx context.Context, userID int, f ProjectFilter) ([]model.Project, int, error) {
	return r.list(ctx, f, userID)
}

func (r *ProjectRepository) list(ctx context.Context, f ProjectFilter, memberOf int) ([]model.Project, int, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQueryDuration("list", "projects", time.Since(start)) }()

	f.Normalize()

	where := []string{"deleted_at IS NULL"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return placeholder(len(args))
	}

	if f.Search != "" {
		p := arg("%" + f.Search + "%")
		where = append(where, "(name ILIKE "+p+" OR client_name ILIKE "+p+")")
	}
	if len(f.Statuses) > 0 {
		where = append(where, "status = ANY("+arg(f.Statuses)+")")
	}
	if len(f.Priorities) > 0 {
		where = append(where, "priority = ANY("+arg(f.Priorities)+")")
	}
	if f.StartDateFrom != nil {
		where = append(where, "start_date >= "+arg(*f.StartDateFrom))
	}
	if f.StartDateTo != nil {
		where = append(where, "start_date <= "+arg(*f.StartDateTo))
	}
	if f.EndDateFrom != nil {
		where = append(where, "end_date >= "+arg(*f.EndDateFrom))
	}
	if f.EndDateTo != nil {
		where = append(where, "end_date <= "+arg(*f.EndDateTo))
	}
	if memberOf != 0 {
		p := arg(memberOf)
		where = append(where,
			"(created_by = "+p+" OR project_manager_id = "+p+
				" OR EXISTS (SELECT 1 FROM project_team pt WHERE pt.project_id = projects.id AND pt.user_id = "+p+"))")
	}

	whereClause := " WHERE " + strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM projects"+whereClause, args...).Scan(&total); err != nil {
		r.logger.Error("Failed to count projects", zap.Error(err))
		return nil, 0, err
	}

	query := "SELECT " + projectColumns + " FROM projects" + whereClause +
		" ORDER BY " + f.SortBy + " " + strings.ToUpper(f.SortOrder) +
		" LIMIT " + arg(f.PerPage) + " OFFSET " + arg((f.Page-1)*f.PerPage)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query projects", zap.Error(err))
		return nil, 0, err
	}
	defer rows.Close()

	projects := []model.Project{}
	for rows.Next() {
		var p model.Project
		if err := scanProject(rows, &p); err != nil {
			return nil, 0, err
		}
		projects = append(projects, p)
	}
	return projects, total, rows.Err()
}

// Update applies a partial update and records project.updated (and
// project.completed when the update completes the project) atomically with
// the row change.
func (r *ProjectRepository) Update(ctx context.Context, id int, upd model.ProjectUpdate, completed bool) (*model.Project, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQueryDuration("update", "projects", time.Since(start)) }()

	set := []string{}
	args := []any{}
	add := func(col string, v any) {
		args = append(args, v)
		set = append(set, col+" = "+placeholder(len(args)))
	}

	if upd.Name != nil {
		add("name", *upd.Name)
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
	if upd.StartDate != nil {
		add("start_date", *upd.StartDate)
	}
	if upd.EndDate != nil {
		add("end_date", *upd.EndDate)
	}
	if upd.ActualEndDate != nil {
		add("actual_end_date", *upd.ActualEndDate)
	}
	if upd.Progress != nil {
		add("progress", *upd.Progress)
	}
	if upd.Budget != nil {
		add("budget", *upd.Budget)
	}
	if upd.ClientName != nil {
		add("client_name", *upd.ClientName)
	}
	if upd.Notes != nil {
		add("notes", *upd.Notes)
	}
	if len(set) == 0 {
		return r.GetByID(ctx, id)
	}
	set = append(set, "updated_at = NOW()")

	args = append(args, id)
	query := "UPDATE projects SET " + strings.Join(set, ", ") +
		" WHERE id = " + placeholder(len(args)) + " AND deleted_at IS NULL" +
		" RETURNING " + projectColumns

	var p model.Project
	err := r.txm.InTx(ctx, func(tx pgx.Tx) error {
		if err := scanProject(tx.QueryRow(ctx, query, args...), &p); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperr.ErrNotFound
			}
			return err
		}

		payload := projectEventPayload{ID: p.ID, Name: p.Name, Status: p.Status}
		evt, err := outbox.NewEvent("project", int64(p.ID), "project.updated", payload)
		if err != nil {
			return err
		}
		if err := r.outbox.InsertEvent(ctx, tx, evt); err != nil {
			return err
		}

		if completed {
			evt, err := outbox.NewEvent("project", int64(p.ID), "project.completed", payload)
			if err != nil {
				return err
			}
			if err := r.outbox.InsertEvent(ctx, tx, evt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			r.logger.Error("Failed to update project", zap.Int("id", id), zap.Error(err))
		}
		return nil, err
	}

	if completed {
		metrics.ProjectCompletedCount.Inc()
	}
	r.logger.Info("Project updated", zap.Int("id", id), zap.String("status", p.Status))
	return &p, nil
}

// SetProgress persists a recomputed progress value (the lazy write-on-read
// cache fill).
func (r *ProjectRepository) SetProgress(ctx context.Context, id, progress int) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE projects SET progress = $1, updated_at = NOW() WHERE id = $2 AND deleted_at IS NULL`,
		progress, id,
	)
	if err != nil {
		r.logger.Error("Failed to persist recomputed progress",
			zap.Int("id", id),
			zap.Int("progress", progress),
			zap.Error(err),
		)
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// SoftDeleteCascade soft-deletes the project and hard-deletes its tasks
// (and their participant links) in a single transaction. A failure at any
// step rolls back the whole unit.
func (r *ProjectRepository) SoftDeleteCascade(ctx context.Context, id int) error {
	start := time.Now()
	defer func() { metrics.RecordDBQueryDuration("delete", "projects", time.Since(start)) }()

	err := r.txm.InTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			DELETE FROM task_user
			WHERE task_id IN (SELECT id FROM tasks WHERE project_id = $1)
		`, id); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM tasks WHERE project_id = $1`, id); err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, `
			UPDATE projects SET deleted_at = NOW(), updated_at = NOW()
			WHERE id = $1 AND deleted_at IS NULL
		`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return apperr.ErrNotFound
		}

		evt, err := outbox.NewEvent("project", int64(id), "project.deleted",
			projectEventPayload{ID: id})
		if err != nil {
			return err
		}
		return r.outbox.InsertEvent(ctx, tx, evt)
	})
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			r.logger.Error("Failed to delete project", zap.Int("id", id), zap.Error(err))
		}
		return err
	}

	r.logger.Info("Project deleted with task cascade", zap.Int("id", id))
	return nil
}

// IsMember reports whether the user participates in the project: on the
// team, or assigned to one of its tasks.
func (r *ProjectRepository) IsMember(ctx context.Context, projectID, userID int) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM project_team WHERE project_id = $1 AND user_id = $2
			UNION ALL
			SELECT 1 FROM tasks WHERE project_id = $1 AND assigned_to = $2
		)
	`, projectID, userID).Scan(&exists)
	if err != nil {
		r.logger.Error("Failed to check team membership",
			zap.Int("project_id", projectID),
			zap.Int("user_id", userID),
			zap.Error(err),
		)
		return false, err
	}
	return exists, nil
}

// TaskStats aggregates the project's tasks by status.
func (r *ProjectRepository) TaskStats(ctx context.Context, projectID int) (model.TaskStats, error) {
	var stats model.TaskStats
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'done'),
		       COUNT(*) FILTER (WHERE status = 'doing'),
		       COUNT(*) FILTER (WHERE status = 'todo')
		FROM tasks
		WHERE project_id = $1
	`, projectID).Scan(&stats.Total, &stats.Done, &stats.Doing, &stats.Todo)
	if err != nil {
		r.logger.Error("Failed to aggregate task stats",
			zap.Int("project_id", projectID),
			zap.Error(err),
		)
		return model.TaskStats{}, err
	}
	return stats, nil
}
