package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Project status constants. "pending" shows up in older clients as a
// synonym for planned and is normalized on input, never stored.
const (
	ProjectStatusPlanned    = "planned"
	ProjectStatusInProgress = "in_progress"
	ProjectStatusOnHold     = "on_hold"
	ProjectStatusCompleted  = "completed"
	ProjectStatusCancelled  = "cancelled"
)

// Project priority constants.
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// NormalizeProjectStatus maps legacy aliases onto the canonical status set.
func NormalizeProjectStatus(s string) string {
	if s == "pending" {
		return ProjectStatusPlanned
	}
	return s
}

// ValidProjectStatus reports whether s is a canonical project status.
func ValidProjectStatus(s string) bool {
	switch s {
	case ProjectStatusPlanned, ProjectStatusInProgress, ProjectStatusOnHold,
		ProjectStatusCompleted, ProjectStatusCancelled:
		return true
	}
	return false
}

// ValidProjectPriority reports whether p is a known project priority.
func ValidProjectPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

type Project struct {
	ID               int        `json:"id"`
	Name             string     `json:"name"`
	Description      string     `json:"description"`
	Status           string     `json:"status"`
	Priority         string     `json:"priority"`
	StartDate        time.Time  `json:"start_date"`
	EndDate          time.Time  `json:"end_date"`
	ActualEndDate    *time.Time `json:"actual_end_date"`
	Progress         int        `json:"progress"`
	Budget           float64    `json:"budget"`
	ClientName       string     `json:"client_name"`
	Notes            string     `json:"notes"`
	ProjectManagerID int        `json:"project_manager_id"`
	CreatedBy        int        `json:"created_by"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	DeletedAt        *time.Time `json:"-"`
}

// TaskStats is the task aggregate a project's derived fields are computed
// from.
type TaskStats struct {
	Total int `json:"total"`
	Done  int `json:"done"`
	Doing int `json:"doing"`
	Todo  int `json:"todo"`
}

// ProgressPercentage resolves the effective progress of the project.
// A stored nonzero progress is authoritative; a stored zero is re-derived
// from the task completion ratio when the project has tasks. The recompute
// result is persisted by the caller (write-on-read), so a project whose
// progress was ever set manually is never re-derived again.
func (p *Project) ProgressPercentage(stats TaskStats) int {
	if p.Progress != 0 {
		return p.Progress
	}
	if stats.Total == 0 {
		return 0
	}
	return int(math.Round(float64(stats.Done) / float64(stats.Total) * 100))
}

// DaysRemaining returns the signed number of whole days between now and the
// project end date. A completed project always reports 0.
func (p *Project) DaysRemaining(now time.Time) int {
	if p.Status == ProjectStatusCompleted {
		return 0
	}
	return int(p.EndDate.Sub(now).Hours() / 24)
}

// IsOverdue reports whether the end date is strictly in the past for a
// project that is not completed.
func (p *Project) IsOverdue(now time.Time) bool {
	return p.EndDate.Before(now) && p.Status != ProjectStatusCompleted
}

// FormattedBudget renders the budget as a dollar string with thousands
// grouping and two fraction digits. Presentation only; the stored value is
// untouched.
func (p *Project) FormattedBudget() string {
	return "$" + groupThousands(p.Budget)
}

func groupThousands(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	intPart, fracPart, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := fmt.Sprintf("%s.%s", b.String(), fracPart)
	if neg {
		return "-" + out
	}
	return out
}

// ProjectUpdate carries the fields of a full or partial project update.
// Nil means "not supplied".
type ProjectUpdate struct {
	Name          *string
	Description   *string
	Status        *string
	Priority      *string
	StartDate     *time.Time
	EndDate       *time.Time
	ActualEndDate *time.Time
	Progress      *int
	Budget        *float64
	ClientName    *string
	Notes         *string
}

// ApplyCompletionSideEffects enforces the completion invariant on an update:
// moving a project into completed without an explicit actual_end_date stamps
// it with now and forces progress to 100, overriding any progress in the
// same payload. Returns true when the update completes the project.
func (u *ProjectUpdate) ApplyCompletionSideEffects(now time.Time) bool {
	if u.Status == nil || *u.Status != ProjectStatusCompleted {
		return false
	}
	if u.ActualEndDate == nil {
		stamp := now
		u.ActualEndDate = &stamp
		full := 100
		u.Progress = &full
	}
	return true
}
