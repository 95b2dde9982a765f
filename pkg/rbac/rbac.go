// Package rbac decides whether an actor may perform an action on a project
// or task. The role set is flat and closed, so the whole policy is a single
// table keyed by (role, action, resource) mapped to an ownership predicate.
package rbac

import "fmt"

type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

type Resource string

const (
	ResourceProject Resource = "project"
	ResourceTask    Resource = "task"
)

// Subject carries the ownership and membership facts about the resource
// under check. Callers resolve these before asking for a decision; the
// evaluator itself never touches storage.
type Subject struct {
	Resource Resource

	// CreatedBy is the owner of the resource (created_by column).
	CreatedBy int

	// AssignedTo is the primary assignee. Tasks only.
	AssignedTo int

	// TeamMember is true when the actor belongs to the team of the
	// project (or of the task's parent project).
	TeamMember bool
}

type predicate func(actorID int, s Subject) bool

func always(int, Subject) bool               { return true }
func ifCreator(actorID int, s Subject) bool  { return s.CreatedBy == actorID }
func ifAssignee(actorID int, s Subject) bool { return s.AssignedTo == actorID }
func ifTeamMember(_ int, s Subject) bool     { return s.TeamMember }

type policyKey struct {
	role     string
	action   Action
	resource Resource
}

// policy is the full authorization table. A missing entry is a denial.
var policy = map[policyKey]predicate{
	// Projects
	{"admin", ActionView, ResourceProject}:             always,
	{"project_manager", ActionView, ResourceProject}:   always,
	{"developer", ActionView, ResourceProject}:         ifTeamMember,
	{"admin", ActionCreate, ResourceProject}:           always,
	{"project_manager", ActionCreate, ResourceProject}: always,
	{"admin", ActionUpdate, ResourceProject}:           always,
	{"project_manager", ActionUpdate, ResourceProject}: ifCreator,
	{"admin", ActionDelete, ResourceProject}:           always,
	{"project_manager", ActionDelete, ResourceProject}: ifCreator,

	// Tasks
	{"admin", ActionView, ResourceTask}:             always,
	{"project_manager", ActionView, ResourceTask}:   always,
	{"developer", ActionView, ResourceTask}:         ifAssignee,
	{"admin", ActionCreate, ResourceTask}:           always,
	{"project_manager", ActionCreate, ResourceTask}: always,
	{"admin", ActionUpdate, ResourceTask}:           always,
	{"project_manager", ActionUpdate, ResourceTask}: ifTeamMember,
	{"developer", ActionUpdate, ResourceTask}:       ifAssignee,
	{"admin", ActionDelete, ResourceTask}:           always,
}

// Allowed reports whether the actor with the given role may perform the
// action on the subject.
func Allowed(role string, actorID int, action Action, s Subject) bool {
	pred, ok := policy[policyKey{role, action, s.Resource}]
	if !ok {
		return false
	}
	return pred(actorID, s)
}

// Authorize is Allowed returning a typed error so callers can surface a
// stable 403 with the denial context.
func Authorize(role string, actorID int, action Action, s Subject) error {
	if !Allowed(role, actorID, action, s) {
		return &DeniedError{
			Role:     role,
			Action:   action,
			Resource: s.Resource,
		}
	}
	return nil
}

// DeniedError means the actor is authenticated but the policy table does
// not permit the action.
type DeniedError struct {
	Role     string
	Action   Action
	Resource Resource
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("role %s is not allowed to %s this %s", e.Role, e.Action, e.Resource)
}
