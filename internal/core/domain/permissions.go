package domain

// Action names an operation checked by the permission gate
type Action string

const (
	ActionReadUser     Action = "user:read"
	ActionCreateUser   Action = "user:create"
	ActionUpdateUser   Action = "user:update"
	ActionDeleteUser   Action = "user:delete"
	ActionUpdateGrants Action = "user:grants"

	ActionReadCustomer   Action = "customer:read"
	ActionCreateCustomer Action = "customer:create"
	ActionUpdateCustomer Action = "customer:update"
	ActionDeleteCustomer Action = "customer:delete"
	ActionAssignAgent    Action = "customer:assign"

	ActionReadLoan   Action = "loan:read"
	ActionCreateLoan Action = "loan:create"
	ActionUpdateLoan Action = "loan:update"

	ActionReadCollection   Action = "collection:read"
	ActionCreateCollection Action = "collection:create"
	ActionDeleteCollection Action = "collection:delete"

	ActionReadBorrowing   Action = "borrowing:read"
	ActionCreateBorrowing Action = "borrowing:create"
	ActionRepayBorrowing  Action = "borrowing:repay"

	ActionReadAudit Action = "audit:read"
)

// IsRead reports whether the action only reads data
func (a Action) IsRead() bool {
	switch a {
	case ActionReadUser, ActionReadCustomer, ActionReadLoan,
		ActionReadCollection, ActionReadBorrowing, ActionReadAudit:
		return true
	}
	return false
}

// IsDelete reports whether the action destroys data
func (a Action) IsDelete() bool {
	return a == ActionDeleteUser || a == ActionDeleteCustomer || a == ActionDeleteCollection
}

// IsUserManagement reports whether the action manages staff accounts
func (a Action) IsUserManagement() bool {
	switch a {
	case ActionCreateUser, ActionUpdateUser, ActionDeleteUser, ActionUpdateGrants:
		return true
	}
	return false
}

// Target describes what an action applies to.
// OwnerUserID is the user that owns the record (the customer's user for customer
// data, the user itself for accounts). AssignedAgentIDs lists agents with an
// active assignment to the record's customer.
type Target struct {
	OwnerUserID      uint
	CustomerID       uint
	AssignedAgentIDs []uint
}

// AssignedTo reports whether agentID holds an active assignment on the target
func (t *Target) AssignedTo(agentID uint) bool {
	if t == nil {
		return false
	}
	for _, id := range t.AssignedAgentIDs {
		if id == agentID {
			return true
		}
	}
	return false
}

// Decision is the outcome of a permission or deletion check
type Decision struct {
	Allowed       bool   `json:"allowed"`
	Reason        string `json:"reason,omitempty"`
	BlockingCount int64  `json:"blocking_count,omitempty"`
}

// Allow returns a positive decision
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny returns a negative decision with a reason
func Deny(reason string) Decision {
	return Decision{Reason: reason}
}

// DenyCount returns a negative decision backed by a number of blocking records
func DenyCount(reason string, count int64) Decision {
	return Decision{Reason: reason, BlockingCount: count}
}

// Denial reasons
const (
	ReasonUnauthenticated  = "unauthenticated"
	ReasonInsufficientRole = "insufficient role"
	ReasonMissingGrant     = "missing grant"
	ReasonAdminOnly        = "admin only"
	ReasonNotAssigned      = "customer not assigned to agent"
	ReasonAgentRestricted  = "agents cannot delete or manage users"
	ReasonCustomerOwnOnly  = "customers may only read their own records"

	ReasonSelfDeletion       = "self-deletion"
	ReasonNotFound           = "not found"
	ReasonManagerVsAdmin     = "manager cannot delete admin"
	ReasonProtectedLoans     = "active or pending loans exist"
	ReasonCreatedLoans       = "user has created loans"
	ReasonRecordedCollection = "agent has recorded collections"
)
