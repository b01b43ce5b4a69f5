package services

import "loanbook/internal/core/domain"

// customerScoped actions are the ones an agent may perform on customers
// assigned to them
var customerScoped = map[domain.Action]bool{
	domain.ActionReadCustomer:   true,
	domain.ActionUpdateCustomer: true,
	domain.ActionReadLoan:       true,
	domain.ActionCreateLoan:     true,
	domain.ActionUpdateLoan:     true,
	domain.ActionReadCollection: true,
}

// Authorize decides whether actor may perform action on target. It has no
// side effects. A nil target means the action is not about one record (a
// listing, or creating something new); callers must then scope results
// themselves.
//
// Rules are evaluated in order and the first match wins.
func Authorize(actor *domain.Actor, action domain.Action, target *domain.Target) domain.Decision {
	// 1. unauthenticated
	if actor == nil || !actor.Active {
		return domain.Deny(domain.ReasonUnauthenticated)
	}

	// 2. reading one's own data
	if action.IsRead() && target != nil && target.OwnerUserID != 0 && target.OwnerUserID == actor.ID {
		return domain.Allow()
	}

	switch actor.Role {
	case domain.RoleAdmin:
		return domain.Allow()

	case domain.RoleManager:
		return authorizeManager(actor, action)

	case domain.RoleAgent:
		return authorizeAgent(actor, action, target)

	case domain.RoleCustomer:
		return domain.Deny(domain.ReasonCustomerOwnOnly)
	}

	return domain.Deny(domain.ReasonInsufficientRole)
}

func authorizeManager(actor *domain.Actor, action domain.Action) domain.Decision {
	var g domain.ManagerGrants
	if actor.Grants != nil {
		g = *actor.Grants
	}

	switch action {
	case domain.ActionDeleteUser:
		return grantDecision(g.CanDeleteUsers)
	case domain.ActionDeleteCustomer:
		return grantDecision(g.CanDeleteCustomers)
	case domain.ActionDeleteCollection:
		return grantDecision(g.CanDeleteCollections)
	case domain.ActionUpdateGrants, domain.ActionReadAudit:
		return domain.Deny(domain.ReasonAdminOnly)
	}
	return domain.Allow()
}

func grantDecision(held bool) domain.Decision {
	if held {
		return domain.Allow()
	}
	return domain.Deny(domain.ReasonMissingGrant)
}

func authorizeAgent(actor *domain.Actor, action domain.Action, target *domain.Target) domain.Decision {
	if action.IsDelete() || action.IsUserManagement() {
		return domain.Deny(domain.ReasonAgentRestricted)
	}
	if action == domain.ActionCreateCollection {
		return domain.Allow()
	}
	if !customerScoped[action] {
		return domain.Deny(domain.ReasonInsufficientRole)
	}
	if target == nil {
		if action.IsRead() {
			return domain.Allow()
		}
		return domain.Deny(domain.ReasonNotAssigned)
	}
	if target.AssignedTo(actor.ID) {
		return domain.Allow()
	}
	return domain.Deny(domain.ReasonNotAssigned)
}

// authorize wraps Authorize into an AuthorizationError
func authorize(actor *domain.Actor, action domain.Action, target *domain.Target) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if d := Authorize(actor, action, target); !d.Allowed {
		return domain.NewAuthorizationError(d.Reason)
	}
	return nil
}
