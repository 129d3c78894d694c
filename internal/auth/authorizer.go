package auth

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/dukerupert/ponto/internal/domain"
)

// Objects and actions checked by handlers and services.
const (
	ObjectAdmin         = "admin"
	ObjectOrderDelivery = "order.delivery"
	ObjectSettings      = "settings.payment"

	ActionAccess = "access"
	ActionUpdate = "update"
)

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act
`

// Authorizer answers role-based permission checks. SUPER_ADMIN inherits
// ADMIN. An ADMIN whose email matches the super-admin allowlist is treated
// as SUPER_ADMIN.
type Authorizer struct {
	enforcer  *casbin.Enforcer
	allowlist []string
	logger    *slog.Logger
}

// NewAuthorizer builds the enforcer with the built-in policy.
// superAdminEmails holds full addresses or "@domain" patterns.
func NewAuthorizer(superAdminEmails []string, logger *slog.Logger) (*Authorizer, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("failed to load authorization model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create enforcer: %w", err)
	}

	policies := [][]string{
		{string(domain.RoleAdmin), ObjectAdmin, ActionAccess},
		{string(domain.RoleSuperAdmin), ObjectOrderDelivery, ActionUpdate},
		{string(domain.RoleSuperAdmin), ObjectSettings, ActionUpdate},
	}
	if _, err := e.AddPolicies(policies); err != nil {
		return nil, fmt.Errorf("failed to add policies: %w", err)
	}
	if _, err := e.AddGroupingPolicy(string(domain.RoleSuperAdmin), string(domain.RoleAdmin)); err != nil {
		return nil, fmt.Errorf("failed to add role inheritance: %w", err)
	}

	allowlist := make([]string, 0, len(superAdminEmails))
	for _, entry := range superAdminEmails {
		if entry = domain.NormalizeEmail(entry); entry != "" {
			allowlist = append(allowlist, entry)
		}
	}

	return &Authorizer{enforcer: e, allowlist: allowlist, logger: logger}, nil
}

// Can reports whether p may perform act on obj. Anonymous principals may
// do nothing.
func (a *Authorizer) Can(p *domain.Principal, obj, act string) bool {
	if p == nil {
		return false
	}
	ok, err := a.enforcer.Enforce(string(a.effectiveRole(p)), obj, act)
	if err != nil {
		a.logger.Error("authorization check failed", "obj", obj, "act", act, "error", err)
		return false
	}
	return ok
}

// CanEditDelivery reports whether p may edit delivery and tracking details.
func (a *Authorizer) CanEditDelivery(p *domain.Principal) bool {
	return a.Can(p, ObjectOrderDelivery, ActionUpdate)
}

// CanEditSettings reports whether p may change the payment policy settings.
func (a *Authorizer) CanEditSettings(p *domain.Principal) bool {
	return a.Can(p, ObjectSettings, ActionUpdate)
}

// IsSuperAdmin reports whether p resolves to the super-admin role.
func (a *Authorizer) IsSuperAdmin(p *domain.Principal) bool {
	return p != nil && a.effectiveRole(p) == domain.RoleSuperAdmin
}

func (a *Authorizer) effectiveRole(p *domain.Principal) domain.Role {
	if p.Role == domain.RoleAdmin && a.allowlisted(p.Email) {
		return domain.RoleSuperAdmin
	}
	return p.Role
}

func (a *Authorizer) allowlisted(email string) bool {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return false
	}
	for _, entry := range a.allowlist {
		if strings.HasPrefix(entry, "@") {
			if strings.HasSuffix(email, entry) {
				return true
			}
			continue
		}
		if email == entry {
			return true
		}
	}
	return false
}
