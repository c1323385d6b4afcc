package services

import (
	"fmt"
	"net/http"

	"github.com/casbin/casbin/v2"

	"github.com/himanshuthakur2917/sentinel-v2-sub000/domain"
	"github.com/himanshuthakur2917/sentinel-v2-sub000/internal/infrastructure/auth"
)

// Policy is one allow rule: a user type may call method on a route pattern
type Policy struct {
	UserType string
	Resource string
	Action   string
}

// DefaultPolicies grants every user type access to its own session routes
func DefaultPolicies() []Policy {
	var out []Policy
	for _, userType := range []string{domain.UserTypePersonal, domain.UserTypeBusiness} {
		out = append(out,
			Policy{userType, "/auth/me", http.MethodGet},
			Policy{userType, "/auth/logout", http.MethodPost},
		)
	}
	return out
}

// PolicyServiceImpl implements domain.PolicyService using Casbin
type PolicyServiceImpl struct {
	enforcer *casbin.Enforcer
	defaults []Policy
}

// NewPolicyService creates a new policy service
func NewPolicyService(enforcer *casbin.Enforcer) *PolicyServiceImpl {
	return &PolicyServiceImpl{enforcer: enforcer, defaults: DefaultPolicies()}
}

// CheckPermission implements domain.PolicyService
func (p *PolicyServiceImpl) CheckPermission(userType, resource, action string) (bool, error) {
	if userType == "" {
		return false, nil
	}
	return p.enforcer.Enforce(auth.Subject(userType), resource, action)
}

// SeedDefaults implements domain.PolicyService. Existing rules are left alone.
func (p *PolicyServiceImpl) SeedDefaults() error {
	for _, pol := range p.defaults {
		if _, err := p.enforcer.AddPolicy(auth.Subject(pol.UserType), pol.Resource, pol.Action); err != nil {
			return fmt.Errorf("seed policy %s %s %s: %w", pol.UserType, pol.Action, pol.Resource, err)
		}
	}
	return nil
}

var _ domain.PolicyService = (*PolicyServiceImpl)(nil)
