package mocks

import "github.com/himanshuthakur2917/sentinel-v2-sub000/domain"

// MockPolicyService implements domain.PolicyService interface for testing
type MockPolicyService struct {
	CheckPermissionFunc func(userType, resource, action string) (bool, error)
	SeedDefaultsFunc    func() error
}

// NewMockPolicyService creates a new MockPolicyService with default behaviors
func NewMockPolicyService() *MockPolicyService {
	return &MockPolicyService{}
}

// CheckPermission checks if a user type may call action on resource
func (m *MockPolicyService) CheckPermission(userType, resource, action string) (bool, error) {
	if m.CheckPermissionFunc != nil {
		return m.CheckPermissionFunc(userType, resource, action)
	}
	// Default behavior: every known user type may reach its session routes
	if userType != domain.UserTypePersonal && userType != domain.UserTypeBusiness {
		return false, nil
	}
	return (resource == "/auth/me" && action == "GET") || (resource == "/auth/logout" && action == "POST"), nil
}

// SeedDefaults installs the default policies
func (m *MockPolicyService) SeedDefaults() error {
	if m.SeedDefaultsFunc != nil {
		return m.SeedDefaultsFunc()
	}
	return nil
}

// Compile-time interface compliance verification
var _ domain.PolicyService = (*MockPolicyService)(nil)
