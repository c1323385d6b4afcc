package repositories

import (
	"context"
	"errors"
	"testing"

	"github.com/himanshuthakur2917/sentinel-v2-sub000/domain"
)

func newTestUser(email, phone string) *domain.User {
	return &domain.User{
		Email:               email,
		Phone:               phone,
		FullName:            "Test User",
		PasswordHash:        "hashed_password",
		UserType:            domain.UserTypePersonal,
		OnboardingCompleted: true,
	}
}

func TestUserRepositoryImpl_Create(t *testing.T) {
	tests := []struct {
		name          string
		setupData     func(repo domain.UserRepository)
		user          *domain.User
		expectedError error
	}{
		{
			name:      "successful creation assigns id",
			setupData: func(repo domain.UserRepository) {},
			user:      newTestUser("a@x.com", "+10000000001"),
		},
		{
			name: "duplicate email is a conflict",
			setupData: func(repo domain.UserRepository) {
				repo.Create(context.Background(), newTestUser("a@x.com", "+10000000001"))
			},
			user:          newTestUser("a@x.com", "+10000000002"),
			expectedError: domain.ErrUserAlreadyExists,
		},
		{
			name: "duplicate phone is a conflict",
			setupData: func(repo domain.UserRepository) {
				repo.Create(context.Background(), newTestUser("a@x.com", "+10000000001"))
			},
			user:          newTestUser("b@x.com", "+10000000001"),
			expectedError: domain.ErrUserAlreadyExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewUserRepository(setupTestDB(t))
			tt.setupData(repo)

			err := repo.Create(context.Background(), tt.user)

			if tt.expectedError != nil {
				if !errors.Is(err, tt.expectedError) {
					t.Errorf("expected error %v, got %v", tt.expectedError, err)
				}
				if !errors.Is(err, domain.ErrConflict) {
					t.Errorf("expected conflict category, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.user.ID == 0 {
				t.Error("expected user ID to be assigned")
			}
		})
	}
}

func TestUserRepositoryImpl_Find(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user := newTestUser("find@x.com", "+10000000009")
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	tests := []struct {
		name          string
		find          func() (*domain.User, error)
		expectedEmail string
		expectedError error
	}{
		{
			name:          "by email",
			find:          func() (*domain.User, error) { return repo.FindByEmail(ctx, "find@x.com") },
			expectedEmail: "find@x.com",
		},
		{
			name:          "by phone",
			find:          func() (*domain.User, error) { return repo.FindByPhone(ctx, "+10000000009") },
			expectedEmail: "find@x.com",
		},
		{
			name:          "by id",
			find:          func() (*domain.User, error) { return repo.FindByID(ctx, user.ID) },
			expectedEmail: "find@x.com",
		},
		{
			name:          "unknown email",
			find:          func() (*domain.User, error) { return repo.FindByEmail(ctx, "nobody@x.com") },
			expectedError: domain.ErrUserNotFound,
		},
		{
			name:          "unknown id",
			find:          func() (*domain.User, error) { return repo.FindByID(ctx, 9999) },
			expectedError: domain.ErrUserNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found, err := tt.find()
			if tt.expectedError != nil {
				if !errors.Is(err, tt.expectedError) {
					t.Errorf("expected error %v, got %v", tt.expectedError, err)
				}
				if found != nil {
					t.Error("expected nil user on error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if found.Email != tt.expectedEmail {
				t.Errorf("expected email %s, got %s", tt.expectedEmail, found.Email)
			}
			if found.UserType != domain.UserTypePersonal {
				t.Errorf("expected user type %s, got %s", domain.UserTypePersonal, found.UserType)
			}
			if !found.OnboardingCompleted {
				t.Error("expected onboarding flag to round-trip")
			}
		})
	}
}

func TestUserRepositoryImpl_ExistsByEmailOrPhone(t *testing.T) {
	repo := NewUserRepository(setupTestDB(t))
	ctx := context.Background()
	if err := repo.Create(ctx, newTestUser("taken@x.com", "+10000000005")); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	tests := []struct {
		name   string
		email  string
		phone  string
		exists bool
	}{
		{name: "email taken", email: "taken@x.com", phone: "+19999999999", exists: true},
		{name: "phone taken", email: "free@x.com", phone: "+10000000005", exists: true},
		{name: "both free", email: "free@x.com", phone: "+19999999999", exists: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exists, err := repo.ExistsByEmailOrPhone(ctx, tt.email, tt.phone)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if exists != tt.exists {
				t.Errorf("expected exists=%v, got %v", tt.exists, exists)
			}
		})
	}
}
