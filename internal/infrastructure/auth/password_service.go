package auth

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/himanshuthakur2917/sentinel-v2-sub000/domain"
)

// PasswordServiceImpl implements domain.PasswordService on bcrypt
type PasswordServiceImpl struct {
	cost int
}

// NewPasswordService creates a password service at bcrypt.DefaultCost
func NewPasswordService() *PasswordServiceImpl {
	return NewPasswordServiceWithCost(bcrypt.DefaultCost)
}

// NewPasswordServiceWithCost lets tests trade hash strength for speed
func NewPasswordServiceWithCost(cost int) *PasswordServiceImpl {
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	return &PasswordServiceImpl{cost: cost}
}

// Hash implements domain.PasswordService
func (p *PasswordServiceImpl) Hash(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

// Verify implements domain.PasswordService. A malformed hash is a mismatch.
func (p *PasswordServiceImpl) Verify(hashedPassword, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
}

var _ domain.PasswordService = (*PasswordServiceImpl)(nil)
