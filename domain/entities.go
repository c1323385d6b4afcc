package domain

import "time"

// IdentifierType names the channel an identifier belongs to
type IdentifierType string

const (
	IdentifierEmail IdentifierType = "email"
	IdentifierPhone IdentifierType = "phone"
)

// Valid reports whether t is a known channel
func (t IdentifierType) Valid() bool {
	return t == IdentifierEmail || t == IdentifierPhone
}

// SessionPurpose distinguishes registration sessions from login challenges
type SessionPurpose string

const (
	PurposeRegistration SessionPurpose = "registration"
	PurposeLogin        SessionPurpose = "login"
)

// SessionState is the position of a verification session in its flow
type SessionState string

const (
	StateOTPPending      SessionState = "OTP_PENDING"
	StateFullyVerified   SessionState = "FULLY_VERIFIED"
	StateLoginOTPPending SessionState = "LOGIN_OTP_PENDING"
	StateAuthenticated   SessionState = "AUTHENTICATED"
)

// User types accepted at onboarding
const (
	UserTypePersonal = "personal"
	UserTypeBusiness = "business"
)

// User represents a user in the system
type User struct {
	ID                  uint
	Email               string
	Phone               string
	FullName            string
	PasswordHash        string
	UserType            string
	OnboardingCompleted bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// OnboardingProfile is the data collected once both channels are verified
type OnboardingProfile struct {
	FullName string
	Password string
	UserType string
}

// OTPRecord is one channel's one-time code inside a verification session
type OTPRecord struct {
	SessionToken   string
	Identifier     string
	IdentifierType IdentifierType
	Code           string
	Attempts       int
	Verified       bool
	ExpiresAt      time.Time
	UserID         *uint
	Purpose        SessionPurpose
}

// Expired reports whether the record is past its expiry at now
func (r *OTPRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// ChannelStatus is the public view of one OTP record
type ChannelStatus struct {
	Identifier string         `json:"identifier"`
	Type       IdentifierType `json:"type"`
	Verified   bool           `json:"verified"`
	ExpiresAt  time.Time      `json:"expires_at"`
}

// SessionView is the composite read of a verification session
type SessionView struct {
	SessionToken  string
	Purpose       SessionPurpose
	UserID        *uint
	Email         *ChannelStatus
	Phone         *ChannelStatus
	FullyVerified bool
	ExpiresAt     time.Time
}

// State derives the flow state from the channel records
func (v *SessionView) State() SessionState {
	switch v.Purpose {
	case PurposeLogin:
		if v.FullyVerified {
			return StateAuthenticated
		}
		return StateLoginOTPPending
	default:
		if v.FullyVerified {
			return StateFullyVerified
		}
		return StateOTPPending
	}
}

// Channel returns the status for the given channel, or nil
func (v *SessionView) Channel(t IdentifierType) *ChannelStatus {
	if t == IdentifierEmail {
		return v.Email
	}
	return v.Phone
}

// DeliveryReport records which notifications reached their provider
type DeliveryReport map[IdentifierType]bool

// OTPSession is returned when a verification session is opened
type OTPSession struct {
	SessionToken string
	ExpiresAt    time.Time
	Delivery     DeliveryReport
}

// RefreshTokenRecord is the durable ledger entry for an issued refresh token
type RefreshTokenRecord struct {
	ID        string
	UserID    uint
	TokenHash string
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

// TokenPair is the result of token issuance
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	JTI              string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// AuthResult represents authentication outcome
type AuthResult struct {
	User   *User
	Tokens *TokenPair
}
