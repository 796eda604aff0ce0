package domain

import (
	"net/mail"
	"strings"
	"time"
)

// User represents an authenticated identity in the platform.
type User struct {
	ID           string            `json:"id"`
	Email        string            `json:"email,omitempty"`
	PasswordHash string            `json:"-"`
	Role         string            `json:"role"`
	Status       string            `json:"status"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

func (u *User) IsActive() bool {
	return u != nil && u.Status == "active"
}

// Profile is the row stored in the profiles table, keyed by user id.
type Profile struct {
	ID        string    `json:"id"`
	Username  string    `json:"username,omitempty"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Bio       string    `json:"bio,omitempty"`
	Role      string    `json:"role,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayName prefers the full name, then the username.
func (p *Profile) DisplayName() string {
	if p == nil {
		return "User"
	}
	full := strings.TrimSpace(p.FirstName + " " + p.LastName)
	switch {
	case full != "":
		return full
	case p.Username != "":
		return p.Username
	default:
		return "User"
	}
}

const MinPasswordLength = 6

// Credentials is the sign-in/sign-up form payload.
type Credentials struct {
	Email    string            `json:"email"`
	Password string            `json:"password"`
	Confirm  string            `json:"confirm_password,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ValidateSignIn checks the fields needed for a password sign-in.
func (c Credentials) ValidateSignIn() error {
	if err := validateEmail(c.Email); err != nil {
		return err
	}
	if c.Password == "" {
		return Invalid("password", "required")
	}
	return nil
}

// ValidateSignUp adds the password length and confirmation rules.
func (c Credentials) ValidateSignUp() error {
	if err := validateEmail(c.Email); err != nil {
		return err
	}
	if len(c.Password) < MinPasswordLength {
		return Invalid("password", "must be at least 6 characters")
	}
	if c.Confirm != "" && c.Confirm != c.Password {
		return Invalid("confirm_password", "passwords do not match")
	}
	return nil
}

func validateEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return Invalid("email", "required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != strings.TrimSpace(email) {
		return Invalid("email", "invalid address")
	}
	return nil
}
