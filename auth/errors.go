package auth

import "fmt"

type (
	// Conflict is returned by Signup when the e-mail is already registered
	Conflict struct {
		Email string
	}

	// NotFound is returned when no user matches the given e-mail or id
	NotFound struct {
		Email string
		ID    int64
	}

	InvalidCredentials struct{}

	// SignupRejected is returned when the signup policy refuses an e-mail
	SignupRejected struct {
		Reason string
	}
)

func (c Conflict) Error() string {
	return "email in use"
}

func (n NotFound) Error() string {
	if n.Email != "" {
		return fmt.Sprintf("user with email %v not found", n.Email)
	}
	return fmt.Sprintf("user %v not found", n.ID)
}

func (InvalidCredentials) Error() string {
	return "invalid credentials"
}

func (s SignupRejected) Error() string {
	if s.Reason == "" {
		return "signup rejected"
	}
	return fmt.Sprintf("signup rejected: %v", s.Reason)
}
