package user

import "errors"

var (
	// ErrNotFound is returned when no user or session matches.
	ErrNotFound = errors.New("user not found")
	// ErrBackend wraps repository failures.
	ErrBackend = errors.New("user backend unavailable")
	// ErrNoTwoFactor is returned when a user has no TOTP secret configured.
	ErrNoTwoFactor = errors.New("two-factor not configured")
)

// FormError is a user-facing validation failure. Fields names the form
// inputs to highlight.
type FormError struct {
	Message string
	Fields  []string
}

func (e *FormError) Error() string {
	return e.Message
}

// Form errors shown to users. Sign-in failures deliberately collapse into
// UserNameOrPasswordWrong.
var (
	NotRight                = &FormError{Message: "That wasn't correct. Try again."}
	EnterUserName           = &FormError{Message: "Please provide a username.", Fields: []string{"user_name"}}
	EnterPassword           = &FormError{Message: "Please enter a password.", Fields: []string{"password"}}
	UserNameOrPasswordWrong = &FormError{Message: "Your username or password is incorrect.", Fields: []string{"user_name", "password"}}
	InvalidUserName         = &FormError{Message: "Usernames are 4 to 16 letters, digits or underscores.", Fields: []string{"user_name"}}
	InvalidPassword         = &FormError{Message: "Passwords are 10 to 128 letters, digits or symbols.", Fields: []string{"password"}}
	UserNameTaken           = &FormError{Message: "That username is already taken.", Fields: []string{"user_name"}}
	PasswordTooWeak         = &FormError{Message: "Your password is too weak.", Fields: []string{"password"}}
	HashingFailed           = &FormError{Message: "Something went wrong. Try again later."}
)
