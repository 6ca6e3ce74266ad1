package models

// AuthEvent names a point in the login lifecycle at which observers run.
type AuthEvent int

const (
	BeforeLogin AuthEvent = iota + 1
	LoggedIn
	BadLogin
)

func (e AuthEvent) String() string {
	switch e {
	case BeforeLogin:
		return "before_login"
	case LoggedIn:
		return "logged_in"
	case BadLogin:
		return "bad_login"
	default:
		return "unknown"
	}
}

// Valid reports whether e is one of the defined events.
func (e AuthEvent) Valid() bool {
	return e >= BeforeLogin && e <= BadLogin
}
