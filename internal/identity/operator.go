package identity

import "crypto/subtle"

// Operator holds the platform operator credentials. They come from
// configuration and never touch the user store.
type Operator struct {
	Email    string
	Password string
	Name     string
}

// Configured reports whether operator login is enabled.
func (o Operator) Configured() bool {
	return o.Email != "" && o.Password != ""
}

// Matches compares credentials in constant time.
func (o Operator) Matches(email, password string) bool {
	if !o.Configured() {
		return false
	}
	emailOK := subtle.ConstantTimeCompare([]byte(NormalizeEmail(o.Email)), []byte(NormalizeEmail(email)))
	passOK := subtle.ConstantTimeCompare([]byte(o.Password), []byte(password))
	return emailOK&passOK == 1
}
