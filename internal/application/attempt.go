package application

// Attempt is the tagged input variant fed to the engine. Exactly one
// verifier runs per attempt.
type Attempt interface {
	isAttempt()
}

// PasswordAttempt authenticates by username and plaintext password.
type PasswordAttempt struct {
	Username string
	Password string
}

// BiometricAttempt authenticates by a captured face image (PNG or JPEG).
type BiometricAttempt struct {
	Image []byte
}

// FederationAttempt authenticates by an OAuth2 authorization code plus the
// state issued when the flow started.
type FederationAttempt struct {
	State string
	Code  string
}

func (PasswordAttempt) isAttempt()   {}
func (BiometricAttempt) isAttempt()  {}
func (FederationAttempt) isAttempt() {}
