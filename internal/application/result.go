package application

// FailureReason classifies why an authentication attempt did not resolve to
// an identity. These are ordinary outcomes reported to the caller; they are
// never collapsed into a different flow or raised as errors.
type FailureReason string

const (
	ReasonInvalidCredentials   FailureReason = "invalid_credentials"
	ReasonDuplicateIdentity    FailureReason = "duplicate_identity"
	ReasonNoFaceDetected       FailureReason = "no_face_detected"
	ReasonNoMatch              FailureReason = "no_match"
	ReasonNoEnrolledBiometrics FailureReason = "no_enrolled_biometrics"
	ReasonProviderError        FailureReason = "provider_error"
)

// Result is the uniform outcome of every authentication and registration
// operation: either a bound identity (Success true) or a typed failure.
// Internal faults (storage unreachable, corrupt rows) travel as Go errors
// alongside, never inside a Result.
type Result struct {
	Success     bool          `json:"success"`
	Username    string        `json:"username,omitempty"`
	Email       string        `json:"email,omitempty"`
	DisplayName string        `json:"display_name,omitempty"`
	Confidence  float64       `json:"confidence,omitempty"`
	Reason      FailureReason `json:"reason,omitempty"`
}

func success(username, email, displayName string) Result {
	if displayName == "" {
		displayName = username
	}
	return Result{Success: true, Username: username, Email: email, DisplayName: displayName}
}

func failure(reason FailureReason) Result {
	return Result{Reason: reason}
}
