package internaldefs

import (
	speakauth "github.com/speaksim/speakauth"
)

// CounterDef defines a public type used by speakauth APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   speakauth.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by speakauth APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   speakauth.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the authentication engine.
var CounterDefs = []CounterDef{
	{ID: speakauth.MetricRegisterSuccess, Name: "speakauth_register_success_total", Help: "Successful account registrations."},
	{ID: speakauth.MetricRegisterDuplicate, Name: "speakauth_register_duplicate_total", Help: "Registration attempts rejected as duplicate."},
	{ID: speakauth.MetricRegisterRateLimited, Name: "speakauth_register_rate_limited_total", Help: "Rate-limited registration attempts."},
	{ID: speakauth.MetricLoginSuccess, Name: "speakauth_login_success_total", Help: "Successful login attempts."},
	{ID: speakauth.MetricLoginFailure, Name: "speakauth_login_failure_total", Help: "Failed login attempts."},
	{ID: speakauth.MetricLoginRateLimited, Name: "speakauth_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: speakauth.MetricValidateSuccess, Name: "speakauth_validate_success_total", Help: "Successful session validations."},
	{ID: speakauth.MetricValidateFailure, Name: "speakauth_validate_failure_total", Help: "Failed session validations."},
	{ID: speakauth.MetricValidateRateLimited, Name: "speakauth_validate_rate_limited_total", Help: "Rate-limited validation attempts."},
	{ID: speakauth.MetricSessionCreated, Name: "speakauth_session_created_total", Help: "Created sessions."},
	{ID: speakauth.MetricSessionInvalidated, Name: "speakauth_session_invalidated_total", Help: "Invalidated sessions."},
	{ID: speakauth.MetricLogout, Name: "speakauth_logout_total", Help: "Single-session logout operations."},
	{ID: speakauth.MetricLogoutAll, Name: "speakauth_logout_all_total", Help: "Logout-all operations."},
	{ID: speakauth.MetricPasswordChangeSuccess, Name: "speakauth_password_change_success_total", Help: "Successful password changes."},
	{ID: speakauth.MetricPasswordChangeInvalidOld, Name: "speakauth_password_change_invalid_old_total", Help: "Password change attempts with invalid old password."},
	{ID: speakauth.MetricPasswordChangeReuseRejected, Name: "speakauth_password_change_reuse_rejected_total", Help: "Password change attempts rejected for reuse."},
	{ID: speakauth.MetricPasswordResetRequest, Name: "speakauth_password_reset_request_total", Help: "Password reset requests."},
	{ID: speakauth.MetricPasswordResetConfirmSuccess, Name: "speakauth_password_reset_confirm_success_total", Help: "Successful password reset confirmations."},
	{ID: speakauth.MetricPasswordResetConfirmFailure, Name: "speakauth_password_reset_confirm_failure_total", Help: "Failed password reset confirmations."},
	{ID: speakauth.MetricEmailVerificationRequest, Name: "speakauth_email_verification_request_total", Help: "Email verification requests."},
	{ID: speakauth.MetricEmailVerificationSuccess, Name: "speakauth_email_verification_success_total", Help: "Successful email verifications."},
	{ID: speakauth.MetricEmailVerificationFailure, Name: "speakauth_email_verification_failure_total", Help: "Failed email verifications."},
	{ID: speakauth.MetricAccountDeactivated, Name: "speakauth_account_deactivated_total", Help: "Account deactivation operations."},
	{ID: speakauth.MetricSweepRemoved, Name: "speakauth_sweep_removed_total", Help: "Expired records removed by the background sweep."},
}

// HistogramDefs is an exported constant or variable used by the authentication engine.
var HistogramDefs = []HistogramDef{
	{ID: speakauth.MetricValidateLatency, Name: "speakauth_validate_latency_seconds", Help: "Validate latency histogram."},
}

// HistogramBounds is an exported constant or variable used by the authentication engine.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is an exported constant or variable used by the authentication engine.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets describes the normalizebuckets operation and its observable behavior.
//
// NormalizeBuckets may return an error when input validation, dependency calls, or security checks fail.
// NormalizeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets describes the cumulativebuckets operation and its observable behavior.
//
// CumulativeBuckets may return an error when input validation, dependency calls, or security checks fail.
// CumulativeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
