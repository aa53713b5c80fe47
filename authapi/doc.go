// Package authapi is the typed client for the portal's /auth endpoints.
//
// Successful sign-in flows (login, OTP verification, registration without
// OTP) persist the returned session through the pipeline's session store;
// Logout always clears it, even when the server call fails.
//
// Input is validated before any network call. Violations are reported as
// *ValidationError and never reach the server.
//
// Resend-style operations (ForgotPassword, ResendOTP) share a per-email
// cooldown, 60 seconds by default, reported as *CooldownError.
package authapi
