package authapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/MrEthical07/goPortal/pipeline"
	"github.com/MrEthical07/goPortal/session"
	"github.com/MrEthical07/goPortal/userapi"
)

type tokenData struct {
	User         userapi.User `json:"user"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}

// session returns nil when the payload carries no access token.
func (d *tokenData) session() *session.Session {
	if d == nil || d.AccessToken == "" {
		return nil
	}
	return d.User.Session(d.AccessToken, d.RefreshToken)
}

type credentials struct {
	Email    string       `json:"email"`
	Password string       `json:"password"`
	Role     session.Role `json:"role,omitempty"`
}

type emailBody struct {
	Email string `json:"email"`
}

// RegisterInput is the sign-up form. StudentCode is optional.
type RegisterInput struct {
	StudentCode     string `json:"studentCode,omitempty"`
	FullName        string `json:"fullName"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (in RegisterInput) validate() error {
	if strings.TrimSpace(in.FullName) == "" {
		return invalid("fullName", "Full name is required")
	}
	if err := requireEmail(in.Email); err != nil {
		return err
	}
	if in.Password != in.ConfirmPassword {
		return invalid("confirmPassword", "Passwords do not match!")
	}
	if err := validateStudentCode(in.StudentCode); err != nil {
		return err
	}
	return validatePassword(in.Password, in.ConfirmPassword)
}

// RegisterResult is the outcome of Register. Session is nil while the
// account waits for OTP verification.
type RegisterResult struct {
	User        userapi.User
	Session     *session.Session
	OTPRequired bool
	Message     string
}

// Register creates an account. When the server answers with tokens the
// session is saved; otherwise OTPRequired is set and VerifyOTP completes
// the sign-up.
func (c *Client) Register(ctx context.Context, in RegisterInput) (RegisterResult, error) {
	if err := in.validate(); err != nil {
		return RegisterResult{}, err
	}

	res, err := c.register(ctx, in)
	c.report(ctx, Outcome{Op: OpRegister, UserID: res.User.UserID, Email: in.Email, Err: err})
	return res, err
}

func (c *Client) register(ctx context.Context, in RegisterInput) (RegisterResult, error) {
	env, err := pipeline.Call[*tokenData](ctx, c.p, pipeline.Post("/auth/register", in))
	if err != nil {
		return RegisterResult{}, err
	}
	data, err := env.Result("Registration failed")
	if err != nil {
		return RegisterResult{}, err
	}

	res := RegisterResult{Message: env.Message}
	if data != nil {
		res.User = data.User
	}
	sess := data.session()
	if sess == nil {
		res.OTPRequired = true
		return res, nil
	}
	if err := c.store.Save(ctx, sess); err != nil {
		return RegisterResult{}, err
	}
	res.Session = sess
	return res, nil
}

// Login signs in with email and password and saves the session.
func (c *Client) Login(ctx context.Context, email, password string) (*session.Session, error) {
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}
	return c.signIn(ctx, "/auth/login", credentials{Email: email, Password: password})
}

// AdminLecturerLogin signs in through the staff endpoint, which also checks
// that the account holds role.
func (c *Client) AdminLecturerLogin(ctx context.Context, email, password string, role session.Role) (*session.Session, error) {
	if err := validateCredentials(email, password); err != nil {
		return nil, err
	}
	role = session.ParseRole(string(role))
	if role != session.RoleAdmin && role != session.RoleLecturer {
		return nil, invalid("role", "Role must be Admin or Lecturer")
	}
	return c.signIn(ctx, "/auth/admin-lecturer-login", credentials{Email: email, Password: password, Role: role})
}

func validateCredentials(email, password string) error {
	if err := requireEmail(email); err != nil {
		return err
	}
	if password == "" {
		return invalid("password", "Password is required")
	}
	return nil
}

func (c *Client) signIn(ctx context.Context, path string, body credentials) (*session.Session, error) {
	sess, err := c.exchange(ctx, pipeline.Post(path, body), "Login failed")
	out := Outcome{Op: OpLogin, Email: body.Email, Err: err}
	if sess != nil {
		out.UserID = sess.UserID
	}
	c.report(ctx, out)
	return sess, err
}

// exchange runs a call answering with a token payload and saves the session.
func (c *Client) exchange(ctx context.Context, req *pipeline.Request, fallback string) (*session.Session, error) {
	env, err := pipeline.Call[*tokenData](ctx, c.p, req)
	if err != nil {
		return nil, err
	}
	data, err := env.Result(fallback)
	if err != nil {
		return nil, err
	}
	sess := data.session()
	if sess == nil {
		return nil, &pipeline.Error{
			StatusCode: http.StatusOK,
			Message:    fallback,
			Kind:       pipeline.KindResponse,
			Err:        pipeline.ErrUnsuccessful,
		}
	}
	if err := c.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Portal is a login tab.
type Portal string

const (
	// PortalStudent accepts Student accounts only.
	PortalStudent Portal = "student"
	// PortalLecturer accepts Lecturer and Admin accounts.
	PortalLecturer Portal = "lecturer"
)

// PortalError is returned by PortalLogin for an account on the wrong tab.
type PortalError struct {
	Portal  Portal
	Role    session.Role
	Message string
}

func (e *PortalError) Error() string {
	return e.Message
}

func (e *PortalError) Is(target error) bool {
	return target == ErrWrongPortal
}

// PortalLogin signs in through a login tab. Staff accounts are refused on
// the student tab and student accounts on the lecturer tab; a refused
// session is not kept.
func (c *Client) PortalLogin(ctx context.Context, portal Portal, email, password string) (*session.Session, error) {
	sess, err := c.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}

	var msg string
	switch {
	case portal == PortalStudent && !sess.Role.Is(session.RoleStudent):
		msg = "This account is not a student account. Please use the Lecturer Portal tab."
	case portal == PortalLecturer && sess.Role.Is(session.RoleStudent):
		msg = "Student accounts must use the Student Portal tab on the left."
	default:
		return sess, nil
	}

	if cerr := c.p.ClearSession(ctx, pipeline.ResetLogout); cerr != nil {
		c.logger.Warn().Err(cerr).Msg("session clear failed")
	}
	return nil, &PortalError{Portal: portal, Role: sess.Role, Message: msg}
}

// Refresh exchanges the refresh token for a new access token outside the
// 401 path. On failure the user is logged out.
func (c *Client) Refresh(ctx context.Context) (*session.Session, error) {
	_, err := c.p.ForceRefresh(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("manual token refresh failed")
		if lerr := c.Logout(ctx); lerr != nil {
			c.logger.Warn().Err(lerr).Msg("logout after failed refresh")
		}
		c.report(ctx, Outcome{Op: OpRefresh, Err: err})
		return nil, err
	}

	sess := c.store.Load(ctx)
	out := Outcome{Op: OpRefresh}
	if sess != nil {
		out.UserID = sess.UserID
		out.Email = sess.Email
	}
	c.report(ctx, out)
	return sess, nil
}

// Logout tells the server to end the session and clears the local record.
// The server call is best effort; the local session is always removed.
func (c *Client) Logout(ctx context.Context) error {
	sess := c.store.Load(ctx)
	out := Outcome{Op: OpLogout}
	if sess != nil {
		out.UserID = sess.UserID
		out.Email = sess.Email
		if _, err := c.p.Execute(ctx, pipeline.Post("/auth/logout", struct{}{})); err != nil {
			c.logger.Debug().Err(err).Msg("logout call failed")
		}
	}

	out.Err = c.p.ClearSession(ctx, pipeline.ResetLogout)
	c.report(ctx, out)
	return out.Err
}

// ForgotPassword asks the server to email a reset OTP.
func (c *Client) ForgotPassword(ctx context.Context, email string) (string, error) {
	if err := requireEmail(email); err != nil {
		return "", err
	}
	return c.withCooldown(ctx, email, func() (string, error) {
		return c.message(ctx, pipeline.Post("/auth/forgot-password", emailBody{Email: email}), "Failed to send reset code.")
	})
}

// ResendOTP asks the server to email a new OTP.
func (c *Client) ResendOTP(ctx context.Context, email string) (string, error) {
	if err := requireEmail(email); err != nil {
		return "", err
	}
	return c.withCooldown(ctx, email, func() (string, error) {
		return c.message(ctx, pipeline.Post("/auth/resend-otp", emailBody{Email: email}), "Failed to resend OTP")
	})
}

// ResetPasswordInput is the second step of password recovery.
type ResetPasswordInput struct {
	Email           string
	OTP             string
	NewPassword     string
	ConfirmPassword string
}

// ResetPassword sets a new password using an emailed OTP. Spaces in the
// OTP are ignored.
func (c *Client) ResetPassword(ctx context.Context, in ResetPasswordInput) (string, error) {
	otp := cleanOTP(in.OTP)
	if err := requireEmail(in.Email); err != nil {
		return "", err
	}
	if err := validateOTP(otp); err != nil {
		return "", err
	}
	if err := validatePassword(in.NewPassword, in.ConfirmPassword); err != nil {
		return "", err
	}

	body := struct {
		Email       string `json:"email"`
		OTP         string `json:"otp"`
		NewPassword string `json:"newPassword"`
	}{Email: in.Email, OTP: otp, NewPassword: in.NewPassword}
	msg, err := c.message(ctx, pipeline.Post("/auth/reset-password", body), "Failed to reset password.")
	c.report(ctx, Outcome{Op: OpResetPassword, Email: in.Email, Err: err})
	return msg, err
}

// VerifyOTP confirms a registration. When the server answers with tokens
// the session is saved and returned; otherwise the session is nil.
func (c *Client) VerifyOTP(ctx context.Context, email, otp string) (*session.Session, error) {
	otp = cleanOTP(otp)
	if err := requireEmail(email); err != nil {
		return nil, err
	}
	if err := validateOTP(otp); err != nil {
		return nil, err
	}

	body := struct {
		Email string `json:"email"`
		OTP   string `json:"otp"`
	}{Email: email, OTP: otp}
	sess, err := c.verify(ctx, pipeline.Post("/auth/verify-otp", body))

	out := Outcome{Op: OpVerifyOTP, Email: email, Err: err}
	if sess != nil {
		out.UserID = sess.UserID
	}
	c.report(ctx, out)
	return sess, err
}

func (c *Client) verify(ctx context.Context, req *pipeline.Request) (*session.Session, error) {
	env, err := pipeline.Call[*tokenData](ctx, c.p, req)
	if err != nil {
		return nil, err
	}
	data, err := env.Result("Invalid OTP. Please try again.")
	if err != nil {
		return nil, err
	}
	sess := data.session()
	if sess == nil {
		return nil, nil
	}
	if err := c.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// ChangePasswordInput is the signed-in password change form.
type ChangePasswordInput struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

// ChangePassword changes the signed-in user's password.
func (c *Client) ChangePassword(ctx context.Context, in ChangePasswordInput) (string, error) {
	if err := validateChangePassword(in.CurrentPassword, in.NewPassword, in.ConfirmPassword); err != nil {
		return "", err
	}

	msg, err := c.message(ctx, pipeline.Post("/auth/change-password", in), "Failed to change password")
	out := Outcome{Op: OpChangePassword, Err: err}
	if sess := c.store.Load(ctx); sess != nil {
		out.UserID = sess.UserID
		out.Email = sess.Email
	}
	c.report(ctx, out)
	return msg, err
}

// message runs a call whose only useful payload is the server message.
func (c *Client) message(ctx context.Context, req *pipeline.Request, fallback string) (string, error) {
	env, err := pipeline.Call[json.RawMessage](ctx, c.p, req)
	if err != nil {
		return "", err
	}
	if _, err := env.Result(fallback); err != nil {
		return "", err
	}
	return env.Message, nil
}
