package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/MrEthical07/goPortal/authapi"
	"github.com/MrEthical07/goPortal/guard"
	"github.com/MrEthical07/goPortal/jwt"
	"github.com/MrEthical07/goPortal/session"
)

func runLogin(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "login")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	portal := fs.String("portal", "", "login tab: student or lecturer")
	role := fs.String("role", "", "sign in through the staff endpoint as Admin or Lecturer")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "email", "password"); err != nil {
		return err
	}

	var (
		sess *session.Session
		err  error
	)
	auth := a.client.Auth()
	switch {
	case *role != "":
		sess, err = auth.AdminLecturerLogin(ctx, *email, *password, session.Role(*role))
	case *portal != "":
		p := authapi.Portal(*portal)
		if p != authapi.PortalStudent && p != authapi.PortalLecturer {
			fmt.Fprintf(a.errOut, "login: -portal must be student or lecturer\n")
			return errUsage
		}
		sess, err = auth.PortalLogin(ctx, p, *email, *password)
	default:
		sess, err = auth.Login(ctx, *email, *password)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "signed in as %s (%s)\n", sess.Email, sess.Role)
	return nil
}

func runLogout(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "logout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.client.Auth().Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "signed out")
	return nil
}

type whoami struct {
	*session.Session
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	Landing   string     `json:"landing"`
}

func runWhoami(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "whoami")
	if err := fs.Parse(args); err != nil {
		return err
	}
	sess := a.client.CurrentUser(ctx)
	if sess == nil {
		fmt.Fprintln(a.out, "not signed in")
		return nil
	}

	out := whoami{Session: sess, Landing: guard.Landing(guard.Classify(sess))}
	if exp := jwt.ExpiresAt(sess.AccessToken); !exp.IsZero() {
		out.ExpiresAt = &exp
	}
	return printJSON(a, out)
}

func runRefresh(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "refresh")
	if err := fs.Parse(args); err != nil {
		return err
	}
	sess, err := a.client.Auth().Refresh(ctx)
	if err != nil {
		return err
	}
	if sess == nil {
		fmt.Fprintln(a.out, "token refreshed")
		return nil
	}
	if exp := jwt.ExpiresAt(sess.AccessToken); !exp.IsZero() {
		fmt.Fprintf(a.out, "token refreshed, expires %s\n", exp.Format(time.RFC3339))
		return nil
	}
	fmt.Fprintln(a.out, "token refreshed")
	return nil
}

func runRegister(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "register")
	var in authapi.RegisterInput
	fs.StringVar(&in.FullName, "name", "", "full name")
	fs.StringVar(&in.Email, "email", "", "account email")
	fs.StringVar(&in.Password, "password", "", "password")
	fs.StringVar(&in.ConfirmPassword, "confirm", "", "password confirmation; defaults to -password")
	fs.StringVar(&in.StudentCode, "code", "", "student code such as SE123456")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "name", "email", "password"); err != nil {
		return err
	}
	if in.ConfirmPassword == "" {
		in.ConfirmPassword = in.Password
	}

	res, err := a.client.Auth().Register(ctx, in)
	if err != nil {
		return err
	}
	if res.OTPRequired {
		fmt.Fprintf(a.out, "check %s for a verification code, then run: portalctl verify-otp -email %s -otp <code>\n", in.Email, in.Email)
		return nil
	}
	fmt.Fprintf(a.out, "registered and signed in as %s\n", res.Session.Email)
	return nil
}

func runVerifyOTP(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "verify-otp")
	email := fs.String("email", "", "account email")
	otp := fs.String("otp", "", "6-digit code")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "email", "otp"); err != nil {
		return err
	}
	sess, err := a.client.Auth().VerifyOTP(ctx, *email, *otp)
	if err != nil {
		return err
	}
	if sess == nil {
		fmt.Fprintln(a.out, "account verified; sign in with: portalctl login")
		return nil
	}
	fmt.Fprintf(a.out, "account verified, signed in as %s\n", sess.Email)
	return nil
}

func runResendOTP(ctx context.Context, a *app, args []string) error {
	return emailCommand(ctx, a, "resend-otp", args, a.client.Auth().ResendOTP)
}

func runForgotPassword(ctx context.Context, a *app, args []string) error {
	return emailCommand(ctx, a, "forgot-password", args, a.client.Auth().ForgotPassword)
}

func emailCommand(ctx context.Context, a *app, name string, args []string, send func(context.Context, string) (string, error)) error {
	fs := newFlags(a, name)
	email := fs.String("email", "", "account email")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "email"); err != nil {
		return err
	}
	msg, err := send(ctx, *email)
	if err != nil {
		return err
	}
	printMessage(a, msg, "code sent")
	return nil
}

func runResetPassword(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "reset-password")
	var in authapi.ResetPasswordInput
	fs.StringVar(&in.Email, "email", "", "account email")
	fs.StringVar(&in.OTP, "otp", "", "6-digit code from the reset email")
	fs.StringVar(&in.NewPassword, "password", "", "new password")
	fs.StringVar(&in.ConfirmPassword, "confirm", "", "confirmation; defaults to -password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "email", "otp", "password"); err != nil {
		return err
	}
	if in.ConfirmPassword == "" {
		in.ConfirmPassword = in.NewPassword
	}
	msg, err := a.client.Auth().ResetPassword(ctx, in)
	if err != nil {
		return err
	}
	printMessage(a, msg, "password reset")
	return nil
}

func runChangePassword(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "change-password")
	var in authapi.ChangePasswordInput
	fs.StringVar(&in.CurrentPassword, "current", "", "current password")
	fs.StringVar(&in.NewPassword, "new", "", "new password")
	fs.StringVar(&in.ConfirmPassword, "confirm", "", "confirmation; defaults to -new")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := required(fs, "current", "new"); err != nil {
		return err
	}
	if in.ConfirmPassword == "" {
		in.ConfirmPassword = in.NewPassword
	}
	msg, err := a.client.Auth().ChangePassword(ctx, in)
	if err != nil {
		return err
	}
	printMessage(a, msg, "password changed")
	return nil
}

func runRoute(ctx context.Context, a *app, args []string) error {
	fs := newFlags(a, "route")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(a.errOut, "usage: portalctl route <path>")
		return errUsage
	}
	d := a.client.Decide(ctx, fs.Arg(0))
	if d.Allow {
		fmt.Fprintln(a.out, "allow")
		return nil
	}
	fmt.Fprintf(a.out, "redirect %s\n", d.Redirect)
	return nil
}

func printMessage(a *app, msg, fallback string) {
	if msg == "" {
		msg = fallback
	}
	fmt.Fprintln(a.out, msg)
}

func printJSON(a *app, v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
