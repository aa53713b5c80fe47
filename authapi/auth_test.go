package authapi_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goPortal/authapi"
	"github.com/MrEthical07/goPortal/internal/limiters"
	"github.com/MrEthical07/goPortal/internal/portaltest"
	"github.com/MrEthical07/goPortal/jwt"
	"github.com/MrEthical07/goPortal/pipeline"
	"github.com/MrEthical07/goPortal/session"
	"github.com/MrEthical07/goPortal/userapi"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const password = "secret123"

func newClient(t *testing.T, api *portaltest.Server, opts ...authapi.Option) (*authapi.Client, *session.Store) {
	t.Helper()
	store := session.NewStore(nil)
	cfg := pipeline.DefaultConfig()
	cfg.BaseURL = api.BaseURL()
	cfg.Timeout = 5 * time.Second
	p, err := pipeline.New(cfg, store)
	if err != nil {
		t.Fatalf("pipeline.New() error = %v", err)
	}
	return authapi.New(p, opts...), store
}

func addUser(api *portaltest.Server, email string, role session.Role) userapi.User {
	return api.AddUser(userapi.User{FullName: "Test " + string(role), Email: email, Role: role}, password)
}

func TestLoginSavesSession(t *testing.T) {
	api := portaltest.New(t)
	u := addUser(api, "student@fpt.edu.vn", session.RoleStudent)
	client, store := newClient(t, api)

	sess, err := client.Login(context.Background(), "student@fpt.edu.vn", password)
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if sess.UserID != u.UserID || sess.Role != session.RoleStudent || sess.RefreshToken == "" {
		t.Fatalf("unexpected session: %+v", sess)
	}

	claims, err := jwt.Inspect(sess.AccessToken)
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if claims.UserID != u.UserID || claims.Role != "Student" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	stored := client.CurrentUser(context.Background())
	if stored == nil || stored.AccessToken != sess.AccessToken {
		t.Fatalf("session not persisted: %+v", stored)
	}
	if store.Load(context.Background()) == nil {
		t.Fatalf("store empty after login")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	api := portaltest.New(t)
	addUser(api, "student@fpt.edu.vn", session.RoleStudent)
	client, store := newClient(t, api)

	_, err := client.Login(context.Background(), "student@fpt.edu.vn", "wrong-password")
	var perr *pipeline.Error
	if !errors.As(err, &perr) {
		t.Fatalf("expected *pipeline.Error, got %T %v", err, err)
	}
	if perr.StatusCode != http.StatusUnauthorized || perr.Message != "Invalid email or password" {
		t.Fatalf("unexpected error: %+v", perr)
	}
	if store.Load(context.Background()) != nil {
		t.Fatalf("failed login stored a session")
	}
	if api.RefreshCalls() != 0 {
		t.Fatalf("guest 401 triggered refresh")
	}
}

func TestLoginValidation(t *testing.T) {
	api := portaltest.New(t)
	client, _ := newClient(t, api)

	_, err := client.Login(context.Background(), " ", password)
	var verr *authapi.ValidationError
	if !errors.As(err, &verr) || verr.Field != "email" {
		t.Fatalf("expected email validation error, got %v", err)
	}
	if _, err := client.Login(context.Background(), "a@fpt.edu.vn", ""); !errors.Is(err, authapi.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPortalLogin(t *testing.T) {
	api := portaltest.New(t)
	addUser(api, "student@fpt.edu.vn", session.RoleStudent)
	addUser(api, "lecturer@fpt.edu.vn", session.RoleLecturer)
	addUser(api, "admin@fpt.edu.vn", session.RoleAdmin)
	ctx := context.Background()

	cases := []struct {
		portal  authapi.Portal
		email   string
		allowed bool
	}{
		{authapi.PortalStudent, "student@fpt.edu.vn", true},
		{authapi.PortalStudent, "lecturer@fpt.edu.vn", false},
		{authapi.PortalStudent, "admin@fpt.edu.vn", false},
		{authapi.PortalLecturer, "student@fpt.edu.vn", false},
		{authapi.PortalLecturer, "lecturer@fpt.edu.vn", true},
		{authapi.PortalLecturer, "admin@fpt.edu.vn", true},
	}
	for _, tc := range cases {
		client, store := newClient(t, api)
		sess, err := client.PortalLogin(ctx, tc.portal, tc.email, password)
		if tc.allowed {
			if err != nil || sess == nil {
				t.Fatalf("%s on %s: unexpected error %v", tc.email, tc.portal, err)
			}
			continue
		}
		if !errors.Is(err, authapi.ErrWrongPortal) {
			t.Fatalf("%s on %s: expected ErrWrongPortal, got %v", tc.email, tc.portal, err)
		}
		if store.Load(ctx) != nil {
			t.Fatalf("%s on %s: refused session kept", tc.email, tc.portal)
		}
	}
}

func TestAdminLecturerLogin(t *testing.T) {
	api := portaltest.New(t)
	addUser(api, "admin@fpt.edu.vn", session.RoleAdmin)
	addUser(api, "student@fpt.edu.vn", session.RoleStudent)
	client, _ := newClient(t, api)
	ctx := context.Background()

	sess, err := client.AdminLecturerLogin(ctx, "admin@fpt.edu.vn", password, "admin")
	if err != nil || sess.Role != session.RoleAdmin {
		t.Fatalf("AdminLecturerLogin() = %+v, %v", sess, err)
	}

	_, err = client.AdminLecturerLogin(ctx, "student@fpt.edu.vn", password, session.RoleStudent)
	if !errors.Is(err, authapi.ErrValidation) {
		t.Fatalf("expected role validation error, got %v", err)
	}

	other, _ := newClient(t, api)
	_, err = other.AdminLecturerLogin(ctx, "student@fpt.edu.vn", password, session.RoleLecturer)
	var perr *pipeline.Error
	if !errors.As(err, &perr) || perr.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", err)
	}
}

func TestRegisterWithOTP(t *testing.T) {
	api := portaltest.New(t)
	api.SetRequireOTP(true)
	client, store := newClient(t, api)
	ctx := context.Background()

	res, err := client.Register(ctx, authapi.RegisterInput{
		StudentCode:     "SE123456",
		FullName:        "Tran Thi B",
		Email:           "b@fpt.edu.vn",
		Password:        password,
		ConfirmPassword: password,
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if !res.OTPRequired || res.Session != nil || res.User.UserID == "" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if store.Load(ctx) != nil {
		t.Fatalf("session stored before OTP verification")
	}

	if _, err := client.VerifyOTP(ctx, "b@fpt.edu.vn", "000000"); err == nil {
		t.Fatalf("wrong OTP accepted")
	}

	sess, err := client.VerifyOTP(ctx, "b@fpt.edu.vn", "123 456")
	if err != nil {
		t.Fatalf("VerifyOTP() error = %v", err)
	}
	if sess == nil || sess.UserID != res.User.UserID || sess.StudentCode != "SE123456" {
		t.Fatalf("unexpected session: %+v", sess)
	}
	if got := store.Load(ctx); got == nil || got.AccessToken != sess.AccessToken {
		t.Fatalf("verified session not stored")
	}
}

func TestRegisterWithoutOTP(t *testing.T) {
	api := portaltest.New(t)
	client, store := newClient(t, api)

	res, err := client.Register(context.Background(), authapi.RegisterInput{
		FullName:        "Le Van C",
		Email:           "c@fpt.edu.vn",
		Password:        password,
		ConfirmPassword: password,
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if res.OTPRequired || res.Session == nil {
		t.Fatalf("unexpected result: %+v", res)
	}
	if store.Load(context.Background()) == nil {
		t.Fatalf("session not stored")
	}
}

func TestRegisterValidation(t *testing.T) {
	api := portaltest.New(t)
	client, _ := newClient(t, api)

	valid := authapi.RegisterInput{FullName: "A", Email: "a@fpt.edu.vn", Password: password, ConfirmPassword: password}
	cases := map[string]func(*authapi.RegisterInput){
		"mismatch":    func(in *authapi.RegisterInput) { in.ConfirmPassword = "other123" },
		"code":        func(in *authapi.RegisterInput) { in.StudentCode = "SE12" },
		"short":       func(in *authapi.RegisterInput) { in.Password, in.ConfirmPassword = "abc", "abc" },
		"name":        func(in *authapi.RegisterInput) { in.FullName = "" },
		"email":       func(in *authapi.RegisterInput) { in.Email = "" },
		"lower code":  func(in *authapi.RegisterInput) { in.StudentCode = "se123456" },
		"admin width": func(in *authapi.RegisterInput) { in.StudentCode = "AD12345" },
	}
	for name, mutate := range cases {
		in := valid
		mutate(&in)
		if _, err := client.Register(context.Background(), in); !errors.Is(err, authapi.ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}

	in := valid
	in.StudentCode = "AD1234"
	if _, err := client.Register(context.Background(), in); err != nil {
		t.Fatalf("admin code rejected: %v", err)
	}
}

func TestLogoutAlwaysClears(t *testing.T) {
	api := portaltest.New(t)
	addUser(api, "student@fpt.edu.vn", session.RoleStudent)
	client, store := newClient(t, api)
	ctx := context.Background()

	if _, err := client.Login(ctx, "student@fpt.edu.vn", password); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if err := client.Logout(ctx); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if api.Logouts() != 1 {
		t.Fatalf("logout calls = %d, want 1", api.Logouts())
	}
	if store.Load(ctx) != nil {
		t.Fatalf("session kept after logout")
	}

	if _, err := client.Login(ctx, "student@fpt.edu.vn", password); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	api.Close()
	if err := client.Logout(ctx); err != nil {
		t.Fatalf("Logout() with server down error = %v", err)
	}
	if store.Load(ctx) != nil {
		t.Fatalf("session kept after offline logout")
	}
}

func TestManualRefresh(t *testing.T) {
	api := portaltest.New(t)
	addUser(api, "student@fpt.edu.vn", session.RoleStudent)
	client, store := newClient(t, api)
	ctx := context.Background()

	before, err := client.Login(ctx, "student@fpt.edu.vn", password)
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	after, err := client.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if after.AccessToken == before.AccessToken || after.RefreshToken != before.RefreshToken {
		t.Fatalf("refresh did not rotate only the access token")
	}
	if api.RefreshCalls() != 1 {
		t.Fatalf("refresh calls = %d, want 1", api.RefreshCalls())
	}

	api.RevokeRefreshTokens()
	if _, err := client.Refresh(ctx); !errors.Is(err, pipeline.ErrRefreshFailed) {
		t.Fatalf("expected ErrRefreshFailed, got %v", err)
	}
	if store.Load(ctx) != nil {
		t.Fatalf("failed refresh kept the session")
	}
}

func TestExpiredTokenRecoveredTransparently(t *testing.T) {
	api := portaltest.New(t)
	addUser(api, "student@fpt.edu.vn", session.RoleStudent)
	client, store := newClient(t, api)
	ctx := context.Background()

	before, err := client.Login(ctx, "student@fpt.edu.vn", password)
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	api.ExpireAccessTokens()

	_, err = client.ChangePassword(ctx, authapi.ChangePasswordInput{
		CurrentPassword: password,
		NewPassword:     "longer-secret",
		ConfirmPassword: "longer-secret",
	})
	if err != nil {
		t.Fatalf("ChangePassword() error = %v", err)
	}
	if api.RefreshCalls() != 1 {
		t.Fatalf("refresh calls = %d, want 1", api.RefreshCalls())
	}
	if got := store.Load(ctx); got == nil || got.AccessToken == before.AccessToken {
		t.Fatalf("stored access token not replaced")
	}
	if api.Password("student@fpt.edu.vn") != "longer-secret" {
		t.Fatalf("password not changed on server")
	}
}

func TestChangePasswordValidation(t *testing.T) {
	api := portaltest.New(t)
	client, _ := newClient(t, api)
	ctx := context.Background()

	cases := []authapi.ChangePasswordInput{
		{CurrentPassword: "", NewPassword: "longer-secret", ConfirmPassword: "longer-secret"},
		{CurrentPassword: password, NewPassword: "short", ConfirmPassword: "short"},
		{CurrentPassword: password, NewPassword: "longer-secret", ConfirmPassword: "longer-secreT"},
	}
	for i, in := range cases {
		if _, err := client.ChangePassword(ctx, in); !errors.Is(err, authapi.ErrValidation) {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
}

func TestForgotAndResetPassword(t *testing.T) {
	api := portaltest.New(t)
	addUser(api, "student@fpt.edu.vn", session.RoleStudent)
	client, _ := newClient(t, api)
	ctx := context.Background()

	msg, err := client.ForgotPassword(ctx, "student@fpt.edu.vn")
	if err != nil {
		t.Fatalf("ForgotPassword() error = %v", err)
	}
	if msg != "OTP sent to your email" {
		t.Fatalf("message = %q", msg)
	}

	_, err = client.ResendOTP(ctx, "Student@fpt.edu.vn")
	var cerr *authapi.CooldownError
	if !errors.As(err, &cerr) || !errors.Is(err, authapi.ErrCooldown) {
		t.Fatalf("expected cooldown, got %v", err)
	}
	if cerr.Remaining <= 0 || cerr.Remaining > authapi.ResendCooldown {
		t.Fatalf("remaining = %v", cerr.Remaining)
	}

	_, err = client.ResetPassword(ctx, authapi.ResetPasswordInput{
		Email:           "student@fpt.edu.vn",
		OTP:             "12 34 56",
		NewPassword:     "new-secret",
		ConfirmPassword: "new-secret",
	})
	if err != nil {
		t.Fatalf("ResetPassword() error = %v", err)
	}
	if _, err := client.Login(ctx, "student@fpt.edu.vn", "new-secret"); err != nil {
		t.Fatalf("Login() with new password error = %v", err)
	}
}

func TestResetPasswordValidation(t *testing.T) {
	api := portaltest.New(t)
	client, _ := newClient(t, api)

	cases := []authapi.ResetPasswordInput{
		{Email: "a@fpt.edu.vn", OTP: "12345", NewPassword: password, ConfirmPassword: password},
		{Email: "a@fpt.edu.vn", OTP: "12a456", NewPassword: password, ConfirmPassword: password},
		{Email: "a@fpt.edu.vn", OTP: "123456", NewPassword: password, ConfirmPassword: "other"},
		{Email: "a@fpt.edu.vn", OTP: "123456", NewPassword: "abc", ConfirmPassword: "abc"},
	}
	for i, in := range cases {
		if _, err := client.ResetPassword(context.Background(), in); !errors.Is(err, authapi.ErrValidation) {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
}

func TestCooldownReopensAfterFailure(t *testing.T) {
	api := portaltest.New(t)
	client, _ := newClient(t, api)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := client.ForgotPassword(ctx, "nobody@fpt.edu.vn")
		var perr *pipeline.Error
		if !errors.As(err, &perr) || perr.StatusCode != http.StatusNotFound {
			t.Fatalf("attempt %d: expected 404, got %v", i, err)
		}
	}
}

func TestRedisCooldownSharedBetweenClients(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	api := portaltest.New(t)
	addUser(api, "student@fpt.edu.vn", session.RoleStudent)
	cooldown := limiters.NewRedisCooldown(rdb, "portal", authapi.ResendCooldown)
	first, _ := newClient(t, api, authapi.WithCooldown(cooldown))
	second, _ := newClient(t, api, authapi.WithCooldown(cooldown))
	ctx := context.Background()

	if _, err := first.ResendOTP(ctx, "student@fpt.edu.vn"); err != nil {
		t.Fatalf("ResendOTP() error = %v", err)
	}
	if _, err := second.ResendOTP(ctx, "student@fpt.edu.vn"); !errors.Is(err, authapi.ErrCooldown) {
		t.Fatalf("expected shared cooldown, got %v", err)
	}
}

func TestOutcomes(t *testing.T) {
	api := portaltest.New(t)
	u := addUser(api, "student@fpt.edu.vn", session.RoleStudent)

	var mu sync.Mutex
	var got []authapi.Outcome
	client, _ := newClient(t, api, authapi.WithOutcomeFunc(func(_ context.Context, out authapi.Outcome) {
		mu.Lock()
		got = append(got, out)
		mu.Unlock()
	}))
	ctx := context.Background()

	_, _ = client.Login(ctx, "student@fpt.edu.vn", "wrong")
	_, _ = client.Login(ctx, "student@fpt.edu.vn", password)
	_ = client.Logout(ctx)

	if len(got) != 3 {
		t.Fatalf("outcomes = %d, want 3", len(got))
	}
	if got[0].Op != authapi.OpLogin || got[0].Err == nil {
		t.Fatalf("unexpected failed login outcome: %+v", got[0])
	}
	if got[1].Op != authapi.OpLogin || got[1].Err != nil || got[1].UserID != u.UserID {
		t.Fatalf("unexpected login outcome: %+v", got[1])
	}
	if got[2].Op != authapi.OpLogout || got[2].UserID != u.UserID {
		t.Fatalf("unexpected logout outcome: %+v", got[2])
	}
}
