// Package portaltest runs an in-process fake of the portal REST API for
// tests. It issues real HS256 access tokens, counts refresh calls and can
// expire or revoke credentials on demand.
package portaltest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goPortal/jwt"
	"github.com/MrEthical07/goPortal/session"
	"github.com/MrEthical07/goPortal/userapi"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DefaultOTP is the code issued for every OTP flow unless overridden.
const DefaultOTP = "123456"

type account struct {
	user     userapi.User
	password string
	verified bool
}

// Server is a fake portal API. All knobs are safe for concurrent use.
type Server struct {
	srv    *httptest.Server
	issuer *jwt.Issuer

	mu         sync.Mutex
	accounts   map[string]*account
	byEmail    map[string]string
	access     map[string]string
	refresh    map[string]string
	otps       map[string]string
	requireOTP bool
	gate       chan struct{}

	refreshCalls atomic.Int64
	logouts      atomic.Int64
}

// New starts a fake API and stops it when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	issuer, err := jwt.NewIssuer(jwt.Config{
		AccessTTL:  15 * time.Minute,
		PrivateKey: []byte("portaltest-signing-secret"),
		Issuer:     "portaltest",
	})
	if err != nil {
		t.Fatalf("portaltest issuer: %v", err)
	}

	s := &Server{
		issuer:   issuer,
		accounts: make(map[string]*account),
		byEmail:  make(map[string]string),
		access:   make(map[string]string),
		refresh:  make(map[string]string),
		otps:     make(map[string]string),
	}
	s.srv = httptest.NewServer(s.router())
	t.Cleanup(s.srv.Close)
	return s
}

// BaseURL is the API root, ending in /api.
func (s *Server) BaseURL() string {
	return s.srv.URL + "/api"
}

// Close stops the server; later calls fail at the transport level.
func (s *Server) Close() {
	s.srv.Close()
}

// AddUser registers a verified account and returns it with its id set.
func (s *Server) AddUser(u userapi.User, password string) userapi.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(u, password, true)
}

func (s *Server) addLocked(u userapi.User, password string, verified bool) userapi.User {
	if u.UserID == "" {
		u.UserID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = session.RoleStudent
	}
	u.Email = strings.ToLower(u.Email)
	s.accounts[u.UserID] = &account{user: u, password: password, verified: verified}
	s.byEmail[u.Email] = u.UserID
	return u
}

// User returns the stored account for id.
func (s *Server) User(id string) (userapi.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return userapi.User{}, false
	}
	return acc.user, true
}

// Password returns the stored password for email.
func (s *Server) Password(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acc := s.byEmailLocked(email); acc != nil {
		return acc.password
	}
	return ""
}

// SetRequireOTP makes registration wait for OTP verification.
func (s *Server) SetRequireOTP(v bool) {
	s.mu.Lock()
	s.requireOTP = v
	s.mu.Unlock()
}

// OTP returns the pending code for email.
func (s *Server) OTP(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.otps[strings.ToLower(email)]
}

// ExpireAccessTokens invalidates every access token issued so far.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	s.access = make(map[string]string)
	s.mu.Unlock()
}

// RevokeRefreshTokens invalidates every refresh token issued so far.
func (s *Server) RevokeRefreshTokens() {
	s.mu.Lock()
	s.refresh = make(map[string]string)
	s.mu.Unlock()
}

// HoldRefresh blocks refresh calls until the returned channel is closed.
func (s *Server) HoldRefresh() chan struct{} {
	gate := make(chan struct{})
	s.mu.Lock()
	s.gate = gate
	s.mu.Unlock()
	return gate
}

// RefreshCalls counts calls to the refresh endpoint.
func (s *Server) RefreshCalls() int64 {
	return s.refreshCalls.Load()
}

// Logouts counts calls to the logout endpoint.
func (s *Server) Logouts() int64 {
	return s.logouts.Load()
}

// Issuer exposes the token issuer so tests can mint their own tokens.
func (s *Server) Issuer() *jwt.Issuer {
	return s.issuer
}

func (s *Server) router() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	auth := api.Group("/auth")
	auth.POST("/register", s.register)
	auth.POST("/login", s.login)
	auth.POST("/admin-lecturer-login", s.adminLecturerLogin)
	auth.POST("/refresh", s.refreshToken)
	auth.POST("/forgot-password", s.forgotPassword)
	auth.POST("/reset-password", s.resetPassword)
	auth.POST("/verify-otp", s.verifyOTP)
	auth.POST("/resend-otp", s.resendOTP)
	auth.POST("/logout", s.authenticate, s.logout)
	auth.POST("/change-password", s.authenticate, s.changePassword)

	users := api.Group("/users", s.authenticate)
	users.GET("", s.requireAdmin, s.listUsers)
	users.GET("/:id", s.requireSelfOrAdmin, s.getUser)
	users.PUT("/:id", s.requireSelfOrAdmin, s.updateUser)
	users.PUT("/:id/role", s.requireAdmin, s.updateRole)
	users.DELETE("/:id", s.requireAdmin, s.deleteUser)

	return r
}

func fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": message})
}

func ok(c *gin.Context, message string, data any) {
	body := gin.H{"success": true}
	if message != "" {
		body["message"] = message
	}
	if data != nil {
		body["data"] = data
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) byEmailLocked(email string) *account {
	id, found := s.byEmail[strings.ToLower(email)]
	if !found {
		return nil
	}
	return s.accounts[id]
}

// issueLocked mints an access/refresh pair for acc.
func (s *Server) issueLocked(acc *account) (gin.H, error) {
	token, err := s.issuer.Issue(acc.user.UserID, acc.user.Email, string(acc.user.Role))
	if err != nil {
		return nil, err
	}
	refresh := uuid.NewString()
	s.access[token] = acc.user.UserID
	s.refresh[refresh] = acc.user.UserID
	return gin.H{"user": acc.user, "accessToken": token, "refreshToken": refresh}, nil
}
