// Package httpserver exposes the account API over HTTP.
package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/jimei-edu/authsvc/internal/errs"
	"github.com/jimei-edu/authsvc/internal/model"
	"github.com/jimei-edu/authsvc/internal/service"
	"github.com/jimei-edu/authsvc/internal/token"
)

// Server wires services into HTTP handlers.
type Server struct {
	router   *mux.Router
	accounts service.AccountService
	uploads  service.UploadService
	log      *zap.Logger
}

// New constructs the HTTP server with its middleware chain and routes.
func New(accounts service.AccountService, uploads service.UploadService, codec *token.Codec, log *zap.Logger) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		accounts: accounts,
		uploads:  uploads,
		log:      log,
	}

	s.router.Use(Recover(log), Logging(log), Authenticate(codec, log))

	api := s.router.PathPrefix("/api/v1/auth").Subrouter()
	api.HandleFunc("/register", s.register).Methods(http.MethodPost)
	api.HandleFunc("/login", s.login).Methods(http.MethodPost)
	api.HandleFunc("/check-username", s.checkUsername).Methods(http.MethodGet)
	api.HandleFunc("/check-email", s.checkEmail).Methods(http.MethodGet)
	api.HandleFunc("/me", s.me).Methods(http.MethodGet)
	api.HandleFunc("/profile", s.updateProfile).Methods(http.MethodPut)
	api.HandleFunc("/password", s.changePassword).Methods(http.MethodPut)
	api.HandleFunc("/oss/upload-credentials", s.uploadCredentials).Methods(http.MethodGet)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

// --- DTOs ---

type registerRequest struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	Email           string `json:"email"`
	Role            string `json:"role"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type updateProfileRequest struct {
	Email     string `json:"email"`
	AvatarURL string `json:"avatarUrl"`
}

type changePasswordRequest struct {
	CurrentPassword    string `json:"currentPassword"`
	NewPassword        string `json:"newPassword"`
	ConfirmNewPassword string `json:"confirmNewPassword"`
}

// userSummary is the sanitized user representation. It never carries
// password material.
type userSummary struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	Role      string `json:"role"`
	RoleLabel string `json:"roleLabel"`
}

func toSummary(u *model.User) userSummary {
	return userSummary{
		ID:        u.ID.String(),
		Username:  u.Username,
		Email:     u.Email,
		AvatarURL: u.AvatarURL,
		Role:      string(u.Role),
		RoleLabel: u.Role.DisplayName(),
	}
}

type loginResponse struct {
	Token     string      `json:"token"`
	TokenType string      `json:"tokenType"`
	User      userSummary `json:"user"`
}

type grantResponse struct {
	AccessKeyID     string `json:"accessKeyId"`
	AccessKeySecret string `json:"accessKeySecret"`
	SecurityToken   string `json:"securityToken,omitempty"`
	Bucket          string `json:"bucket"`
	Endpoint        string `json:"endpoint"`
	Region          string `json:"region"`
	UploadPath      string `json:"uploadPath"`
	Expiration      int64  `json:"expiration"`
}

// --- helpers ---

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return false
	}
	return true
}

// requirePrincipal enforces the downstream contract of the authentication
// middleware: protected handlers fail with 401 when no principal is bound.
func (s *Server) requirePrincipal(w http.ResponseWriter, r *http.Request) (model.Principal, bool) {
	p, ok := PrincipalFromCtx(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
	}
	return p, ok
}

// writeServiceError is the single translation point from service errors to
// the response envelope.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errs.ErrPasswordMismatch):
		writeError(w, http.StatusBadRequest, "passwords do not match")
	case errors.Is(err, errs.ErrUsernameTaken):
		writeError(w, http.StatusBadRequest, "username already exists")
	case errors.Is(err, errs.ErrEmailTaken):
		writeError(w, http.StatusBadRequest, "email already in use")
	case errors.Is(err, errs.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "invalid username or password")
	case errors.Is(err, errs.ErrNotFound):
		writeError(w, http.StatusNotFound, "user not found")
	case errors.Is(err, errs.ErrStorageUnconfigured):
		writeError(w, http.StatusServiceUnavailable, "upload storage is not configured")
	default:
		s.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// --- handlers ---

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(w, r, &req) {
		return
	}
	switch {
	case req.Username == "":
		writeError(w, http.StatusBadRequest, "username is required")
		return
	case req.Password == "":
		writeError(w, http.StatusBadRequest, "password is required")
		return
	case req.ConfirmPassword == "":
		writeError(w, http.StatusBadRequest, "confirmPassword is required")
		return
	}

	var role model.Role
	if req.Role != "" {
		parsed, ok := model.ParseRole(req.Role)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown role")
			return
		}
		role = parsed
	}

	u, err := s.accounts.Register(r.Context(), service.RegisterInput{
		Username:        req.Username,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Email:           req.Email,
		Role:            role,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeOK(w, "registration successful", map[string]string{
		"id":       u.ID.String(),
		"username": u.Username,
	})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}
	if req.Password == "" {
		writeError(w, http.StatusBadRequest, "password is required")
		return
	}

	tokens, u, err := s.accounts.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	writeOK(w, "login successful", loginResponse{
		Token:     tokens.AccessToken,
		TokenType: "Bearer",
		User:      toSummary(&u),
	})
}

func (s *Server) checkUsername(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}
	available, err := s.accounts.UsernameAvailable(r.Context(), username)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	msg := "username already exists"
	if available {
		msg = "username is available"
	}
	writeOK(w, msg, available)
}

func (s *Server) checkEmail(w http.ResponseWriter, r *http.Request) {
	available, err := s.accounts.EmailAvailable(r.Context(), r.URL.Query().Get("email"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	msg := "email already in use"
	if available {
		msg = "email is available"
	}
	writeOK(w, msg, available)
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	p, ok := s.requirePrincipal(w, r)
	if !ok {
		return
	}
	u, err := s.accounts.GetUser(r.Context(), p.UserID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, "ok", toSummary(u))
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	p, ok := s.requirePrincipal(w, r)
	if !ok {
		return
	}
	var req updateProfileRequest
	if !decode(w, r, &req) {
		return
	}
	u, err := s.accounts.UpdateProfile(r.Context(), p.UserID, req.Email, req.AvatarURL)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, "profile updated", toSummary(u))
}

func (s *Server) changePassword(w http.ResponseWriter, r *http.Request) {
	p, ok := s.requirePrincipal(w, r)
	if !ok {
		return
	}
	var req changePasswordRequest
	if !decode(w, r, &req) {
		return
	}
	if req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "newPassword is required")
		return
	}
	if err := s.accounts.ChangePassword(r.Context(), p.UserID, req.CurrentPassword, req.NewPassword, req.ConfirmNewPassword); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, "password changed", nil)
}

func (s *Server) uploadCredentials(w http.ResponseWriter, r *http.Request) {
	p, ok := s.requirePrincipal(w, r)
	if !ok {
		return
	}
	g, err := s.uploads.IssueGrant(r.Context(), p.UserID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeOK(w, "upload credentials issued", grantResponse{
		AccessKeyID:     g.AccessKeyID,
		AccessKeySecret: g.AccessKeySecret,
		SecurityToken:   g.SecurityToken,
		Bucket:          g.Bucket,
		Endpoint:        g.Endpoint,
		Region:          g.Region,
		UploadPath:      g.UploadPath,
		Expiration:      g.ExpiresAtMillis,
	})
}
