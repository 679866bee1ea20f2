package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/sakif/chat-directory/internal/apperror"
	"github.com/sakif/chat-directory/internal/auth"
	"github.com/sakif/chat-directory/internal/avatar"
	"github.com/sakif/chat-directory/internal/model"
	"github.com/sakif/chat-directory/internal/service"
)

// maxFormMemory bounds the in-memory part of a multipart registration.
// Anything beyond it spills to temp files, which the avatar limit then caps.
const maxFormMemory = avatar.MaxBytes + 64<<10

// AccountService is the subset of *service.AccountService the handler uses.
type AccountService interface {
	Register(ctx context.Context, in service.RegisterInput) (*service.RegisterResult, error)
	Login(ctx context.Context, name, password string) (*service.LoginResult, error)
	Profile(ctx context.Context, userID string) (*model.PublicUser, error)
	UpdateAccount(ctx context.Context, userID string, in service.UpdateInput) (*model.PublicUser, error)
}

// AccountHandler serves registration, login and the caller's own profile.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister → POST /api/users/register (JSON or multipart with "image")
//   - HandleLogin    → POST /api/users/login
//   - HandleMe       → GET  /api/users/me
//   - HandleUpdateMe → PUT  /api/users/me
type AccountHandler struct {
	accounts AccountService
	logger   *slog.Logger
}

func NewAccountHandler(accounts AccountService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, logger: logger}
}

// registerRequest is the JSON registration body. Image is an optional
// data URI ("data:image/png;base64,...").
type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Image    string `json:"image,omitempty"`
}

type loginRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// updateRequest uses pointers so an omitted field means "unchanged".
type updateRequest struct {
	Name     *string `json:"name,omitempty"`
	Email    *string `json:"email,omitempty"`
	Password *string `json:"password,omitempty"`
	Image    string  `json:"image,omitempty"`
}

// HandleRegister creates an account.
//
// HTTP: POST /api/users/register
// RESPONSE: 201 {"id","name","email","token"}
//
// The body is either JSON (registerRequest) or multipart/form-data with
// name/email/password fields and an optional "image" file part.
func (h *AccountHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	in, err := h.parseRegister(w, r)
	if err != nil {
		h.logger.Warn("invalid registration request", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	res, err := h.accounts.Register(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}

	setTokenCookie(w, res.Token)
	writeJSON(w, http.StatusCreated, res)
}

func (h *AccountHandler) parseRegister(w http.ResponseWriter, r *http.Request) (service.RegisterInput, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormMemory+avatar.MaxBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		return parseRegisterForm(r)
	}

	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		return service.RegisterInput{}, err
	}
	in := service.RegisterInput{Name: req.Name, Email: req.Email, Password: req.Password}
	if req.Image != "" {
		data, ct, err := decodeImage(req.Image)
		if err != nil {
			return service.RegisterInput{}, err
		}
		in.Avatar, in.AvatarType = data, ct
	}
	return in, nil
}

func parseRegisterForm(r *http.Request) (service.RegisterInput, error) {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return service.RegisterInput{}, apperror.ValidationFailed("image", avatar.ErrTooLarge.Error())
		}
		return service.RegisterInput{}, apperror.ValidationFailed("body", "invalid multipart form")
	}

	in := service.RegisterInput{
		Name:     r.FormValue("name"),
		Email:    r.FormValue("email"),
		Password: r.FormValue("password"),
	}

	file, header, err := r.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return in, nil
	case err != nil:
		return service.RegisterInput{}, apperror.ValidationFailed("image", "invalid image upload")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, avatar.MaxBytes+1))
	if err != nil {
		return service.RegisterInput{}, apperror.ValidationFailed("image", "invalid image upload")
	}
	if len(data) > avatar.MaxBytes {
		return service.RegisterInput{}, apperror.ValidationFailed("image", avatar.ErrTooLarge.Error())
	}
	in.Avatar = data
	in.AvatarType = header.Header.Get("Content-Type")
	return in, nil
}

func decodeImage(uri string) ([]byte, string, error) {
	p, err := avatar.ParseDataURI(uri)
	if err != nil {
		return nil, "", apperror.ValidationFailed("image", err.Error())
	}
	data, ct, err := avatar.Decode(p)
	if err != nil {
		return nil, "", apperror.ValidationFailed("image", err.Error())
	}
	return data, ct, nil
}

// HandleLogin authenticates by name and password.
//
// HTTP: POST /api/users/login
// REQUEST BODY: {"name": "alice", "password": "..."}
// RESPONSE: 200 {"id","name","email","isAdmin","avatar"?,"token"}
func (h *AccountHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	// Blank credentials fail inside Login with the same AuthError as any
	// other bad login.
	res, err := h.accounts.Login(r.Context(), req.Name, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	setTokenCookie(w, res.Token)
	writeJSON(w, http.StatusOK, res)
}

// HandleMe returns the caller's public profile.
//
// HTTP: GET /api/users/me
// Auth: Required
func (h *AccountHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	user, err := h.accounts.Profile(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleUpdateMe changes the caller's name, email, password or avatar.
//
// HTTP: PUT /api/users/me
// Auth: Required
// REQUEST BODY: any subset of {"name","email","password","image"}
func (h *AccountHandler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxFormMemory+avatar.MaxBytes)
	var req updateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	in := service.UpdateInput{Name: req.Name, Email: req.Email, Password: req.Password}
	if req.Image != "" {
		data, ct, err := decodeImage(req.Image)
		if err != nil {
			writeError(w, err)
			return
		}
		in.Avatar, in.AvatarType = data, ct
	}

	user, err := h.accounts.UpdateAccount(r.Context(), userID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// setTokenCookie mirrors the token into an HttpOnly cookie for browser
// clients. API clients use the token in the body with a Bearer header.
func setTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
