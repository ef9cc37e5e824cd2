package http

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/lines-of-codes/litestore"
	"github.com/lines-of-codes/litestore/auth"
	"github.com/lines-of-codes/litestore/metrics"
	"github.com/lines-of-codes/litestore/tasks"
)

// FileService is the file tree API used by the handlers.
type FileService interface {
	CreateFolder(ctx context.Context, owner int64, p string) (litestore.FileNode, error)
	Upload(ctx context.Context, owner int64, p string, size int64) (litestore.UploadResult, error)
	CompleteUpload(ctx context.Context, owner int64, p, uploadID string) error
	Download(ctx context.Context, owner int64, p string) (string, error)
	List(ctx context.Context, owner int64, p string) ([]litestore.FileNode, error)
	Delete(ctx context.Context, owner int64, p string) (int, error)
	Trash(ctx context.Context, owner int64, p string, trashed bool) error
	Move(ctx context.Context, owner int64, from, toFolder string) error
	Copy(ctx context.Context, owner int64, from, toFolder string) (litestore.FileNode, error)
	TaskStatus(ctx context.Context, owner int64, index int) (tasks.Task, error)
}

// LinkService is the share link API used by the handlers.
type LinkService interface {
	Create(ctx context.Context, creator int64, p string, opts litestore.LinkOptions) (litestore.ShareLink, error)
	List(ctx context.Context, creator int64) ([]litestore.ShareLink, error)
	Info(ctx context.Context, id uuid.UUID) (litestore.LinkInfo, error)
	Edit(ctx context.Context, id uuid.UUID, editor int64, opts litestore.LinkOptions) error
	Delete(ctx context.Context, id uuid.UUID, editor int64) error
	Redeem(ctx context.Context, id uuid.UUID, password string) (litestore.DownloadGrant, error)
}

// AccountService is the account API used by the handlers.
type AccountService interface {
	SignUp(ctx context.Context, username, email, password string) (litestore.User, error)
	Login(ctx context.Context, username, password string) (litestore.User, error)
}

// TokenIssuer issues and verifies session tokens.
type TokenIssuer interface {
	TokenVerifier
	Issue(userID int64) (string, error)
}

type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type HandlerConfig struct {
	CORS CORSConfig
	// Content serves ContentPath/* for the filesystem backend. Nil leaves
	// the route unmounted.
	Content http.Handler
	// MaxBodyBytes limits JSON request bodies. Zero means DefaultMaxBodyBytes.
	MaxBodyBytes int64
}

// ContentPath is where HandlerConfig.Content is mounted.
const ContentPath = "/content"

// Services groups the application services behind the API.
type Services struct {
	Files    FileService
	Links    LinkService
	Accounts AccountService
	Tokens   TokenIssuer
}

// Handler provides the JSON API of litestore.
type Handler struct {
	config   HandlerConfig
	services Services
}

// NewHandler creates a new Handler with the given configuration and services.
func NewHandler(config *HandlerConfig, services Services) *Handler {
	cfg := *config
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return &Handler{
		config:   cfg,
		services: services,
	}
}

// Router returns an http.Handler with every API route. Share link info and
// redemption are public; the other /api/files, /api/tasks and /api/links
// routes require a bearer token.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	if h.config.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.config.CORS.AllowedOrigins,
			AllowedMethods:   h.config.CORS.AllowedMethods,
			AllowedHeaders:   h.config.CORS.AllowedHeaders,
			ExposedHeaders:   h.config.CORS.ExposedHeaders,
			AllowCredentials: h.config.CORS.AllowCredentials,
			MaxAge:           h.config.CORS.MaxAge,
		}))
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, http.StatusNotFound, "not_found", "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
	})

	r.Handle("/metrics", metrics.Handler())
	if h.config.Content != nil {
		r.Handle(ContentPath+"/*", h.config.Content)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", h.handleStatus)
		r.Post("/auth/signup", h.handleSignUp)
		r.Post("/auth/login", h.handleLogin)

		r.Get("/links/{id}", h.handleLinkInfo)
		r.Post("/links/{id}/download", h.handleRedeem)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(h.services.Tokens))

			r.Post("/files/upload", h.handleUpload)
			r.Post("/files/upload/complete", h.handleCompleteUpload)
			r.Get("/files/download", h.handleDownload)
			r.Post("/files/delete", h.handleDelete)
			r.Post("/files/trash", h.handleTrash)
			r.Post("/files/move", h.handleMove)
			r.Post("/files/copy", h.handleCopy)
			r.Post("/files/folder", h.handleCreateFolder)
			r.Get("/files/list", h.handleList)
			r.Get("/files/list/*", h.handleList)

			r.Get("/tasks/{id}", h.handleTask)

			r.Post("/links", h.handleCreateLink)
			r.Get("/links", h.handleListLinks)
			r.Patch("/links/{id}", h.handleEditLink)
			r.Delete("/links/{id}", h.handleDeleteLink)
		})
	})

	return r
}

func (h *Handler) handleStatus(w http.ResponseWriter, _ *http.Request) {
	_ = WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type signUpRequest struct {
	Username string `json:"username" validate:"required,min=3,max=32"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

func (h *Handler) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := decodeJSON(w, r, h.config.MaxBodyBytes, &req, false); err != nil {
		HandleError(w, err)
		return
	}

	user, err := h.services.Accounts.SignUp(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusCreated, map[string]any{"id": user.ID, "username": user.Username})
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, h.config.MaxBodyBytes, &req, false); err != nil {
		HandleError(w, err)
		return
	}

	user, err := h.services.Accounts.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		HandleError(w, err)
		return
	}

	token, err := h.services.Tokens.Issue(user.ID)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, map[string]string{"token": token})
}

type uploadRequest struct {
	Path string `json:"path" validate:"required"`
	Size *int64 `json:"size" validate:"required,gte=0"`
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	var req uploadRequest
	if err := decodeJSON(w, r, h.config.MaxBodyBytes, &req, false); err != nil {
		HandleError(w, err)
		return
	}

	result, err := h.services.Files.Upload(r.Context(), owner, req.Path, *req.Size)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusCreated, result.Plan)
}

type completeUploadRequest struct {
	Path     string `json:"path" validate:"required"`
	UploadID string `json:"uploadId" validate:"required"`
}

func (h *Handler) handleCompleteUpload(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	var req completeUploadRequest
	if err := decodeJSON(w, r, h.config.MaxBodyBytes, &req, false); err != nil {
		HandleError(w, err)
		return
	}

	if err := h.services.Files.CompleteUpload(r.Context(), owner, req.Path, req.UploadID); err != nil {
		HandleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	p := r.URL.Query().Get("path")
	if p == "" {
		WriteError(w, http.StatusBadRequest, "invalid_input", "path is required")
		return
	}

	link, err := h.services.Files.Download(r.Context(), owner, p)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, map[string]string{"url": link})
}

type pathRequest struct {
	Path string `json:"path" validate:"required"`
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	var req pathRequest
	if err := decodeJSON(w, r, h.config.MaxBodyBytes, &req, false); err != nil {
		HandleError(w, err)
		return
	}

	taskID, err := h.services.Files.Delete(r.Context(), owner, req.Path)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusAccepted, map[string]int{"taskId": taskID})
}

type trashRequest struct {
	Path  string `json:"path" validate:"required"`
	Trash *bool  `json:"trash" validate:"required"`
}

func (h *Handler) handleTrash(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	var req trashRequest
	if err := decodeJSON(w, r, h.config.MaxBodyBytes, &req, false); err != nil {
		HandleError(w, err)
		return
	}

	if err := h.services.Files.Trash(r.Context(), owner, req.Path, *req.Trash); err != nil {
		HandleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type moveRequest struct {
	From string `json:"from" validate:"required"`
	To   string `json:"to" validate:"required"`
}

func (h *Handler) handleMove(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	var req moveRequest
	if err := decodeJSON(w, r, h.config.MaxBodyBytes, &req, false); err != nil {
		HandleError(w, err)
		return
	}

	if err := h.services.Files.Move(r.Context(), owner, req.From, req.To); err != nil {
		HandleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type copyRequest struct {
	From     string `json:"from" validate:"required"`
	ToFolder string `json:"toFolder" validate:"required"`
}

func (h *Handler) handleCopy(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	var req copyRequest
	if err := decodeJSON(w, r, h.config.MaxBodyBytes, &req, false); err != nil {
		HandleError(w, err)
		return
	}

	node, err := h.services.Files.Copy(r.Context(), owner, req.From, req.ToFolder)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusCreated, map[string]any{"file": node})
}

func (h *Handler) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	var req pathRequest
	if err := decodeJSON(w, r, h.config.MaxBodyBytes, &req, false); err != nil {
		HandleError(w, err)
		return
	}

	node, err := h.services.Files.CreateFolder(r.Context(), owner, req.Path)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusCreated, map[string]any{"file": node})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	// chi matches against RawPath when the URL carries escapes
	rest := chi.URLParam(r, "*")
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(rest)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid_input", "Invalid path escape")
			return
		}
		rest = unescaped
	}

	files, err := h.services.Files.List(r.Context(), owner, "/"+rest)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, map[string]any{"files": files})
}

func (h *Handler) handleTask(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.owner(w, r)
	if !ok {
		return
	}

	index, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || index < 0 {
		WriteError(w, http.StatusBadRequest, "invalid_input", "Invalid task id")
		return
	}

	task, err := h.services.Files.TaskStatus(r.Context(), owner, index)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, task)
}

type linkRequest struct {
	Path          string     `json:"path" validate:"required"`
	ExpiresAt     *time.Time `json:"expiresAt"`
	Password      *string    `json:"password" validate:"omitempty,max=72"`
	DownloadLimit *int       `json:"downloadLimit" validate:"omitempty,gte=1"`
}

func (h *Handler) handleCreateLink(w http.ResponseWriter, r *http.Request) {
	creator, ok := h.owner(w, r)
	if !ok {
		return
	}

	var req linkRequest
	if err := decodeJSON(w, r, h.config.MaxBodyBytes, &req, false); err != nil {
		HandleError(w, err)
		return
	}

	link, err := h.services.Links.Create(r.Context(), creator, req.Path, litestore.LinkOptions{
		ExpiresAt:     req.ExpiresAt,
		Password:      req.Password,
		DownloadLimit: req.DownloadLimit,
	})
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusCreated, map[string]string{"uuid": link.ID.String()})
}

func (h *Handler) handleListLinks(w http.ResponseWriter, r *http.Request) {
	creator, ok := h.owner(w, r)
	if !ok {
		return
	}

	links, err := h.services.Links.List(r.Context(), creator)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, map[string]any{"links": links})
}

func (h *Handler) handleLinkInfo(w http.ResponseWriter, r *http.Request) {
	id, ok := linkID(w, r)
	if !ok {
		return
	}

	info, err := h.services.Links.Info(r.Context(), id)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, info)
}

type editLinkRequest struct {
	ExpiresAt          *time.Time `json:"expiresAt"`
	Password           *string    `json:"password" validate:"omitempty,max=72"`
	DownloadLimit      *int       `json:"downloadLimit" validate:"omitempty,gte=1"`
	ClearExpiry        bool       `json:"clearExpiry"`
	ClearDownloadLimit bool       `json:"clearDownloadLimit"`
}

func (h *Handler) handleEditLink(w http.ResponseWriter, r *http.Request) {
	editor, ok := h.owner(w, r)
	if !ok {
		return
	}
	id, ok := linkID(w, r)
	if !ok {
		return
	}

	var req editLinkRequest
	if err := decodeJSON(w, r, h.config.MaxBodyBytes, &req, false); err != nil {
		HandleError(w, err)
		return
	}

	err := h.services.Links.Edit(r.Context(), id, editor, litestore.LinkOptions{
		ExpiresAt:          req.ExpiresAt,
		Password:           req.Password,
		DownloadLimit:      req.DownloadLimit,
		ClearExpiry:        req.ClearExpiry,
		ClearDownloadLimit: req.ClearDownloadLimit,
	})
	if err != nil {
		HandleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDeleteLink(w http.ResponseWriter, r *http.Request) {
	editor, ok := h.owner(w, r)
	if !ok {
		return
	}
	id, ok := linkID(w, r)
	if !ok {
		return
	}

	if err := h.services.Links.Delete(r.Context(), id, editor); err != nil {
		HandleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type redeemRequest struct {
	Password string `json:"password"`
}

func (h *Handler) handleRedeem(w http.ResponseWriter, r *http.Request) {
	id, ok := linkID(w, r)
	if !ok {
		return
	}

	var req redeemRequest
	if err := decodeJSON(w, r, h.config.MaxBodyBytes, &req, true); err != nil {
		HandleError(w, err)
		return
	}

	grant, err := h.services.Links.Redeem(r.Context(), id, req.Password)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, grant)
}

func (h *Handler) owner(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, err := auth.UserID(r.Context())
	if err != nil {
		HandleError(w, err)
		return 0, false
	}
	return userID, true
}

func linkID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_input", "Invalid link id")
		return uuid.Nil, false
	}
	return id, true
}
