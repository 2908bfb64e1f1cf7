package server

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/conceptforge/conceptforge/internal/auth"
	"github.com/conceptforge/conceptforge/internal/metaproject"
	"github.com/conceptforge/conceptforge/internal/observability"
	"github.com/conceptforge/conceptforge/internal/platform/httpx"
	"github.com/conceptforge/conceptforge/internal/versioning"
)

// Handler exposes the facade over HTTP. MountRoutes carries the read and
// versioning surface served on the primary listener; MountAdminRoutes
// carries the mutating metaproject surface served on the admin listener.
// Both expect auth.RequireToken to have resolved the caller's token.
type Handler struct {
	logger   *slog.Logger
	facade   *Facade
	metrics  *observability.Metrics
	validate *validator.Validate
}

// NewHandler constructs a Handler. metrics may be nil.
func NewHandler(logger *slog.Logger, facade *Facade, metrics *observability.Metrics) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, facade: facade, metrics: metrics, validate: validator.New()}
}

// MountRoutes registers the read and versioning surface.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/users", h.listUsers)
	r.Get("/users/{id}/projects", h.listUserProjects)
	r.Get("/users/{id}/roles", h.listUserRoles)
	r.Get("/users/{id}/operations", h.listUserOperations)
	r.Get("/projects", h.listProjects)
	r.Post("/projects/{id}/open", h.openProject)
	r.Get("/projects/{id}/head", h.head)
	r.Get("/projects/{id}/history", h.history)
	r.Post("/projects/{id}/commit", h.commit)
	r.Get("/roles", h.listRoles)
	r.Get("/roles/{id}/operations", h.listRoleOperations)
	r.Get("/operations", h.listOperations)
	r.Get("/allowed", h.isAllowed)
}

// MountAdminRoutes registers the mutating metaproject and configuration
// surface.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Post("/users", h.createUser)
	r.Put("/users/{id}", h.updateUser)
	r.Delete("/users/{id}", h.deleteUser)

	r.Post("/projects", h.createProject)
	r.Put("/projects/{id}", h.updateProject)
	r.Delete("/projects/{id}", h.deleteProject)

	r.Post("/roles", h.createRole)
	r.Put("/roles/{id}", h.updateRole)
	r.Delete("/roles/{id}", h.deleteRole)

	r.Post("/operations", h.createOperation)
	r.Put("/operations/{id}", h.updateOperation)
	r.Delete("/operations/{id}", h.deleteOperation)

	r.Post("/policy", h.assignRole)
	r.Delete("/policy", h.retractRole)

	r.Get("/host", h.getHost)
	r.Put("/host", h.setHost)
	r.Put("/host/secondary-port", h.setSecondaryPort)
	r.Get("/root", h.getRoot)
	r.Put("/root", h.setRoot)
	r.Get("/properties", h.getProperties)
	r.Put("/properties/{key}", h.setProperty)
	r.Delete("/properties/{key}", h.unsetProperty)

	r.Post("/reload", h.reload)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed payload")
		return false
	}
	if err := h.validate.Struct(target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

// ---- users ----

type createUserRequest struct {
	ID       string            `json:"id" validate:"required"`
	Name     string            `json:"name" validate:"required"`
	Email    string            `json:"email" validate:"omitempty,email"`
	Attrs    map[string]string `json:"attributes"`
	Password string            `json:"password"`
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !h.decode(w, r, &req) {
		return
	}
	digest := ""
	if req.Password != "" {
		var err error
		if digest, err = auth.HashPassword(req.Password); err != nil {
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
			return
		}
	}
	user := metaproject.User{
		ID:         metaproject.UserID(req.ID),
		Name:       req.Name,
		Email:      req.Email,
		Attributes: req.Attrs,
	}
	if err := h.facade.CreateUser(r.Context(), auth.TokenFromContext(r.Context()), user, digest); err != nil {
		RespondFailure(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, user)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	var user metaproject.User
	if err := httpx.DecodeJSON(r, &user); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed payload")
		return
	}
	id := metaproject.UserID(chi.URLParam(r, "id"))
	if err := h.facade.UpdateUser(r.Context(), auth.TokenFromContext(r.Context()), id, user); err != nil {
		RespondFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id := metaproject.UserID(chi.URLParam(r, "id"))
	if err := h.facade.DeleteUser(r.Context(), auth.TokenFromContext(r.Context()), id); err != nil {
		RespondFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.facade.GetAllUsers(r.Context(), auth.TokenFromContext(r.Context()))
	if err != nil {
		RespondFailure(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, users)
}

// ---- projects ----

type createProjectRequest struct {
	ID          string            `json:"id" validate:"required"`
	Name        string            `json:"name" validate:"required"`
	Description string            `json:"description"`
	Owner       string            `json:"owner" validate:"required"`
	Options     map[string]string `json:"options"`
}

func (h *Handler) createProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if !h.decode(w, r, &req) {
		return
	}
	doc, err := h.facade.CreateProject(r.Context(), auth.TokenFromContext(r.Context()),
		metaproject.ProjectID(req.ID), req.Name, req.Description, metaproject.UserID(req.Owner), req.Options)
	if err != nil {
		RespondFailure(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, doc)
}

func (h *Handler) openProject(w http.ResponseWriter, r *http.Request) {
	id := metaproject.ProjectID(chi.URLParam(r, "id"))
	doc, err := h.facade.OpenProject(r.Context(), auth.TokenFromContext(r.Context()), id)
	if err != nil {
		RespondFailure(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) updateProject(w http.ResponseWriter, r *http.Request) {
	var project metaproject.Project
	if err := httpx.DecodeJSON(r, &project); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed payload")
		return
	}
	id := metaproject.ProjectID(chi.URLParam(r, "id"))
	if err := h.facade.UpdateProject(r.Context(), auth.TokenFromContext(r.Context()), id, project); err != nil {
		RespondFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteProject(w http.ResponseWriter, r *http.Request) {
	id := metaproject.ProjectID(chi.URLParam(r, "id"))
	includeFile, _ := strconv.ParseBool(r.URL.Query().Get("include_file"))
	if err := h.facade.DeleteProject(r.Context(), auth.TokenFromContext(r.Context()), id, includeFile); err != nil {
		RespondFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listProjects(w http.ResponseWriter, r *http.Request) {
	token := auth.TokenFromContext(r.Context())
	if user := r.URL.Query().Get("user"); user != "" {
		projects, err := h.facade.GetProjects(r.Context(), token, metaproject.UserID(user))
		if err != nil {
			RespondFailure(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, projects)
		return
	}
	projects, err := h.facade.GetAllProjects(r.Context(), token)
	if err != nil {
		RespondFailure(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, projects)
}

func (h *Handler) listUserProjects(w http.ResponseWriter, r *http.Request) {
	user := metaproject.UserID(chi.URLParam(r, "id"))
	projects, err := h.facade.GetProjects(r.Context(), auth.TokenFromContext(r.Context()), user)
	if err != nil {
		RespondFailure(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, projects)
}

// ---- roles ----

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var role metaproject.Role
	if err := httpx.DecodeJSON(r, &role); err != nil || role.ID == "" {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed payload")
		return
	}
	if err := h.facade.CreateRole(r.Context(), auth.TokenFromContext(r.Context()), role); err != nil {
		RespondFailure(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, role)
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	var role metaproject.Role
	if err := httpx.DecodeJSON(r, &role); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed payload")
		return
	}
	id := metaproject.RoleID(chi.URLParam(r, "id"))
	if err := h.facade.UpdateRole(r.Context(), auth.TokenFromContext(r.Context()), id, role); err != nil {
		RespondFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id := metaproject.RoleID(chi.URLParam(r, "id"))
	if err := h.facade.DeleteRole(r.Context(), auth.TokenFromContext(r.Context()), id); err != nil {
		RespondFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.facade.GetAllRoles(r.Context(), auth.TokenFromContext(r.Context()))
	if err != nil {
		RespondFailure(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, roles)
}

func (h *Handler) listUserRoles(w http.ResponseWriter, r *http.Request) {
	token := auth.TokenFromContext(r.Context())
	user := metaproject.UserID(chi.URLParam(r, "id"))
	if project := r.URL.Query().Get("project"); project != "" {
		roles, err := h.facade.GetRolesOnProject(r.Context(), token, user, metaproject.ProjectID(project))
		if err != nil {
			RespondFailure(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, roles)
		return
	}
	roles, err := h.facade.GetRoles(r.Context(), token, user)
	if err != nil {
		RespondFailure(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, roles)
}

func (h *Handler) listRoleOperations(w http.ResponseWriter, r *http.Request) {
	id := metaproject.RoleID(chi.URLParam(r, "id"))
	ops, err := h.facade.GetOperationsOfRole(r.Context(), auth.TokenFromContext(r.Context()), id)
	if err != nil {
		RespondFailure(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ops)
}

// ---- operations ----

func (h *Handler) createOperation(w http.ResponseWriter, r *http.Request) {
	var op metaproject.Operation
	if err := httpx.DecodeJSON(r, &op); err != nil || op.ID == "" {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed payload")
		return
	}
	if err := h.facade.CreateOperation(r.Context(), auth.TokenFromContext(r.Context()), op); err != nil {
		RespondFailure(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, op)
}

func (h *Handler) updateOperation(w http.ResponseWriter, r *http.Request) {
	var op metaproject.Operation
	if err := httpx.DecodeJSON(r, &op); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed payload")
		return
	}
	id := metaproject.OperationID(chi.URLParam(r, "id"))
	if err := h.facade.UpdateOperation(r.Context(), auth.TokenFromContext(r.Context()), id, op); err != nil {
		RespondFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteOperation(w http.ResponseWriter, r *http.Request) {
	id := metaproject.OperationID(chi.URLParam(r, "id"))
	if err := h.facade.DeleteOperation(r.Context(), auth.TokenFromContext(r.Context()), id); err != nil {
		RespondFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listOperations(w http.ResponseWriter, r *http.Request) {
	ops, err := h.facade.GetAllOperations(r.Context(), auth.TokenFromContext(r.Context()))
	if err != nil {
		RespondFailure(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ops)
}

func (h *Handler) listUserOperations(w http.ResponseWriter, r *http.Request) {
	token := auth.TokenFromContext(r.Context())
	user := metaproject.UserID(chi.URLParam(r, "id"))
	if project := r.URL.Query().Get("project"); project != "" {
		ops, err := h.facade.GetOperationsOnProject(r.Context(), token, user, metaproject.ProjectID(project))
		if err != nil {
			RespondFailure(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, ops)
		return
	}
	ops, err := h.facade.GetOperations(r.Context(), token, user)
	if err != nil {
		RespondFailure(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ops)
}

// ---- policy ----

type assignmentRequest struct {
	User    string `json:"user" validate:"required"`
	Project string `json:"project" validate:"required"`
	Role    string `json:"role" validate:"required"`
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	var req assignmentRequest
	if !h.decode(w, r, &req) {
		return
	}
	err := h.facade.AssignRole(r.Context(), auth.TokenFromContext(r.Context()),
		metaproject.UserID(req.User), metaproject.ProjectID(req.Project), metaproject.RoleID(req.Role))
	if err != nil {
		RespondFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) retractRole(w http.ResponseWriter, r *http.Request) {
	var req assignmentRequest
	if !h.decode(w, r, &req) {
		return
	}
	err := h.facade.RetractRole(r.Context(), auth.TokenFromContext(r.Context()),
		metaproject.UserID(req.User), metaproject.ProjectID(req.Project), metaproject.RoleID(req.Role))
	if err != nil {
		RespondFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) isAllowed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	op := metaproject.OperationID(q.Get("operation"))
	project := metaproject.ProjectID(q.Get("project"))
	user := metaproject.UserID(q.Get("user"))
	if op == "" || project == "" || user == "" {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "operation, project, and user are required")
		return
	}
	allowed, err := h.facade.IsOperationAllowed(r.Context(), auth.TokenFromContext(r.Context()), op, project, user)
	if err != nil {
		RespondFailure(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"allowed": allowed})
}

// ---- versioning ----

func (h *Handler) commit(w http.ResponseWriter, r *http.Request) {
	var bundle versioning.CommitBundle
	if err := httpx.DecodeJSON(r, &bundle); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed commit bundle")
		return
	}
	id := metaproject.ProjectID(chi.URLParam(r, "id"))
	history, err := h.facade.Commit(r.Context(), auth.TokenFromContext(r.Context()), id, bundle)
	if err != nil {
		RespondFailure(w, err)
		return
	}
	h.metrics.CommitAccepted()
	httpx.JSON(w, http.StatusOK, history)
}

func (h *Handler) head(w http.ResponseWriter, r *http.Request) {
	id := metaproject.ProjectID(chi.URLParam(r, "id"))
	head, err := h.facade.Head(r.Context(), auth.TokenFromContext(r.Context()), id)
	if err != nil {
		RespondFailure(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]versioning.Revision{"head": head})
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	id := metaproject.ProjectID(chi.URLParam(r, "id"))
	history, err := h.facade.History(r.Context(), auth.TokenFromContext(r.Context()), id)
	if err != nil {
		RespondFailure(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, history)
}

// ---- configuration ----

func (h *Handler) getHost(w http.ResponseWriter, r *http.Request) {
	host, err := h.facade.GetHost(r.Context(), auth.TokenFromContext(r.Context()))
	if err != nil {
		RespondFailure(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, host)
}

type setHostRequest struct {
	URI string `json:"uri" validate:"required,uri"`
}

func (h *Handler) setHost(w http.ResponseWriter, r *http.Request) {
	var req setHostRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.facade.SetHostAddress(r.Context(), auth.TokenFromContext(r.Context()), req.URI); err != nil {
		RespondFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type setPortRequest struct {
	Port int `json:"port" validate:"min=0,max=65535"`
}

func (h *Handler) setSecondaryPort(w http.ResponseWriter, r *http.Request) {
	var req setPortRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.facade.SetSecondaryPort(r.Context(), auth.TokenFromContext(r.Context()), req.Port); err != nil {
		RespondFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getRoot(w http.ResponseWriter, r *http.Request) {
	root, err := h.facade.GetRootDirectory(r.Context(), auth.TokenFromContext(r.Context()))
	if err != nil {
		RespondFailure(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"root": root})
}

type setRootRequest struct {
	Root string `json:"root" validate:"required"`
}

func (h *Handler) setRoot(w http.ResponseWriter, r *http.Request) {
	var req setRootRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.facade.SetRootDirectory(r.Context(), auth.TokenFromContext(r.Context()), req.Root); err != nil {
		RespondFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getProperties(w http.ResponseWriter, r *http.Request) {
	props, err := h.facade.GetServerProperties(r.Context(), auth.TokenFromContext(r.Context()))
	if err != nil {
		RespondFailure(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, props)
}

type setPropertyRequest struct {
	Value string `json:"value"`
}

func (h *Handler) setProperty(w http.ResponseWriter, r *http.Request) {
	var req setPropertyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed payload")
		return
	}
	key := chi.URLParam(r, "key")
	if err := h.facade.SetServerProperty(r.Context(), auth.TokenFromContext(r.Context()), key, req.Value); err != nil {
		RespondFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) unsetProperty(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if err := h.facade.UnsetServerProperty(r.Context(), auth.TokenFromContext(r.Context()), key); err != nil {
		RespondFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) reload(w http.ResponseWriter, r *http.Request) {
	if err := h.facade.Reload(r.Context(), auth.TokenFromContext(r.Context())); err != nil {
		RespondFailure(w, err)
		return
	}
	h.logger.Info("configuration reload requested")
	w.WriteHeader(http.StatusNoContent)
}
