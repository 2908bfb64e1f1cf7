package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/conceptforge/conceptforge/internal/auth"
	"github.com/conceptforge/conceptforge/internal/metaproject"
	"github.com/conceptforge/conceptforge/internal/storage"
	"github.com/conceptforge/conceptforge/internal/versioning"
)

// Facade is the service facade. Every operation takes the caller's
// AuthToken, fails with ErrAuthorization when the token is invalid, and ends
// every successful mutation with a wholesale snapshot save.
//
// Locking: each shared resource (the four registries, the credential store,
// the policy, the configuration fields) has its own named RWMutex; an
// operation takes only the locks of the resources it touches, always in
// declaration order. The snapshot save runs under a dedicated persistence
// mutex plus read locks over everything, so concurrent saves never
// interleave and never observe a half-applied mutation.
type Facade struct {
	logger *slog.Logger
	store  storage.SnapshotStore
	vcs    *versioning.Service

	cfg *metaproject.ServerConfiguration

	// Lock order. Operations touching several resources acquire their
	// locks strictly top to bottom.
	muUsers       sync.RWMutex
	muCredentials sync.RWMutex
	muProjects    sync.RWMutex
	muRoles       sync.RWMutex
	muOperations  sync.RWMutex
	muPolicy      sync.RWMutex
	muConfig      sync.RWMutex

	muPersist sync.Mutex
}

// New builds a facade over the given configuration aggregate.
func New(logger *slog.Logger, cfg *metaproject.ServerConfiguration, store storage.SnapshotStore, vcs *versioning.Service) *Facade {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.Normalize()
	return &Facade{logger: logger, store: store, vcs: vcs, cfg: cfg}
}

// authorize rejects zero tokens and tokens naming a user that no longer
// exists. Session expiry is the token table's concern; by the time a token
// reaches the facade it has already been resolved from a live session.
func (f *Facade) authorize(token auth.AuthToken) error {
	if token.Zero() {
		return fail(ErrAuthorization, errors.New("missing token"))
	}
	f.muUsers.RLock()
	known := f.cfg.Users.Contains(token.User)
	f.muUsers.RUnlock()
	if !known {
		return fail(ErrAuthorization, fmt.Errorf("unknown user %s", token.User))
	}
	return nil
}

// persist rewrites the whole configuration snapshot. It costs O(config
// size) per mutating call by design; the write rate of a collaboration
// server is low enough that simplicity wins.
func (f *Facade) persist(ctx context.Context) error {
	f.muPersist.Lock()
	defer f.muPersist.Unlock()

	f.muUsers.RLock()
	defer f.muUsers.RUnlock()
	f.muCredentials.RLock()
	defer f.muCredentials.RUnlock()
	f.muProjects.RLock()
	defer f.muProjects.RUnlock()
	f.muRoles.RLock()
	defer f.muRoles.RUnlock()
	f.muOperations.RLock()
	defer f.muOperations.RUnlock()
	f.muPolicy.RLock()
	defer f.muPolicy.RUnlock()
	f.muConfig.RLock()
	defer f.muConfig.RUnlock()

	if err := f.store.Save(ctx, f.cfg); err != nil {
		return fail(ErrIO, err)
	}
	return nil
}

func mapRegistryErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, metaproject.ErrDuplicateID):
		return fail(ErrConflict, err)
	case errors.Is(err, metaproject.ErrUnknownID):
		return fail(ErrNotFound, err)
	default:
		return fail(ErrService, err)
	}
}

// ---- users ----

// CreateUser adds a user to the registry and, when passwordDigest is
// non-empty, registers the digest in the credential store. Each of the two
// sub-mutations persists on its own.
func (f *Facade) CreateUser(ctx context.Context, token auth.AuthToken, user metaproject.User, passwordDigest string) error {
	if err := f.authorize(token); err != nil {
		return err
	}
	f.muUsers.Lock()
	err := f.cfg.Users.Add(user.ID, user)
	f.muUsers.Unlock()
	if err != nil {
		return mapRegistryErr(err)
	}
	if err := f.persist(ctx); err != nil {
		return err
	}
	if passwordDigest == "" {
		return nil
	}

	f.muCredentials.Lock()
	_, taken := f.cfg.Credentials[user.ID]
	if !taken {
		f.cfg.Credentials[user.ID] = passwordDigest
	}
	f.muCredentials.Unlock()
	if taken {
		return fail(ErrConflict, fmt.Errorf("credential already registered for %s", user.ID))
	}
	return f.persist(ctx)
}

// DeleteUser removes the user, its credential, and every policy assignment
// that references it.
func (f *Facade) DeleteUser(ctx context.Context, token auth.AuthToken, id metaproject.UserID) error {
	if err := f.authorize(token); err != nil {
		return err
	}
	f.muUsers.Lock()
	err := f.cfg.Users.Remove(id)
	f.muUsers.Unlock()
	if err != nil {
		return mapRegistryErr(err)
	}

	f.muCredentials.Lock()
	delete(f.cfg.Credentials, id)
	f.muCredentials.Unlock()

	f.muPolicy.Lock()
	f.cfg.Policy.RetractAll(func(a metaproject.Assignment) bool { return a.User == id })
	f.muPolicy.Unlock()

	return f.persist(ctx)
}

// UpdateUser replaces the user record for id.
func (f *Facade) UpdateUser(ctx context.Context, token auth.AuthToken, id metaproject.UserID, updated metaproject.User) error {
	if err := f.authorize(token); err != nil {
		return err
	}
	updated.ID = id
	f.muUsers.Lock()
	err := f.cfg.Users.Update(id, updated)
	f.muUsers.Unlock()
	if err != nil {
		return mapRegistryErr(err)
	}
	return f.persist(ctx)
}

// GetAllUsers lists the user registry.
func (f *Facade) GetAllUsers(_ context.Context, token auth.AuthToken) ([]metaproject.User, error) {
	if err := f.authorize(token); err != nil {
		return nil, err
	}
	f.muUsers.RLock()
	defer f.muUsers.RUnlock()
	return f.cfg.Users.List(), nil
}

// Digest resolves a user's registered password digest for the login
// service. A user without a registered password yields "".
func (f *Facade) Digest(_ context.Context, id metaproject.UserID) (string, error) {
	f.muUsers.RLock()
	known := f.cfg.Users.Contains(id)
	f.muUsers.RUnlock()
	if !known {
		return "", fail(ErrNotFound, fmt.Errorf("unknown user %s", id))
	}
	f.muCredentials.RLock()
	defer f.muCredentials.RUnlock()
	return f.cfg.Credentials[id], nil
}

// ---- projects ----

// CreateProject creates the project's history file under the server root,
// inserts the project record, persists, and returns the document locator.
// If the history file cannot be created nothing else happens; if registry
// insertion fails the freshly created project directory is removed again.
func (f *Facade) CreateProject(ctx context.Context, token auth.AuthToken, id metaproject.ProjectID, name, description string, owner metaproject.UserID, options map[string]string) (ServerDocument, error) {
	if err := f.authorize(token); err != nil {
		return ServerDocument{}, err
	}

	f.muConfig.RLock()
	host := f.cfg.Host
	root := f.cfg.Root
	f.muConfig.RUnlock()

	projectDir := filepath.Join(root, string(id))
	historyFile, err := versioning.CreateNew(projectDir, name, 0)
	if err != nil {
		return ServerDocument{}, fail(ErrIO, err)
	}

	project := metaproject.Project{
		ID:              id,
		Name:            name,
		Description:     description,
		Owner:           owner,
		HistoryFilePath: historyFile.Path(),
		Options:         options,
	}
	f.muProjects.Lock()
	err = f.cfg.Projects.Add(id, project)
	f.muProjects.Unlock()
	if err != nil {
		// Compensating delete: never leave an orphaned history file
		// behind a failed insertion. Only the freshly created file is
		// removed; the directory may already belong to another project.
		if rmErr := os.Remove(historyFile.Path()); rmErr != nil {
			f.logger.Warn("remove orphaned history file",
				slog.String("path", historyFile.Path()), slog.Any("error", rmErr))
		}
		_ = os.Remove(projectDir)
		return ServerDocument{}, mapRegistryErr(err)
	}
	if err := f.persist(ctx); err != nil {
		return ServerDocument{}, err
	}
	f.logger.Info("project created", slog.String("project", string(id)), slog.String("history", historyFile.Path()))
	return newServerDocument(host, historyFile.Path()), nil
}

// OpenProject resolves an existing project to its document locator.
func (f *Facade) OpenProject(_ context.Context, token auth.AuthToken, id metaproject.ProjectID) (ServerDocument, error) {
	if err := f.authorize(token); err != nil {
		return ServerDocument{}, err
	}
	f.muProjects.RLock()
	project, err := f.cfg.Projects.Get(id)
	f.muProjects.RUnlock()
	if err != nil {
		return ServerDocument{}, mapRegistryErr(err)
	}
	historyFile, err := versioning.OpenExisting(project.HistoryFilePath)
	if err != nil {
		return ServerDocument{}, fail(ErrIO, err)
	}
	f.muConfig.RLock()
	host := f.cfg.Host
	f.muConfig.RUnlock()
	return newServerDocument(host, historyFile.Path()), nil
}

// DeleteProject removes the project and its policy assignments, then, when
// includeFile is set, deletes the project directory tree. Registry removal
// stands even if the file deletion fails; the failure is surfaced as an IO
// failure.
func (f *Facade) DeleteProject(ctx context.Context, token auth.AuthToken, id metaproject.ProjectID, includeFile bool) error {
	if err := f.authorize(token); err != nil {
		return err
	}
	f.muProjects.Lock()
	project, err := f.cfg.Projects.Get(id)
	if err == nil {
		err = f.cfg.Projects.Remove(id)
	}
	f.muProjects.Unlock()
	if err != nil {
		return mapRegistryErr(err)
	}

	f.muPolicy.Lock()
	f.cfg.Policy.RetractAll(func(a metaproject.Assignment) bool { return a.Project == id })
	f.muPolicy.Unlock()

	if err := f.persist(ctx); err != nil {
		return err
	}

	if !includeFile {
		return nil
	}
	// The directory is derived from the recorded path, not from opening
	// the history file: a corrupt or missing log must not strand the
	// directory on disk after the registry entry is already gone.
	if err := os.RemoveAll(filepath.Dir(project.HistoryFilePath)); err != nil {
		return fail(ErrIO, fmt.Errorf("delete project directory: %w", err))
	}
	f.logger.Info("project deleted", slog.String("project", string(id)), slog.Bool("include_file", includeFile))
	return nil
}

// UpdateProject replaces the project record for id.
func (f *Facade) UpdateProject(ctx context.Context, token auth.AuthToken, id metaproject.ProjectID, updated metaproject.Project) error {
	if err := f.authorize(token); err != nil {
		return err
	}
	updated.ID = id
	f.muProjects.Lock()
	err := f.cfg.Projects.Update(id, updated)
	f.muProjects.Unlock()
	if err != nil {
		return mapRegistryErr(err)
	}
	return f.persist(ctx)
}

// GetAllProjects lists the project registry.
func (f *Facade) GetAllProjects(_ context.Context, token auth.AuthToken) ([]metaproject.Project, error) {
	if err := f.authorize(token); err != nil {
		return nil, err
	}
	f.muProjects.RLock()
	defer f.muProjects.RUnlock()
	return f.cfg.Projects.List(), nil
}

// GetProjects lists the projects on which user holds at least one role.
func (f *Facade) GetProjects(_ context.Context, token auth.AuthToken, user metaproject.UserID) ([]metaproject.Project, error) {
	if err := f.authorize(token); err != nil {
		return nil, err
	}
	f.muProjects.RLock()
	defer f.muProjects.RUnlock()
	f.muPolicy.RLock()
	defer f.muPolicy.RUnlock()

	ids, err := f.cfg.Policy.ProjectIDs(user)
	if err != nil {
		return nil, fail(ErrService, err)
	}
	projects := make([]metaproject.Project, 0, len(ids))
	for _, id := range ids {
		project, err := f.cfg.Projects.Get(id)
		if err != nil {
			return nil, fail(ErrService, err)
		}
		projects = append(projects, project)
	}
	return projects, nil
}

// ---- roles ----

// CreateRole adds a role to the registry.
func (f *Facade) CreateRole(ctx context.Context, token auth.AuthToken, role metaproject.Role) error {
	if err := f.authorize(token); err != nil {
		return err
	}
	f.muRoles.Lock()
	err := f.cfg.Roles.Add(role.ID, role)
	f.muRoles.Unlock()
	if err != nil {
		return mapRegistryErr(err)
	}
	return f.persist(ctx)
}

// DeleteRole removes the role and every policy assignment granting it.
func (f *Facade) DeleteRole(ctx context.Context, token auth.AuthToken, id metaproject.RoleID) error {
	if err := f.authorize(token); err != nil {
		return err
	}
	f.muRoles.Lock()
	err := f.cfg.Roles.Remove(id)
	f.muRoles.Unlock()
	if err != nil {
		return mapRegistryErr(err)
	}

	f.muPolicy.Lock()
	f.cfg.Policy.RetractAll(func(a metaproject.Assignment) bool { return a.Role == id })
	f.muPolicy.Unlock()

	return f.persist(ctx)
}

// UpdateRole replaces the role record for id.
func (f *Facade) UpdateRole(ctx context.Context, token auth.AuthToken, id metaproject.RoleID, updated metaproject.Role) error {
	if err := f.authorize(token); err != nil {
		return err
	}
	updated.ID = id
	f.muRoles.Lock()
	err := f.cfg.Roles.Update(id, updated)
	f.muRoles.Unlock()
	if err != nil {
		return mapRegistryErr(err)
	}
	return f.persist(ctx)
}

// GetAllRoles lists the role registry.
func (f *Facade) GetAllRoles(_ context.Context, token auth.AuthToken) ([]metaproject.Role, error) {
	if err := f.authorize(token); err != nil {
		return nil, err
	}
	f.muRoles.RLock()
	defer f.muRoles.RUnlock()
	return f.cfg.Roles.List(), nil
}

// ---- operations ----

// CreateOperation adds an operation to the registry.
func (f *Facade) CreateOperation(ctx context.Context, token auth.AuthToken, op metaproject.Operation) error {
	if err := f.authorize(token); err != nil {
		return err
	}
	f.muOperations.Lock()
	err := f.cfg.Operations.Add(op.ID, op)
	f.muOperations.Unlock()
	if err != nil {
		return mapRegistryErr(err)
	}
	return f.persist(ctx)
}

// DeleteOperation removes the operation and strips it from every role's
// operation set so no role references a missing operation.
func (f *Facade) DeleteOperation(ctx context.Context, token auth.AuthToken, id metaproject.OperationID) error {
	if err := f.authorize(token); err != nil {
		return err
	}
	f.muRoles.Lock()
	f.muOperations.Lock()
	err := f.cfg.Operations.Remove(id)
	if err == nil {
		for _, role := range f.cfg.Roles.List() {
			kept := role.Operations[:0]
			for _, opID := range role.Operations {
				if opID != id {
					kept = append(kept, opID)
				}
			}
			if len(kept) != len(role.Operations) {
				role.Operations = kept
				_ = f.cfg.Roles.Update(role.ID, role)
			}
		}
	}
	f.muOperations.Unlock()
	f.muRoles.Unlock()
	if err != nil {
		return mapRegistryErr(err)
	}
	return f.persist(ctx)
}

// UpdateOperation replaces the operation record for id.
func (f *Facade) UpdateOperation(ctx context.Context, token auth.AuthToken, id metaproject.OperationID, updated metaproject.Operation) error {
	if err := f.authorize(token); err != nil {
		return err
	}
	updated.ID = id
	f.muOperations.Lock()
	err := f.cfg.Operations.Update(id, updated)
	f.muOperations.Unlock()
	if err != nil {
		return mapRegistryErr(err)
	}
	return f.persist(ctx)
}

// GetAllOperations lists the operation registry.
func (f *Facade) GetAllOperations(_ context.Context, token auth.AuthToken) ([]metaproject.Operation, error) {
	if err := f.authorize(token); err != nil {
		return nil, err
	}
	f.muOperations.RLock()
	defer f.muOperations.RUnlock()
	return f.cfg.Operations.List(), nil
}

// ---- policy ----

// AssignRole grants user the role on project. All three ids must resolve.
func (f *Facade) AssignRole(ctx context.Context, token auth.AuthToken, user metaproject.UserID, project metaproject.ProjectID, role metaproject.RoleID) error {
	if err := f.authorize(token); err != nil {
		return err
	}
	f.muUsers.RLock()
	userKnown := f.cfg.Users.Contains(user)
	f.muUsers.RUnlock()
	if !userKnown {
		return fail(ErrNotFound, fmt.Errorf("unknown user %s", user))
	}
	f.muProjects.RLock()
	projectKnown := f.cfg.Projects.Contains(project)
	f.muProjects.RUnlock()
	if !projectKnown {
		return fail(ErrNotFound, fmt.Errorf("unknown project %s", project))
	}
	f.muRoles.RLock()
	roleKnown := f.cfg.Roles.Contains(role)
	f.muRoles.RUnlock()
	if !roleKnown {
		return fail(ErrNotFound, fmt.Errorf("unknown role %s", role))
	}

	f.muPolicy.Lock()
	f.cfg.Policy.Add(metaproject.Assignment{User: user, Project: project, Role: role})
	f.muPolicy.Unlock()
	return f.persist(ctx)
}

// RetractRole revokes the grant. Retracting an absent assignment is not an
// error.
func (f *Facade) RetractRole(ctx context.Context, token auth.AuthToken, user metaproject.UserID, project metaproject.ProjectID, role metaproject.RoleID) error {
	if err := f.authorize(token); err != nil {
		return err
	}
	f.muPolicy.Lock()
	f.cfg.Policy.Remove(metaproject.Assignment{User: user, Project: project, Role: role})
	f.muPolicy.Unlock()
	return f.persist(ctx)
}

// GetRoles maps every project the user is assigned to onto the roles held
// there.
func (f *Facade) GetRoles(_ context.Context, token auth.AuthToken, user metaproject.UserID) (map[metaproject.ProjectID][]metaproject.Role, error) {
	if err := f.authorize(token); err != nil {
		return nil, err
	}
	f.muProjects.RLock()
	defer f.muProjects.RUnlock()
	f.muRoles.RLock()
	defer f.muRoles.RUnlock()
	f.muPolicy.RLock()
	defer f.muPolicy.RUnlock()

	ids, err := f.cfg.Policy.ProjectIDs(user)
	if err != nil {
		return nil, fail(ErrService, err)
	}
	out := make(map[metaproject.ProjectID][]metaproject.Role, len(ids))
	for _, id := range ids {
		roles, err := f.cfg.RolesFor(user, id)
		if err != nil {
			return nil, fail(ErrService, err)
		}
		out[id] = roles
	}
	return out, nil
}

// GetRolesOnProject lists the roles user holds on one project.
func (f *Facade) GetRolesOnProject(_ context.Context, token auth.AuthToken, user metaproject.UserID, project metaproject.ProjectID) ([]metaproject.Role, error) {
	if err := f.authorize(token); err != nil {
		return nil, err
	}
	f.muRoles.RLock()
	defer f.muRoles.RUnlock()
	f.muPolicy.RLock()
	defer f.muPolicy.RUnlock()

	roles, err := f.cfg.RolesFor(user, project)
	if err != nil {
		return nil, fail(ErrService, err)
	}
	return roles, nil
}

// GetOperations maps every project the user is assigned to onto the
// operations allowed there.
func (f *Facade) GetOperations(_ context.Context, token auth.AuthToken, user metaproject.UserID) (map[metaproject.ProjectID][]metaproject.Operation, error) {
	if err := f.authorize(token); err != nil {
		return nil, err
	}
	f.muProjects.RLock()
	defer f.muProjects.RUnlock()
	f.muRoles.RLock()
	defer f.muRoles.RUnlock()
	f.muOperations.RLock()
	defer f.muOperations.RUnlock()
	f.muPolicy.RLock()
	defer f.muPolicy.RUnlock()

	ids, err := f.cfg.Policy.ProjectIDs(user)
	if err != nil {
		return nil, fail(ErrService, err)
	}
	out := make(map[metaproject.ProjectID][]metaproject.Operation, len(ids))
	for _, id := range ids {
		ops, err := f.cfg.OperationsFor(user, id)
		if err != nil {
			return nil, fail(ErrService, err)
		}
		out[id] = ops
	}
	return out, nil
}

// GetOperationsOnProject lists the operations user may perform on project.
func (f *Facade) GetOperationsOnProject(_ context.Context, token auth.AuthToken, user metaproject.UserID, project metaproject.ProjectID) ([]metaproject.Operation, error) {
	if err := f.authorize(token); err != nil {
		return nil, err
	}
	f.muRoles.RLock()
	defer f.muRoles.RUnlock()
	f.muOperations.RLock()
	defer f.muOperations.RUnlock()
	f.muPolicy.RLock()
	defer f.muPolicy.RUnlock()

	ops, err := f.cfg.OperationsFor(user, project)
	if err != nil {
		return nil, fail(ErrService, err)
	}
	return ops, nil
}

// GetOperationsOfRole lists the operation set of one role.
func (f *Facade) GetOperationsOfRole(_ context.Context, token auth.AuthToken, role metaproject.RoleID) ([]metaproject.Operation, error) {
	if err := f.authorize(token); err != nil {
		return nil, err
	}
	f.muRoles.RLock()
	defer f.muRoles.RUnlock()
	f.muOperations.RLock()
	defer f.muOperations.RUnlock()

	ops, err := f.cfg.OperationsOfRole(role)
	if err != nil {
		return nil, mapRegistryErr(err)
	}
	return ops, nil
}

// IsOperationAllowed reports whether any role user holds on project grants
// op. A "no" is a plain false, never an error.
func (f *Facade) IsOperationAllowed(_ context.Context, token auth.AuthToken, op metaproject.OperationID, project metaproject.ProjectID, user metaproject.UserID) (bool, error) {
	if err := f.authorize(token); err != nil {
		return false, err
	}
	f.muRoles.RLock()
	defer f.muRoles.RUnlock()
	f.muPolicy.RLock()
	defer f.muPolicy.RUnlock()
	return f.cfg.IsOperationAllowed(op, project, user), nil
}

// ---- server configuration ----

// GetHost returns the advertised host.
func (f *Facade) GetHost(_ context.Context, token auth.AuthToken) (metaproject.Host, error) {
	if err := f.authorize(token); err != nil {
		return metaproject.Host{}, err
	}
	f.muConfig.RLock()
	defer f.muConfig.RUnlock()
	return f.cfg.Host, nil
}

// SetHostAddress updates the advertised URI, keeping the secondary port.
func (f *Facade) SetHostAddress(ctx context.Context, token auth.AuthToken, uri string) error {
	if err := f.authorize(token); err != nil {
		return err
	}
	f.muConfig.Lock()
	f.cfg.Host.URI = uri
	f.muConfig.Unlock()
	return f.persist(ctx)
}

// SetSecondaryPort updates the admin port. Zero or negative unsets it.
func (f *Facade) SetSecondaryPort(ctx context.Context, token auth.AuthToken, port int) error {
	if err := f.authorize(token); err != nil {
		return err
	}
	if port < 0 {
		port = 0
	}
	f.muConfig.Lock()
	f.cfg.Host.SecondaryPort = port
	f.muConfig.Unlock()
	return f.persist(ctx)
}

// GetRootDirectory returns the server root path.
func (f *Facade) GetRootDirectory(_ context.Context, token auth.AuthToken) (string, error) {
	if err := f.authorize(token); err != nil {
		return "", err
	}
	f.muConfig.RLock()
	defer f.muConfig.RUnlock()
	return f.cfg.Root, nil
}

// SetRootDirectory updates the server root path for future projects.
func (f *Facade) SetRootDirectory(ctx context.Context, token auth.AuthToken, root string) error {
	if err := f.authorize(token); err != nil {
		return err
	}
	f.muConfig.Lock()
	f.cfg.Root = root
	f.muConfig.Unlock()
	return f.persist(ctx)
}

// GetServerProperties returns a copy of the free-form properties.
func (f *Facade) GetServerProperties(_ context.Context, token auth.AuthToken) (map[string]string, error) {
	if err := f.authorize(token); err != nil {
		return nil, err
	}
	f.muConfig.RLock()
	defer f.muConfig.RUnlock()
	out := make(map[string]string, len(f.cfg.Properties))
	for k, v := range f.cfg.Properties {
		out[k] = v
	}
	return out, nil
}

// SetServerProperty adds or replaces one property.
func (f *Facade) SetServerProperty(ctx context.Context, token auth.AuthToken, key, value string) error {
	if err := f.authorize(token); err != nil {
		return err
	}
	f.muConfig.Lock()
	f.cfg.Properties[key] = value
	f.muConfig.Unlock()
	return f.persist(ctx)
}

// UnsetServerProperty removes one property. Removing an absent key is a
// no-op.
func (f *Facade) UnsetServerProperty(ctx context.Context, token auth.AuthToken, key string) error {
	if err := f.authorize(token); err != nil {
		return err
	}
	f.muConfig.Lock()
	delete(f.cfg.Properties, key)
	f.muConfig.Unlock()
	return f.persist(ctx)
}

// ---- versioning ----

// Commit applies a commit bundle to the project's history and returns the
// newly created revisions. A bundle whose base revision is stale fails with
// ErrConflict; history-file trouble fails with ErrIO.
func (f *Facade) Commit(_ context.Context, token auth.AuthToken, project metaproject.ProjectID, bundle versioning.CommitBundle) (*versioning.ChangeHistory, error) {
	if err := f.authorize(token); err != nil {
		return nil, err
	}
	f.muProjects.RLock()
	record, err := f.cfg.Projects.Get(project)
	f.muProjects.RUnlock()
	if err != nil {
		return nil, mapRegistryErr(err)
	}

	history, err := f.vcs.Commit(record.HistoryFilePath, bundle)
	switch {
	case err == nil:
		return history, nil
	case errors.Is(err, versioning.ErrHeadMismatch):
		return nil, fail(ErrConflict, err)
	case errors.Is(err, versioning.ErrInvalidHistoryFile):
		return nil, fail(ErrIO, err)
	default:
		return nil, fail(ErrService, err)
	}
}

// Head returns the current head revision of the project's history.
func (f *Facade) Head(_ context.Context, token auth.AuthToken, project metaproject.ProjectID) (versioning.Revision, error) {
	if err := f.authorize(token); err != nil {
		return 0, err
	}
	f.muProjects.RLock()
	record, err := f.cfg.Projects.Get(project)
	f.muProjects.RUnlock()
	if err != nil {
		return 0, mapRegistryErr(err)
	}
	head, err := f.vcs.Head(record.HistoryFilePath)
	if err != nil {
		return 0, fail(ErrIO, err)
	}
	return head, nil
}

// History returns the full change history of the project.
func (f *Facade) History(_ context.Context, token auth.AuthToken, project metaproject.ProjectID) (*versioning.ChangeHistory, error) {
	if err := f.authorize(token); err != nil {
		return nil, err
	}
	f.muProjects.RLock()
	record, err := f.cfg.Projects.Get(project)
	f.muProjects.RUnlock()
	if err != nil {
		return nil, mapRegistryErr(err)
	}
	history, err := f.vcs.History(record.HistoryFilePath)
	if err != nil {
		return nil, fail(ErrIO, err)
	}
	return history, nil
}

// ---- lifecycle ----

// Reload replaces the in-memory configuration with the persisted snapshot,
// taking every resource lock so readers never observe a half-swapped
// aggregate.
func (f *Facade) Reload(ctx context.Context, token auth.AuthToken) error {
	if err := f.authorize(token); err != nil {
		return err
	}
	fresh, err := f.store.Load(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNoSnapshot) {
			return fail(ErrService, err)
		}
		return fail(ErrIO, err)
	}
	fresh.Normalize()

	f.muUsers.Lock()
	defer f.muUsers.Unlock()
	f.muCredentials.Lock()
	defer f.muCredentials.Unlock()
	f.muProjects.Lock()
	defer f.muProjects.Unlock()
	f.muRoles.Lock()
	defer f.muRoles.Unlock()
	f.muOperations.Lock()
	defer f.muOperations.Unlock()
	f.muPolicy.Lock()
	defer f.muPolicy.Unlock()
	f.muConfig.Lock()
	defer f.muConfig.Unlock()

	f.cfg = fresh
	f.logger.Info("configuration reloaded")
	return nil
}
