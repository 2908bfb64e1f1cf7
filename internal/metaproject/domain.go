// Package metaproject defines the shared domain model of the collaboration
// server: users, projects, roles, operations, the access policy, and the
// mutable server configuration aggregate that holds them all.
package metaproject

// Typed identifiers for the four registries.
type (
	UserID      string
	ProjectID   string
	RoleID      string
	OperationID string
)

// OperationKind classifies what an operation does to a project.
type OperationKind string

// Operation kinds.
const (
	OperationRead    OperationKind = "read"
	OperationWrite   OperationKind = "write"
	OperationExecute OperationKind = "execute"
)

// User is a registered account on the server.
type User struct {
	ID         UserID            `json:"id"`
	Name       string            `json:"name"`
	Email      string            `json:"email"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Project is one shared, versioned document collection. HistoryFilePath
// points at the append-only change log backing the project.
type Project struct {
	ID              ProjectID         `json:"id"`
	Name            string            `json:"name"`
	Description     string            `json:"description"`
	Owner           UserID            `json:"owner"`
	HistoryFilePath string            `json:"history_file_path"`
	Options         map[string]string `json:"options,omitempty"`
}

// Operation is an atomic capability that roles grant.
type Operation struct {
	ID   OperationID   `json:"id"`
	Name string        `json:"name"`
	Kind OperationKind `json:"kind"`
}

// Role groups operations under a name.
type Role struct {
	ID         RoleID        `json:"id"`
	Name       string        `json:"name"`
	Operations []OperationID `json:"operations"`
}

// Allows reports whether the role's operation set contains op.
func (r Role) Allows(op OperationID) bool {
	for _, id := range r.Operations {
		if id == op {
			return true
		}
	}
	return false
}

// Assignment grants a user one role on one project.
type Assignment struct {
	User    UserID    `json:"user"`
	Project ProjectID `json:"project"`
	Role    RoleID    `json:"role"`
}

// Host is the advertised server address plus the optional admin port.
// SecondaryPort zero means unset.
type Host struct {
	URI           string `json:"uri"`
	SecondaryPort int    `json:"secondary_port,omitempty"`
}

// ServerConfiguration is the single process-wide aggregate: host, server
// root, free-form properties, the four registries, the policy, and the
// credential digests. It is loaded wholesale at startup and rewritten
// wholesale after every successful mutation.
type ServerConfiguration struct {
	Host       Host              `json:"host"`
	Root       string            `json:"root"`
	Properties map[string]string `json:"properties,omitempty"`

	Users      *Registry[UserID, User]           `json:"users"`
	Projects   *Registry[ProjectID, Project]     `json:"projects"`
	Roles      *Registry[RoleID, Role]           `json:"roles"`
	Operations *Registry[OperationID, Operation] `json:"operations"`

	Policy *Policy `json:"policy"`

	// Credentials maps a user id to its bcrypt password digest.
	Credentials map[UserID]string `json:"credentials,omitempty"`
}

// NewServerConfiguration builds an empty configuration rooted at root and
// advertising host.
func NewServerConfiguration(host Host, root string) *ServerConfiguration {
	return &ServerConfiguration{
		Host:        host,
		Root:        root,
		Properties:  make(map[string]string),
		Users:       NewRegistry[UserID, User](),
		Projects:    NewRegistry[ProjectID, Project](),
		Roles:       NewRegistry[RoleID, Role](),
		Operations:  NewRegistry[OperationID, Operation](),
		Policy:      NewPolicy(),
		Credentials: make(map[UserID]string),
	}
}

// Normalize backfills nil collections after JSON decoding so callers never
// see a half-initialized aggregate.
func (c *ServerConfiguration) Normalize() {
	if c.Properties == nil {
		c.Properties = make(map[string]string)
	}
	if c.Users == nil {
		c.Users = NewRegistry[UserID, User]()
	}
	if c.Projects == nil {
		c.Projects = NewRegistry[ProjectID, Project]()
	}
	if c.Roles == nil {
		c.Roles = NewRegistry[RoleID, Role]()
	}
	if c.Operations == nil {
		c.Operations = NewRegistry[OperationID, Operation]()
	}
	if c.Policy == nil {
		c.Policy = NewPolicy()
	}
	if c.Credentials == nil {
		c.Credentials = make(map[UserID]string)
	}
}
