package directory

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

type memoryUser struct {
	roles   map[string]struct{}
	blocked bool
	info    UserInfo
}

// Memory is an in-process Directory used in standalone mode and in tests.
// Users are blocked until UnblockUser is called.
type Memory struct {
	mu    sync.Mutex
	roles map[string]struct{}
	users map[string]*memoryUser

	// AutoProvision treats every login as known, creating it on first use.
	AutoProvision bool

	// FailOn makes the named operation return an error, for tests.
	FailOn map[string]error
}

// NewMemory creates an empty Memory directory.
func NewMemory() *Memory {
	return &Memory{
		roles:  make(map[string]struct{}),
		users:  make(map[string]*memoryUser),
		FailOn: make(map[string]error),
	}
}

var _ Directory = (*Memory)(nil)

// AddUser registers a login, as the identity provider would on sign-up.
func (m *Memory) AddUser(login string, info UserInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[strings.ToLower(login)] = &memoryUser{roles: make(map[string]struct{}), blocked: true, info: info}
}

// Blocked reports whether the login is still blocked.
func (m *Memory) Blocked(login string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[strings.ToLower(login)]
	return ok && u.blocked
}

func (m *Memory) fail(op string) error {
	if err, ok := m.FailOn[op]; ok {
		return err
	}
	return nil
}

func (m *Memory) user(login string) (*memoryUser, error) {
	key := strings.ToLower(login)
	u, ok := m.users[key]
	if !ok {
		if !m.AutoProvision {
			return nil, fmt.Errorf("directory user %q not found", login)
		}
		u = &memoryUser{roles: make(map[string]struct{}), blocked: true, info: UserInfo{Email: key}}
		m.users[key] = u
	}
	return u, nil
}

// AddRole implements Directory.
func (m *Memory) AddRole(ctx context.Context, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("AddRole"); err != nil {
		return err
	}
	if _, ok := m.roles[role]; ok {
		return fmt.Errorf("directory role %q already exists", role)
	}
	m.roles[role] = struct{}{}
	return nil
}

// DeleteRole implements Directory. Assignments of the role disappear with it.
func (m *Memory) DeleteRole(ctx context.Context, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("DeleteRole"); err != nil {
		return err
	}
	delete(m.roles, role)
	for _, u := range m.users {
		delete(u.roles, role)
	}
	return nil
}

// AllRoleNames implements Directory.
func (m *Memory) AllRoleNames(ctx context.Context) (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("AllRoleNames"); err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(m.roles))
	for r := range m.roles {
		out[r] = struct{}{}
	}
	return out, nil
}

// AssignRolesToUser implements Directory.
func (m *Memory) AssignRolesToUser(ctx context.Context, login string, roles []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("AssignRolesToUser"); err != nil {
		return err
	}
	u, err := m.user(login)
	if err != nil {
		return err
	}
	for _, r := range roles {
		if _, ok := m.roles[r]; !ok {
			return fmt.Errorf("directory role %q not found", r)
		}
	}
	for _, r := range roles {
		u.roles[r] = struct{}{}
	}
	return nil
}

// RemoveRolesFromUser implements Directory.
func (m *Memory) RemoveRolesFromUser(ctx context.Context, login string, roles []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("RemoveRolesFromUser"); err != nil {
		return err
	}
	u, err := m.user(login)
	if err != nil {
		return err
	}
	for _, r := range roles {
		delete(u.roles, r)
	}
	return nil
}

// UserRoles implements Directory.
func (m *Memory) UserRoles(ctx context.Context, login string) (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("UserRoles"); err != nil {
		return nil, err
	}
	u, err := m.user(login)
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(u.roles))
	for r := range u.roles {
		out[r] = struct{}{}
	}
	return out, nil
}

// UsersInRole implements Directory.
func (m *Memory) UsersInRole(ctx context.Context, role string) (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("UsersInRole"); err != nil {
		return nil, err
	}
	out := make(map[string]struct{})
	for login, u := range m.users {
		if _, ok := u.roles[role]; ok {
			out[login] = struct{}{}
		}
	}
	return out, nil
}

// UserExists implements Directory.
func (m *Memory) UserExists(ctx context.Context, login string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("UserExists"); err != nil {
		return false, err
	}
	_, ok := m.users[strings.ToLower(login)]
	return ok || m.AutoProvision, nil
}

// UnblockUser implements Directory.
func (m *Memory) UnblockUser(ctx context.Context, login string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("UnblockUser"); err != nil {
		return err
	}
	u, err := m.user(login)
	if err != nil {
		return err
	}
	u.blocked = false
	return nil
}

// UserInfo implements Directory.
func (m *Memory) UserInfo(ctx context.Context, login string) (*UserInfo, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("UserInfo"); err != nil {
		return nil, false, err
	}
	u, ok := m.users[strings.ToLower(login)]
	if !ok && !m.AutoProvision {
		return nil, false, nil
	}
	if !ok {
		return &UserInfo{Email: strings.ToLower(login)}, true, nil
	}
	info := u.info
	return &info, true, nil
}
