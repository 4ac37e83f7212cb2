// Package memory is an in-memory implementation of store.Store for
// development and testing.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/MacJediWizard/orgwarden/internal/models"
	"github.com/MacJediWizard/orgwarden/internal/store"
)

type state struct {
	nextID    int64
	orgs      map[int64]models.Organization
	users     map[int64]models.User
	roles     map[int64]models.Role
	userRoles map[int64][]int64
}

func newState() *state {
	return &state{
		orgs:      make(map[int64]models.Organization),
		users:     make(map[int64]models.User),
		roles:     make(map[int64]models.Role),
		userRoles: make(map[int64][]int64),
	}
}

func (st *state) clone() *state {
	c := newState()
	c.nextID = st.nextID
	for id, o := range st.orgs {
		c.orgs[id] = o
	}
	for id, u := range st.users {
		if u.AcceptKey != nil {
			k := *u.AcceptKey
			u.AcceptKey = &k
		}
		c.users[id] = u
	}
	for id, r := range st.roles {
		c.roles[id] = r
	}
	for id, rs := range st.userRoles {
		c.userRoles[id] = append([]int64(nil), rs...)
	}
	return c
}

func (st *state) id() int64 {
	st.nextID++
	return st.nextID
}

// Store is an in-memory store.Store. Transactions work on a copy of the whole
// state that replaces the original on commit, so they are fully serialized.
type Store struct {
	mu   *sync.Mutex
	st   *state
	inTx bool
}

// New creates an empty Store.
func New() *Store {
	return &Store{mu: &sync.Mutex{}, st: newState()}
}

var _ store.Store = (*Store)(nil)

func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// InTx implements store.Store.
func (s *Store) InTx(ctx context.Context, fn func(tx store.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Store{mu: s.mu, st: s.st.clone(), inTx: true}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = tx.st
	return nil
}

// CreateOrganization implements store.OrganizationStore.
func (s *Store) CreateOrganization(ctx context.Context, org *models.Organization) error {
	defer s.lock()()

	for _, o := range s.st.orgs {
		if o.Name == org.Name || (org.Role != "" && o.Role == org.Role) {
			return store.ErrOrganizationExists
		}
	}
	for _, r := range s.st.roles {
		if org.Role != "" && r.Role == org.Role {
			return store.ErrOrganizationExists
		}
	}

	org.ID = s.st.id()
	now := time.Now()
	org.CreatedAt, org.UpdatedAt = now, now
	row := *org
	row.Users, row.Roles = nil, nil
	s.st.orgs[org.ID] = row
	return nil
}

// GetOrganization implements store.OrganizationStore.
func (s *Store) GetOrganization(ctx context.Context, id int64) (*models.Organization, error) {
	defer s.lock()()

	o, ok := s.st.orgs[id]
	if !ok {
		return nil, store.ErrOrganizationNotFound
	}
	o.Users = s.usersOf(id)
	o.Roles = s.rolesOf(id)
	return &o, nil
}

// GetOrganizationByName implements store.OrganizationStore.
func (s *Store) GetOrganizationByName(ctx context.Context, name string) (*models.Organization, error) {
	defer s.lock()()

	for _, o := range s.st.orgs {
		if o.Name == name {
			return &o, nil
		}
	}
	return nil, store.ErrOrganizationNotFound
}

// ListOrganizations implements store.OrganizationStore.
func (s *Store) ListOrganizations(ctx context.Context) ([]*models.Organization, error) {
	defer s.lock()()

	out := make([]*models.Organization, 0, len(s.st.orgs))
	for _, o := range s.st.orgs {
		o := o
		out = append(out, &o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// UpdateOrganization implements store.OrganizationStore.
func (s *Store) UpdateOrganization(ctx context.Context, org *models.Organization) error {
	defer s.lock()()

	cur, ok := s.st.orgs[org.ID]
	if !ok {
		return store.ErrOrganizationNotFound
	}
	for id, o := range s.st.orgs {
		if id != org.ID && o.Name == org.Name {
			return store.ErrOrganizationExists
		}
	}

	cur.Name = org.Name
	cur.Address = org.Address
	cur.ContactName = org.ContactName
	cur.ContactEmail = org.ContactEmail
	cur.ContactPhone = org.ContactPhone
	cur.Image = org.Image
	cur.Logo = org.Logo
	cur.UpdatedAt = time.Now()
	org.UpdatedAt = cur.UpdatedAt
	s.st.orgs[org.ID] = cur
	return nil
}

// DeleteOrganization implements store.OrganizationStore.
func (s *Store) DeleteOrganization(ctx context.Context, id int64) error {
	defer s.lock()()

	if _, ok := s.st.orgs[id]; !ok {
		return store.ErrOrganizationNotFound
	}
	for uid, u := range s.st.users {
		if u.OrganizationID == id {
			delete(s.st.users, uid)
			delete(s.st.userRoles, uid)
		}
	}
	for rid, r := range s.st.roles {
		if r.OrganizationID == id {
			s.deleteRole(rid)
		}
	}
	delete(s.st.orgs, id)
	return nil
}

// RoleIdentifierInUse implements store.OrganizationStore.
func (s *Store) RoleIdentifierInUse(ctx context.Context, identifier string) (bool, error) {
	defer s.lock()()

	for _, o := range s.st.orgs {
		if o.Role == identifier {
			return true, nil
		}
	}
	for _, r := range s.st.roles {
		if r.Role == identifier {
			return true, nil
		}
	}
	return false, nil
}

// CreateUser implements store.UserStore.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	defer s.lock()()

	if _, ok := s.st.orgs[user.OrganizationID]; !ok {
		return store.ErrOrganizationNotFound
	}
	user.Login = models.NormalizeLogin(user.Login)
	for _, u := range s.st.users {
		if u.Login == user.Login {
			return store.ErrLoginExists
		}
	}

	user.ID = s.st.id()
	now := time.Now()
	user.CreatedAt, user.UpdatedAt = now, now
	row := *user
	row.Roles = nil
	if user.AcceptKey != nil {
		k := *user.AcceptKey
		row.AcceptKey = &k
	}
	s.st.users[user.ID] = row
	return nil
}

// GetUser implements store.UserStore.
func (s *Store) GetUser(ctx context.Context, id int64) (*models.User, error) {
	defer s.lock()()

	u, ok := s.st.users[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return s.user(u), nil
}

// GetUserByLogin implements store.UserStore.
func (s *Store) GetUserByLogin(ctx context.Context, login string) (*models.User, error) {
	defer s.lock()()

	login = models.NormalizeLogin(login)
	for _, u := range s.st.users {
		if u.Login == login {
			return s.user(u), nil
		}
	}
	return nil, store.ErrUserNotFound
}

// GetUserByAcceptKey implements store.UserStore.
func (s *Store) GetUserByAcceptKey(ctx context.Context, key string) (*models.User, error) {
	defer s.lock()()

	if key == "" {
		return nil, store.ErrUserNotFound
	}
	for _, u := range s.st.users {
		if u.AcceptKey != nil && u.AcceptKey.Key == key {
			return s.user(u), nil
		}
	}
	return nil, store.ErrUserNotFound
}

// ListUsersByOrganization implements store.UserStore.
func (s *Store) ListUsersByOrganization(ctx context.Context, orgID int64) ([]*models.User, error) {
	defer s.lock()()
	return s.usersOf(orgID), nil
}

// UpdateUser implements store.UserStore.
func (s *Store) UpdateUser(ctx context.Context, user *models.User) error {
	defer s.lock()()

	cur, ok := s.st.users[user.ID]
	if !ok {
		return store.ErrUserNotFound
	}
	cur.Status = user.Status
	cur.IsAdmin = user.IsAdmin
	cur.InviteLanguage = user.InviteLanguage
	cur.AcceptKey = nil
	if user.AcceptKey != nil {
		k := *user.AcceptKey
		cur.AcceptKey = &k
	}
	cur.UpdatedAt = time.Now()
	s.st.users[user.ID] = cur
	return nil
}

// SetUserRoles implements store.UserStore.
func (s *Store) SetUserRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	defer s.lock()()

	if _, ok := s.st.users[userID]; !ok {
		return store.ErrUserNotFound
	}
	seen := make(map[int64]struct{}, len(roleIDs))
	ids := make([]int64, 0, len(roleIDs))
	for _, id := range roleIDs {
		if _, ok := s.st.roles[id]; !ok {
			return store.ErrRoleNotFound
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	s.st.userRoles[userID] = ids
	return nil
}

// DeleteUser implements store.UserStore.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	defer s.lock()()

	if _, ok := s.st.users[id]; !ok {
		return store.ErrUserNotFound
	}
	delete(s.st.users, id)
	delete(s.st.userRoles, id)
	return nil
}

// CreateRole implements store.RoleStore.
func (s *Store) CreateRole(ctx context.Context, role *models.Role) error {
	defer s.lock()()

	if _, ok := s.st.orgs[role.OrganizationID]; !ok {
		return store.ErrOrganizationNotFound
	}
	if role.Role != "" && s.identifierTaken(role.Role, 0) {
		return store.ErrRoleExists
	}
	role.ID = s.st.id()
	s.st.roles[role.ID] = *role
	return nil
}

// SetRoleIdentifier implements store.RoleStore.
func (s *Store) SetRoleIdentifier(ctx context.Context, roleID int64, identifier string) error {
	defer s.lock()()

	r, ok := s.st.roles[roleID]
	if !ok {
		return store.ErrRoleNotFound
	}
	if s.identifierTaken(identifier, roleID) {
		return store.ErrRoleExists
	}
	r.Role = identifier
	s.st.roles[roleID] = r
	return nil
}

// GetRole implements store.RoleStore.
func (s *Store) GetRole(ctx context.Context, id int64) (*models.Role, error) {
	defer s.lock()()

	r, ok := s.st.roles[id]
	if !ok {
		return nil, store.ErrRoleNotFound
	}
	return &r, nil
}

// ListRolesByOrganization implements store.RoleStore.
func (s *Store) ListRolesByOrganization(ctx context.Context, orgID int64) ([]*models.Role, error) {
	defer s.lock()()
	return s.rolesOf(orgID), nil
}

// DeleteRole implements store.RoleStore.
func (s *Store) DeleteRole(ctx context.Context, id int64) error {
	defer s.lock()()

	if _, ok := s.st.roles[id]; !ok {
		return store.ErrRoleNotFound
	}
	s.deleteRole(id)
	return nil
}

func (s *Store) deleteRole(id int64) {
	delete(s.st.roles, id)
	for uid, rs := range s.st.userRoles {
		kept := rs[:0]
		for _, rid := range rs {
			if rid != id {
				kept = append(kept, rid)
			}
		}
		s.st.userRoles[uid] = kept
	}
}

func (s *Store) identifierTaken(identifier string, exceptRole int64) bool {
	for _, o := range s.st.orgs {
		if o.Role == identifier {
			return true
		}
	}
	for id, r := range s.st.roles {
		if id != exceptRole && r.Role == identifier {
			return true
		}
	}
	return false
}

func (s *Store) user(u models.User) *models.User {
	if u.AcceptKey != nil {
		k := *u.AcceptKey
		u.AcceptKey = &k
	}
	u.Roles = make([]*models.Role, 0, len(s.st.userRoles[u.ID]))
	for _, rid := range s.st.userRoles[u.ID] {
		r := s.st.roles[rid]
		u.Roles = append(u.Roles, &r)
	}
	return &u
}

func (s *Store) usersOf(orgID int64) []*models.User {
	var out []*models.User
	for _, u := range s.st.users {
		if u.OrganizationID == orgID {
			out = append(out, s.user(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) rolesOf(orgID int64) []*models.Role {
	var out []*models.Role
	for _, r := range s.st.roles {
		if r.OrganizationID == orgID {
			r := r
			out = append(out, &r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
