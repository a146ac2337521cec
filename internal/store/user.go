package store

import (
	"fmt"
	"strconv"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"medsupply/m/domain"
	"medsupply/m/internal/rowstore"
)

// userHeader occupies row 0 of the user table; data rows start at 1.
var userHeader = []string{"UserID", "Name", "Username", "Password", "Role", "Email", "Phone", "Active", "System"}

// UserStore owns the user table and the id allocator. Two secondary
// indices (by username, by id) are rebuilt from the persisted table
// on every open; they are lookup caches only, never the source of
// truth for persistence.
type UserStore struct {
	mu         sync.Mutex
	rows       *rowstore.Store
	byUsername map[string]int // username -> row index
	byID       map[int]int    // user id -> row index
	maxID      int
}

// OpenUsers opens the user table, ensures the header row exists and
// rebuilds the secondary indices and id allocator.
func OpenUsers(dir string) (*UserStore, error) {
	rows, err := rowstore.Open(dir, "user")
	if err != nil {
		return nil, err
	}
	if _, ok := rows.Get(0); !ok {
		if err := rows.Put(0, userHeader); err != nil {
			return nil, err
		}
	}
	s := &UserStore{rows: rows}
	s.rebuildIndices()
	return s, nil
}

// rebuildIndices recomputes the lookup caches and the highest id seen
// from the full table. Caller holds the lock (or is the constructor).
func (s *UserStore) rebuildIndices() {
	s.byUsername = make(map[string]int)
	s.byID = make(map[int]int)
	s.maxID = 0
	for _, i := range s.rows.Indexes() {
		if i == 0 {
			continue
		}
		row, _ := s.rows.Get(i)
		u, ok := userFromRow(row)
		if !ok {
			continue
		}
		s.byUsername[u.Username] = i
		s.byID[u.ID] = i
		if u.ID > s.maxID {
			s.maxID = u.ID
		}
	}
}

// Add creates a user with the given plaintext password. The username
// must be unique; the assigned id is one past the highest id ever
// seen, so ids are never reused even after deletion.
func (s *UserStore) Add(u domain.User, password string) (domain.User, error) {
	if err := checkFields(u.Name, u.Username, u.Role, u.Email, u.Phone); err != nil {
		return domain.User{}, err
	}
	if password == "" {
		return domain.User{}, fmt.Errorf("%w: password is required", ErrValidation)
	}
	if u.Role != domain.RoleAdmin && u.Role != domain.RoleStaff {
		return domain.User{}, fmt.Errorf("%w: role must be %s or %s", ErrValidation, domain.RoleAdmin, domain.RoleStaff)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, fmt.Errorf("unable to hash password: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byUsername[u.Username]; ok {
		return domain.User{}, fmt.Errorf("%w: username %s already exists", ErrConflict, u.Username)
	}
	s.maxID++
	u.ID = s.maxID
	u.PasswordHash = string(hashed)
	index := s.rows.NextIndex()
	if err := s.rows.Put(index, userToRow(u)); err != nil {
		s.maxID--
		return domain.User{}, err
	}
	s.byUsername[u.Username] = index
	s.byID[u.ID] = index
	return u, nil
}

// Authenticate returns the user when the username exists, the
// password matches the stored hash and the account is active.
func (s *UserStore) Authenticate(username, password string) (domain.User, error) {
	u, err := s.ByUsername(username)
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: invalid credentials", ErrNotFound)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil || !u.Active {
		return domain.User{}, fmt.Errorf("%w: invalid credentials", ErrNotFound)
	}
	return u, nil
}

// ByUsername looks a user up through the username index.
func (s *UserStore) ByUsername(username string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	index, ok := s.byUsername[username]
	if !ok {
		return domain.User{}, fmt.Errorf("%w: user %s", ErrNotFound, username)
	}
	row, _ := s.rows.Get(index)
	u, _ := userFromRow(row)
	return u, nil
}

// ByID looks a user up through the id index.
func (s *UserStore) ByID(id int) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	index, ok := s.byID[id]
	if !ok {
		return domain.User{}, fmt.Errorf("%w: user id %d", ErrNotFound, id)
	}
	row, _ := s.rows.Get(index)
	u, _ := userFromRow(row)
	return u, nil
}

// List returns every user in row order.
func (s *UserStore) List() []domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	var users []domain.User
	for _, i := range s.rows.Indexes() {
		if i == 0 {
			continue
		}
		row, _ := s.rows.Get(i)
		if u, ok := userFromRow(row); ok {
			users = append(users, u)
		}
	}
	return users
}

// Update rewrites the named user's row. The original id is always
// preserved; system accounts cannot be modified. An optional new
// plaintext password replaces the stored hash when non-empty.
func (s *UserStore) Update(username string, updated domain.User, newPassword string) error {
	if err := checkFields(updated.Name, updated.Username, updated.Role, updated.Email, updated.Phone); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	index, ok := s.byUsername[username]
	if !ok {
		return fmt.Errorf("%w: user %s", ErrNotFound, username)
	}
	row, _ := s.rows.Get(index)
	existing, _ := userFromRow(row)
	if existing.System {
		return fmt.Errorf("%w: system account %s cannot be modified", ErrIntegrity, username)
	}
	if updated.Username != username {
		if _, taken := s.byUsername[updated.Username]; taken {
			return fmt.Errorf("%w: username %s already exists", ErrConflict, updated.Username)
		}
	}
	updated.ID = existing.ID
	updated.System = false
	updated.PasswordHash = existing.PasswordHash
	if newPassword != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("unable to hash password: %w", err)
		}
		updated.PasswordHash = string(hashed)
	}
	if err := s.rows.Put(index, userToRow(updated)); err != nil {
		return err
	}
	delete(s.byUsername, username)
	s.byUsername[updated.Username] = index
	s.byID[updated.ID] = index
	return nil
}

// Delete removes the named user from the table and both indices.
// System accounts cannot be deleted. The freed id is never reissued.
func (s *UserStore) Delete(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	index, ok := s.byUsername[username]
	if !ok {
		return fmt.Errorf("%w: user %s", ErrNotFound, username)
	}
	row, _ := s.rows.Get(index)
	existing, _ := userFromRow(row)
	if existing.System {
		return fmt.Errorf("%w: system account %s cannot be deleted", ErrIntegrity, username)
	}
	if err := s.rows.Delete(index); err != nil {
		return err
	}
	delete(s.byUsername, username)
	delete(s.byID, existing.ID)
	return nil
}

func userToRow(u domain.User) []string {
	return []string{
		strconv.Itoa(u.ID),
		u.Name,
		u.Username,
		u.PasswordHash,
		u.Role,
		u.Email,
		u.Phone,
		strconv.FormatBool(u.Active),
		strconv.FormatBool(u.System),
	}
}

// userFromRow decodes a user row. Legacy eight-field rows carried a
// "-" sentinel in the active column for the bootstrap account; those
// decode as active system accounts.
func userFromRow(row []string) (domain.User, bool) {
	if len(row) < 8 {
		return domain.User{}, false
	}
	id, err := strconv.Atoi(row[0])
	if err != nil {
		return domain.User{}, false
	}
	u := domain.User{
		ID:           id,
		Name:         row[1],
		Username:     row[2],
		PasswordHash: row[3],
		Role:         row[4],
		Email:        row[5],
		Phone:        row[6],
	}
	if row[7] == "-" {
		u.Active = true
		u.System = true
	} else {
		u.Active = parseBool(row[7])
	}
	if len(row) >= 9 {
		u.System = u.System || parseBool(row[8])
	}
	return u, true
}
