package auth

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/ama13/bookshelf/internal/config"
	"github.com/ama13/bookshelf/internal/database"
	"github.com/ama13/bookshelf/internal/database/users"
	"github.com/ama13/bookshelf/internal/entities"
)

var loginPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,64}$`)

var (
	// ErrBadCredentials deliberately covers both a missing user and a wrong
	// password so the login form cannot be used to enumerate accounts.
	ErrBadCredentials = errors.New("invalid login or password")
	ErrLoginRequired  = errors.New("login is required")
	ErrLoginInvalid   = errors.New("login must be 3-64 characters, alphanumeric and underscore/hyphen only")
	ErrLoginTaken     = errors.New("login already taken")
	ErrNameRequired   = errors.New("first and last name are required")
)

// Service handles authentication and account creation.
type Service struct {
	database *database.Database
	users    *users.Repository
	config   config.Auth
}

// NewService creates a new authentication service.
func NewService(db *database.Database, cfg config.Auth) *Service {
	return &Service{
		database: db,
		users:    users.NewRepository(db.DB),
		config:   cfg,
	}
}

// CreateUser creates an account with the given role.
func (s *Service) CreateUser(login, password, firstName, lastName, middleName string, role entities.RoleName) (*entities.User, error) {
	if login == "" {
		return nil, ErrLoginRequired
	}
	if !loginPattern.MatchString(login) {
		return nil, ErrLoginInvalid
	}
	if firstName == "" || lastName == "" {
		return nil, ErrNameRequired
	}

	roleRow, err := s.database.GetRoleByName(role)
	if err != nil {
		return nil, fmt.Errorf("unknown role %q: %w", role, err)
	}

	passwordHash, err := HashPassword(password, s.config.BcryptCost)
	if err != nil {
		return nil, err
	}

	user := &entities.User{
		Login:        login,
		PasswordHash: passwordHash,
		RoleID:       roleRow.ID,
		Role:         *roleRow,
		FirstName:    firstName,
		LastName:     lastName,
		MiddleName:   middleName,
	}

	if err := s.users.Create(user); err != nil {
		if errors.Is(err, users.ErrLoginExists) {
			return nil, ErrLoginTaken
		}
		return nil, err
	}

	return user, nil
}

// Authenticate validates credentials and returns the user with their role
// preloaded. Any failure collapses into ErrBadCredentials.
func (s *Service) Authenticate(login, password string) (*entities.User, error) {
	user, err := s.users.GetByLogin(login)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, ErrBadCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if err := CheckPassword(password, user.PasswordHash); err != nil {
		if errors.Is(err, ErrInvalidPassword) {
			return nil, ErrBadCredentials
		}
		return nil, err
	}

	return user, nil
}

// GetUserByID resolves a session's stored id back to a full user.
func (s *Service) GetUserByID(id uint) (*entities.User, error) {
	return s.users.GetByID(id)
}

// HasUsers reports whether any account exists yet.
func (s *Service) HasUsers() (bool, error) {
	count, err := s.users.Count()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
