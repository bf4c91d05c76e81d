package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/placementhub/apiserver/internal/apperr"
	"github.com/placementhub/apiserver/internal/store"
	"github.com/placementhub/apiserver/internal/token"
	"github.com/placementhub/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

// dummyHash keeps Authenticate constant-time for unknown emails: the
// bcrypt comparison runs whether or not the account exists.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("placementhub-dummy"), bcrypt.DefaultCost)

// UserRepository defines persistence operations for user accounts.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User, profile *types.StudentProfile) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	Delete(ctx context.Context, id string) error
}

// RegisterInput is the payload for self-registration. The created
// account always gets the student role.
type RegisterInput struct {
	Name       string
	Email      string
	Password   string
	Department string
	Semester   int
	CGPA       float64
	Skills     []string
}

// UserService encapsulates registration, authentication, and profile
// lookup.
type UserService struct {
	repo   UserRepository
	tokens *token.Service
}

func NewUserService(repo UserRepository, tokens *token.Service) *UserService {
	return &UserService{repo: repo, tokens: tokens}
}

// Register validates the input, creates the account with its student
// profile, and returns the stored user. A previously used email is a
// validation failure, not a conflict, so registration surfaces as 400.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (types.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	in.Department = strings.TrimSpace(in.Department)

	if in.Name == "" || in.Email == "" || in.Password == "" || in.Department == "" {
		return types.User{}, apperr.Validation("name, email, password, and department are required")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return types.User{}, apperr.Validation("invalid email address")
	}
	if len(in.Password) < minPasswordLength {
		return types.User{}, apperr.Validation("password must be at least %d characters long", minPasswordLength)
	}
	if in.Semester < 1 || in.Semester > 8 {
		return types.User{}, apperr.Validation("semester must be between 1 and 8")
	}
	if in.CGPA < 0 || in.CGPA > 10 {
		return types.User{}, apperr.Validation("cgpa must be between 0 and 10")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return types.User{}, err
	}

	user := types.User{
		Name:         in.Name,
		Email:        in.Email,
		Role:         types.RoleStudent,
		PasswordHash: string(hashed),
	}
	profile := &types.StudentProfile{
		Department: in.Department,
		Semester:   in.Semester,
		CGPA:       in.CGPA,
		Skills:     in.Skills,
	}

	created, err := s.repo.Create(ctx, user, profile)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return types.User{}, apperr.Validation("email already registered")
		}
		return types.User{}, err
	}
	return created, nil
}

// Authenticate verifies credentials and issues a signed token. The
// failure response never distinguishes an unknown email from a wrong
// password.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (types.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return types.User{}, "", apperr.Unauthenticated("invalid credentials")
		}
		return types.User{}, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.User{}, "", apperr.Unauthenticated("invalid credentials")
	}

	signed, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return types.User{}, "", err
	}
	return user, signed, nil
}

// GetByID returns the account for a previously verified subject id.
func (s *UserService) GetByID(ctx context.Context, id string) (types.User, error) {
	return retryRead(func() (types.User, error) {
		return s.repo.GetByID(ctx, id)
	})
}
