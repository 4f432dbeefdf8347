package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lshigami/padhoplus/internal/dto"
	"github.com/lshigami/padhoplus/internal/model"
	"github.com/lshigami/padhoplus/internal/policy"
	"github.com/lshigami/padhoplus/internal/repository"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// TokenIssuer signs access tokens for authenticated users.
type TokenIssuer interface {
	Issue(user model.User) (string, time.Time, error)
}

type AuthService interface {
	Register(ctx context.Context, req dto.RegisterDTO) (*dto.UserDTO, error)
	Login(ctx context.Context, req dto.LoginDTO) (*dto.TokenDTO, error)
	Me(ctx context.Context, caller policy.Principal) (*dto.UserDTO, error)
}

type authService struct {
	userRepo repository.UserRepository
	tokens   TokenIssuer
	cost     int
}

func NewAuthService(userRepo repository.UserRepository, tokens TokenIssuer) AuthService {
	return &authService{userRepo: userRepo, tokens: tokens, cost: bcrypt.DefaultCost}
}

func (s *authService) Register(ctx context.Context, req dto.RegisterDTO) (*dto.UserDTO, error) {
	role := policy.RoleStudent
	if req.Role != "" {
		parsed, err := policy.ParseRole(req.Role)
		if err != nil || parsed == policy.RoleAdmin {
			return nil, fmt.Errorf("%w: role %q cannot self-register", ErrInvalidInput, req.Role)
		}
		role = parsed
	}

	if req.ParentID != nil {
		if role != policy.RoleStudent {
			return nil, fmt.Errorf("%w: only students can link a parent", ErrInvalidInput)
		}
		parent, err := s.userRepo.FindByID(ctx, *req.ParentID)
		if err != nil || parent.Role != policy.RoleParent {
			return nil, fmt.Errorf("%w: parent %d not found", ErrInvalidInput, *req.ParentID)
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := model.User{
		Username:     strings.TrimSpace(req.Username),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: string(hash),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         role,
		ParentID:     req.ParentID,
		Phone:        req.Phone,
		TargetExam:   req.TargetExam,
	}
	if err := s.userRepo.Create(ctx, &user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: username %q is taken", ErrConflict, user.Username)
		}
		log.Error().Err(err).Str("username", user.Username).Msg("Failed to create user")
		return nil, fmt.Errorf("database error creating user: %w", err)
	}

	log.Info().Uint("userID", user.ID).Str("role", string(role)).Msg("User registered")
	out := toUserDTO(user)
	return &out, nil
}

func (s *authService) Login(ctx context.Context, req dto.LoginDTO) (*dto.TokenDTO, error) {
	user, err := s.userRepo.FindByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("database error loading user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		log.Debug().Str("username", user.Username).Msg("Password mismatch")
		return nil, ErrUnauthorized
	}

	token, expiresAt, err := s.tokens.Issue(*user)
	if err != nil {
		log.Error().Err(err).Uint("userID", user.ID).Msg("Failed to sign access token")
		return nil, fmt.Errorf("signing token: %w", err)
	}
	return &dto.TokenDTO{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
		User:        toUserDTO(*user),
	}, nil
}

func (s *authService) Me(ctx context.Context, caller policy.Principal) (*dto.UserDTO, error) {
	user, err := s.userRepo.FindByID(ctx, caller.UserID)
	if err != nil {
		return nil, notFound(err, "user", caller.UserID)
	}
	out := toUserDTO(*user)
	return &out, nil
}

// notFound maps repository.ErrNotFound onto ErrNotFound and passes other
// errors through.
func notFound(err error, what string, id uint) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s %d", ErrNotFound, what, id)
	}
	return fmt.Errorf("loading %s %d: %w", what, id, err)
}
