package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"contest_judge/internal/common"
	"contest_judge/internal/common/security"
	"contest_judge/internal/domain/model"
	"contest_judge/internal/domain/repository"
	"contest_judge/internal/platform/logger"

	"go.uber.org/zap"
)

type AuthService struct {
	userRepo    repository.UserRepository
	contestRepo repository.ContestRepository
}

func NewAuthService(userRepo repository.UserRepository, contestRepo repository.ContestRepository) *AuthService {
	return &AuthService{userRepo: userRepo, contestRepo: contestRepo}
}

type SignupRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AuthResponse struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

func (s *AuthService) Signup(ctx context.Context, req SignupRequest) (*AuthResponse, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return nil, fmt.Errorf("username and password are required: %w", common.ErrBadRequest)
	}
	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = username
	}

	hashedPassword, err := security.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Username:       username,
		DisplayName:    displayName,
		HashedPassword: hashedPassword,
		Role:           model.RoleUser,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.userRepo.CreateUser(ctx, user); err != nil {
		// Repo returns common.ErrConflict for a taken username
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	token, err := security.GenerateToken(user.Username, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	user.HashedPassword = ""
	logger.Info(ctx, "user registered", zap.String("username", user.Username))
	return &AuthResponse{User: user, Token: token}, nil
}

func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	if req.Username == "" || req.Password == "" {
		return nil, common.ErrBadRequest
	}

	user, err := s.userRepo.FindByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if !security.CheckPasswordHash(req.Password, user.HashedPassword) {
		return nil, common.ErrUnauthorized
	}

	token, err := security.GenerateToken(user.Username, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	user.HashedPassword = ""
	return &AuthResponse{User: user, Token: token}, nil
}

// JoinContest registers the user for a contest. joined is false when they were already in.
func (s *AuthService) JoinContest(ctx context.Context, username, contestID string) (joined bool, err error) {
	if _, err := s.contestRepo.FindContest(ctx, contestID); err != nil {
		return false, fmt.Errorf("contest %s: %w", contestID, err)
	}
	joined, err = s.userRepo.JoinContest(ctx, username, contestID)
	if err != nil {
		return false, fmt.Errorf("failed to join contest: %w", err)
	}
	if joined {
		logger.Info(ctx, "user joined contest", zap.String("username", username), zap.String("contest_id", contestID))
	}
	return joined, nil
}
