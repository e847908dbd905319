package service

import (
	"context"
	"errors"

	userserrors "github.com/Vijaysingh1621/google-seller-buyer-Scheduler/internal/users/errors"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/internal/users/repository"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/auth"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/config"
	apperrors "github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/errors"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/model"
)

type UserService interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
	ListSellers(ctx context.Context) ([]model.SellerSummary, error)
	SetRole(ctx context.Context, id string, role model.Role) error

	auth.PrincipalResolver
}

type userService struct {
	repo repository.UserRepository
	cfg  *config.Config
}

func NewUserService(repo repository.UserRepository, cfg *config.Config) UserService {
	return &userService{
		repo: repo,
		cfg:  cfg,
	}
}

func (s *userService) GetByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("User ID cannot be empty")
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, userserrors.ErrNotFound) || errors.Is(err, userserrors.ErrInvalidID) {
			return nil, apperrors.NotFoundWithID("User", id)
		}
		s.cfg.Log.Error("Failed to get user by ID",
			"user_id", id,
			"error", err,
		)
		return nil, apperrors.Persistence("get user", err)
	}
	return user, nil
}

func (s *userService) ListSellers(ctx context.Context) ([]model.SellerSummary, error) {
	sellers, err := s.repo.FindSellers(ctx)
	if err != nil {
		s.cfg.Log.Error("Failed to list sellers", "error", err)
		return nil, apperrors.Persistence("list sellers", err)
	}

	summaries := make([]model.SellerSummary, 0, len(sellers))
	for _, u := range sellers {
		summaries = append(summaries, model.SellerSummary{
			ID:                u.ID,
			Name:              u.Name,
			Email:             u.Email,
			Image:             u.Image,
			CalendarConnected: u.CalendarConnected,
		})
	}
	return summaries, nil
}

func (s *userService) SetRole(ctx context.Context, id string, role model.Role) error {
	if !role.Valid() {
		return apperrors.InvalidInput("Invalid role").WithDetails(map[string]any{
			"allowed": []model.Role{model.RoleBuyer, model.RoleSeller},
		})
	}

	if err := s.repo.UpdateRole(ctx, id, role); err != nil {
		if errors.Is(err, userserrors.ErrNotFound) || errors.Is(err, userserrors.ErrInvalidID) {
			return apperrors.NotFoundWithID("User", id)
		}
		s.cfg.Log.Error("Failed to update user role",
			"user_id", id,
			"role", role,
			"error", err,
		)
		return apperrors.Persistence("update role", err)
	}

	s.cfg.Log.Info("User role updated",
		"user_id", id,
		"role", role,
	)
	return nil
}

// ResolvePrincipal reloads the token subject so a role change applies to the very next request.
func (s *userService) ResolvePrincipal(ctx context.Context, claims *auth.Claims) (*auth.Principal, error) {
	if claims == nil || claims.Subject == "" {
		return nil, apperrors.Unauthorized("Unauthorized")
	}

	user, err := s.repo.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, userserrors.ErrNotFound) || errors.Is(err, userserrors.ErrInvalidID) {
			return nil, apperrors.Unauthorized("Unauthorized")
		}
		s.cfg.Log.Error("Failed to resolve session user",
			"user_id", claims.Subject,
			"error", err,
		)
		return nil, apperrors.Persistence("resolve session", err)
	}

	return &auth.Principal{
		ID:                user.ID,
		Role:              user.Role,
		Email:             user.Email,
		Name:              user.Name,
		CalendarConnected: user.CalendarConnected,
	}, nil
}
