package account

import (
	"context"
	"fmt"

	"github.com/frahmantamala/paypal-activation/internal"
)

type Service struct {
	repo RepositoryAPI
}

func NewService(repo RepositoryAPI) *Service {
	return &Service{
		repo: repo,
	}
}

func (s *Service) GetByID(ctx context.Context, accountID string) (*Account, error) {
	a, err := s.repo.FindByID(ctx, accountID)
	if err != nil {
		if _, ok := internal.IsAppError(err); ok {
			return nil, err
		}
		return nil, internal.NewInternalError("failed to load account", fmt.Errorf("find account %s: %w", accountID, err))
	}
	return a, nil
}
