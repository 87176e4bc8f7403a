package team

import (
	"context"

	"github.com/google/uuid"

	"github.com/draftops/gavel/internal/cache"
	"github.com/draftops/gavel/internal/models"
)

// App serves team reads. Purse mutations go through the sale and undo
// subsystems, not here.
type App struct {
	repo  *Repository
	cache *cache.Cache
}

// NewApp wires the team application.
func NewApp(repo *Repository, c *cache.Cache) *App {
	return &App{repo: repo, cache: c}
}

// GetTeam reads the authoritative row. Deliberately uncached: callers
// include fund checks.
func (a *App) GetTeam(ctx context.Context, teamID uuid.UUID) (*models.Team, error) {
	return a.repo.GetTeam(ctx, teamID)
}

// ListByAuction returns an auction's teams through the cache.
func (a *App) ListByAuction(ctx context.Context, auctionID uuid.UUID) ([]models.Team, error) {
	key := cache.Key(cache.ClassTeams, auctionID)
	return cache.GetOrLoad(ctx, a.cache, key, cache.ClassTeams, func(ctx context.Context) ([]models.Team, error) {
		return a.repo.ListByAuction(ctx, auctionID)
	})
}
