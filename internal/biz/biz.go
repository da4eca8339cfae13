package biz

import (
	"go.uber.org/zap"

	"github.com/guildwatch/bot/internal/biz/domain"
	"github.com/guildwatch/bot/internal/biz/repo"
	"github.com/guildwatch/bot/internal/biz/usecase"
)

// Usecases contains all usecases
type Usecases struct {
	Health    *usecase.ProviderHealthRegistry
	Resolver  *usecase.ResolverUsecase
	Blocklist *usecase.BlocklistUsecase
}

// NewUsecases wires the usecases over the repositories and providers.
func NewUsecases(
	cache repo.CacheRepo,
	audit repo.AuditRepo,
	blocklists repo.BlocklistRepo,
	providers []repo.IdentityProvider,
	log *zap.Logger,
) *Usecases {
	sources := make([]domain.IdentitySource, 0, len(providers))
	for _, p := range providers {
		sources = append(sources, p.Source())
	}
	health := usecase.NewProviderHealthRegistry(sources...)

	return &Usecases{
		Health:    health,
		Resolver:  usecase.NewResolverUsecase(cache, audit, health, providers, log),
		Blocklist: usecase.NewBlocklistUsecase(blocklists, log),
	}
}
