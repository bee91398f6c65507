package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/holotutor/hub-server-go/internal/config"
	apperrors "github.com/holotutor/hub-server-go/internal/errors"
	"github.com/holotutor/hub-server-go/internal/model"
	"github.com/holotutor/hub-server-go/internal/repository"
)

const companionCacheName = "companions:all"

// CatalogFetcher pulls the companion catalog from the upstream personas
// collaborator.
type CatalogFetcher interface {
	Fetch(ctx context.Context) ([]model.Companion, error)
}

// CompanionService serves the tutor persona catalog: cache first, then the
// upstream collaborator, then a built-in fallback so the product keeps
// working when the collaborator is down.
type CompanionService struct {
	cache   repository.CacheRepository
	catalog CatalogFetcher
	cfg     *config.Config
}

func NewCompanionService(cache repository.CacheRepository, catalog CatalogFetcher, cfg *config.Config) *CompanionService {
	return &CompanionService{cache: cache, catalog: catalog, cfg: cfg}
}

// List returns all companions. Results fetched upstream are cached; fallback
// results are not, so the next request retries the collaborator.
func (s *CompanionService) List(ctx context.Context) ([]model.Companion, error) {
	var cached []model.Companion
	found, err := s.cache.Get(ctx, companionCacheName, &cached)
	if err != nil {
		log.Warn().Err(err).Msg("companion cache read failed")
	} else if found {
		return cached, nil
	}

	companions, err := s.catalog.Fetch(ctx)
	if err != nil || len(companions) == 0 {
		if err != nil {
			log.Warn().Err(err).Msg("companion catalog fetch failed, serving fallback")
		}
		return fallbackCompanions(), nil
	}

	if err := s.cache.Set(ctx, companionCacheName, companions, s.cfg.CompanionCacheTTL()); err != nil {
		log.Warn().Err(err).Msg("companion cache write failed")
	}
	return companions, nil
}

// Get resolves a single companion by catalog id.
func (s *CompanionService) Get(ctx context.Context, id string) (*model.Companion, error) {
	companions, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range companions {
		if companions[i].ID == id {
			return &companions[i], nil
		}
	}
	return nil, apperrors.NotFound("companion")
}

// fallbackCompanions is the built-in catalog used when the personas
// collaborator is unreachable and nothing is cached.
func fallbackCompanions() []model.Companion {
	return []model.Companion{
		{
			ID:          "ada",
			Name:        "Ada",
			Description: "Patient math and computer science tutor who works through problems step by step.",
			VoiceID:     "EXAVITQu4vr4xnSDxMaL",
			Tags:        []string{"math", "computer science"},
		},
		{
			ID:          "marie",
			Name:        "Marie",
			Description: "Curious science tutor who explains physics and chemistry with everyday examples.",
			VoiceID:     "21m00Tcm4TlvDq8ikWAM",
			Tags:        []string{"physics", "chemistry"},
		},
		{
			ID:          "langston",
			Name:        "Langston",
			Description: "Encouraging writing coach for essays, grammar, and literature discussion.",
			VoiceID:     "TxGEqnHWrfWFTfGW9XjX",
			Tags:        []string{"writing", "literature"},
		},
	}
}
