package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/guildwatch/bot/internal/biz/domain"
	"github.com/guildwatch/bot/internal/biz/repo"
)

// BlocklistUsecase checks resolved identities against the blocklists a
// guild enforces.
type BlocklistUsecase struct {
	blocklists repo.BlocklistRepo
	log        *zap.Logger
}

// NewBlocklistUsecase creates a blocklist checker.
func NewBlocklistUsecase(blocklists repo.BlocklistRepo, log *zap.Logger) *BlocklistUsecase {
	return &BlocklistUsecase{blocklists: blocklists, log: log}
}

// Check returns the blocklist entries matching any of the identities,
// after dropping entries whose channel override explicitly disables
// enforcement in this channel. No match is an empty result, not an error.
func (u *BlocklistUsecase) Check(
	ctx context.Context,
	guildID, channelID string,
	identities []*domain.ResolvedIdentity,
) ([]domain.BlocklistMatch, error) {
	entries, err := u.blocklists.EnforcedEntries(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}

	byUser := make(map[string][]repo.EnforcedEntry, len(entries))
	for _, e := range entries {
		byUser[e.UserID] = append(byUser[e.UserID], e)
	}

	var matches []domain.BlocklistMatch
	for _, id := range identities {
		if !id.Resolved() {
			continue
		}
		for _, e := range byUser[id.UserID] {
			if enabled, ok := e.ChannelOverrides[channelID]; ok && !enabled {
				continue
			}
			matches = append(matches, domain.BlocklistMatch{
				UserID:        e.UserID,
				Username:      id.Username,
				BlocklistID:   e.BlocklistID,
				BlocklistName: e.BlocklistName,
				PublicReason:  e.PublicReason,
				PrivateReason: e.PrivateReason,
			})
		}
	}
	return matches, nil
}
