package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/guildwatch/bot/internal/biz/domain"
	"github.com/guildwatch/bot/internal/biz/repo"
)

func scammerEntry() repo.EnforcedEntry {
	return repo.EnforcedEntry{
		BlocklistID:   1,
		BlocklistName: "Scammers",
		UserID:        "100",
		Username:      "scammer_old",
		PublicReason:  "crypto scam",
		PrivateReason: "mod report",
	}
}

func TestCheckMatchesBlockedIdentity(t *testing.T) {
	u := NewBlocklistUsecase(&fakeBlocklists{entries: []repo.EnforcedEntry{scammerEntry()}}, zap.NewNop())

	matches, err := u.Check(context.Background(), "g1", "c1", []*domain.ResolvedIdentity{
		{UserID: "100", Username: "scammer_new", Source: domain.SourceFx},
		{UserID: "999", Username: "innocent", Source: domain.SourceFx},
	})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "100", matches[0].UserID)
	// The reply shows the name the link actually used, not the one on file.
	assert.Equal(t, "scammer_new", matches[0].Username)
	assert.Equal(t, "Scammers", matches[0].BlocklistName)
	assert.Equal(t, "crypto scam", matches[0].PublicReason)
}

func TestCheckSkipsUnresolvedIdentities(t *testing.T) {
	u := NewBlocklistUsecase(&fakeBlocklists{entries: []repo.EnforcedEntry{scammerEntry()}}, zap.NewNop())

	matches, err := u.Check(context.Background(), "g1", "c1", []*domain.ResolvedIdentity{
		{UserID: "", Username: "scammer_old", Source: domain.SourceVx},
		nil,
	})
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestCheckHonorsChannelOverride(t *testing.T) {
	entry := scammerEntry()
	entry.ChannelOverrides = map[string]bool{"c-art": false}
	u := NewBlocklistUsecase(&fakeBlocklists{entries: []repo.EnforcedEntry{entry}}, zap.NewNop())

	identities := []*domain.ResolvedIdentity{{UserID: "100", Username: "scammer_new"}}

	matches, err := u.Check(context.Background(), "g1", "c-art", identities)
	require.NoError(t, err)
	assert.Empty(t, matches)

	// Other channels still enforce.
	matches, err = u.Check(context.Background(), "g1", "c-general", identities)
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestCheckNoSubscriptions(t *testing.T) {
	u := NewBlocklistUsecase(&fakeBlocklists{}, zap.NewNop())

	matches, err := u.Check(context.Background(), "g1", "c1", []*domain.ResolvedIdentity{
		{UserID: "100", Username: "scammer_new"},
	})
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestCheckPropagatesStoreErrors(t *testing.T) {
	u := NewBlocklistUsecase(&fakeBlocklists{err: errors.New("db down")}, zap.NewNop())

	_, err := u.Check(context.Background(), "g1", "c1", []*domain.ResolvedIdentity{
		{UserID: "100", Username: "x"},
	})
	assert.Error(t, err)
}
