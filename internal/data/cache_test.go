package data

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildwatch/bot/internal/biz/domain"
)

func TestCachePutGet(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	err := repos.Cache.Put(ctx, &domain.ResolvedIdentity{UserID: "12345", Username: "jack", Source: domain.SourceFx})
	require.NoError(t, err)

	rec, err := repos.Cache.Get(ctx, domain.Match{Kind: domain.MatchUserID, UserID: "12345"})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "12345", rec.UserID)
	assert.Equal(t, "jack", rec.Username)
	assert.False(t, rec.CachedAt.IsZero())

	rec, err = repos.Cache.Get(ctx, domain.Match{Kind: domain.MatchUsername, Username: "JACK"})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "12345", rec.UserID)
}

func TestCacheMiss(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	rec, err := repos.Cache.Get(ctx, domain.Match{Kind: domain.MatchUserID, UserID: "999"})
	require.NoError(t, err)
	assert.Nil(t, rec)

	id, err := repos.Cache.GetIDByUsername(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestCacheTweetMatchHasNoPath(t *testing.T) {
	repos := newTestRepos(t)

	rec, err := repos.Cache.Get(context.Background(), domain.Match{Kind: domain.MatchTweet, TweetID: "123"})
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestCachePutRefreshes(t *testing.T) {
	repos := newTestRepos(t)
	ctx := context.Background()

	require.NoError(t, repos.Cache.Put(ctx, &domain.ResolvedIdentity{UserID: "1", Username: "oldname"}))
	require.NoError(t, repos.Cache.Put(ctx, &domain.ResolvedIdentity{UserID: "1", Username: "newname"}))

	rec, err := repos.Cache.Get(ctx, domain.Match{Kind: domain.MatchUserID, UserID: "1"})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "newname", rec.Username)

	id, err := repos.Cache.GetIDByUsername(ctx, "newname")
	require.NoError(t, err)
	assert.Equal(t, "1", id)
}
