package data

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildwatch/bot/internal/biz/domain"
	"github.com/guildwatch/bot/internal/biz/repo"
)

func TestFxTweetLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/i/status/123", r.URL.Path)
		w.Write([]byte(`{"tweet":{"text":"gm #crypto","author":{"id":"42","screen_name":"jack"}}}`))
	}))
	defer srv.Close()

	p := NewFxProvider(srv.URL, srv.Client())
	assert.Equal(t, domain.SourceFx, p.Source())

	id, err := p.Lookup(context.Background(), domain.Match{Kind: domain.MatchTweet, TweetID: "123"})
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, "42", id.UserID)
	assert.Equal(t, "jack", id.Username)
	assert.Equal(t, domain.SourceFx, id.Source)
	assert.Equal(t, []string{"crypto"}, id.Hashtags)
}

func TestFxUserLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/jack", r.URL.Path)
		w.Write([]byte(`{"user":{"id":"42","screen_name":"jack"}}`))
	}))
	defer srv.Close()

	p := NewFxProvider(srv.URL, srv.Client())
	id, err := p.Lookup(context.Background(), domain.Match{Kind: domain.MatchUsername, Username: "jack"})
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, "42", id.UserID)
	assert.Equal(t, "jack", id.Username)
}

func TestVxTweetLookupHasNoUserID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"user_screen_name":"jack","text":"hello"}`))
	}))
	defer srv.Close()

	p := NewVxProvider(srv.URL, srv.Client())
	assert.Equal(t, domain.SourceVx, p.Source())

	id, err := p.Lookup(context.Background(), domain.Match{Kind: domain.MatchTweet, TweetID: "123"})
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Empty(t, id.UserID)
	assert.Equal(t, "jack", id.Username)
	assert.False(t, id.Resolved())
}

func TestVxUserLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"screen_name":"jack","id":42}`))
	}))
	defer srv.Close()

	p := NewVxProvider(srv.URL, srv.Client())
	id, err := p.Lookup(context.Background(), domain.Match{Kind: domain.MatchUsername, Username: "jack"})
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, "42", id.UserID)
}

func TestProviderRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewFxProvider(srv.URL, srv.Client())
	_, err := p.Lookup(context.Background(), domain.Match{Kind: domain.MatchTweet, TweetID: "123"})
	assert.True(t, errors.Is(err, repo.ErrRateLimited))
}

func TestProviderErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewFxProvider(srv.URL, srv.Client())
	_, err := p.Lookup(context.Background(), domain.Match{Kind: domain.MatchTweet, TweetID: "123"})
	assert.Error(t, err)
}

func TestProviderRejectsUserIDLookups(t *testing.T) {
	p := NewFxProvider("http://unused.invalid", nil)
	_, err := p.Lookup(context.Background(), domain.Match{Kind: domain.MatchUserID, UserID: "42"})
	assert.Error(t, err)
}
