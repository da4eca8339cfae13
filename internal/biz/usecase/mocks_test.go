package usecase

import (
	"context"
	"errors"

	"github.com/guildwatch/bot/internal/biz/domain"
	"github.com/guildwatch/bot/internal/biz/repo"
)

type fakeCache struct {
	records    map[string]*domain.CacheRecord // keyed by user id
	byUsername map[string]string
	getErr     error
	puts       []*domain.ResolvedIdentity
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		records:    make(map[string]*domain.CacheRecord),
		byUsername: make(map[string]string),
	}
}

func (f *fakeCache) Get(ctx context.Context, match domain.Match) (*domain.CacheRecord, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	switch match.Kind {
	case domain.MatchUserID:
		return f.records[match.UserID], nil
	case domain.MatchUsername:
		if id, ok := f.byUsername[match.Username]; ok {
			return f.records[id], nil
		}
	}
	return nil, nil
}

func (f *fakeCache) Put(ctx context.Context, identity *domain.ResolvedIdentity) error {
	f.puts = append(f.puts, identity)
	return nil
}

func (f *fakeCache) GetIDByUsername(ctx context.Context, username string) (string, error) {
	return f.byUsername[username], nil
}

type fakeAudit struct {
	usernames []string // "userID/username/via"
}

func (f *fakeAudit) RecordAction(ctx context.Context, rec repo.ActionRecord) error { return nil }

func (f *fakeAudit) RecordOffender(ctx context.Context, rec repo.OffenderRecord) error {
	return nil
}
func (f *fakeAudit) RecordUsername(ctx context.Context, userID, username, via string) error {
	f.usernames = append(f.usernames, userID+"/"+username+"/"+via)
	return nil
}

type fakeProvider struct {
	source domain.IdentitySource
	lookup func(domain.Match) (*domain.ResolvedIdentity, error)
	calls  int
}

func (f *fakeProvider) Source() domain.IdentitySource { return f.source }

func (f *fakeProvider) Lookup(ctx context.Context, match domain.Match) (*domain.ResolvedIdentity, error) {
	f.calls++
	return f.lookup(match)
}

type fakeBlocklists struct {
	entries []repo.EnforcedEntry
	err     error
}

func (f *fakeBlocklists) Create(ctx context.Context, bl *domain.Blocklist) (int64, error) {
	return 0, errors.New("not implemented")
}

func (f *fakeBlocklists) AddEntry(ctx context.Context, entry *domain.BlocklistEntry) (int64, error) {
	return 0, errors.New("not implemented")
}

func (f *fakeBlocklists) RemoveEntry(ctx context.Context, blocklistID int64, userID string) error {
	return errors.New("not implemented")
}

func (f *fakeBlocklists) Subscribe(ctx context.Context, sub *domain.Subscription) error {
	return errors.New("not implemented")
}

func (f *fakeBlocklists) EnforcedEntries(ctx context.Context, guildID string) ([]repo.EnforcedEntry, error) {
	return f.entries, f.err
}
