package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/guildwatch/bot/internal/biz/domain"
	"github.com/guildwatch/bot/internal/biz/repo"
	"github.com/guildwatch/bot/internal/biz/usecase"
)

// Stage worker-pool sizes. Resolution dominates (network bound), actions
// are paced by the chat API.
const (
	resolveConcurrency = 5
	checkConcurrency   = 5
	actConcurrency     = 3
)

// resolveJob is the first-stage payload. It carries everything the later
// stages need so a job never depends on a DB read to make progress.
type resolveJob struct {
	MessageID   string         `json:"messageId"`
	GuildID     string         `json:"guildId"`
	ChannelID   string         `json:"channelId"`
	AuthorID    string         `json:"authorId"`
	IsAuthorBot bool           `json:"isAuthorBot"`
	Matches     []domain.Match `json:"matches"`
}

type checkJob struct {
	MessageID   string                     `json:"messageId"`
	GuildID     string                     `json:"guildId"`
	ChannelID   string                     `json:"channelId"`
	AuthorID    string                     `json:"authorId"`
	IsAuthorBot bool                       `json:"isAuthorBot"`
	Resolved    []*domain.ResolvedIdentity `json:"resolved"`
}

type actJob struct {
	MessageID   string                  `json:"messageId"`
	GuildID     string                  `json:"guildId"`
	ChannelID   string                  `json:"channelId"`
	AuthorID    string                  `json:"authorId"`
	IsAuthorBot bool                    `json:"isAuthorBot"`
	Blocked     []domain.BlocklistMatch `json:"blocked"`
}

// Pipeline wires message ingestion and the three queue stages together:
// link resolution, blocklist checking, action execution.
type Pipeline struct {
	queue    repo.Queue
	messages repo.MessageRepo
	guilds   repo.GuildRepo
	audit    repo.AuditRepo
	chat     repo.ChatClient
	resolver *usecase.ResolverUsecase
	checker  *usecase.BlocklistUsecase
	log      *zap.Logger
}

// NewPipeline creates the pipeline and registers its stage handlers on the
// queue. Delivery begins when the queue is started.
func NewPipeline(
	queue repo.Queue,
	messages repo.MessageRepo,
	guilds repo.GuildRepo,
	audit repo.AuditRepo,
	chat repo.ChatClient,
	resolver *usecase.ResolverUsecase,
	checker *usecase.BlocklistUsecase,
	log *zap.Logger,
) *Pipeline {
	p := &Pipeline{
		queue:    queue,
		messages: messages,
		guilds:   guilds,
		audit:    audit,
		chat:     chat,
		resolver: resolver,
		checker:  checker,
		log:      log,
	}
	queue.Subscribe(repo.StageResolve, resolveConcurrency, p.handleResolve)
	queue.Subscribe(repo.StageCheck, checkConcurrency, p.handleCheck)
	queue.Subscribe(repo.StageAct, actConcurrency, p.handleAct)
	return p
}

// Ingest extracts link matches from an incoming message and, when any are
// found, durably records the message and enqueues resolution.
//
// The row write and the enqueue are both attempted even when the first
// fails: the queue delivers the work if the row write was lost, and the
// recovery sweep re-enqueues from the row if the enqueue was lost. Only
// both failing loses the message, and that is reported.
func (p *Pipeline) Ingest(ctx context.Context, msg domain.IncomingMessage) error {
	pending := domain.ExtractMessage(msg)
	if pending == nil {
		return nil
	}

	storeErr := p.messages.Store(ctx, pending)
	if storeErr != nil {
		p.log.Error("failed to store pending message",
			zap.String("message_id", pending.MessageID), zap.Error(storeErr))
	}

	enqueueErr := p.enqueueResolve(ctx, pending)
	if enqueueErr != nil {
		p.log.Error("failed to enqueue resolution",
			zap.String("message_id", pending.MessageID), zap.Error(enqueueErr))
	}

	return errors.Join(storeErr, enqueueErr)
}

func (p *Pipeline) enqueueResolve(ctx context.Context, msg *domain.PendingMessage) error {
	return p.queue.Enqueue(ctx, repo.StageResolve, resolveJob{
		MessageID:   msg.MessageID,
		GuildID:     msg.GuildID,
		ChannelID:   msg.ChannelID,
		AuthorID:    msg.AuthorID,
		IsAuthorBot: msg.IsAuthorBot,
		Matches:     msg.Matches,
	}, "msg-"+msg.MessageID)
}

// handleResolve resolves every match to an identity. Matches that do not
// yield a usable user id mark the row failed with resolution counts; the
// ones that do flow on to the blocklist check. Both can happen for the
// same message.
func (p *Pipeline) handleResolve(ctx context.Context, payload []byte) error {
	var job resolveJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return fmt.Errorf("decode resolve job: %w", err)
	}

	// Resolve all matches in parallel; a message with several links should
	// not pay for them serially. Results stay indexed so ordering is stable.
	identities := make([]*domain.ResolvedIdentity, len(job.Matches))
	errs := make([]error, len(job.Matches))
	var wg sync.WaitGroup
	for i, match := range job.Matches {
		wg.Add(1)
		go func(i int, match domain.Match) {
			defer wg.Done()
			identities[i], errs[i] = p.resolver.Resolve(ctx, match)
		}(i, match)
	}
	wg.Wait()
	if err := errors.Join(errs...); err != nil {
		return err
	}

	var resolved []*domain.ResolvedIdentity
	var unresolved []domain.Match
	for i, match := range job.Matches {
		if identities[i].Resolved() {
			resolved = append(resolved, identities[i])
		} else {
			unresolved = append(unresolved, match)
		}
	}

	if len(unresolved) > 0 {
		err := p.messages.MarkFailed(ctx, job.MessageID, job.GuildID, &domain.ResolutionData{
			Resolved:          len(resolved),
			Unresolved:        len(unresolved),
			UnresolvedMatches: unresolved,
		})
		if err != nil {
			return err
		}
	}

	if len(resolved) == 0 {
		return nil
	}

	return p.queue.Enqueue(ctx, repo.StageCheck, checkJob{
		MessageID:   job.MessageID,
		GuildID:     job.GuildID,
		ChannelID:   job.ChannelID,
		AuthorID:    job.AuthorID,
		IsAuthorBot: job.IsAuthorBot,
		Resolved:    resolved,
	}, "check-"+job.MessageID)
}

// handleCheck filters the resolved identities against the guild's enforced
// blocklists. No match means the message is benign and nothing further
// happens.
func (p *Pipeline) handleCheck(ctx context.Context, payload []byte) error {
	var job checkJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return fmt.Errorf("decode check job: %w", err)
	}

	blocked, err := p.checker.Check(ctx, job.GuildID, job.ChannelID, job.Resolved)
	if err != nil {
		return err
	}
	if len(blocked) == 0 {
		return nil
	}

	return p.queue.Enqueue(ctx, repo.StageAct, actJob{
		MessageID:   job.MessageID,
		GuildID:     job.GuildID,
		ChannelID:   job.ChannelID,
		AuthorID:    job.AuthorID,
		IsAuthorBot: job.IsAuthorBot,
		Blocked:     blocked,
	}, "act-"+job.MessageID)
}

// handleAct executes the configured moderation actions against the live
// message and records the outcome.
func (p *Pipeline) handleAct(ctx context.Context, payload []byte) error {
	var job actJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return fmt.Errorf("decode act job: %w", err)
	}

	// A redelivered job for an already actioned message must not act twice.
	row, err := p.messages.Get(ctx, job.MessageID, job.GuildID)
	if err != nil {
		return err
	}
	if row != nil && row.State == domain.StateActioned {
		return nil
	}

	config, err := p.guilds.ActionConfig(ctx, job.GuildID, job.ChannelID)
	if err != nil {
		return err
	}

	live, err := p.chat.FetchMessage(ctx, job.ChannelID, job.MessageID)
	if err != nil {
		return err
	}
	if live == nil {
		return p.messages.MarkFailed(ctx, job.MessageID, job.GuildID, nil)
	}

	actions := domain.DetermineActions(config, job.IsAuthorBot, job.Blocked)

	// Each action is attempted independently. A failed react must not
	// block the delete, and a retry of the whole job would duplicate
	// whatever did succeed.
	var taken []domain.ActionTaken
	for _, action := range actions {
		var err error
		switch action.Kind {
		case domain.ActionReact:
			err = live.React(ctx, action.Emoji)
		case domain.ActionReply:
			err = live.Reply(ctx, action.Content)
		case domain.ActionDelete:
			err = live.Delete(ctx)
		}
		if err != nil {
			p.log.Warn("moderation action failed",
				zap.String("message_id", job.MessageID),
				zap.String("action", string(action.Kind)),
				zap.Error(err))
			continue
		}
		taken = append(taken, domain.ActionTaken{Kind: action.Kind, Emoji: action.Emoji, Content: action.Content})
	}

	matchedIDs := make([]string, 0, len(job.Blocked))
	listNames := make([]string, 0, len(job.Blocked))
	for _, m := range job.Blocked {
		matchedIDs = append(matchedIDs, m.UserID)
		listNames = append(listNames, m.BlocklistName)
	}

	if err := p.audit.RecordAction(ctx, repo.ActionRecord{
		MessageID:      job.MessageID,
		GuildID:        job.GuildID,
		ChannelID:      job.ChannelID,
		AuthorID:       job.AuthorID,
		MatchedUserIDs: matchedIDs,
		ActionsTaken:   taken,
	}); err != nil {
		p.log.Warn("failed to record action", zap.Error(err))
	}

	if err := p.messages.MarkActioned(ctx, job.MessageID, job.GuildID, taken); err != nil {
		return err
	}

	// Bots relaying links (embeds, mirrors) are not offenders.
	if !job.IsAuthorBot {
		if err := p.audit.RecordOffender(ctx, repo.OffenderRecord{
			GuildID:        job.GuildID,
			AuthorID:       job.AuthorID,
			ChannelID:      job.ChannelID,
			MessageID:      job.MessageID,
			BlockedUserIDs: matchedIDs,
			BlocklistNames: listNames,
		}); err != nil {
			p.log.Warn("failed to record offender", zap.Error(err))
		}
	}

	return nil
}
