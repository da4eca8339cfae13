package usecase

import (
	"sync"
	"time"

	"github.com/guildwatch/bot/internal/biz/domain"
)

const latencyRingSize = 20

// HealthTuning holds the per-provider constants the health score is
// computed against. The primary provider gets a shorter recovery horizon
// and a tighter latency target than the secondary.
type HealthTuning struct {
	// RecoveryHorizon is how long after the last success the recency
	// penalty saturates.
	RecoveryHorizon time.Duration
	// TargetLatency is the average latency that earns the full bonus.
	TargetLatency time.Duration
}

// DefaultHealthTuning returns the standard tuning for a provider.
func DefaultHealthTuning(source domain.IdentitySource) HealthTuning {
	if source == domain.SourceVx {
		return HealthTuning{RecoveryHorizon: 10 * time.Minute, TargetLatency: 1500 * time.Millisecond}
	}
	return HealthTuning{RecoveryHorizon: 5 * time.Minute, TargetLatency: time.Second}
}

// providerHealth is the soft state tracked per provider for the lifetime of
// the process. Nothing here is persisted.
type providerHealth struct {
	tuning          HealthTuning
	successCount    int
	failureCount    int
	lastSuccess     time.Time
	lastFailure     time.Time
	recentLatencies []time.Duration // bounded ring, oldest first
}

// ProviderHealthRegistry tracks health telemetry for each provider and
// derives the 0-1 fitness score used to order fetch attempts. It is an
// injected dependency, not a singleton, so tests get isolated instances;
// all updates are serialized under one mutex because resolutions for many
// messages record into it concurrently.
type ProviderHealthRegistry struct {
	mu        sync.Mutex
	providers map[domain.IdentitySource]*providerHealth
	now       func() time.Time
}

// NewProviderHealthRegistry creates a registry with default tuning for the
// given providers.
func NewProviderHealthRegistry(sources ...domain.IdentitySource) *ProviderHealthRegistry {
	r := &ProviderHealthRegistry{
		providers: make(map[domain.IdentitySource]*providerHealth),
		now:       time.Now,
	}
	for _, s := range sources {
		r.Register(s, DefaultHealthTuning(s))
	}
	return r
}

// Register adds or replaces a provider with explicit tuning. The last
// success starts at registration time so a fresh provider carries no
// recency penalty.
func (r *ProviderHealthRegistry) Register(source domain.IdentitySource, tuning HealthTuning) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[source] = &providerHealth{tuning: tuning, lastSuccess: r.now()}
}

// RecordSuccess records a successful fetch and its latency. Every 10th
// success decays the failure count by 20% so health recovers without the
// failures having to be forgotten instantly.
func (r *ProviderHealthRegistry) RecordSuccess(source domain.IdentitySource, latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.providers[source]
	if h == nil {
		return
	}
	h.successCount++
	h.lastSuccess = r.now()
	h.recentLatencies = append(h.recentLatencies, latency)
	if len(h.recentLatencies) > latencyRingSize {
		h.recentLatencies = h.recentLatencies[1:]
	}
	if h.successCount%10 == 0 && h.failureCount > 0 {
		h.failureCount = h.failureCount * 8 / 10
	}
}

// RecordFailure records a failed fetch.
func (r *ProviderHealthRegistry) RecordFailure(source domain.IdentitySource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.providers[source]
	if h == nil {
		return
	}
	h.failureCount++
	h.lastFailure = r.now()
}

// Score derives the provider's current fitness in [0,1]:
//
//	successRate − recencyPenalty + latencyBonus
//
// successRate defaults to 0.5 with no history. recencyPenalty grows with
// time since the last success toward the recovery horizon, capped at 0.4.
// latencyBonus rewards average recent latency below twice the target,
// capped at 0.2.
func (r *ProviderHealthRegistry) Score(source domain.IdentitySource) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.providers[source]
	if h == nil {
		return 0
	}

	total := h.successCount + h.failureCount
	if total == 0 {
		return 0.5
	}
	successRate := float64(h.successCount) / float64(total)

	sinceSuccess := r.now().Sub(h.lastSuccess)
	recencyPenalty := sinceSuccess.Seconds() / h.tuning.RecoveryHorizon.Seconds()
	if recencyPenalty > 0.4 {
		recencyPenalty = 0.4
	}

	avgLatency := time.Second
	if len(h.recentLatencies) > 0 {
		var sum time.Duration
		for _, l := range h.recentLatencies {
			sum += l
		}
		avgLatency = sum / time.Duration(len(h.recentLatencies))
	}
	target := 2 * h.tuning.TargetLatency.Seconds()
	latencyBonus := (target - avgLatency.Seconds()) / target * 0.2
	if latencyBonus < 0 {
		latencyBonus = 0
	}

	score := successRate - recencyPenalty + latencyBonus
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// HealthSnapshot is a read-only copy of a provider's counters.
type HealthSnapshot struct {
	SuccessCount int
	FailureCount int
	LastSuccess  time.Time
	LastFailure  time.Time
	Latencies    int
}

// Snapshot returns the provider's current counters, for logging and tests.
func (r *ProviderHealthRegistry) Snapshot(source domain.IdentitySource) HealthSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.providers[source]
	if h == nil {
		return HealthSnapshot{}
	}
	return HealthSnapshot{
		SuccessCount: h.successCount,
		FailureCount: h.failureCount,
		LastSuccess:  h.lastSuccess,
		LastFailure:  h.lastFailure,
		Latencies:    len(h.recentLatencies),
	}
}
