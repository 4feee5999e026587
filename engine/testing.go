package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/krchat/sentinel/dedupestore"
	"github.com/krchat/sentinel/phash"
	"github.com/krchat/sentinel/repeatstore"
	"github.com/krchat/sentinel/ruleset"
)

// TestRules returns a small rule bundle resembling the production Korean
// phishing rules: a strict profile+visit proximity pair plus flat reward and
// brand-coin categories.
func TestRules() *ruleset.RuleSet {
	return &ruleset.RuleSet{
		Keywords: map[string][]string{
			"profile": {"친추", "프로필"},
			"visit":   {"방문"},
			"reward":  {"보상", "이벤트보상"},
			"gcoin":   {"g코인", "지코인"},
		},
		ProximityPairs: []ruleset.ProximityPair{
			{A: "profile", B: "visit", Window: 12, Weight: 40, Label: "profile_visit", Strict: true},
		},
		Weights: map[string]int{
			"profile_visit": 40,
			"reward":        30,
			"gcoin":         30,
		},
		Homoglyphs: map[string]string{
			"0": "o",
		},
		Negations: []string{"주의", "조심", "사기"},
		NickFlags: []string{"서포터즈"},
		Sensitivity: ruleset.Sensitivity{
			ScoreThresholdNormal: 60,
			RepeatWindowSec:      600,
			NearWindow:           12,
		},
	}
}

// EngineTestFixture returns a fully wired engine backed by memory stores and
// mock collaborators, ready for event processing in tests.
func EngineTestFixture() *Engine {
	cfg := EngineConfig{
		WindowDays:        50,
		TimeoutDuration:   24 * time.Hour,
		MonitoredChannels: []int64{100, 101},
		QRChannels:        []int64{100, 200},
		LogOnlyChannels:   []int64{300},
		PolicyMessage:     VerbDeleteTimeout,
		PolicyThread:      VerbDelete,
		PolicyQR:          VerbDelete,
		PolicyAvatar:      VerbTimeout,
		BanOnStrict:       true,
	}
	eng := NewEngine(slog.Default(), TestRules(), cfg)
	eng.Dedupe = dedupestore.NewMemDedupeStore(0)
	eng.Repeats = repeatstore.NewMemRepeatStore()
	eng.Refs = phash.NewRefSet()
	eng.Enforcer = NewMockEnforcer()
	eng.Fetcher = &MockFetcher{Blobs: map[string][]byte{}}
	eng.Notifier = &MemNotifier{}
	return eng
}

// EnforcerAction records one attempted enforcement call.
type EnforcerAction struct {
	Kind      string
	AccountID int64
	ChannelID int64
	ObjectID  int64
}

// MockEnforcer records every action and can be toggled to fail individual
// verbs.
type MockEnforcer struct {
	mu      sync.Mutex
	Actions []EnforcerAction

	FailDelete     bool
	FailTimeout    bool
	FailBan        bool
	MissingMembers map[int64]bool
}

func NewMockEnforcer() *MockEnforcer {
	return &MockEnforcer{MissingMembers: map[int64]bool{}}
}

func (m *MockEnforcer) record(kind string, accountID, channelID, objectID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Actions = append(m.Actions, EnforcerAction{Kind: kind, AccountID: accountID, ChannelID: channelID, ObjectID: objectID})
}

// Recorded returns a snapshot of the action kinds in call order.
func (m *MockEnforcer) Recorded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Actions))
	for i, a := range m.Actions {
		out[i] = a.Kind
	}
	return out
}

func (m *MockEnforcer) DeleteMessage(ctx context.Context, channelID, messageID int64) error {
	if m.FailDelete {
		return fmt.Errorf("simulated delete failure")
	}
	m.record("delete-message", 0, channelID, messageID)
	return nil
}

func (m *MockEnforcer) DeleteThread(ctx context.Context, threadID int64) error {
	if m.FailDelete {
		return fmt.Errorf("simulated delete failure")
	}
	m.record("delete-thread", 0, 0, threadID)
	return nil
}

func (m *MockEnforcer) TimeoutAccount(ctx context.Context, accountID int64, dur time.Duration) error {
	if m.FailTimeout {
		return fmt.Errorf("simulated timeout failure")
	}
	m.record("timeout", accountID, 0, 0)
	return nil
}

func (m *MockEnforcer) BanAccount(ctx context.Context, accountID int64) error {
	if m.FailBan {
		return fmt.Errorf("simulated ban failure")
	}
	m.record("ban", accountID, 0, 0)
	return nil
}

func (m *MockEnforcer) ResolveMember(ctx context.Context, accountID int64) (*AccountMeta, error) {
	if m.MissingMembers[accountID] {
		return nil, ErrMemberNotFound
	}
	return &AccountMeta{ID: accountID}, nil
}

// MockFetcher serves blobs from a static map.
type MockFetcher struct {
	Blobs map[string][]byte
}

func (m *MockFetcher) FetchBytes(ctx context.Context, url string, maxBytes int64) ([]byte, error) {
	data, ok := m.Blobs[url]
	if !ok {
		return nil, fmt.Errorf("no blob for %s", url)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("blob exceeds size limit of %d bytes", maxBytes)
	}
	return data, nil
}

// MemNotifier collects decisions in memory.
type MemNotifier struct {
	mu        sync.Mutex
	Decisions []Decision
}

func (n *MemNotifier) NotifyDecision(ctx context.Context, d Decision) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Decisions = append(n.Decisions, d)
	return nil
}

// All returns a snapshot of collected decisions.
func (n *MemNotifier) All() []Decision {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Decision, len(n.Decisions))
	copy(out, n.Decisions)
	return out
}
