package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/xiaohuanlin/algoassistant-sync/internal/core/domain"
	"github.com/xiaohuanlin/algoassistant-sync/internal/core/ports/driven"
)

var (
	_ driven.ChannelProvider  = (*MockChannelProvider)(nil)
	_ driven.SubmissionSource = (*MockSubmissionSource)(nil)
	_ driven.ProviderFactory  = (*MockProviderFactory)(nil)
)

// MockChannelProvider records every SyncOne call and tracks how many run at once.
// Without SyncFn it returns a result valid for its channel.
type MockChannelProvider struct {
	channel domain.Channel

	mu          sync.Mutex
	calls       []int64
	inFlight    int
	maxInFlight int

	SyncFn func(ctx context.Context, record *domain.Record) (*domain.ChannelResult, error)
}

// NewMockChannelProvider creates a provider for ch
func NewMockChannelProvider(ch domain.Channel) *MockChannelProvider {
	return &MockChannelProvider{channel: ch}
}

func (m *MockChannelProvider) Channel() domain.Channel {
	return m.channel
}

func (m *MockChannelProvider) SyncOne(ctx context.Context, record *domain.Record) (*domain.ChannelResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, record.ID)
	m.inFlight++
	if m.inFlight > m.maxInFlight {
		m.maxInFlight = m.inFlight
	}
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if m.SyncFn != nil {
		return m.SyncFn(ctx, record)
	}
	return DefaultResult(m.channel, record), nil
}

// Calls returns the record IDs passed to SyncOne, in call order
func (m *MockChannelProvider) Calls() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.calls...)
}

// MaxInFlight returns the highest number of concurrent SyncOne calls seen
func (m *MockChannelProvider) MaxInFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxInFlight
}

// DefaultResult builds a result that satisfies ChannelResult.Validate for ch
func DefaultResult(ch domain.Channel, record *domain.Record) *domain.ChannelResult {
	switch ch {
	case domain.ChannelGitHub:
		return &domain.ChannelResult{GitFilePath: fmt.Sprintf("solutions/%d.go", record.ProblemID)}
	case domain.ChannelNotion:
		return &domain.ChannelResult{NotionURL: fmt.Sprintf("https://notion.so/record-%d", record.ID)}
	case domain.ChannelAI:
		return &domain.ChannelResult{AIAnalysis: &domain.AIAnalysis{Summary: "ok", Confidence: 0.9}}
	}
	return &domain.ChannelResult{}
}

// MockSubmissionSource serves a fixed list of submissions
type MockSubmissionSource struct {
	mu          sync.Mutex
	Submissions []*domain.Submission

	// Total overrides the reported total when non-zero
	Total int
	// ListErr, if set, fails ListSubmissions
	ListErr error
	// TotalErr, if set, fails TotalSubmissions
	TotalErr error
}

func (m *MockSubmissionSource) TotalSubmissions(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.TotalErr != nil {
		return 0, m.TotalErr
	}
	if m.Total != 0 {
		return m.Total, nil
	}
	return len(m.Submissions), nil
}

func (m *MockSubmissionSource) ListSubmissions(ctx context.Context, offset, limit int) ([]*domain.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	if offset >= len(m.Submissions) {
		return nil, nil
	}
	end := offset + limit
	if end > len(m.Submissions) {
		end = len(m.Submissions)
	}
	return append([]*domain.Submission(nil), m.Submissions[offset:end]...), nil
}

// MockProviderFactory hands out preconfigured providers
type MockProviderFactory struct {
	mu        sync.Mutex
	providers map[domain.Channel]*MockChannelProvider

	Source *MockSubmissionSource
	// Err, if set, fails every build
	Err error
}

// NewMockProviderFactory creates a factory with one mock provider per channel
func NewMockProviderFactory() *MockProviderFactory {
	f := &MockProviderFactory{
		providers: make(map[domain.Channel]*MockChannelProvider),
		Source:    &MockSubmissionSource{},
	}
	for _, ch := range domain.AllChannels() {
		f.providers[ch] = NewMockChannelProvider(ch)
	}
	return f
}

// Provider returns the mock provider of ch
func (f *MockProviderFactory) Provider(ch domain.Channel) *MockChannelProvider {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.providers[ch]
}

func (f *MockProviderFactory) ChannelProvider(taskType domain.TaskType, cfg *domain.ProviderConfig) (driven.ChannelProvider, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Provider(taskType.Channel()), nil
}

func (f *MockProviderFactory) SubmissionSource(cfg *domain.ProviderConfig) (driven.SubmissionSource, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Source, nil
}
