package notifier

import (
	"sync"

	"github.com/mauv0809/inhouse-ladder/internal/match"
	"github.com/mauv0809/inhouse-ladder/internal/queue"
	"github.com/mauv0809/inhouse-ladder/internal/roster"
)

// Mock is a mock implementation of the Notifier interface for testing.
// It is safe for concurrent use.
type Mock struct {
	mu sync.Mutex

	// Call records
	SendQueueBalancedCalls []queue.QueueView
	SendMatchRecordedCalls []*match.Match
	SendQueuesCalls        [][]queue.QueueView
	DryRuns                []bool

	// Spies
	SendQueueBalancedFunc         func(view queue.QueueView, dryRun bool) error
	SendMatchRecordedFunc         func(m *match.Match, dryRun bool) error
	FormatQueuesResponseFunc      func(views []queue.QueueView, verbose bool) (any, error)
	FormatLeaderboardResponseFunc func(standings []roster.Standing) (any, error)

	LastQueuesResponse      any
	LastLeaderboardResponse any
}

// NewMock creates a new mock instance.
func NewMock() *Mock {
	return &Mock{}
}

// Reset clears all call records.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SendQueueBalancedCalls = nil
	m.SendMatchRecordedCalls = nil
	m.SendQueuesCalls = nil
	m.DryRuns = nil
	m.LastQueuesResponse = nil
	m.LastLeaderboardResponse = nil
}

func (m *Mock) SendQueueBalanced(view queue.QueueView, dryRun bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SendQueueBalancedCalls = append(m.SendQueueBalancedCalls, view)
	m.DryRuns = append(m.DryRuns, dryRun)
	if m.SendQueueBalancedFunc != nil {
		return m.SendQueueBalancedFunc(view, dryRun)
	}
	return nil
}

func (m *Mock) SendMatchRecorded(match *match.Match, dryRun bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SendMatchRecordedCalls = append(m.SendMatchRecordedCalls, match)
	m.DryRuns = append(m.DryRuns, dryRun)
	if m.SendMatchRecordedFunc != nil {
		return m.SendMatchRecordedFunc(match, dryRun)
	}
	return nil
}

func (m *Mock) SendQueues(views []queue.QueueView, dryRun bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SendQueuesCalls = append(m.SendQueuesCalls, views)
	m.DryRuns = append(m.DryRuns, dryRun)
	return nil
}

func (m *Mock) FormatQueuesResponse(views []queue.QueueView, verbose bool) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FormatQueuesResponseFunc != nil {
		resp, err := m.FormatQueuesResponseFunc(views, verbose)
		m.LastQueuesResponse = resp
		return resp, err
	}
	return "formatted_queues", nil
}

func (m *Mock) FormatLeaderboardResponse(standings []roster.Standing) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FormatLeaderboardResponseFunc != nil {
		resp, err := m.FormatLeaderboardResponseFunc(standings)
		m.LastLeaderboardResponse = resp
		return resp, err
	}
	return "formatted_leaderboard", nil
}
