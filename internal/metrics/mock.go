package metrics

import "sync"

// Mock is a mock implementation of the Metrics interface for testing.
// It is safe for concurrent use.
type Mock struct {
	mu                sync.Mutex
	queueJoins        int
	queueLeaves       int
	rejections        map[string]int
	queuesBalanced    int
	voteKicks         int
	balanceDurations  []float64
	matchesRecorded   int
	ratingAdjustments int
	notifSent         int
	notifFailed       int
	startupTime       float64
}

// NewMock creates a new mock instance.
func NewMock() *Mock {
	return &Mock{
		rejections:       make(map[string]int),
		balanceDurations: make([]float64, 0),
	}
}

func (m *Mock) IncQueueJoins() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queueJoins++
}

func (m *Mock) IncQueueLeaves() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queueLeaves++
}

func (m *Mock) IncQueueRejection(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejections[reason]++
}

func (m *Mock) IncQueuesBalanced() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queuesBalanced++
}

func (m *Mock) IncVoteKicks() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.voteKicks++
}

func (m *Mock) ObserveBalanceDuration(seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balanceDurations = append(m.balanceDurations, seconds)
}

func (m *Mock) IncMatchesRecorded() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matchesRecorded++
}

func (m *Mock) IncRatingAdjustments() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ratingAdjustments++
}

func (m *Mock) IncNotifSent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifSent++
}

func (m *Mock) IncNotifFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifFailed++
}

func (m *Mock) SetStartupTime(duration float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startupTime = duration
}

// QueueJoins returns the number of times IncQueueJoins was called.
func (m *Mock) QueueJoins() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queueJoins
}

// QueueLeaves returns the number of times IncQueueLeaves was called.
func (m *Mock) QueueLeaves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queueLeaves
}

// Rejections returns how often IncQueueRejection was called with reason.
func (m *Mock) Rejections(reason string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rejections[reason]
}

// QueuesBalanced returns the number of times IncQueuesBalanced was called.
func (m *Mock) QueuesBalanced() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queuesBalanced
}

func (m *Mock) VoteKicks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.voteKicks
}

// BalanceDurations returns every observed balance duration.
func (m *Mock) BalanceDurations() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float64(nil), m.balanceDurations...)
}

func (m *Mock) MatchesRecorded() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.matchesRecorded
}

func (m *Mock) RatingAdjustments() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ratingAdjustments
}

// NotifSent returns the number of times IncNotifSent was called.
func (m *Mock) NotifSent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.notifSent
}

// NotifFailed returns the number of times IncNotifFailed was called.
func (m *Mock) NotifFailed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.notifFailed
}

// StoreMock is an in-memory MetricsStore for testing.
type StoreMock struct {
	mu     sync.Mutex
	values map[string]int
}

func NewStoreMock() *StoreMock {
	return &StoreMock{values: make(map[string]int)}
}

func (m *StoreMock) Increment(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key]++
}

func (m *StoreMock) GetAll() (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out, nil
}

// Value returns the counter for key.
func (m *StoreMock) Value(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[key]
}
