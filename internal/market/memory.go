package market

import "sync"

// Outcome is a settled trade result.
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLoss Outcome = "loss"
)

const memoryDepth = 5

// Memory keeps a short history of confidence scores, results and rejections.
type Memory struct {
	mu          sync.Mutex
	confidences []int
	results     []Outcome
	rejections  int
}

func (m *Memory) RecordConfidence(score int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.confidences = pushBounded(m.confidences, score)
}

func (m *Memory) RecordResult(o Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = pushBounded(m.results, o)
}

// RecordRejection counts a signal that was vetoed after scoring.
func (m *Memory) RecordRejection() {
	m.mu.Lock()
	m.rejections++
	m.mu.Unlock()
}

// ResetRejections clears the counter after an executed trade.
func (m *Memory) ResetRejections() {
	m.mu.Lock()
	m.rejections = 0
	m.mu.Unlock()
}

func (m *Memory) Rejections() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rejections
}

func (m *Memory) Wins() int { return m.count(OutcomeWin) }
func (m *Memory) Losses() int { return m.count(OutcomeLoss) }

func (m *Memory) Confidences() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.confidences...)
}

func (m *Memory) count(o Outcome) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.results {
		if r == o {
			n++
		}
	}
	return n
}

func pushBounded[T any](s []T, v T) []T {
	s = append(s, v)
	if len(s) > memoryDepth {
		s = s[len(s)-memoryDepth:]
	}
	return s
}
