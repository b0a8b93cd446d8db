package question

import "math/rand"

// DefaultFallbackTopics are used when neither player submits a topic before
// the selection deadline.
var DefaultFallbackTopics = []string{"History", "Science", "Math", "Literature", "Geography", "Art"}

// TopicPicker draws a fallback topic uniformly from a fixed list. The random
// source is injectable so deadline resolution is deterministic under test.
type TopicPicker struct {
	topics []string
	intn   func(n int) int
}

// NewTopicPicker builds a picker over the given topics. A nil intn uses the
// package-level math/rand source.
func NewTopicPicker(topics []string, intn func(n int) int) *TopicPicker {
	if len(topics) == 0 {
		topics = DefaultFallbackTopics
	}
	if intn == nil {
		intn = rand.Intn
	}
	return &TopicPicker{topics: topics, intn: intn}
}

// Pick returns one fallback topic.
func (p *TopicPicker) Pick() string {
	return p.topics[p.intn(len(p.topics))]
}

// Topics returns the configured fallback list.
func (p *TopicPicker) Topics() []string {
	return p.topics
}
