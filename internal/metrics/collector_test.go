package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_RecordAndSnapshot(t *testing.T) {
	c := NewCollector()

	c.Record(OpDBQuery, 10*time.Millisecond)
	c.Record(OpDBQuery, 30*time.Millisecond)
	c.RecordTokens(OpLLMStream, 100, 50)

	snap := c.Snapshot()

	db, ok := snap.Operations[OpDBQuery]
	require.True(t, ok)
	assert.Equal(t, int64(2), db.Count)
	assert.Equal(t, int64(10), db.MinTimeMs)
	assert.Equal(t, int64(30), db.MaxTimeMs)
	assert.Equal(t, 20.0, db.AvgTimeMs)

	llm, ok := snap.Operations[OpLLMStream]
	require.True(t, ok)
	assert.Equal(t, int64(100), llm.TotalInputTokens)
	assert.Equal(t, int64(50), llm.TotalOutputTokens)
}

func TestCollector_Start(t *testing.T) {
	c := NewCollector()

	stop := c.Start(OpQuizParse)
	stop()

	snap := c.Snapshot()
	assert.Equal(t, int64(1), snap.Operations[OpQuizParse].Count)
}

func TestCollector_ConcurrentAccess(t *testing.T) {
	c := NewCollector()

	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				c.Record(OpDBQuery, time.Millisecond)
				c.RecordTokens(OpLLMStream, 1, 1)
			}
		}()
	}
	for i := 0; i < 4; i++ {
		<-done
	}

	snap := c.Snapshot()
	assert.Equal(t, int64(400), snap.Operations[OpDBQuery].Count)
}
