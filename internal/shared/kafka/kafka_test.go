package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, Brokers(" a:9092, ,b:9092 "))
	assert.Empty(t, Brokers(""))
}

func TestNewJSONMessage(t *testing.T) {
	m, err := NewJSONMessage("42", map[string]int{"round_id": 42})
	require.NoError(t, err)
	assert.Equal(t, "42", string(m.Key))
	assert.JSONEq(t, `{"round_id":42}`, string(m.Value))
	assert.False(t, m.Time.IsZero())

	_, err = NewJSONMessage("x", func() {})
	require.Error(t, err)
}

func TestNewWriter(t *testing.T) {
	w := NewWriter("a:9092,b:9092", "crash_round_settled")
	assert.Equal(t, "crash_round_settled", w.Topic)
	assert.NotNil(t, w.Addr)
	assert.True(t, w.AllowAutoTopicCreation)
}
