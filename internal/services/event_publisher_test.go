package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingPublisher struct{ calls int }

func (p *failingPublisher) Publish(string, interface{}) error {
	p.calls++
	return errors.New("sink down")
}

func TestFanoutPublisherDeliversToEverySink(t *testing.T) {
	first, second := newRecordingPublisher(), newRecordingPublisher()
	broken := &failingPublisher{}

	fan := NewFanoutPublisher(first, nil, broken, second)
	require.Len(t, fan, 3)

	err := fan.Publish("trades.settled", "x")
	assert.EqualError(t, err, "sink down")
	assert.Equal(t, 1, first.Count("trades.settled"))
	assert.Equal(t, 1, second.Count("trades.settled"))
	assert.Equal(t, 1, broken.calls)

	assert.NoError(t, NewFanoutPublisher().Publish("tokens.created", nil))
}
