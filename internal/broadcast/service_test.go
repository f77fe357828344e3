package broadcast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svirmi/options-scanner/internal/models"
)

func receive(t *testing.T, ch <-chan models.ScanReport) models.ScanReport {
	t.Helper()
	select {
	case r, ok := <-ch:
		require.True(t, ok, "channel closed")
		return r
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for report")
		return models.ScanReport{}
	}
}

func TestFanOut(t *testing.T) {
	b := NewBroadcastService(4)
	b.Start()
	defer b.Stop()

	id1, ch1 := b.Subscribe()
	id2, ch2 := b.Subscribe()
	assert.NotEqual(t, id1, id2)

	b.Publish(models.ScanReport{Currency: "BTC", Generation: 3})
	assert.Equal(t, uint64(3), receive(t, ch1).Generation)
	assert.Equal(t, uint64(3), receive(t, ch2).Generation)

	m := b.GetMetrics()
	assert.Equal(t, 2, m.SubscriberCount)
	assert.Equal(t, int64(1), m.ReportsPublished)
	assert.Equal(t, int64(2), m.MessagesSent)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroadcastService(1)
	b.Start()
	defer b.Stop()

	id, ch := b.Subscribe()
	b.Unsubscribe(id)
	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, b.GetMetrics().SubscriberCount)

	b.Unsubscribe(id)
}

func TestSlowSubscriberDrops(t *testing.T) {
	b := NewBroadcastService(1)
	b.Start()
	defer b.Stop()

	_, ch := b.Subscribe()
	for i := 1; i <= 3; i++ {
		b.Publish(models.ScanReport{Generation: uint64(i)})
		require.Eventually(t, func() bool {
			return b.GetMetrics().ReportsPublished == int64(i)
		}, time.Second, time.Millisecond)
	}

	assert.Equal(t, uint64(1), receive(t, ch).Generation)
	assert.Equal(t, int64(2), b.GetMetrics().DroppedMessages)
}

func TestStopClosesSubscribers(t *testing.T) {
	b := NewBroadcastService(1)
	b.Start()
	_, ch := b.Subscribe()
	b.Stop()

	_, ok := <-ch
	assert.False(t, ok)
	b.Publish(models.ScanReport{})
	assert.Equal(t, int64(0), b.GetMetrics().ReportsPublished)
}
