package queue_test

import (
	"testing"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/mailblast-backend/internal/model"
	"github.com/unclebandit/mailblast-backend/internal/queue"
)

func TestRetryCountReadsHeaderVariants(t *testing.T) {
	assert.Equal(t, 0, queue.RetryCount(amqp.Delivery{}))
	assert.Equal(t, 2, queue.RetryCount(amqp.Delivery{
		Headers: amqp.Table{queue.RetryCountHeader: int32(2)},
	}))
	assert.Equal(t, 5, queue.RetryCount(amqp.Delivery{
		Headers: amqp.Table{queue.RetryCountHeader: int64(5)},
	}))
}

func TestInMemoryQueuePublishAndFail(t *testing.T) {
	q := &queue.InMemoryQueue{FailAfter: 2}

	require.NoError(t, q.PublishTask(model.RecipientTask{CampaignID: "c1", Email: "a@x.com"}))
	require.NoError(t, q.PublishTask(model.RecipientTask{CampaignID: "c1", Email: "b@x.com"}))
	require.Error(t, q.PublishTask(model.RecipientTask{CampaignID: "c1", Email: "c@x.com"}))
	assert.Len(t, q.Tasks, 2)
}
