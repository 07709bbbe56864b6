package aws

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-finder/internal/common/logger"
	"restaurant-finder/internal/models"
)

type fakePublisher struct {
	inputs []*sns.PublishInput
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, input *sns.PublishInput) (*sns.PublishOutput, error) {
	f.inputs = append(f.inputs, input)
	return &sns.PublishOutput{}, f.err
}

func TestNotifySearchResult(t *testing.T) {
	publisher := &fakePublisher{}
	notifier := NewSearchResultNotifier(publisher, "arn:aws:sns:eu-west-1:000000000000:search-results", logger.NewTestLogger(t))

	restaurantID := "r1"
	notifier.NotifySearchResult(context.Background(),
		&models.Search{ID: "s1"},
		&models.SearchCandidate{ID: "c1", SearchID: "s1", Status: models.CandidateReturned, RestaurantID: &restaurantID},
	)

	require.Len(t, publisher.inputs, 1)
	input := publisher.inputs[0]
	require.NotNil(t, input.TopicArn)
	assert.Equal(t, "arn:aws:sns:eu-west-1:000000000000:search-results", *input.TopicArn)

	var msg struct {
		SearchID  string                 `json:"searchId"`
		Candidate models.SearchCandidate `json:"candidate"`
	}
	require.NotNil(t, input.Message)
	require.NoError(t, json.Unmarshal([]byte(*input.Message), &msg))
	assert.Equal(t, "s1", msg.SearchID)
	assert.Equal(t, "c1", msg.Candidate.ID)
	assert.Equal(t, models.CandidateReturned, msg.Candidate.Status)
}

func TestNotifySearchResult_PublishFailureIsSwallowed(t *testing.T) {
	publisher := &fakePublisher{err: errors.New("topic gone")}
	notifier := NewSearchResultNotifier(publisher, "arn:fake", logger.NewTestLogger(t))

	// Must not panic or propagate.
	notifier.NotifySearchResult(context.Background(),
		&models.Search{ID: "s1"},
		&models.SearchCandidate{ID: "c1"},
	)
	assert.Len(t, publisher.inputs, 1)
}
