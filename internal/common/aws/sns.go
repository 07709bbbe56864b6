// internal/common/aws/sns.go
package aws

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"restaurant-finder/internal/common/logger"
	"restaurant-finder/internal/models"
)

type SNSClient struct {
	client *sns.Client
}

func NewSNSClient(ctx context.Context, region string) (*SNSClient, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return &SNSClient{client: sns.NewFromConfig(cfg)}, nil
}

func (s *SNSClient) Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error) {
	return s.client.Publish(ctx, input)
}

// Publisher is the slice of the SNS client the notifier needs.
type Publisher interface {
	Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error)
}

// SearchResultNotifier publishes the terminal candidate of a search run to an
// SNS topic. Best effort: publish failures are logged and swallowed so they
// can never fail a search.
type SearchResultNotifier struct {
	publisher Publisher
	topicARN  string
	logger    logger.Logger
}

func NewSearchResultNotifier(publisher Publisher, topicARN string, log logger.Logger) *SearchResultNotifier {
	return &SearchResultNotifier{
		publisher: publisher,
		topicARN:  topicARN,
		logger:    log.WithFields(map[string]interface{}{"component": "sns-notifier"}),
	}
}

type searchResultMessage struct {
	SearchID  string                 `json:"searchId"`
	Candidate models.SearchCandidate `json:"candidate"`
}

func (n *SearchResultNotifier) NotifySearchResult(ctx context.Context, search *models.Search, candidate *models.SearchCandidate) {
	payload, err := json.Marshal(searchResultMessage{
		SearchID:  search.ID,
		Candidate: *candidate,
	})
	if err != nil {
		n.logger.Warn("failed to encode search result notification", map[string]interface{}{
			"search_id": search.ID,
			"error":     err.Error(),
		})
		return
	}

	_, err = n.publisher.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicARN),
		Message:  aws.String(string(payload)),
	})
	if err != nil {
		n.logger.Warn("failed to publish search result notification", map[string]interface{}{
			"search_id": search.ID,
			"error":     err.Error(),
		})
	}
}
