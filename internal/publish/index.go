// Where: internal/publish/index.go
// What: DynamoDB index of published packages.
// Why: Let consumers look up uploaded packages by file name without listing buckets.
package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/opencontainers/go-digest"
)

// DynamoDBAPI is the subset of the DynamoDB client used by the index.
type DynamoDBAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// NewDynamoDBClient builds a DynamoDB client honoring opts.IndexEndpoint.
func NewDynamoDBClient(ctx context.Context, opts Options) (DynamoDBAPI, error) {
	cfg, err := loadAWSConfig(ctx, opts.Region, "DYNAMODB")
	if err != nil {
		return nil, err
	}
	return dynamodb.NewFromConfig(cfg, func(options *dynamodb.Options) {
		if opts.IndexEndpoint != "" {
			options.BaseEndpoint = aws.String(opts.IndexEndpoint)
		}
	}), nil
}

// Index writes one item per published artifact, keyed by "artifact".
// Re-publishing the same file name replaces the item.
type Index struct {
	client DynamoDBAPI
	table  string
	now    func() time.Time
}

// NewIndex returns an Index writing to table.
func NewIndex(client DynamoDBAPI, table string) *Index {
	return &Index{client: client, table: table, now: time.Now}
}

// Record stores the artifact coordinates, its URI and content digest.
func (i *Index) Record(ctx context.Context, artifact Artifact, uri string, sum digest.Digest) error {
	item := map[string]types.AttributeValue{
		"artifact":     &types.AttributeValueMemberS{Value: artifact.Name},
		"uri":          &types.AttributeValueMemberS{Value: uri},
		"published_at": &types.AttributeValueMemberS{Value: i.now().UTC().Format(time.RFC3339)},
	}
	for name, value := range map[string]string{
		"digest":  sum.String(),
		"target":  artifact.Target,
		"package": artifact.Package,
		"version": artifact.Version,
		"release": artifact.Release,
		"arch":    artifact.Arch,
		"type":    artifact.Type,
	} {
		if value != "" {
			item[name] = &types.AttributeValueMemberS{Value: value}
		}
	}

	if _, err := i.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(i.table),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("index %s in %s: %w", artifact.Name, i.table, err)
	}
	return nil
}
