package docstore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/rzpsarthak13/docsql/internal/core"
	"github.com/rzpsarthak13/docsql/internal/registry"
)

// maxBatchWrite is the DynamoDB BatchWriteItem request limit.
const maxBatchWrite = 25

// DynamoDBAPI is the part of *dynamodb.Client the store calls.
type DynamoDBAPI interface {
	dynamodb.QueryAPIClient
	dynamodb.ScanAPIClient
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// DynamoDBStore implements core.DocumentStore on a single DynamoDB table with
// a string partition key "pk" (scope path + collection) and sort key "sk" (document ID).
type DynamoDBStore struct {
	client    DynamoDBAPI
	tableName string
	closed    atomic.Bool
}

// documentItem is the stored shape of a document.
type documentItem struct {
	PK        string `dynamodbav:"pk"`
	SK        string `dynamodbav:"sk"`
	Body      string `dynamodbav:"body"`
	UpdatedAt int64  `dynamodbav:"updated_at"`
}

// NewDynamoDBStore creates a DynamoDB document store and verifies the table exists.
func NewDynamoDBStore(region, tableName, endpoint, accessKeyID, secretAccessKey string) (*DynamoDBStore, error) {
	if region == "" {
		return nil, fmt.Errorf("region is required")
	}
	if tableName == "" {
		return nil, fmt.Errorf("table name is required")
	}

	cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	if accessKeyID != "" && secretAccessKey != "" {
		cfg.Credentials = credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, "")
	}

	var clientOptions []func(*dynamodb.Options)
	if endpoint != "" {
		// LocalStack or DynamoDB Local
		clientOptions = append(clientOptions, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}
	client := dynamodb.NewFromConfig(cfg, clientOptions...)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(tableName)}); err != nil {
		return nil, fmt.Errorf("failed to connect to DynamoDB table %s: %w", tableName, err)
	}

	log.Printf("[DOCSTORE] Connected to DynamoDB table %s in %s", tableName, region)
	return NewDynamoDBStoreWithClient(client, tableName), nil
}

// NewDynamoDBStoreWithClient wraps an existing client without checking the table.
func NewDynamoDBStoreWithClient(client DynamoDBAPI, tableName string) *DynamoDBStore {
	return &DynamoDBStore{client: client, tableName: tableName}
}

func partitionKey(scope core.Scope, collection string) string {
	return scope.Path() + "/" + collection
}

var lastIDNano atomic.Int64

// newSortableID returns an ID whose lexical order follows creation order, so a
// Query over the partition returns documents in insertion order. The time
// component is strictly increasing within the process.
func newSortableID() string {
	for {
		last := lastIDNano.Load()
		next := time.Now().UnixNano()
		if next <= last {
			next = last + 1
		}
		if lastIDNano.CompareAndSwap(last, next) {
			return fmt.Sprintf("%016x-%s", next, uuid.NewString()[:8])
		}
	}
}

// ListDocuments queries every document in the collection partition.
func (d *DynamoDBStore) ListDocuments(ctx context.Context, scope core.Scope, collection string) ([]core.Document, error) {
	if d.closed.Load() {
		return nil, core.ErrStoreClosed
	}

	paginator := dynamodb.NewQueryPaginator(d.client, &dynamodb.QueryInput{
		TableName:              aws.String(d.tableName),
		KeyConditionExpression: aws.String("pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: partitionKey(scope, collection)},
		},
		ConsistentRead: aws.Bool(true),
	})

	docs := []core.Document{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query collection %s: %w", collection, err)
		}
		var items []documentItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to decode items of %s: %w", collection, err)
		}
		for _, item := range items {
			fields, err := decodeFields([]byte(item.Body))
			if err != nil {
				return nil, fmt.Errorf("document %s: %w", item.SK, err)
			}
			docs = append(docs, core.Document{ID: item.SK, Fields: fields})
		}
	}
	return docs, nil
}

// AddDocument writes a new item.
func (d *DynamoDBStore) AddDocument(ctx context.Context, scope core.Scope, collection string, fields map[string]interface{}) (string, error) {
	if d.closed.Load() {
		return "", core.ErrStoreClosed
	}

	id := newSortableID()
	if err := d.put(ctx, partitionKey(scope, collection), id, fields); err != nil {
		return "", fmt.Errorf("failed to add document to %s: %w", collection, err)
	}
	return id, nil
}

// UpdateDocument reads, merges, and rewrites an item.
func (d *DynamoDBStore) UpdateDocument(ctx context.Context, scope core.Scope, collection, id string, fields map[string]interface{}) error {
	if d.closed.Load() {
		return core.ErrStoreClosed
	}

	pk := partitionKey(scope, collection)
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.tableName),
		Key:            itemKey(pk, id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("failed to get document %s: %w", id, err)
	}
	if out.Item == nil {
		return fmt.Errorf("%w: %s/%s", core.ErrDocumentNotFound, collection, id)
	}

	var item documentItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return fmt.Errorf("failed to decode document %s: %w", id, err)
	}
	current, err := decodeFields([]byte(item.Body))
	if err != nil {
		return err
	}
	if err := d.put(ctx, pk, id, mergeFields(current, fields)); err != nil {
		return fmt.Errorf("failed to update document %s: %w", id, err)
	}
	return nil
}

// DeleteDocument removes an item.
func (d *DynamoDBStore) DeleteDocument(ctx context.Context, scope core.Scope, collection, id string) error {
	if d.closed.Load() {
		return core.ErrStoreClosed
	}

	_, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.tableName),
		Key:       itemKey(partitionKey(scope, collection), id),
	})
	if err != nil {
		return fmt.Errorf("failed to delete document %s: %w", id, err)
	}
	return nil
}

// DeleteCollection removes every item of the collection and of the collections
// nested under it. Nested partitions are found with a filtered Scan.
func (d *DynamoDBStore) DeleteCollection(ctx context.Context, scope core.Scope, collection string) error {
	if d.closed.Load() {
		return core.ErrStoreClosed
	}

	pk := partitionKey(scope, collection)
	paginator := dynamodb.NewScanPaginator(d.client, &dynamodb.ScanInput{
		TableName:            aws.String(d.tableName),
		ProjectionExpression: aws.String("pk, sk"),
		FilterExpression:     aws.String("pk = :pk OR begins_with(pk, :nested)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: pk},
			":nested": &types.AttributeValueMemberS{Value: pk + "/"},
		},
	})

	var keys []map[string]types.AttributeValue
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to scan collection %s: %w", collection, err)
		}
		for _, item := range page.Items {
			keys = append(keys, map[string]types.AttributeValue{"pk": item["pk"], "sk": item["sk"]})
		}
	}

	for start := 0; start < len(keys); start += maxBatchWrite {
		end := start + maxBatchWrite
		if end > len(keys) {
			end = len(keys)
		}

		requests := make([]types.WriteRequest, 0, end-start)
		for _, key := range keys[start:end] {
			requests = append(requests, types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: key}})
		}
		if err := d.batchWrite(ctx, requests); err != nil {
			return fmt.Errorf("failed to delete collection %s: %w", collection, err)
		}
	}
	return nil
}

// batchWrite issues a BatchWriteItem and resubmits unprocessed items.
func (d *DynamoDBStore) batchWrite(ctx context.Context, requests []types.WriteRequest) error {
	pending := map[string][]types.WriteRequest{d.tableName: requests}
	for attempt := 0; len(pending[d.tableName]) > 0; attempt++ {
		if attempt > 5 {
			return errors.New("unprocessed items remain after retries")
		}
		out, err := d.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
		if err != nil {
			return err
		}
		pending = out.UnprocessedItems
		if len(pending[d.tableName]) > 0 {
			time.Sleep(time.Duration(attempt+1) * 50 * time.Millisecond)
		}
	}
	return nil
}

func (d *DynamoDBStore) put(ctx context.Context, pk, id string, fields map[string]interface{}) error {
	body, err := encodeFields(fields)
	if err != nil {
		return err
	}
	item, err := attributevalue.MarshalMap(documentItem{
		PK:        pk,
		SK:        id,
		Body:      string(body),
		UpdatedAt: time.Now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode item: %w", err)
	}
	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      item,
	})
	return err
}

func itemKey(pk, id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: pk},
		"sk": &types.AttributeValueMemberS{Value: id},
	}
}

// Close marks the store closed. The AWS client holds no connection to release.
func (d *DynamoDBStore) Close() error {
	d.closed.Store(true)
	return nil
}

// DynamoDBStoreFactory creates DynamoDB-backed document stores.
type DynamoDBStoreFactory struct{}

// Type returns "dynamodb".
func (f *DynamoDBStoreFactory) Type() string {
	return "dynamodb"
}

// Validate validates the DynamoDB-specific configuration.
func (f *DynamoDBStoreFactory) Validate(config registry.InternalStoreConfig) error {
	if config.Type != "dynamodb" {
		return fmt.Errorf("invalid type for DynamoDB factory: %s", config.Type)
	}
	dc := config.DynamoDBConfig
	if strings.TrimSpace(dc.Region) == "" {
		return fmt.Errorf("region is required for DynamoDB")
	}
	if strings.TrimSpace(dc.TableName) == "" {
		return fmt.Errorf("table_name is required for DynamoDB")
	}
	if (dc.AccessKeyID == "") != (dc.SecretAccessKey == "") {
		return fmt.Errorf("access_key_id and secret_access_key must be set together")
	}
	return nil
}

// Create connects a new DynamoDBStore.
func (f *DynamoDBStoreFactory) Create(config registry.InternalStoreConfig) (core.DocumentStore, error) {
	dc := config.DynamoDBConfig
	store, err := NewDynamoDBStore(dc.Region, dc.TableName, dc.Endpoint, dc.AccessKeyID, dc.SecretAccessKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create DynamoDB document store: %w", err)
	}
	return store, nil
}

func init() {
	register(&DynamoDBStoreFactory{})
}
