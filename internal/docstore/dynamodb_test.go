package docstore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/docsql/internal/core"
)

// fakeDynamoDB keeps items in memory, keyed by pk then sk. Query returns
// pageSize items per page so the store has to follow LastEvaluatedKey.
type fakeDynamoDB struct {
	mu          sync.Mutex
	items       map[string]map[string]map[string]types.AttributeValue
	pageSize    int
	unprocessed int
	queries     int
	batches     int
	failGet     error
}

func newFakeDynamoDB() *fakeDynamoDB {
	return &fakeDynamoDB{items: map[string]map[string]map[string]types.AttributeValue{}, pageSize: 2}
}

func attrString(av types.AttributeValue) string {
	if s, ok := av.(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func (f *fakeDynamoDB) sortedKeys(pk string) []string {
	keys := make([]string, 0, len(f.items[pk]))
	for sk := range f.items[pk] {
		keys = append(keys, sk)
	}
	sort.Strings(keys)
	return keys
}

func (f *fakeDynamoDB) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++

	pk := attrString(in.ExpressionAttributeValues[":pk"])
	after := ""
	if in.ExclusiveStartKey != nil {
		after = attrString(in.ExclusiveStartKey["sk"])
	}

	out := &dynamodb.QueryOutput{}
	for _, sk := range f.sortedKeys(pk) {
		if sk <= after {
			continue
		}
		if len(out.Items) == f.pageSize {
			last := out.Items[len(out.Items)-1]
			out.LastEvaluatedKey = map[string]types.AttributeValue{"pk": last["pk"], "sk": last["sk"]}
			break
		}
		out.Items = append(out.Items, f.items[pk][sk])
	}
	return out, nil
}

func (f *fakeDynamoDB) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	pk := attrString(in.ExpressionAttributeValues[":pk"])
	nested := attrString(in.ExpressionAttributeValues[":nested"])
	out := &dynamodb.ScanOutput{}
	for itemPK := range f.items {
		if itemPK != pk && !strings.HasPrefix(itemPK, nested) {
			continue
		}
		for _, sk := range f.sortedKeys(itemPK) {
			out.Items = append(out.Items, f.items[itemPK][sk])
		}
	}
	return out, nil
}

func (f *fakeDynamoDB) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet != nil {
		return nil, f.failGet
	}
	return &dynamodb.GetItemOutput{Item: f.items[attrString(in.Key["pk"])][attrString(in.Key["sk"])]}, nil
}

func (f *fakeDynamoDB) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pk, sk := attrString(in.Item["pk"]), attrString(in.Item["sk"])
	if f.items[pk] == nil {
		f.items[pk] = map[string]map[string]types.AttributeValue{}
	}
	f.items[pk][sk] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamoDB) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items[attrString(in.Key["pk"])], attrString(in.Key["sk"]))
	return &dynamodb.DeleteItemOutput{}, nil
}

// BatchWriteItem applies deletes. The first f.unprocessed requests it sees are
// handed back as unprocessed instead.
func (f *fakeDynamoDB) BatchWriteItem(_ context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches++

	out := &dynamodb.BatchWriteItemOutput{UnprocessedItems: map[string][]types.WriteRequest{}}
	for table, requests := range in.RequestItems {
		for _, req := range requests {
			if f.unprocessed > 0 {
				f.unprocessed--
				out.UnprocessedItems[table] = append(out.UnprocessedItems[table], req)
				continue
			}
			if req.DeleteRequest != nil {
				delete(f.items[attrString(req.DeleteRequest.Key["pk"])], attrString(req.DeleteRequest.Key["sk"]))
			}
		}
	}
	return out, nil
}

func TestDynamoDBStore(t *testing.T) {
	fake := newFakeDynamoDB()
	store := NewDynamoDBStoreWithClient(fake, "documents")
	exerciseStore(t, store)

	t.Run("list follows pages", func(t *testing.T) {
		ctx := context.Background()
		for i := 0; i < 5; i++ {
			_, err := store.AddDocument(ctx, testScope, "paged", map[string]interface{}{"n": int64(i)})
			require.NoError(t, err)
		}

		fake.queries = 0
		docs, err := store.ListDocuments(ctx, testScope, "paged")
		require.NoError(t, err)
		require.Len(t, docs, 5)
		for i, doc := range docs {
			assert.Equal(t, int64(i), doc.Fields["n"])
		}
		assert.Equal(t, 3, fake.queries)
	})

	t.Run("items carry the scope path as partition key", func(t *testing.T) {
		id, err := store.AddDocument(context.Background(), testScope, "keys", map[string]interface{}{"a": "b"})
		require.NoError(t, err)

		item := fake.items[partitionKey(testScope, "keys")][id]
		require.NotNil(t, item)
		assert.Equal(t, `{"a":"b"}`, attrString(item["body"]))
	})

	t.Run("closed store rejects calls", func(t *testing.T) {
		require.NoError(t, store.Close())
		require.NoError(t, store.Close())
		_, err := store.AddDocument(context.Background(), testScope, "x", map[string]interface{}{})
		assert.ErrorIs(t, err, core.ErrStoreClosed)
	})
}

func TestDynamoDBStoreRetriesUnprocessedDeletes(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDynamoDB()
	store := NewDynamoDBStoreWithClient(fake, "documents")

	for i := 0; i < 30; i++ {
		_, err := store.AddDocument(ctx, testScope, "bulk", map[string]interface{}{"n": int64(i)})
		require.NoError(t, err)
	}

	fake.unprocessed = 3
	require.NoError(t, store.DeleteCollection(ctx, testScope, "bulk"))

	docs, err := store.ListDocuments(ctx, testScope, "bulk")
	require.NoError(t, err)
	assert.Empty(t, docs)
	// Two batches of at most 25, plus one resubmission of the unprocessed items.
	assert.Equal(t, 3, fake.batches)
}

func TestDynamoDBStoreUpdateErrors(t *testing.T) {
	fake := newFakeDynamoDB()
	store := NewDynamoDBStoreWithClient(fake, "documents")

	fake.failGet = errors.New("throttled")
	err := store.UpdateDocument(context.Background(), testScope, "people", "id-1", map[string]interface{}{"a": 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
	assert.False(t, errors.Is(err, core.ErrDocumentNotFound))
}

func TestNewSortableIDIsIncreasing(t *testing.T) {
	prev := newSortableID()
	for i := 0; i < 1000; i++ {
		next := newSortableID()
		require.Less(t, prev, next)
		prev = next
	}
}
