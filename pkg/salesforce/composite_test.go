package salesforce

import (
	"context"
	"fmt"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkUpdateAccounts(t *testing.T) {
	var gotBatches [][]CollectionRecord
	mc := &mockClient{
		updateCollectionFn: func(_ context.Context, sObjectName string, records []CollectionRecord) ([]CollectionResult, error) {
			assert.Equal(t, "Account", sObjectName)
			gotBatches = append(gotBatches, records)
			results := make([]CollectionResult, len(records))
			for i, r := range records {
				results[i] = CollectionResult{ID: r.ID, Success: true}
			}
			return results, nil
		},
	}

	updates := make([]AccountUpdate, 450)
	for i := range updates {
		updates[i] = AccountUpdate{
			ID:     fmt.Sprintf("001%06d", i),
			Fields: map[string]any{"Description": "batch"},
		}
	}

	results, err := BulkUpdateAccounts(context.Background(), mc, updates)
	require.NoError(t, err)
	assert.Len(t, results, 450)

	// 450 updates split into batches of 200, 200, 50.
	require.Len(t, gotBatches, 3)
	assert.Len(t, gotBatches[0], 200)
	assert.Len(t, gotBatches[1], 200)
	assert.Len(t, gotBatches[2], 50)
}

func TestBulkUpdateAccounts_Empty(t *testing.T) {
	results, err := BulkUpdateAccounts(context.Background(), &mockClient{}, nil)
	require.NoError(t, err)
	assert.Nil(t, results)
}

func TestBulkUpdateAccounts_BatchError(t *testing.T) {
	calls := 0
	mc := &mockClient{
		updateCollectionFn: func(_ context.Context, _ string, records []CollectionRecord) ([]CollectionResult, error) {
			calls++
			if calls == 2 {
				return nil, eris.New("second batch failed")
			}
			results := make([]CollectionResult, len(records))
			for i, r := range records {
				results[i] = CollectionResult{ID: r.ID, Success: true}
			}
			return results, nil
		},
	}

	updates := make([]AccountUpdate, 250)
	for i := range updates {
		updates[i] = AccountUpdate{ID: fmt.Sprintf("001%06d", i), Fields: map[string]any{"Description": "batch"}}
	}

	results, err := BulkUpdateAccounts(context.Background(), mc, updates)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bulk update accounts batch 200-250")
	// Results from the first successful batch are still returned.
	assert.Len(t, results, 200)
}

func TestBulkUpdateAccounts_SkipsUnusable(t *testing.T) {
	var got []CollectionRecord
	mc := &mockClient{
		updateCollectionFn: func(_ context.Context, _ string, records []CollectionRecord) ([]CollectionResult, error) {
			got = append(got, records...)
			results := make([]CollectionResult, len(records))
			for i, r := range records {
				results[i] = CollectionResult{ID: r.ID, Success: true}
			}
			return results, nil
		},
	}

	updates := []AccountUpdate{
		{ID: "", Fields: map[string]any{"Description": "no id"}},
		{ID: "001000001", Fields: nil},
		{ID: "001000002", Fields: map[string]any{"Description": "ok"}},
	}

	results, err := BulkUpdateAccounts(context.Background(), mc, updates)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "001000002", results[0].ID)
	require.Len(t, got, 1)
	assert.Equal(t, "001000002", got[0].ID)
}

func TestBulkUpdateAccounts_AllUnusable(t *testing.T) {
	mc := &mockClient{
		updateCollectionFn: func(_ context.Context, _ string, _ []CollectionRecord) ([]CollectionResult, error) {
			t.Fatal("UpdateCollection should not be called")
			return nil, nil
		},
	}

	results, err := BulkUpdateAccounts(context.Background(), mc, []AccountUpdate{
		{ID: "", Fields: map[string]any{"Description": "x"}},
		{ID: "001000001", Fields: map[string]any{}},
	})
	require.NoError(t, err)
	assert.Nil(t, results)
}

func TestMaxBatchSizeConstant(t *testing.T) {
	assert.Equal(t, 200, maxBatchSize)
}
