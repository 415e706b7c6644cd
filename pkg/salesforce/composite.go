package salesforce

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
)

// maxBatchSize is the Salesforce Collections API limit per request.
const maxBatchSize = 200

// AccountUpdate holds an account ID and the fields to update.
type AccountUpdate struct {
	ID     string
	Fields map[string]any
}

// BulkUpdateAccounts sends account updates through the Collections API in
// batches of 200. Updates with no ID or no fields are skipped rather than
// burned against the batch limit. Results are returned in send order; a
// failed batch returns the results accumulated so far alongside the error.
func BulkUpdateAccounts(ctx context.Context, c Client, updates []AccountUpdate) ([]CollectionResult, error) {
	usable := make([]AccountUpdate, 0, len(updates))
	for _, u := range updates {
		if u.ID == "" || len(u.Fields) == 0 {
			continue
		}
		usable = append(usable, u)
	}
	if len(usable) == 0 {
		return nil, nil
	}

	var allResults []CollectionResult
	for start := 0; start < len(usable); start += maxBatchSize {
		end := min(start+maxBatchSize, len(usable))

		records := make([]CollectionRecord, end-start)
		for i, u := range usable[start:end] {
			records[i] = CollectionRecord(u)
		}

		results, err := c.UpdateCollection(ctx, "Account", records)
		if err != nil {
			return allResults, eris.Wrap(err, fmt.Sprintf("sf: bulk update accounts batch %d-%d", start, end))
		}
		allResults = append(allResults, results...)
	}

	return allResults, nil
}
