package ingestion

import (
	"fmt"
	"testing"

	"github.com/poiesic/arxivsearch/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func denseDocuments(n int) []core.Document {
	docs := make([]core.Document, n)
	for i := range docs {
		docs[i] = core.Document{ID: fmt.Sprintf("d%03d", i), Text: "text", Year: "2007", OrderIndex: i}
	}
	return docs
}

func TestPartCount(t *testing.T) {
	assert.Equal(t, 0, PartCount(0, 2))
	assert.Equal(t, 1, PartCount(1, 2))
	assert.Equal(t, 1, PartCount(2, 2))
	assert.Equal(t, 2, PartCount(3, 2))
	assert.Equal(t, 0, PartCount(5, 0))
	assert.Equal(t, 0, PartCount(-1, 2))
}

func TestBatch_Partition(t *testing.T) {
	for _, size := range []int{1, 2, 7} {
		totals := []int{0, 1, size - 1, size, size + 1, 3 * size}
		for _, total := range totals {
			t.Run(fmt.Sprintf("total=%d size=%d", total, size), func(t *testing.T) {
				docs := denseDocuments(total)
				parts := PartCount(total, size)

				seen := make(map[int]int, total)
				for part := range parts {
					batch := Batch(docs, part, size)
					require.NotEmpty(t, batch, "part %d", part)
					assert.LessOrEqual(t, len(batch), size)
					for _, doc := range batch {
						assert.GreaterOrEqual(t, doc.OrderIndex, part*size)
						assert.Less(t, doc.OrderIndex, part*size+size)
						seen[doc.OrderIndex]++
					}
				}

				assert.Len(t, seen, total)
				for idx := range total {
					assert.Equal(t, 1, seen[idx], "order index %d", idx)
				}
				assert.Nil(t, Batch(docs, parts, size), "part past the end")
			})
		}
	}
}

func TestBatch_InvalidArguments(t *testing.T) {
	docs := denseDocuments(5)
	assert.Nil(t, Batch(docs, -1, 2))
	assert.Nil(t, Batch(docs, 0, 0))
	assert.Nil(t, Batch(docs, 0, -3))
	assert.Nil(t, Batch(docs, 3, 2))
	assert.Nil(t, Batch(nil, 0, 2))
}
