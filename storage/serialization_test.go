package storage

import (
	"testing"
	"time"

	"github.com/poiesic/arxivsearch/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalIndexEntry(t *testing.T) {
	entry := &core.IndexEntry{
		ID:     "0704.0001",
		Vector: []float32{0.1, -0.2, 0.3, 0.4},
		Metadata: core.Metadata{
			ID:      "0704.0001",
			Year:    "2007",
			Title:   "Calculation of prompt diphoton production cross sections",
			Authors: []string{"C. Balázs", "E. L. Berger"},
		},
		RawText:     "calculation of prompt diphoton production cross sections",
		ContentHash: core.ContentHash("calculation of prompt diphoton production cross sections"),
	}

	data := MarshalIndexEntry(entry)
	require.NotEmpty(t, data)

	decoded, err := UnmarshalIndexEntry(data)
	require.NoError(t, err)
	assert.Equal(t, entry, decoded)
}

func TestMarshalUnmarshalIndexEntry_LongVector(t *testing.T) {
	vector := make([]float32, 768)
	for i := range vector {
		vector[i] = float32(i) / 768
	}
	entry := &core.IndexEntry{ID: "x", Vector: vector, RawText: "x"}

	decoded, err := UnmarshalIndexEntry(MarshalIndexEntry(entry))
	require.NoError(t, err)
	assert.Equal(t, vector, decoded.Vector)
	assert.Empty(t, decoded.Metadata.Authors)
}

func TestMarshalUnmarshalDocument(t *testing.T) {
	doc := &core.Document{
		ID:         "0704.0002",
		Text:       "sparsitycertifying graph decompositions",
		Year:       "2008",
		Title:      "Sparsity-certifying Graph Decompositions",
		Authors:    []string{"Ileana Streinu", "Louis Theran"},
		OrderIndex: 12345,
	}

	decoded, err := UnmarshalDocument(MarshalDocument(doc))
	require.NoError(t, err)
	assert.Equal(t, doc, decoded)
}

func TestMarshalUnmarshalCheckpoint(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	cp := &core.Checkpoint{
		Source:            core.Fingerprint("/data/arxiv.json"),
		BatchSize:         500,
		TotalParts:        4712,
		LastCommittedPart: core.NoCommittedPart,
		UpdatedAt:         now,
	}

	decoded, err := UnmarshalCheckpoint(MarshalCheckpoint(cp))
	require.NoError(t, err)
	assert.Equal(t, cp.Source, decoded.Source)
	assert.Equal(t, cp.BatchSize, decoded.BatchSize)
	assert.Equal(t, cp.TotalParts, decoded.TotalParts)
	assert.Equal(t, core.NoCommittedPart, decoded.LastCommittedPart)
	assert.True(t, cp.UpdatedAt.Equal(decoded.UpdatedAt))
}

func TestUnmarshal_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty data", []byte{}},
		{"invalid data", []byte{0xFF, 0xFF, 0xFF}},
		{"partial data", []byte{1, 2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalIndexEntry(tt.data)
			assert.ErrorIs(t, err, ErrSerializationFailed)

			_, err = UnmarshalDocument(tt.data)
			assert.ErrorIs(t, err, ErrSerializationFailed)

			_, err = UnmarshalCheckpoint(tt.data)
			assert.ErrorIs(t, err, ErrSerializationFailed)
		})
	}
}

func TestSerializers_SkipMatchesSize(t *testing.T) {
	entry := core.IndexEntry{
		ID:       "0704.0001",
		Vector:   []float32{0.5, 0.5},
		Metadata: core.Metadata{ID: "0704.0001", Year: "2007", Authors: []string{"A. Author"}},
		RawText:  "text",
	}
	doc := core.Document{ID: "0704.0001", Text: "text", Year: "2007", OrderIndex: 3}
	cp := core.Checkpoint{Source: "abc", BatchSize: 500, TotalParts: 4, LastCommittedPart: -1, UpdatedAt: time.Now()}

	data := MarshalIndexEntry(&entry)
	n, err := core.IndexEntryMUS.Skip(data)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)

	data = MarshalDocument(&doc)
	n, err = core.DocumentMUS.Skip(data)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)

	data = MarshalCheckpoint(&cp)
	n, err = core.CheckpointMUS.Skip(data)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)

	decoded, err := UnmarshalCheckpoint(data)
	require.NoError(t, err)
	assert.Equal(t, core.NoCommittedPart, decoded.LastCommittedPart)
}
