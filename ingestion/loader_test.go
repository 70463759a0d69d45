package ingestion

import (
	"bufio"
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/poiesic/arxivsearch/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_Load(t *testing.T) {
	path := writeSource(t,
		recordLine(t, "0704.0001", "First", "One", "Mon, 2 Apr 2007 19:18:42 GMT"),
		"",
		recordLine(t, "0704.0002", "Second", "Two", "Tue, 3 Apr 2007 10:00:00 GMT"),
	)

	records, stats, err := NewLoader().Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "0704.0001", records[0].ID)
	assert.Equal(t, 1, records[0].Line)
	assert.Equal(t, 3, records[1].Line, "blank lines still count toward line numbers")
	assert.Equal(t, []string{"A. Author", "B. Author"}, []string(records[0].Authors))
	assert.Equal(t, LoadStats{Lines: 2, Records: 2}, stats)
}

func TestLoader_AuthorString(t *testing.T) {
	path := writeSource(t, `{"id":"x","title":"t","abstract":"a","authors":"C. Sagan, R. Feynman and E. Noether","versions":[{"created":"Mon, 2 Apr 2007 19:18:42 GMT"}]}`)

	records, _, err := NewLoader().Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []string{"C. Sagan", "R. Feynman", "E. Noether"}, []string(records[0].Authors))
}

func TestLoader_SourceNotFound(t *testing.T) {
	called := false
	_, err := NewLoader().Each(context.Background(), filepath.Join(t.TempDir(), "missing.json"), func(core.Record) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, core.ErrSourceNotFound)
	assert.False(t, called)
}

func TestLoader_MalformedSkip(t *testing.T) {
	path := writeSource(t,
		recordLine(t, "a", "Title", "Abstract", "Mon, 2 Apr 2007 19:18:42 GMT"),
		`{"id": "b", "title": `,
		`{"title": "no id"}`,
		recordLine(t, "c", "Title", "Abstract", "Mon, 2 Apr 2007 19:18:42 GMT"),
	)

	records, stats, err := NewLoader(WithLoaderPolicy(MalformedSkip)).Load(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, 2, stats.Malformed)
	assert.Equal(t, 4, stats.Lines)
}

func TestLoader_MalformedFail(t *testing.T) {
	path := writeSource(t,
		recordLine(t, "a", "Title", "Abstract", "Mon, 2 Apr 2007 19:18:42 GMT"),
		`not json`,
	)

	_, _, err := NewLoader(WithLoaderPolicy(MalformedFail)).Load(context.Background(), path)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrMalformedRecord)

	var malformed *MalformedRecordError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, 2, malformed.Line)
	assert.Contains(t, err.Error(), "line 2")
}

func TestLoader_LongLine(t *testing.T) {
	long := recordLine(t, "big", "Title", strings.Repeat("word ", 400_000), "Mon, 2 Apr 2007 19:18:42 GMT")
	path := writeSource(t, long)

	records, _, err := NewLoader().Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "big", records[0].ID)
}

func TestLoader_OverlongLine(t *testing.T) {
	long := recordLine(t, "big", "Title", strings.Repeat("word ", 200), "Mon, 2 Apr 2007 19:18:42 GMT")
	path := writeSource(t,
		recordLine(t, "a", "Title", "Abstract", "Mon, 2 Apr 2007 19:18:42 GMT"),
		long,
		recordLine(t, "c", "Title", "Abstract", "Mon, 2 Apr 2007 19:18:42 GMT"),
	)

	records, stats, err := NewLoader(WithMaxLineBytes(512)).Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0].ID)
	assert.Equal(t, "c", records[1].ID)
	assert.Equal(t, 3, records[1].Line)
	assert.Equal(t, LoadStats{Lines: 3, Records: 2, Malformed: 1}, stats)

	_, _, err = NewLoader(WithMaxLineBytes(512), WithLoaderPolicy(MalformedFail)).Load(context.Background(), path)
	var malformed *MalformedRecordError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, 2, malformed.Line)
	assert.ErrorIs(t, err, core.ErrMalformedRecord)
}

func TestReadLine(t *testing.T) {
	// buffer smaller than the lines forces ReadSlice to return partial chunks
	r := bufio.NewReaderSize(strings.NewReader("short\n"+strings.Repeat("x", 40)+"\nlast"), 16)

	line, tooLong, err := readLine(r, 20, nil)
	require.NoError(t, err)
	assert.False(t, tooLong)
	assert.Equal(t, "short", string(line))

	line, tooLong, err = readLine(r, 20, nil)
	require.NoError(t, err)
	assert.True(t, tooLong)
	assert.Empty(t, line)

	line, tooLong, err = readLine(r, 20, nil)
	require.NoError(t, err)
	assert.False(t, tooLong)
	assert.Equal(t, "last", string(line), "final line without newline")

	_, _, err = readLine(r, 20, nil)
	assert.ErrorIs(t, err, io.EOF)
}

func TestLoader_CallbackError(t *testing.T) {
	path := corpus(t, 3)
	stop := assert.AnError

	seen := 0
	_, err := NewLoader().Each(context.Background(), path, func(core.Record) error {
		seen++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, seen)
}

func TestParseMalformedPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    MalformedPolicy
		wantErr bool
	}{
		{"", MalformedSkip, false},
		{"skip", MalformedSkip, false},
		{"FAIL", MalformedFail, false},
		{"ignore", MalformedSkip, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMalformedPolicy(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
