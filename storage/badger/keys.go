package badger

import (
	"encoding/binary"
	"fmt"
)

// Key prefixes for different data types
const (
	entryPrefix      = "idxent"
	entryYearPrefix  = "idxyr"
	docStagePrefix   = "tblstg"
	docOrderPrefix   = "tblord"
	docIDPrefix      = "tblid"
	docSeq           = "tblseq"
	checkpointPrefix = "chkpt"
)

// makeEntryKey generates a key for an index entry by ID.
func makeEntryKey(id string) []byte {
	return []byte(entryPrefix + ":" + id)
}

// makeEntryYearKey generates a composite key for the year index.
// Format: prefix:year:id
func makeEntryYearKey(year, id string) []byte {
	return []byte(entryYearPrefix + ":" + year + ":" + id)
}

// makePartialEntryYearKey generates a partial key for year queries.
// Format: prefix:year:
func makePartialEntryYearKey(year string) []byte {
	return []byte(entryYearPrefix + ":" + year + ":")
}

// idFromYearKey extracts the entry ID from a year index key.
func idFromYearKey(key []byte, year string) string {
	return string(key[len(makePartialEntryYearKey(year)):])
}

// makeDocStageKey generates the staging key for a document.
// Format: prefix:year:seq, sorting by year then staging order.
func makeDocStageKey(year string, seq uint64) []byte {
	prefix := docStagePrefix + ":" + year + ":"
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], seq)
	return buf
}

// makeDocIDKey generates the key marking a staged document id.
func makeDocIDKey(id string) []byte {
	return []byte(docIDPrefix + ":" + id)
}

// makeDocOrderKey generates the key for a sealed document by order index.
// Format: prefix:orderIndex
func makeDocOrderKey(orderIndex int) []byte {
	prefix := docOrderPrefix + ":"
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(orderIndex))
	return buf
}

// makeCheckpointKey generates a key for a source checkpoint.
func makeCheckpointKey(source string) []byte {
	return []byte(fmt.Sprintf("%s:%s", checkpointPrefix, source))
}
