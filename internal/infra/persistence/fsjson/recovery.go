package fsjson

import (
	"bytes"
	"encoding/json"
	"errors"

	"tripcore/pkg/domain"
)

// corruptionOffset locates the first byte that cannot belong to the document:
// the decoder's syntax error offset when it reports one, else the first NUL
// (the signature of a torn write padded by the filesystem), else the end of
// the data.
func corruptionOffset(data []byte) int {
	var doc domain.TripDocument
	err := json.Unmarshal(data, &doc)
	var syn *json.SyntaxError
	if errors.As(err, &syn) && syn.Offset > 0 && syn.Offset <= int64(len(data)) {
		return int(syn.Offset)
	}
	if i := bytes.IndexByte(data, 0); i >= 0 {
		return i
	}
	return len(data)
}

// recoverDocument salvages a structurally valid document from corrupted
// bytes. Starting at the first invalid byte it walks back through `}`
// boundaries, trying successively shorter prefixes until one parses into a
// document with an id and a plausible schema version. Interleaved or
// appended garbage after a complete document is the common case; a file
// truncated inside the document body is unrecoverable.
func recoverDocument(data []byte) (*domain.TripDocument, bool) {
	end := corruptionOffset(data)
	if end > len(data) {
		end = len(data)
	}
	for i := end; i > 0; i-- {
		if data[i-1] != '}' {
			continue
		}
		var doc domain.TripDocument
		if err := json.Unmarshal(data[:i], &doc); err != nil {
			continue
		}
		if doc.ID == "" || doc.SchemaVersion < 1 {
			continue
		}
		return &doc, true
	}
	return nil, false
}
