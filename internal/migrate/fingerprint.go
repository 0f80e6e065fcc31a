package migrate

import (
	"crypto/sha256"
	"encoding/json"

	"tripcore/pkg/domain"
)

// documentFingerprint hashes the serialized document so the sweep can report
// whether any repair actually mutated it.
func documentFingerprint(doc *domain.TripDocument) [sha256.Size]byte {
	data, err := json.Marshal(doc)
	if err != nil {
		// Documents are plain data; marshalling cannot fail in practice.
		return [sha256.Size]byte{}
	}
	return sha256.Sum256(data)
}
