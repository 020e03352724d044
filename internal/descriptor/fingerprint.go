package descriptor

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Fingerprint computes a stable content hash of the catalog. Catalogs that
// compare equal produce identical fingerprints, so the orchestrator can skip
// regeneration and the artifact cache can key stored output by it.
//
// Map iteration order does not leak into the hash: the catalog is serialized
// through its ordered views, not its lookup maps.
func Fingerprint(c *Catalog) string {
	canon := struct {
		Models    []ModelDescriptor    `json:"models"`
		Endpoints []EndpointDescriptor `json:"endpoints"`
	}{
		Models:    c.OrderedModels(),
		Endpoints: c.OrderedEndpoints(),
	}

	// Marshal cannot fail: descriptors are plain data with no cycles.
	data, _ := json.Marshal(canon)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
