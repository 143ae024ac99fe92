package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
)

// Fingerprint derives the cache key for one execution:
// tenant + code + version + a stable hash of the input attributes.
//
// The input hash must be deterministic for logically-equal inputs. JSON
// encoding provides that: encoding/json writes map keys in sorted order at
// every nesting level. Inputs that fail to marshal (channels, funcs) fall
// back to their fmt representation, which is stable enough for a cache key
// and only costs a redundant recomputation on mismatch.
func Fingerprint(tenantID, code string, version int, input map[string]interface{}) string {
	h := sha256.New()
	h.Write([]byte(tenantID))
	h.Write([]byte{'|'})
	h.Write([]byte(code))
	h.Write([]byte{'|'})
	h.Write([]byte(strconv.Itoa(version)))
	h.Write([]byte{'|'})

	if data, err := json.Marshal(input); err == nil {
		h.Write(data)
	} else {
		h.Write([]byte(fmt.Sprintf("%v", input)))
	}

	return hex.EncodeToString(h.Sum(nil))
}
