package upload

import (
	"crypto/sha1" //nolint:gosec // the CDN's request signature is defined over SHA-1
	"encoding/hex"
	"sort"
	"strings"
)

// Sign computes the CDN request signature: the SHA-1 hex digest of the
// non-empty params sorted by key and joined as "k=v&k=v", followed by the
// API secret.
func Sign(params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + params[k]
	}
	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + secret)) //nolint:gosec
	return hex.EncodeToString(sum[:])
}
