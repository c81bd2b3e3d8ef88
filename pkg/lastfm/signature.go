package lastfm

import (
	"sort"
	"strings"
)

// calculateSignature returns the api_sig for a request: the md5 of every
// parameter as key+value in key order, followed by the API secret.
func calculateSignature(params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(params[k])
	}
	b.WriteString(secret)

	return md5Hex(b.String())
}
