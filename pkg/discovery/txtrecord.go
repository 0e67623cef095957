package discovery

import (
	"sort"
	"strings"
)

// Common broker TXT keys. Brokers are free to publish none of them.
const (
	TXTKeyProtocolVersion = "version"
	TXTKeyTopicPrefix     = "prefix"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// Get returns the value of key and whether it is present.
func (t TXTRecordMap) Get(key string) (string, bool) {
	v, ok := t[key]
	return v, ok
}

// TXTRecordsToStrings converts a TXT map to sorted "key=value" strings.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, k+"="+v)
	}
	sort.Strings(result)
	return result
}

// StringsToTXTRecords parses "key=value" strings. A bare key is stored with
// an empty value.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		parts := strings.SplitN(s, "=", 2)
		if len(parts) == 2 {
			txt[parts[0]] = parts[1]
		} else if len(parts) == 1 && parts[0] != "" {
			// Key without value (boolean flag)
			txt[parts[0]] = ""
		}
	}
	return txt
}
