package avenc

import (
	"fmt"
	"sort"
	"strings"

	astiav "github.com/asticode/go-astiav"
)

// dictPairs returns d's entries as sorted "key=value" strings, adapted
// from the teacher's DictPairs/JoinDict (helpers.go) for logging the
// option dictionary a codec-context open attempt failed with.
func dictPairs(d *astiav.Dictionary) []string {
	if d == nil {
		return nil
	}
	var pairs []string
	var prev *astiav.DictionaryEntry
	flags := astiav.NewDictionaryFlags(astiav.DictionaryFlagIgnoreSuffix)
	for {
		e := d.Get("", prev, flags)
		if e == nil {
			break
		}
		pairs = append(pairs, fmt.Sprintf("%s=%s", e.Key(), e.Value()))
		prev = e
	}
	sort.Strings(pairs)
	return pairs
}

func joinDict(d *astiav.Dictionary) string {
	return strings.Join(dictPairs(d), " ")
}
