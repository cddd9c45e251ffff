package avenc

import (
	"strconv"

	astiav "github.com/asticode/go-astiav"

	"github.com/streamcore/capture-core/internal/config"
	"github.com/streamcore/capture-core/internal/registry"
	"github.com/streamcore/capture-core/internal/types"
)

// applyOptionMaps resolves and writes every option in maps into dict,
// in order, following the teacher's rd.Set(key, value, flags) idiom
// (video.go's RTSP/decoder dictionary setup).
func applyOptionMaps(dict *astiav.Dictionary, maps []registry.OptionMap, v *config.Video, client types.ClientConfig) {
	registry.Apply(maps, v, client, func(name string, val registry.OptionValue) {
		_ = dict.Set(name, optionValueString(val), 0)
	})
}

func optionValueString(val registry.OptionValue) string {
	switch val.Kind {
	case registry.ValueInt:
		return strconv.Itoa(val.IntVal)
	case registry.ValueBool:
		if val.BoolVal {
			return "1"
		}
		return "0"
	default:
		return val.StringVal
	}
}
