package avenc

import (
	"testing"

	"github.com/streamcore/capture-core/internal/types"
)

func annexBWrap(nalHeader []byte, rbsp []byte) []byte {
	out := append([]byte{0, 0, 1}, nalHeader...)
	out = append(out, rbsp...)
	return out
}

func buildH264SPS(vuiPresent bool) []byte {
	w := &bitWriter{}
	w.put(66, 8) // profile_idc = baseline, no chroma-format fields
	w.put(0, 8)  // constraint flags + reserved
	w.put(30, 8) // level_idc
	w.ue(0)      // seq_parameter_set_id
	w.ue(4)      // log2_max_frame_num_minus4
	w.ue(0)      // pic_order_cnt_type = 0
	w.ue(4)      // log2_max_pic_order_cnt_lsb_minus4
	w.ue(1)      // max_num_ref_frames
	w.put(0, 1)  // gaps_in_frame_num_value_allowed_flag
	w.ue(119)    // pic_width_in_mbs_minus1 (1920/16-1)
	w.ue(67)     // pic_height_in_map_units_minus1 (1088/16-1)
	w.put(1, 1)  // frame_mbs_only_flag
	w.put(0, 1)  // direct_8x8_inference_flag
	w.put(1, 1)  // frame_cropping_flag
	w.ue(0)
	w.ue(0)
	w.ue(0)
	w.ue(1) // crop_bottom (1088 -> 1080)
	if vuiPresent {
		w.put(1, 1)
	} else {
		w.put(0, 1)
	}
	return annexBWrap([]byte{0x67}, w.bytes())
}

func TestHasVUIParametersH264DetectsPresentFlag(t *testing.T) {
	withVUI := buildH264SPS(true)
	if !HasVUIParameters(withVUI, types.VideoFormatH264) {
		t.Fatal("expected VUI flag to be detected as present")
	}

	withoutVUI := buildH264SPS(false)
	if HasVUIParameters(withoutVUI, types.VideoFormatH264) {
		t.Fatal("expected VUI flag to be detected as absent")
	}
}

func TestHasVUIParametersTreatsTruncatedSPSAsAbsent(t *testing.T) {
	if HasVUIParameters([]byte{0, 0, 1, 0x67, 0x01}, types.VideoFormatH264) {
		t.Fatal("expected a truncated SPS to be treated as VUI-absent, not panic")
	}
}

func TestHasVUIParametersAV1AlwaysTrue(t *testing.T) {
	if !HasVUIParameters(nil, types.VideoFormatAV1) {
		t.Fatal("expected AV1 to implicitly carry VUI-equivalent info")
	}
}
