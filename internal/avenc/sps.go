package avenc

import "github.com/streamcore/capture-core/internal/types"

// findNAL returns the RBSP (start code and emulation-prevention bytes
// stripped) of the first NAL unit of nalType in an Annex-B bitstream,
// or nil if none is found.
func findNAL(data []byte, nalType int, headerLen int) []byte {
	_, _, rbsp, ok := findNALRange(data, nalType, headerLen)
	if !ok {
		return nil
	}
	return rbsp
}

// findNALRange is findNAL's raw-offset variant: it additionally returns
// [start, end), the literal byte range of the whole NAL unit (start
// code through its last non-padding byte) as it appears in data, so
// callers can build a Replacement that matches the emitted bitstream
// verbatim (spec.md §4.3).
func findNALRange(data []byte, nalType int, headerLen int) (start, end int, rbsp []byte, ok bool) {
	starts := []int{}
	for i := 0; i+3 < len(data); i++ {
		if data[i] == 0 && data[i+1] == 0 && data[i+2] == 1 {
			starts = append(starts, i)
		}
	}
	for idx, scStart := range starts {
		hdrStart := scStart + 3
		if hdrStart >= len(data) {
			continue
		}
		var t int
		if headerLen == 1 {
			t = int(data[hdrStart] & 0x1f)
		} else {
			t = int((data[hdrStart] >> 1) & 0x3f)
		}
		if t != nalType {
			continue
		}
		nalEnd := len(data)
		if idx+1 < len(starts) {
			nalEnd = starts[idx+1]
			for nalEnd > hdrStart && data[nalEnd-1] == 0 {
				nalEnd--
			}
		}
		if hdrStart+headerLen >= nalEnd {
			return 0, 0, nil, false
		}
		return scStart, nalEnd, unescapeRBSP(data[hdrStart+headerLen : nalEnd]), true
	}
	return 0, 0, nil, false
}

// HasVUIParameters implements the registry's SPS probe: for AVCODEC
// H.264/HEVC packets, the VUI_PARAMETERS capability bit is set iff the
// SPS actually carries vui_parameters_present_flag=1. A parse failure
// (truncated/malformed SPS) is treated as "no VUI" — the safe default,
// since the only consequence is the header rewriter staying active.
// Non-AVCODEC formats (AV1) implicitly carry VUI-equivalent info.
func HasVUIParameters(packet []byte, format types.VideoFormat) bool {
	defer func() { recover() }()
	switch format {
	case types.VideoFormatH264:
		sps := findNAL(packet, 7, 1)
		if sps == nil {
			return false
		}
		return parseH264SPSVUIFlag(sps)
	case types.VideoFormatHEVC:
		sps := findNAL(packet, 33, 2)
		if sps == nil {
			return false
		}
		return parseHEVCSPSVUIFlag(sps)
	default:
		return true
	}
}

// parseH264SPSVUIFlag walks an H.264 SPS (Rec. ITU-T H.264 §7.3.2.1)
// up through vui_parameters_present_flag.
func parseH264SPSVUIFlag(sps []byte) (vui bool) {
	r, ok := walkH264SPSToVUIFlag(sps)
	if !ok {
		return false
	}
	defer func() {
		if recover() != nil {
			vui = false
		}
	}()
	return r.flag()
}

// h264SPSVUIInsertionBit returns the bit position immediately before
// vui_parameters_present_flag, for staging an SPS replacement that
// forces it to 1 (spec.md §4.3).
func h264SPSVUIInsertionBit(sps []byte) (pos int, ok bool) {
	r, ok := walkH264SPSToVUIFlag(sps)
	if !ok {
		return 0, false
	}
	return r.pos, true
}

// walkH264SPSToVUIFlag advances r to the bit immediately preceding
// vui_parameters_present_flag without reading it, so callers can either
// read it (parseH264SPSVUIFlag) or record its position
// (h264SPSVUIInsertionBit).
func walkH264SPSToVUIFlag(sps []byte) (r *bitReader, ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	r = newBitReader(sps)
	profileIdc := r.u(8)
	r.u(8) // constraint flags + reserved
	r.u(8) // level_idc
	r.ue() // seq_parameter_set_id

	switch profileIdc {
	case 100, 110, 122, 244, 44, 83, 86, 118, 128, 138, 139, 134, 135:
		chromaFormatIdc := r.ue()
		if chromaFormatIdc == 3 {
			r.u(1) // separate_colour_plane_flag
		}
		r.ue() // bit_depth_luma_minus8
		r.ue() // bit_depth_chroma_minus8
		r.u(1) // qpprime_y_zero_transform_bypass_flag
		if r.flag() {
			// seq_scaling_list_present_flag[] would follow; bail out
			// safely rather than parse the full scaling-list tables.
			panic(errShortSPS)
		}
	}

	r.ue() // log2_max_frame_num_minus4
	picOrderCntType := r.ue()
	if picOrderCntType == 0 {
		r.ue() // log2_max_pic_order_cnt_lsb_minus4
	} else if picOrderCntType == 1 {
		r.u(1) // delta_pic_order_always_zero_flag
		r.ue() // offset_for_non_ref_pic (se as ue approximation of magnitude bits)
		r.ue() // offset_for_top_to_bottom_field
		n := r.ue()
		for i := uint32(0); i < n; i++ {
			r.ue()
		}
	}
	r.ue() // max_num_ref_frames
	r.u(1) // gaps_in_frame_num_value_allowed_flag
	r.ue() // pic_width_in_mbs_minus1
	r.ue() // pic_height_in_map_units_minus1
	if !r.flag() { // frame_mbs_only_flag
		r.u(1) // mb_adaptive_frame_field_flag
	}
	r.u(1) // direct_8x8_inference_flag
	if r.flag() { // frame_cropping_flag
		r.ue()
		r.ue()
		r.ue()
		r.ue()
	}
	return r, true
}

// parseHEVCSPSVUIFlag walks an HEVC SPS (Rec. ITU-T H.265 §7.3.2.2)
// up through vui_parameters_present_flag. Handles the common encoder
// output shape (sps_max_sub_layers_minus1==0, no short-term RPS,
// default scaling lists); any structure outside that falls back to
// "no VUI" via the recovers here and in walkHEVCSPSToVUIFlag.
func parseHEVCSPSVUIFlag(sps []byte) (vui bool) {
	r, ok := walkHEVCSPSToVUIFlag(sps)
	if !ok {
		return false
	}
	defer func() {
		if recover() != nil {
			vui = false
		}
	}()
	return r.flag()
}

// hevcSPSVUIInsertionBit returns the bit position immediately before
// vui_parameters_present_flag, for staging an SPS replacement that
// forces it to 1 (spec.md §4.3).
func hevcSPSVUIInsertionBit(sps []byte) (pos int, ok bool) {
	r, ok := walkHEVCSPSToVUIFlag(sps)
	if !ok {
		return 0, false
	}
	return r.pos, true
}

func walkHEVCSPSToVUIFlag(sps []byte) (r *bitReader, ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	r = newBitReader(sps)
	r.u(4) // sps_video_parameter_set_id
	maxSubLayersMinus1 := r.u(3)
	r.u(1) // sps_temporal_id_nesting_flag

	// profile_tier_level(profilePresentFlag=1, maxSubLayersMinus1)
	r.u(2)  // general_profile_space
	r.u(1)  // general_tier_flag
	r.u(5)  // general_profile_idc
	r.u(32) // general_profile_compatibility_flag[32]
	r.u(4)  // progressive/interlaced/non_packed/frame_only constraint flags
	r.u(43) // reserved/profile-specific constraint flags
	r.u(1)  // general_reserved_zero_bit / inbld flag depending on profile
	r.u(8)  // general_level_idc
	for i := uint32(0); i < maxSubLayersMinus1; i++ {
		panic(errShortSPS) // sub-layer profile/level tables: outside the common case
	}

	r.ue() // sps_seq_parameter_set_id
	chromaFormatIdc := r.ue()
	if chromaFormatIdc == 3 {
		r.u(1) // separate_colour_plane_flag
	}
	r.ue() // pic_width_in_luma_samples
	r.ue() // pic_height_in_luma_samples
	if r.flag() { // conformance_window_flag
		r.ue()
		r.ue()
		r.ue()
		r.ue()
	}
	r.ue() // bit_depth_luma_minus8
	r.ue() // bit_depth_chroma_minus8
	r.ue() // log2_max_pic_order_cnt_lsb_minus4

	subLayerOrderingInfoPresent := r.flag()
	iters := uint32(1)
	if subLayerOrderingInfoPresent {
		iters = maxSubLayersMinus1 + 1
	}
	for i := uint32(0); i < iters; i++ {
		r.ue() // sps_max_dec_pic_buffering_minus1
		r.ue() // sps_max_num_reorder_pics
		r.ue() // sps_max_latency_increase_plus1
	}

	r.ue() // log2_min_luma_coding_block_size_minus3
	r.ue() // log2_diff_max_min_luma_coding_block_size
	r.ue() // log2_min_luma_transform_block_size_minus2
	r.ue() // log2_diff_max_min_luma_transform_block_size
	r.ue() // max_transform_hierarchy_depth_inter
	r.ue() // max_transform_hierarchy_depth_intra
	if r.flag() { // scaling_list_enabled_flag
		if r.flag() { // sps_scaling_list_data_present_flag
			panic(errShortSPS) // scaling_list_data(): outside the common case
		}
	}
	r.u(1) // amp_enabled_flag
	r.u(1) // sample_adaptive_offset_enabled_flag
	if r.flag() { // pcm_enabled_flag
		panic(errShortSPS) // pcm fields: outside the common case
	}

	numShortTermRefPicSets := r.ue()
	if numShortTermRefPicSets > 0 {
		panic(errShortSPS) // short_term_ref_pic_set(): outside the common case
	}
	if r.flag() { // long_term_ref_pics_present_flag
		panic(errShortSPS)
	}
	r.u(1) // sps_temporal_mvp_enabled_flag
	r.u(1) // strong_intra_smoothing_enabled_flag
	return r, true
}
