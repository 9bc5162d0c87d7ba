// Package status implements the TLV status/command wire protocol: a
// self-describing tag-length-value encoding used both for the receiver's
// periodic status broadcasts and for inbound tuning/filter/demod commands,
// plus the delta compactor that only re-sends fields that changed since the
// last broadcast.
//
// Grounded on original_source/status.c/status.h: Encode/Decode mirror
// encode_int64/encode_float/.../decode_int/decode_float byte for byte
// (leading-zero-suppressed big-endian integers, IEEE754 float/double bit
// patterns, unprefixed byte strings), and Compactor.Compact mirrors
// compact_packet's per-tag change tracking.
package status

import "strconv"

// Tag identifies one field in a status/command packet. Values follow
// status.c's enum status_type ordering (the richer list status.c's
// dump_radio_status switch actually exercises, which extends the one in
// status.h).
type Tag byte

const (
	EOL Tag = iota
	CommandTag
	Commands
	GPSTime

	InputDataSourceSocket
	InputMetadataSourceSocket
	InputDataDestSocket
	InputMetadataDestSocket
	InputSSRC
	InputSampleRate
	InputDataPackets
	InputMetadataPackets
	InputSamples
	InputDrops
	InputDupes

	OutputDataSourceSocket
	OutputDataDestSocket
	OutputSSRC
	OutputTTL
	OutputSampleRate
	OutputDataPackets
	OutputMetadataPackets

	RadioFrequency
	FirstLOFrequency
	SecondLOFrequency
	ShiftFrequency
	DopplerFrequency
	DopplerFrequencyRate

	LNAGain
	MixerGain
	IFGain

	DCIOffset
	DCQOffset
	IQImbalance
	IQPhase

	LowEdge
	HighEdge
	KaiserBeta
	FilterBlocksize
	FilterFIRLength

	NoiseBandwidth
	IFPower
	BasebandPower
	NoiseDensity

	DemodType
	IndependentSideband
	DemodSNR
	DemodGain
	FreqOffset

	PeakDeviation
	PLTone

	PLLLock
	PLLEnable
	PLLSquare
	PLLPhase

	OutputChannels
	Calibrate

	RadioMode // printable string, e.g. "usb", "fm"
)

// String names a tag for logging; unknown tags print their numeric value.
func (t Tag) String() string {
	if n, ok := tagNames[t]; ok {
		return n
	}
	return "tag(" + strconv.Itoa(int(t)) + ")"
}

var tagNames = map[Tag]string{
	EOL:                     "eol",
	CommandTag:              "command_tag",
	Commands:                "commands",
	GPSTime:                 "gps_time",
	InputDataSourceSocket:   "input_data_source",
	InputMetadataSourceSocket: "input_metadata_source",
	InputDataDestSocket:     "input_data_dest",
	InputMetadataDestSocket: "input_metadata_dest",
	InputSSRC:               "input_ssrc",
	InputSampleRate:         "input_samprate",
	InputDataPackets:        "input_data_packets",
	InputMetadataPackets:    "input_metadata_packets",
	InputSamples:            "input_samples",
	InputDrops:              "input_drops",
	InputDupes:              "input_dupes",
	OutputDataSourceSocket:  "output_data_source",
	OutputDataDestSocket:    "output_data_dest",
	OutputSSRC:              "output_ssrc",
	OutputTTL:               "output_ttl",
	OutputSampleRate:        "output_samprate",
	OutputDataPackets:       "output_data_packets",
	OutputMetadataPackets:   "output_metadata_packets",
	RadioFrequency:          "radio_frequency",
	FirstLOFrequency:        "first_lo",
	SecondLOFrequency:       "second_lo",
	ShiftFrequency:          "shift",
	DopplerFrequency:        "doppler",
	DopplerFrequencyRate:    "doppler_rate",
	LNAGain:                 "lna_gain",
	MixerGain:               "mixer_gain",
	IFGain:                  "if_gain",
	DCIOffset:               "dc_i_offset",
	DCQOffset:               "dc_q_offset",
	IQImbalance:             "iq_imbalance",
	IQPhase:                 "iq_phase",
	LowEdge:                 "low_edge",
	HighEdge:                "high_edge",
	KaiserBeta:              "kaiser_beta",
	FilterBlocksize:         "filter_blocksize",
	FilterFIRLength:         "filter_fir_length",
	NoiseBandwidth:          "noise_bandwidth",
	IFPower:                 "if_power",
	BasebandPower:           "baseband_power",
	NoiseDensity:            "noise_density",
	DemodType:               "demod_type",
	IndependentSideband:     "independent_sideband",
	DemodSNR:                "demod_snr",
	DemodGain:               "demod_gain",
	FreqOffset:              "freq_offset",
	PeakDeviation:           "peak_deviation",
	PLTone:                  "pl_tone",
	PLLLock:                 "pll_lock",
	PLLEnable:               "pll_enable",
	PLLSquare:               "pll_square",
	PLLPhase:                "pll_phase",
	OutputChannels:          "output_channels",
	Calibrate:               "calibrate",
	RadioMode:               "radio_mode",
}
