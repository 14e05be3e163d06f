package obd

// dtcLetters maps the top two bits of a DTC word's first byte to the
// standard category letter.
var dtcLetters = [4]byte{'P', 'C', 'B', 'U'}

// decodeDTC turns one 2-byte DTC word into its 5-character string form:
// <letter><digit0-3><digit0-F><digit0-F><digit0-F>.
func decodeDTC(hi, lo byte) string {
	letter := dtcLetters[hi>>6]
	d0 := (hi >> 4) & 0x3
	d1 := hi & 0xF
	d2 := lo >> 4
	d3 := lo & 0xF
	return string([]byte{letter, hexDigit(d0), hexDigit(d1), hexDigit(d2), hexDigit(d3)})
}

func hexDigit(n byte) byte {
	if n < 10 {
		return '0' + n
	}
	return 'A' + (n - 10)
}

// DecodeDTCs parses a Mode 3/7/A response payload (an array of 2-byte DTC
// words) into their string codes.
func DecodeDTCs(data []byte) ([]string, error) {
	if len(data)%2 != 0 {
		return nil, obdErr("odd-length DTC payload")
	}
	codes := make([]string, 0, len(data)/2)
	for i := 0; i < len(data); i += 2 {
		codes = append(codes, decodeDTC(data[i], data[i+1]))
	}
	return codes, nil
}
