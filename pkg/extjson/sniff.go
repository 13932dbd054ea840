package extjson

// currentSignature and legacySignature mirror the binary file signatures
// named in spec §6; a caller holding an unknown byte buffer checks
// [LooksBinary] first and routes to pkg/binfmt instead of this package
// (spec §4.5: "if the first 8 bytes match either binary signature, route to
// C4 instead").
var (
	currentSignature = [8]byte{0xEB, 0x4E, 0x6D, 0xBA, 0xBD, 0x66, 0xD1, 0xEC}
	legacySignature  = [8]byte{0xFF, 0xFF, 0x00, 0xDE, 0xA7, 0x7F, 0x00, 0xDD}
)

// LooksBinary reports whether data begins with either recognized binary
// store signature.
func LooksBinary(data []byte) bool {
	if len(data) < 8 {
		return false
	}

	for _, sig := range [][8]byte{currentSignature, legacySignature} {
		match := true

		for i := range sig {
			if data[i] != sig[i] {
				match = false
				break
			}
		}

		if match {
			return true
		}
	}

	return false
}
