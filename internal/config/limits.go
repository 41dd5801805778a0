package config

const (
	// MaxLabelLength is the maximum length of a CanvasObject's user-supplied
	// label, mirrored in internal/objectcommit's own validation constant.
	MaxLabelLength = 128

	// MaxStrokesPerObject is the stroke-count limit for one commit. No code
	// in this module checks it; object commit accepts any non-empty list.
	MaxStrokesPerObject = 500

	// MaxPointsPerStroke is the path-length limit for a single stroke. No
	// code in this module checks it.
	MaxPointsPerStroke = 2000

	// MaxRoomMembers is the participant limit for one room. No code in this
	// module checks it.
	MaxRoomMembers = 16
)
