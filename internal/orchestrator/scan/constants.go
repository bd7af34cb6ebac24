package scan

// Scan loop constants
const (
	// Hamming distance at or below which two frames count as the same view.
	DefaultMaxHashDistance = 4

	// Share of each side kept by the guide box.
	DefaultCropFraction = 0.28

	// RGB distance below which two guide-box means count as the same color.
	colorTolerance = 8

	// Pixels averaged for the change check.
	similaritySamples = 64
)
