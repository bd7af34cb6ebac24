package orchestrator

// Orchestrator configuration constants
const (
	// Channel buffer sizes
	ReadingEventBuffer = 10
	PreviewEventBuffer = 10
	HistoryEventBuffer = 100

	// Reading origins
	SourceUpload  = "upload"
	SourceCapture = "capture"
)
