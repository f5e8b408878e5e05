package model

// Keypoint is a single body landmark in normalized image coordinates.
type Keypoint struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility"`
}

// PostureAnalysis is the per-frame analysis block produced by the streaming server.
// Symmetry scores are nominally in [0,1] but are not validated.
type PostureAnalysis struct {
	Keypoints    map[string]Keypoint `json:"keypoints,omitempty"`
	Angles       map[string]float64  `json:"angles"`
	Symmetry     map[string]float64  `json:"symmetry"`
	Timestamp    string              `json:"timestamp,omitempty"`
	FrameQuality float64             `json:"frame_quality,omitempty"`
}

// StreamPayload is one inbound message of the pose stream.
type StreamPayload struct {
	Frame     string          `json:"frame"`
	Analysis  PostureAnalysis `json:"analysis"`
	Timestamp string          `json:"timestamp"`
	VisitID   string          `json:"visit_id"`
}
