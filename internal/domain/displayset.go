package domain

// DisplaySetSnapshot is the sanitized display-set descriptor relayed to
// viewers: identifiers and viewing parameters only, никаких pixel data.
type DisplaySetSnapshot struct {
	DisplaySetInstanceUID string `json:"displaySetInstanceUID"`
	SeriesInstanceUID     string `json:"seriesInstanceUID"`
	StudyInstanceUID      string `json:"studyInstanceUID"`
	Modality              string `json:"modality"`
	FrameIndex            int    `json:"frameIndex"`
}
