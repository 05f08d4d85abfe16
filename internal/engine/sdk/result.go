package sdk

// Result is the engine-independent recognition output.
type Result struct {
	Text       string         `json:"text"`
	Confidence *float64       `json:"confidence"`
	Pages      []Page         `json:"pages"`
	Metadata   ResultMetadata `json:"metadata"`
}

// Page is the recognized content of one page.
type Page struct {
	PageNumber int      `json:"page_number"`
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence"`
}

// ResultMetadata describes how a result was produced.
type ResultMetadata struct {
	EngineName     string  `json:"engine_name"`
	EngineVersion  string  `json:"engine_version"`
	ProcessingTime float64 `json:"processing_time"`
	Lang           string  `json:"lang,omitempty"`

	// Options echoes the engine options used for this run.
	Options map[string]any `json:"options,omitempty"`
}

// Confidence returns a pointer for use in Result and Page.
func Confidence(v float64) *float64 {
	return &v
}
