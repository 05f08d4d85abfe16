package runtime

import "github.com/felixgeelhaar/multiocr/internal/engine/sdk"

// EngineHealth is the health of one registered engine.
type EngineHealth struct {
	Name        string           `json:"name"`
	Status      sdk.HealthStatus `json:"status"`
	Window      []bool           `json:"window,omitempty"`
	SuccessRate float64          `json:"success_rate"`
	FileTypes   []string         `json:"file_types"`
}

// HealthReport is the overall status plus its per-engine inputs.
type HealthReport struct {
	Status  sdk.HealthStatus `json:"status"`
	Engines []EngineHealth   `json:"engines"`
}

// RollUp folds per-engine statuses into an overall status.
// No engines is RED; all GREEN is GREEN; any RED is RED; otherwise YELLOW.
func RollUp(statuses []sdk.HealthStatus) sdk.HealthStatus {
	if len(statuses) == 0 {
		return sdk.HealthRed
	}
	allGreen := true
	for _, s := range statuses {
		if s == sdk.HealthRed {
			return sdk.HealthRed
		}
		if s != sdk.HealthGreen {
			allGreen = false
		}
	}
	if allGreen {
		return sdk.HealthGreen
	}
	return sdk.HealthYellow
}

func describeHealth(engine sdk.Engine) EngineHealth {
	h := EngineHealth{
		Name:      engine.Name(),
		Status:    engine.Health(),
		FileTypes: engine.SupportedFileTypes(),
	}
	if reporter, ok := engine.(sdk.HealthReporter); ok {
		window := reporter.HealthWindow()
		h.Window = window.Outcomes()
		h.SuccessRate = window.Rate()
	}
	return h
}

// EngineInfo describes a registered engine.
type EngineInfo struct {
	Name      string           `json:"name"`
	Version   string           `json:"version,omitempty"`
	FileTypes []string         `json:"file_types"`
	Health    sdk.HealthStatus `json:"health"`
	Error     string           `json:"init_error,omitempty"`
}

// Describe reports an engine's identity, health and any initialization failure.
func Describe(engine sdk.Engine) EngineInfo {
	info := EngineInfo{
		Name:      engine.Name(),
		FileTypes: engine.SupportedFileTypes(),
		Health:    engine.Health(),
	}
	if v, ok := engine.(interface{ Version() string }); ok {
		info.Version = v.Version()
	}
	if i, ok := engine.(interface{ InitErr() error }); ok {
		if err := i.InitErr(); err != nil {
			info.Error = err.Error()
		}
	}
	return info
}
