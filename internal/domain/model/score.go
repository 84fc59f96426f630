package model

// Score is a reduced per-subject, per-dimension value. (SubjectID, Dimension,
// Window) is unique; Value is always non-negative. Window defaults to "all";
// other values (e.g. "30d") are opaque to the scoring engine.
type Score struct {
	SubjectID string
	Dimension string
	Value     float64
	Window    string
	Metadata  map[string]string
}

// WindowAll is the default, catch-all scoring window.
const WindowAll = "all"
