package models

// VisualizationSuggestion is a chart recommendation for a result set.
type VisualizationSuggestion struct {
	ChartType string         `json:"chart_type"`
	Reason    string         `json:"reason"`
	Config    map[string]any `json:"config,omitempty"`
}
