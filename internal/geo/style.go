package geo

import (
	"fmt"
	"html"
)

// Style is the path styling handed to the map widget.
type Style struct {
	FillColor   string  `json:"fillColor"`
	Weight      int     `json:"weight"`
	Opacity     float64 `json:"opacity"`
	Color       string  `json:"color"`
	DashArray   string  `json:"dashArray"`
	FillOpacity float64 `json:"fillOpacity"`
}

// Feature styles.
var (
	UnselectedStyle = Style{
		FillColor:   "#3388ff",
		Weight:      1,
		Opacity:     1,
		Color:       "white",
		DashArray:   "3",
		FillOpacity: 0.5,
	}
	SelectedStyle = Style{
		FillColor:   "#ff6b6b",
		Weight:      3,
		Opacity:     1,
		Color:       "#e74c3c",
		DashArray:   "",
		FillOpacity: 0.8,
	}
)

// highlight applies the hover overlay; fill color and opacity are kept.
func highlight(base Style) Style {
	base.Weight = 3
	base.Color = "#666"
	base.DashArray = ""
	base.FillOpacity = 0.9
	return base
}

// Tooltip is the hover label for a feature.
func Tooltip(name, code string) string {
	return fmt.Sprintf("%s (%s)<br>Cliquer pour sélectionner", html.EscapeString(name), html.EscapeString(code))
}
