// ABOUTME: Event poster widget shown after image generation completes
// ABOUTME: Renders the generated poster image with event details underneath

package widgets

import "fmt"

// PosterData describes a generated event poster.
type PosterData struct {
	EventName string
	Tagline   string
	Location  string
	Date      string
	ImageURL  string
}

// PosterWidget builds the poster card around the generated image.
func PosterWidget(data PosterData) Card {
	details := []Component{
		Image{Src: data.ImageURL, Alt: data.EventName + " poster", AspectRatio: 3.0 / 4.0},
		Title{Value: data.EventName, Size: "sm"},
	}
	if data.Tagline != "" {
		details = append(details, Caption{Value: data.Tagline})
	}
	if data.Location != "" || data.Date != "" {
		details = append(details, Row{
			Gap:   2,
			Align: "center",
			Children: []Component{
				Icon{Name: "map-pin", Size: "sm", Color: "secondary"},
				Caption{Value: data.Location},
				Spacer{},
				Badge{Label: data.Date, Color: "info"},
			},
		})
	}
	return Card{
		Key:  "event-poster",
		Size: "md",
		Children: []Component{
			Col{Gap: 2, Children: details},
		},
	}
}

// PosterCopyText renders the widget's plain-text fallback.
func PosterCopyText(data PosterData) string {
	return fmt.Sprintf("Generated poster for %q: %s", data.EventName, data.ImageURL)
}
