// ABOUTME: Side-by-side venue comparison widget with images, location, cost
// ABOUTME: Carries curated fallback venues for when no lookup source is wired

package widgets

import "fmt"

// Venue is one venue option in a comparison.
type Venue struct {
	ID       string
	Name     string
	Image    string
	Alt      string
	Location string
	Cost     string // "$", "$$", or "$$$"
}

// VenueComparison is the data behind a two-venue comparison widget.
type VenueComparison struct {
	Venues [2]Venue
}

// FallbackVenues returns the curated venue pair used when no external venue
// source is configured.
func FallbackVenues() [2]Venue {
	return [2]Venue{
		{
			ID:       "v1",
			Name:     "Station F",
			Image:    "https://cdn.paris.fr/paris/2019/07/24/huge-b3f17e0874dcf107f84c6745e8581c55.jpeg?w=800",
			Alt:      "Large Startup Campus",
			Location: "Paris, France",
			Cost:     "$$$",
		},
		{
			ID:       "v2",
			Name:     "École 42",
			Image:    "https://paris-promeneurs.com/wp-content/uploads/2024/01/ecole3-800.jpg?w=800",
			Alt:      "Sleek Modern University Building",
			Location: "Paris, France",
			Cost:     "$$",
		},
	}
}

func venueColumn(v Venue) Col {
	return Col{
		Key:  v.ID,
		Flex: 1,
		Gap:  2,
		Children: []Component{
			Image{Src: v.Image, Alt: v.Alt, AspectRatio: 16.0 / 9.0},
			Text{Value: v.Name, Size: "sm", Weight: "semibold", MaxLines: 1},
			Row{
				Gap:   2,
				Align: "center",
				Children: []Component{
					Icon{Name: "map-pin", Size: "sm", Color: "secondary"},
					Caption{Value: v.Location},
					Spacer{},
					Badge{Label: v.Cost, Color: "info"},
				},
			},
		},
	}
}

// VenueComparisonWidget builds the side-by-side comparison card.
func VenueComparisonWidget(data VenueComparison) Card {
	return Card{
		Key:  "venue-comparison",
		Size: "md",
		Children: []Component{
			Col{
				Gap: 3,
				Children: []Component{
					Title{Value: "Compare venues", Size: "sm"},
					Row{
						Gap:   3,
						Align: "stretch",
						Children: []Component{
							venueColumn(data.Venues[0]),
							venueColumn(data.Venues[1]),
						},
					},
				},
			},
		},
	}
}

// VenueComparisonCopyText renders the widget's plain-text fallback.
func VenueComparisonCopyText(data VenueComparison) string {
	v1, v2 := data.Venues[0], data.Venues[1]
	return fmt.Sprintf(
		"Here are two venue options: %s in %s (%s) and %s in %s (%s).",
		v1.Name, v1.Location, v1.Cost, v2.Name, v2.Location, v2.Cost,
	)
}
