// Package analyzer checks room dimensions against comfort standards and
// scores the space efficiency of a floor plan.
package analyzer

// Standard holds the dimensional thresholds of a room type. Areas are m²,
// widths metres.
type Standard struct {
	MinArea          float64
	OptimalMinArea   float64
	OptimalMaxArea   float64
	OversizedArea    float64
	MinWidth         float64
	OptimalWidthLow  float64
	OptimalWidthHigh float64
	Undersized       string
	Optimal          string
	Oversized        string
}

var standards = map[string]Standard{
	"Bedroom": {
		MinArea: 9, OptimalMinArea: 12, OptimalMaxArea: 16, OversizedArea: 18,
		MinWidth: 2.7, OptimalWidthLow: 3.0, OptimalWidthHigh: 3.6,
		Undersized: "This bedroom is below international comfort standards. Furniture placement will be difficult.",
		Optimal:    "This bedroom meets international standards for comfortable living.",
		Oversized:  "This bedroom exceeds functional needs. Extra space increases costs without added comfort.",
	},
	"Master Bedroom": {
		MinArea: 12, OptimalMinArea: 14, OptimalMaxArea: 20, OversizedArea: 24,
		MinWidth: 3.0, OptimalWidthLow: 3.3, OptimalWidthHigh: 4.2,
		Undersized: "This master bedroom is smaller than recommended for a primary suite.",
		Optimal:    "This master bedroom provides excellent comfort and functionality.",
		Oversized:  "This master bedroom is larger than necessary. Consider reallocating space to other areas.",
	},
	"Children's Bedroom": {
		MinArea: 9, OptimalMinArea: 10, OptimalMaxArea: 14, OversizedArea: 16,
		MinWidth: 2.7, OptimalWidthLow: 2.8, OptimalWidthHigh: 3.3,
		Undersized: "This children's bedroom is too small for comfortable use and growth.",
		Optimal:    "This children's bedroom is well-sized for long-term use.",
		Oversized:  "This children's bedroom is larger than necessary, increasing construction costs.",
	},
	"Living Room": {
		MinArea: 16, OptimalMinArea: 20, OptimalMaxArea: 30, OversizedArea: 35,
		MinWidth: 3.5, OptimalWidthLow: 4.0, OptimalWidthHigh: 5.5,
		Undersized: "This living room may feel cramped for family gatherings.",
		Optimal:    "This living room provides comfortable space for daily living and entertaining.",
		Oversized:  "This living room is oversized. Large rooms require more heating, cooling, and furnishing.",
	},
	"Dining Room": {
		MinArea: 10, OptimalMinArea: 12, OptimalMaxArea: 18, OversizedArea: 22,
		MinWidth: 2.8, OptimalWidthLow: 3.0, OptimalWidthHigh: 4.0,
		Undersized: "This dining room is too small for comfortable family meals.",
		Optimal:    "This dining room is appropriately sized for daily use.",
		Oversized:  "This dining room is larger than necessary for typical household needs.",
	},
	"Closed Kitchen": {
		MinArea: 8, OptimalMinArea: 10, OptimalMaxArea: 14, OversizedArea: 16,
		MinWidth: 2.4, OptimalWidthLow: 2.6, OptimalWidthHigh: 3.2,
		Undersized: "This kitchen lacks adequate counter and storage space.",
		Optimal:    "This kitchen provides efficient workspace and storage.",
		Oversized:  "This kitchen is oversized, creating inefficient movement patterns and wasted walking distance.",
	},
	"Open Kitchen": {
		MinArea: 12, OptimalMinArea: 14, OptimalMaxArea: 20, OversizedArea: 24,
		MinWidth: 3.0, OptimalWidthLow: 3.5, OptimalWidthHigh: 4.5,
		Undersized: "This open kitchen lacks adequate space for both cooking and living functions.",
		Optimal:    "This open kitchen balances cooking workspace with social interaction.",
		Oversized:  "This open kitchen is excessive. Large kitchens increase walking distances and reduce efficiency.",
	},
	"Bathroom": {
		MinArea: 3.5, OptimalMinArea: 4.5, OptimalMaxArea: 7, OversizedArea: 9,
		MinWidth: 1.8, OptimalWidthLow: 2.0, OptimalWidthHigh: 2.5,
		Undersized: "This bathroom is below minimum functional standards.",
		Optimal:    "This bathroom provides comfortable functionality.",
		Oversized:  "This bathroom is larger than necessary. Bathrooms should be efficient, not spacious.",
	},
	// Circulation has no area bounds, only widths.
	"Corridor": {
		MinWidth: 0.9, OptimalWidthLow: 1.0, OptimalWidthHigh: 1.2,
		Undersized: "This corridor is too narrow for comfortable passage.",
		Optimal:    "This corridor width is appropriate for efficient circulation.",
		Oversized:  "This corridor is wider than necessary. Every extra 10cm multiplies wasted area across the entire length.",
	},
	"Hallway": {
		MinWidth: 1.0, OptimalWidthLow: 1.2, OptimalWidthHigh: 1.5,
		Undersized: "This hallway is too narrow.",
		Optimal:    "This hallway width is efficient.",
		Oversized:  "This hallway is wider than necessary, creating significant wasted area.",
	},
	"Garage": {
		MinArea: 15, OptimalMinArea: 18, OptimalMaxArea: 24, OversizedArea: 30,
		MinWidth: 3.0, OptimalWidthLow: 3.5, OptimalWidthHigh: 5.5,
		Undersized: "This garage is too small for a standard vehicle plus storage.",
		Optimal:    "This garage is appropriately sized.",
		Oversized:  "This garage is oversized. Consider whether the extra space justifies the cost.",
	},
	"Storage": {
		MinArea: 2, OptimalMinArea: 3, OptimalMaxArea: 6, OversizedArea: 8,
		MinWidth: 1.2, OptimalWidthLow: 1.5, OptimalWidthHigh: 2.0,
		Undersized: "This storage space is insufficient.",
		Optimal:    "This storage space is well-sized.",
		Oversized:  "This storage space is excessive. Smaller, well-organized storage is more efficient.",
	},
}

var defaultStandard = Standard{
	MinArea: 6, OptimalMinArea: 8, OptimalMaxArea: 15, OversizedArea: 20,
	MinWidth: 2.0, OptimalWidthLow: 2.5, OptimalWidthHigh: 4.0,
	Undersized: "This space is smaller than typical functional requirements.",
	Optimal:    "This space appears appropriately sized.",
	Oversized:  "This space is larger than necessary for its function.",
}

// StandardFor returns the thresholds of a room type, or the generic default.
func StandardFor(roomType string) Standard {
	if s, ok := standards[roomType]; ok {
		return s
	}
	return defaultStandard
}

// circulationTypes count toward the circulation share.
var circulationTypes = map[string]bool{
	"Corridor": true,
	"Hallway":  true,
	"Entrance": true,
	"Lobby":    true,
}

// RoomGroup is a labelled set of room types for the form select.
type RoomGroup struct {
	Label string   `json:"label"`
	Types []string `json:"types"`
}

// RoomTypeOptions lists selectable room types grouped by use.
func RoomTypeOptions() []RoomGroup {
	return []RoomGroup{
		{"Living Areas", []string{"Living Room", "Family Room", "Dining Room", "Living + Dining (Open Plan)"}},
		{"Bedrooms", []string{"Bedroom", "Master Bedroom", "Children's Bedroom", "Guest Bedroom", "Dormitory"}},
		{"Kitchen Areas", []string{"Closed Kitchen", "Open Kitchen", "Kitchen + Dining", "Kitchenette"}},
		{"Bathrooms", []string{"Bathroom", "Shower Room", "WC", "Guest WC"}},
		{"Circulation Areas", []string{"Corridor", "Hallway", "Entrance", "Lobby"}},
		{"Technical / Utility", []string{"Storage", "Pantry", "Laundry Room", "Utility Room", "Mechanical Room"}},
		{"Special Use", []string{"Office", "Prayer Room", "Multipurpose Room", "Library"}},
		{"Annexes", []string{"Garage", "Carport", "Workshop", "Shop / Commercial Space"}},
		{"Covered Outdoor", []string{"Covered Terrace", "Veranda", "Balcony"}},
		{"Other", []string{"Other Space"}},
	}
}

// IsKnownRoomType reports whether t appears in RoomTypeOptions.
func IsKnownRoomType(t string) bool {
	for _, g := range RoomTypeOptions() {
		for _, rt := range g.Types {
			if rt == t {
				return true
			}
		}
	}
	return false
}

// regionalCostPerM2 holds average construction costs in USD per m².
var regionalCostPerM2 = map[string]float64{
	"United States":  2200,
	"Canada":         2000,
	"United Kingdom": 2400,
	"Australia":      2300,
	"Germany":        2100,
	"France":         2000,
	"Spain":          1500,
	"Italy":          1600,
	"International":  1800,
}

// DefaultRegion is used for unknown countries.
const DefaultRegion = "International"

// Regions lists the countries with a cost reference, sorted for display.
func Regions() []string {
	return []string{
		"Australia", "Canada", "France", "Germany", "International",
		"Italy", "Spain", "United Kingdom", "United States",
	}
}
