package domain

// Category codes for the six supply categories a hospital receives.
// They double as item codes in the stock table.
var Categories = []string{"HC", "FS", "MS", "GL", "GW", "SC"}

// IsCategory reports whether code is one of the six supply categories.
func IsCategory(code string) bool {
	for _, c := range Categories {
		if c == code {
			return true
		}
	}
	return false
}

type Hospital struct {
	Code          string         `json:"code"`
	Name          string         `json:"name"`
	TotalReceived int            `json:"total_received"`
	Received      map[string]int `json:"received"`
	Active        bool           `json:"active"`
}
