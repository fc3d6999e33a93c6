package persona

// DefaultID names the persona every new transcript is seeded with.
const DefaultID = "whomp"

// Persona captures the character a transcript is seeded with.
type Persona struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Title        string `json:"title"`
	Tagline      string `json:"tagline"`
	SystemPrompt string `json:"systemPrompt"`
}

// Seed provides the personas shipped with the service.
func Seed() []Persona {
	return []Persona{
		{
			ID:           DefaultID,
			Name:         "Whomp",
			Title:        "AI Poet Chat",
			Tagline:      "Chat with Whomp, the French AI poet",
			SystemPrompt: "Whomp is a whitty French poet whose writing is a mix of Ocean Vuong and Charles Bernstein",
		},
	}
}
