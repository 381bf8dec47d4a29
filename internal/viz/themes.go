package viz

import "github.com/charmbracelet/lipgloss"

// Theme defines the color scheme of the live view. Materials are colored
// from Palette in table order.
type Theme struct {
	Name    string
	Primary lipgloss.Color
	Muted   lipgloss.Color
	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
	Palette []lipgloss.Color
}

var (
	ThemeForge = Theme{
		Name:    "forge",
		Primary: lipgloss.Color("#ff8c42"),
		Muted:   lipgloss.Color("#777777"),
		Success: lipgloss.Color("#5fd068"),
		Warning: lipgloss.Color("#ffc048"),
		Error:   lipgloss.Color("#ff4757"),
		Palette: []lipgloss.Color{"#c0c0c0", "#ff8c42", "#4fc3f7", "#ba68c8", "#fff176", "#81c784"},
	}

	ThemeOcean = Theme{
		Name:    "ocean",
		Primary: lipgloss.Color("#00a8cc"),
		Muted:   lipgloss.Color("#4488aa"),
		Success: lipgloss.Color("#00ff88"),
		Warning: lipgloss.Color("#ffcc00"),
		Error:   lipgloss.Color("#ff4444"),
		Palette: []lipgloss.Color{"#e0f0ff", "#0077be", "#ffd700", "#00ff88", "#ff9ff3", "#feca57"},
	}

	ThemeMinimal = Theme{
		Name:    "minimal",
		Primary: lipgloss.Color("#ffffff"),
		Muted:   lipgloss.Color("#888888"),
		Success: lipgloss.Color("#00ff00"),
		Warning: lipgloss.Color("#ffaa00"),
		Error:   lipgloss.Color("#ff0000"),
		Palette: []lipgloss.Color{"#ffffff", "#0088ff", "#ff5555", "#55ff55", "#ffff55", "#ff55ff"},
	}

	Themes = []Theme{ThemeForge, ThemeOcean, ThemeMinimal}
)

// GetTheme returns a theme by name, falling back to the first one.
func GetTheme(name string) Theme {
	for _, t := range Themes {
		if t.Name == name {
			return t
		}
	}
	return Themes[0]
}

func ThemeNames() []string {
	names := make([]string, len(Themes))
	for i, t := range Themes {
		names[i] = t.Name
	}
	return names
}

func nextTheme(current Theme) Theme {
	for i, t := range Themes {
		if t.Name == current.Name {
			return Themes[(i+1)%len(Themes)]
		}
	}
	return Themes[0]
}
