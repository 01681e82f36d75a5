package analytics

// Display colors matching GitHub's own language colors, for chart rendering.
var languageColors = map[string]string{
	"Python":           "#3572A5",
	"JavaScript":       "#f1e05a",
	"TypeScript":       "#3178c6",
	"Java":             "#b07219",
	"Go":               "#00ADD8",
	"Rust":             "#dea584",
	"Ruby":             "#701516",
	"PHP":              "#4F5D95",
	"C#":               "#178600",
	"C++":              "#f34b7d",
	"C":                "#555555",
	"HTML":             "#e34c26",
	"CSS":              "#563d7c",
	"Shell":            "#89e051",
	"Swift":            "#F05138",
	"Kotlin":           "#A97BFF",
	"Scala":            "#c22d40",
	"Vue":              "#41b883",
	"Dart":             "#00B4AB",
	"Jupyter Notebook": "#DA5B0B",
}

const defaultLanguageColor = "#8b8b8b"

func colorFor(language string) string {
	if c, ok := languageColors[language]; ok {
		return c
	}
	return defaultLanguageColor
}
