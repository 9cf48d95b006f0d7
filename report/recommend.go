package report

// Recommend maps pitch and tempo to a fixed pair of song suggestions.
func Recommend(pitchHz, tempoBPM float64) []string {
	switch {
	case pitchHz < 200 && tempoBPM < 100:
		return []string{"Song A", "Song B"}
	case pitchHz >= 200 && pitchHz < 300 && tempoBPM >= 100 && tempoBPM < 120:
		return []string{"Song C", "Song D"}
	default:
		return []string{"Song E", "Song F"}
	}
}
