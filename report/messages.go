package report

import (
	"golang.org/x/text/language"
)

type catalog struct {
	pitch       map[PitchClass]string
	tempo       map[TempoClass]string
	timbre      map[TimbreClass]string
	zcr         map[ZCRClass]string
	comparison  map[Comparison]string
	suggestions Suggestions
}

var english = &catalog{
	pitch: map[PitchClass]string{
		PitchLow:      "Low pitch, may not suit most songs.",
		PitchModerate: "Moderate pitch, suits a wide range of songs.",
		PitchHigh:     "High pitch, suits high-register songs.",
	},
	tempo: map[TempoClass]string{
		TempoSlow:     "Slow tempo, suits ballads.",
		TempoModerate: "Moderate tempo, suits many styles of music.",
		TempoFast:     "Fast tempo, suits dance and pop music.",
	},
	timbre: map[TimbreClass]string{
		TimbreDark:   "Dark timbre, suits low-register songs.",
		TimbreBright: "Bright timbre, suits high-register songs.",
	},
	zcr: map[ZCRClass]string{
		ZCRSmooth:   "Low zero-crossing rate, the audio is fairly steady.",
		ZCRModerate: "Moderate zero-crossing rate, the audio varies moderately.",
		ZCRHigh:     "High zero-crossing rate, the audio varies a lot.",
	},
	comparison: map[Comparison]string{
		Below: "Below professional level",
		Near:  "Close to professional level",
		Above: "Above professional level",
	},
	suggestions: Suggestions{
		Pitch:            "Practice scales and intonation with a piano or a tuner.",
		Tempo:            "Practice with a metronome to keep a steady sense of rhythm.",
		SpectralCentroid: "If the tone is too bright, relax the throat and add resonance; if it is too dark, lift the pitch to add brightness.",
		ZCR:              "If the zero-crossing rate is high, reduce noise and unnecessary changes in the audio.",
	},
}

var chinese = &catalog{
	pitch: map[PitchClass]string{
		PitchLow:      "音高较低，可能不适合大多数歌曲。",
		PitchModerate: "音高适中，适合多种歌曲。",
		PitchHigh:     "音高较高，适合高音歌曲。",
	},
	tempo: map[TempoClass]string{
		TempoSlow:     "节奏较慢，适合抒情歌曲。",
		TempoModerate: "节奏适中，适合多种类型的音乐。",
		TempoFast:     "节奏较快，适合舞曲和流行音乐。",
	},
	timbre: map[TimbreClass]string{
		TimbreDark:   "声色较暗，适合低音歌曲。",
		TimbreBright: "声色较亮，适合高音歌曲。",
	},
	zcr: map[ZCRClass]string{
		ZCRSmooth:   "零交叉率较低，音频较为平稳。",
		ZCRModerate: "零交叉率适中，音频变化适中。",
		ZCRHigh:     "零交叉率较高，音频变化较大。",
	},
	comparison: map[Comparison]string{
		Below: "低于专业水平",
		Near:  "接近专业水平",
		Above: "高于专业水平",
	},
	suggestions: Suggestions{
		Pitch:            "尝试练习音阶和音准，使用钢琴或调音器辅助。",
		Tempo:            "使用节拍器练习，保持稳定的节奏感。",
		SpectralCentroid: "如果声色过亮，尝试放松喉咙，增加共鸣；如果过暗，尝试提高音调，增加亮度。",
		ZCR:              "如果零交叉率过高，尝试减少噪音和不必要的音频变化。",
	},
}

// The first entry is the fallback when nothing matches.
var (
	supported = []language.Tag{language.English, language.Chinese}
	catalogs  = []*catalog{english, chinese}
	matcher   = language.NewMatcher(supported)
)

// SupportedLocales lists the locales reports can be rendered in.
func SupportedLocales() []string {
	out := make([]string, len(supported))
	for i, t := range supported {
		out[i] = t.String()
	}
	return out
}

// MatchLocale resolves a BCP-47 tag or Accept-Language value to a supported
// locale. Unparseable or unknown input resolves to English.
func MatchLocale(locale string) string {
	_, idx := match(locale)
	return supported[idx].String()
}

func match(locale string) (*catalog, int) {
	if locale == "" {
		return catalogs[0], 0
	}
	tags, _, err := language.ParseAcceptLanguage(locale)
	if err != nil || len(tags) == 0 {
		return catalogs[0], 0
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return catalogs[0], 0
	}
	return catalogs[idx], idx
}
