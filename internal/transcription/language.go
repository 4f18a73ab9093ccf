package transcription

import (
	"github.com/abadojack/whatlanggo"
)

// minDetectRunes is the shortest transcript worth running detection on.
const minDetectRunes = 40

// Detection is the estimated language of a transcript.
type Detection struct {
	// ISO639_1 is empty when whatlanggo knows no two-letter code.
	ISO639_1   string
	ISO639_3   string
	Name       string
	Confidence float64
	Reliable   bool
}

// DetectLanguage estimates the spoken language of a transcript. ok is false
// when the text is too short to say anything useful.
func DetectLanguage(segments []Segment) (Detection, bool) {
	text := Text(segments)
	if len([]rune(text)) < minDetectRunes {
		return Detection{}, false
	}
	info := whatlanggo.Detect(text)
	if info.Lang == -1 {
		return Detection{}, false
	}
	return Detection{
		ISO639_1:   info.Lang.Iso6391(),
		ISO639_3:   info.Lang.Iso6393(),
		Name:       info.Lang.String(),
		Confidence: info.Confidence,
		Reliable:   info.IsReliable(),
	}, true
}
