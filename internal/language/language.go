package language

import (
	"errors"
	"fmt"
	"strings"

	xlang "golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

type entry struct {
	code2   string   // ISO 639-1 (2-letter)
	code3   string   // ISO 639-2 primary (3-letter)
	alt3    string   // ISO 639-2 alternate (e.g. "fre" vs "fra")
	display string   // Human-readable name
	words   []string // Full word forms (e.g. "english")
}

var languages = []entry{
	{"en", "eng", "", "English", []string{"english"}},
	{"es", "spa", "", "Spanish", []string{"spanish"}},
	{"fr", "fra", "fre", "French", []string{"french"}},
	{"de", "deu", "ger", "German", []string{"german"}},
	{"it", "ita", "", "Italian", []string{"italian"}},
	{"pt", "por", "", "Portuguese", []string{"portuguese"}},
	{"ja", "jpn", "", "Japanese", []string{"japanese"}},
	{"ko", "kor", "", "Korean", []string{"korean"}},
	{"zh", "zho", "chi", "Chinese", []string{"chinese"}},
	{"ru", "rus", "", "Russian", []string{"russian"}},
	{"ar", "ara", "", "Arabic", []string{"arabic"}},
	{"hi", "hin", "", "Hindi", []string{"hindi"}},
	{"nl", "nld", "dut", "Dutch", []string{"dutch"}},
	{"pl", "pol", "", "Polish", []string{"polish"}},
	{"sv", "swe", "", "Swedish", []string{"swedish"}},
	{"da", "dan", "", "Danish", []string{"danish"}},
	{"no", "nor", "", "Norwegian", []string{"norwegian"}},
	{"fi", "fin", "", "Finnish", []string{"finnish"}},
}

// Index maps built at init time.
var (
	byCode2 map[string]*entry
	byCode3 map[string]*entry
	byWord  map[string]*entry
)

func init() {
	byCode2 = make(map[string]*entry, len(languages))
	byCode3 = make(map[string]*entry, len(languages)*2)
	byWord = make(map[string]*entry, len(languages))
	for i := range languages {
		e := &languages[i]
		byCode2[e.code2] = e
		byCode3[e.code3] = e
		if e.alt3 != "" {
			byCode3[e.alt3] = e
		}
		for _, w := range e.words {
			byWord[w] = e
		}
	}
}

func lookup(code string) *entry {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return nil
	}
	if e, ok := byCode2[code]; ok {
		return e
	}
	if e, ok := byCode3[code]; ok {
		return e
	}
	if e, ok := byWord[code]; ok {
		return e
	}
	return nil
}

// ErrUnknown reports a code that is neither in the local table nor a known
// ISO 639 language.
var ErrUnknown = errors.New("unknown language")

// Code is a resolved language.
type Code struct {
	ISO2 string
	ISO3 string
	Name string
}

// Resolve maps a 2-letter, 3-letter, BCP 47 tag or English word form
// ("english") to a Code. Codes without an ISO 639-1 form resolve with an
// empty ISO2.
func Resolve(value string) (Code, error) {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	if trimmed == "" {
		return Code{}, fmt.Errorf("%w: empty", ErrUnknown)
	}
	if e := lookup(trimmed); e != nil {
		return Code{ISO2: e.code2, ISO3: e.code3, Name: e.display}, nil
	}
	base, err := xlang.ParseBase(trimmed)
	if err != nil {
		tag, tagErr := xlang.Parse(trimmed)
		if tagErr != nil {
			return Code{}, fmt.Errorf("%w: %q", ErrUnknown, value)
		}
		base, _ = tag.Base()
	}
	code := Code{ISO3: base.ISO3(), Name: display.English.Languages().Name(base)}
	if short := base.String(); len(short) == 2 {
		code.ISO2 = short
	}
	if code.Name == "" {
		code.Name = strings.ToUpper(trimmed)
	}
	return code, nil
}

// ToISO2 converts any recognized language code or word to ISO 639-1 (2-letter).
// Returns empty string for unrecognized input.
func ToISO2(code string) string {
	resolved, err := Resolve(code)
	if err != nil {
		return ""
	}
	return resolved.ISO2
}

// ToISO3 converts any recognized language code to ISO 639-2 (3-letter).
// Returns "und" for unrecognized input.
func ToISO3(code string) string {
	resolved, err := Resolve(code)
	if err != nil || resolved.ISO3 == "" {
		return "und"
	}
	return resolved.ISO3
}

// DisplayName returns a human-readable language name for any recognized code.
// Returns "Unknown" for empty input, or the uppercased code for unrecognized input.
func DisplayName(code string) string {
	if strings.TrimSpace(code) == "" {
		return "Unknown"
	}
	if resolved, err := Resolve(code); err == nil {
		return resolved.Name
	}
	return strings.ToUpper(strings.TrimSpace(code))
}

// Matches reports whether two codes name the same language.
func Matches(a, b string) bool {
	ra, errA := Resolve(a)
	rb, errB := Resolve(b)
	if errA != nil || errB != nil {
		return false
	}
	return ra.ISO3 == rb.ISO3
}
