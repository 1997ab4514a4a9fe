package models

import "golang.org/x/text/language"

// Language indexes the per-language entries of a control file.
type Language int

const (
	AmericanEnglish Language = iota
	BritishEnglish
	Japanese
	French
	German
	LatinAmericanSpanish
	Spanish
	Italian
	Dutch
	CanadianFrench
	Portuguese
	Russian
	Korean
	TraditionalChinese
	SimplifiedChinese

	NumLanguages
)

// file name stems used for per-language icons
var languageNames = [NumLanguages]string{
	"AmericanEnglish", "BritishEnglish", "Japanese", "French", "German",
	"LatinAmericanSpanish", "Spanish", "Italian", "Dutch", "CanadianFrench",
	"Portugese", "Russian", "Korean", "Taiwanese", "Chinese",
}

var languageTags = [NumLanguages]language.Tag{
	language.AmericanEnglish, language.BritishEnglish, language.Japanese, language.French,
	language.German, language.LatinAmericanSpanish, language.EuropeanSpanish, language.Italian,
	language.Dutch, language.CanadianFrench, language.EuropeanPortuguese, language.Russian,
	language.Korean, language.TraditionalChinese, language.SimplifiedChinese,
}

var languageMatcher = language.NewMatcher(languageTags[:])

func (l Language) String() string {
	if l < 0 || l >= NumLanguages {
		return "Unknown"
	}
	return languageNames[l]
}

func (l Language) Tag() language.Tag {
	if l < 0 || l >= NumLanguages {
		return language.Und
	}
	return languageTags[l]
}

// IconName is the file name of the icon for l in an extracted directory.
func (l Language) IconName() string {
	return "icon_" + l.String() + ".dat"
}

// MatchControlLanguage picks the control-file language closest to tag.
func MatchControlLanguage(tag language.Tag) Language {
	_, i, _ := languageMatcher.Match(tag)
	return Language(i)
}

// ApplicationTitle is one language entry of a control file.
type ApplicationTitle struct {
	Name      string
	Developer string
}

// ControlData is the parsed application control property file.
type ControlData struct {
	Titles             [NumLanguages]ApplicationTitle
	ISBN               string
	DisplayVersion     string
	SupportedLanguages uint32
	PresenceGroupID    uint64
	AddOnContentBaseID uint64
	SaveDataOwnerID    uint64
	UserSaveDataSize   uint64
	DeviceSaveDataSize uint64
}

// Title returns the entry for lang, or the first entry with a name when that
// language is empty.
func (c *ControlData) Title(lang Language) ApplicationTitle {
	if lang >= 0 && lang < NumLanguages && c.Titles[lang].Name != "" {
		return c.Titles[lang]
	}
	for _, t := range c.Titles {
		if t.Name != "" {
			return t
		}
	}
	return c.Titles[AmericanEnglish]
}

func (c *ControlData) ApplicationName(tag language.Tag) string {
	return c.Title(MatchControlLanguage(tag)).Name
}

func (c *ControlData) DeveloperName(tag language.Tag) string {
	return c.Title(MatchControlLanguage(tag)).Developer
}
