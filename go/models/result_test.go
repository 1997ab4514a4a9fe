package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestResultMessageTableCoversEveryStatus(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 66, NumResultStatus())
	assert.Len(t, resultMessages, NumResultStatus())
	assert.Len(t, resultMessagesZH, NumResultStatus())
	for s := Success; s.Valid(); s++ {
		assert.NotEmpty(t, s.Message(), "status %d", s)
	}
}

func TestResultMessageOrder(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "The operation completed successfully.", Success.Message())
	assert.Equal(t, "The loader requested to load is already loaded.", ErrorAlreadyLoaded.String())
	assert.Equal(t, ResultStatus(65), ErrorINITooManyKIPs)
	assert.Contains(t, ErrorINITooManyKIPs.Message(), "maximum allowable number of KIP")
}

func TestResultMessageOutOfRangePanics(t *testing.T) {
	t.Parallel()

	assert.False(t, ResultStatus(NumResultStatus()).Valid())
	assert.Panics(t, func() { _ = ResultStatus(NumResultStatus()).Message() })
	assert.Panics(t, func() { _ = ResultStatus(0xffff).LocalizedMessage(language.English) })
}

func TestCheckMessageTablePanicsOnGap(t *testing.T) {
	t.Parallel()

	short := map[ResultStatus]string{Success: "ok"}
	assert.Panics(t, func() { checkMessageTable("short", short) })

	gap := make(map[ResultStatus]string, NumResultStatus())
	for s := Success; s.Valid(); s++ {
		gap[s] = "x"
	}
	gap[ErrorNoIcon] = ""
	assert.Panics(t, func() { checkMessageTable("gap", gap) })
}

func TestLocalizedMessage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "没有可用图标.", ErrorNoIcon.LocalizedMessage(language.MustParse("zh-CN")))
	assert.Equal(t, ErrorNoIcon.Message(), ErrorNoIcon.LocalizedMessage(language.AmericanEnglish))
	assert.Equal(t, ErrorNoIcon.Message(), ErrorNoIcon.LocalizedMessage(language.German))
}

func TestMatchLanguage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, language.SimplifiedChinese, MatchLanguage("zh-Hans-CN"))
	assert.Equal(t, language.English, MatchLanguage("en-GB"))
	assert.Equal(t, language.English, MatchLanguage("not a tag!"))
}
