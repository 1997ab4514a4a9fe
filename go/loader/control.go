package loader

import (
	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"

	"github.com/lunixbochs/nxcorn/go/filesys"
	"github.com/lunixbochs/nxcorn/go/models"
	"github.com/lunixbochs/nxcorn/go/vfs"
)

const controlFile = "control.nacp"

// controlSource answers title, developer and icon queries from an
// application's control data.
type controlSource struct {
	lang language.Tag
	nacp *models.ControlData
	// icons holds icon_<Language>.dat files
	icons vfs.Dir
	// icon overrides icons when the format stores a single image
	icon []byte
}

// controlFromDir reads control.nacp and the language icons from d.
func controlFromDir(d vfs.Dir, lang language.Tag) *controlSource {
	c := &controlSource{lang: lang, icons: d}
	if d == nil {
		return c
	}
	if f := d.File(controlFile); f != nil {
		nacp, err := filesys.ParseNACP(f)
		if err != nil {
			log.Debug().Err(err).Str("file", f.FullPath()).Msg("bad control file")
		}
		c.nacp = nacp
	}
	return c
}

// controlFromNCA reads control data from the RomFS of a control archive.
func controlFromNCA(nca *filesys.NCA, lang language.Tag) *controlSource {
	if nca == nil || nca.RomFS() == nil {
		return &controlSource{lang: lang}
	}
	root, err := filesys.ExtractRomFS(nca.RomFS())
	if err != nil {
		log.Debug().Err(err).Str("file", nca.Name()).Msg("bad control romfs")
		return &controlSource{lang: lang}
	}
	return controlFromDir(root, lang)
}

func (c *controlSource) controlData() (*models.ControlData, models.ResultStatus) {
	if c == nil || c.nacp == nil {
		return nil, models.ErrorNoControl
	}
	return c.nacp, models.Success
}

func (c *controlSource) title() (string, models.ResultStatus) {
	nacp, status := c.controlData()
	if status != models.Success {
		return "", status
	}
	return nacp.ApplicationName(c.lang), models.Success
}

func (c *controlSource) developer() (string, models.ResultStatus) {
	nacp, status := c.controlData()
	if status != models.Success {
		return "", status
	}
	return nacp.DeveloperName(c.lang), models.Success
}

// readIcon prefers the configured language and falls back to the first
// language with an icon.
func (c *controlSource) readIcon() ([]byte, models.ResultStatus) {
	if c == nil {
		return nil, models.ErrorNoIcon
	}
	if len(c.icon) > 0 {
		return c.icon, models.Success
	}
	if c.icons == nil {
		return nil, models.ErrorNoIcon
	}
	want := models.MatchControlLanguage(c.lang)
	order := append([]models.Language{want}, allLanguages()...)
	for _, lang := range order {
		f := c.icons.File(lang.IconName())
		if f == nil {
			continue
		}
		p, err := vfs.ReadAll(f)
		if err != nil {
			return nil, models.ErrorNoIcon
		}
		return p, models.Success
	}
	return nil, models.ErrorNoIcon
}

func allLanguages() []models.Language {
	out := make([]models.Language, models.NumLanguages)
	for i := range out {
		out[i] = models.Language(i)
	}
	return out
}
