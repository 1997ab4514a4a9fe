package filesys

import (
	"github.com/lunixbochs/nxcorn/go/models"
	"github.com/lunixbochs/nxcorn/go/vfs"
)

const (
	NACPSize = 0x4000

	nacpTitleSize     = 0x300
	nacpNameSize      = 0x200
	nacpPropertiesOff = 0x3000
)

type nacpProperties struct {
	ISBN                           [0x25]byte
	StartupUserAccount             uint8
	TouchScreenUsage               uint8
	AddOnContentRegistrationType   uint8
	Attribute                      uint32
	SupportedLanguages             uint32
	ParentalControl                uint32
	Screenshot                     uint8
	VideoCapture                   uint8
	DataLossConfirmation           uint8
	PlayLogPolicy                  uint8
	PresenceGroupID                uint64
	RatingAge                      [0x20]byte
	DisplayVersion                 [0x10]byte
	AddOnContentBaseID             uint64
	SaveDataOwnerID                uint64
	UserAccountSaveDataSize        uint64
	UserAccountSaveDataJournalSize uint64
	DeviceSaveDataSize             uint64
	DeviceSaveDataJournalSize      uint64
}

// ParseNACP reads an application control property file.
func ParseNACP(f vfs.File) (*models.ControlData, error) {
	if f == nil {
		return nil, models.StatusErr(models.ErrorNoControl, nil)
	}
	raw, err := vfs.ReadBytes(f, 0, NACPSize)
	if err != nil {
		return nil, models.StatusErr(models.ErrorNoControl, err)
	}
	var props nacpProperties
	if _, err := unpackAt(vfs.NewBytesFile(f.Name(), raw), &props, nacpPropertiesOff); err != nil {
		return nil, models.StatusErr(models.ErrorNoControl, err)
	}
	cd := &models.ControlData{
		ISBN:               cstring(props.ISBN[:]),
		DisplayVersion:     cstring(props.DisplayVersion[:]),
		SupportedLanguages: props.SupportedLanguages,
		PresenceGroupID:    props.PresenceGroupID,
		AddOnContentBaseID: props.AddOnContentBaseID,
		SaveDataOwnerID:    props.SaveDataOwnerID,
		UserSaveDataSize:   props.UserAccountSaveDataSize,
		DeviceSaveDataSize: props.DeviceSaveDataSize,
	}
	for i := range cd.Titles {
		t := raw[i*nacpTitleSize : (i+1)*nacpTitleSize]
		cd.Titles[i] = models.ApplicationTitle{
			Name:      cstring(t[:nacpNameSize]),
			Developer: cstring(t[nacpNameSize:]),
		}
	}
	return cd, nil
}
