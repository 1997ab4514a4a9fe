package models

// FileType tags a container or executable format.
type FileType int

const (
	// FileTypeError is returned by an identifier that does not recognize a file.
	FileTypeError FileType = iota
	// FileTypeUnknown means no identifier recognized the file.
	FileTypeUnknown
	FileTypeELF
	FileTypeNSO
	FileTypeNRO
	FileTypeNCA
	FileTypeNSP
	FileTypeXCI
	FileTypeNAX
	FileTypeKIP
	FileTypeDeconstructedRomDirectory
)

var fileTypeNames = map[FileType]string{
	FileTypeELF:                       "ELF",
	FileTypeNSO:                       "NSO",
	FileTypeNRO:                       "NRO",
	FileTypeNCA:                       "NCA",
	FileTypeNSP:                       "NSP",
	FileTypeXCI:                       "XCI",
	FileTypeNAX:                       "NAX",
	FileTypeKIP:                       "KIP",
	FileTypeDeconstructedRomDirectory: "Directory",
}

// String returns the display name of a loadable type, or "unknown".
func (t FileType) String() string {
	if name, ok := fileTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// Loadable reports whether t names a concrete format.
func (t FileType) Loadable() bool {
	_, ok := fileTypeNames[t]
	return ok
}
