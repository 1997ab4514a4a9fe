package models

import "fmt"

// ResultStatus is the outcome of a loader operation.
type ResultStatus uint16

const (
	Success ResultStatus = iota
	ErrorAlreadyLoaded
	ErrorNotImplemented
	ErrorNotInitialized
	ErrorBadNPDMHeader
	ErrorBadACIDHeader
	ErrorBadACIHeader
	ErrorBadFileAccessControl
	ErrorBadFileAccessHeader
	ErrorBadKernelCapabilityDescriptors
	ErrorBadPFSHeader
	ErrorIncorrectPFSFileSize
	ErrorBadNCAHeader
	ErrorMissingProductionKeyFile
	ErrorMissingHeaderKey
	ErrorIncorrectHeaderKey
	ErrorNCA2
	ErrorNCA0
	ErrorMissingTitlekey
	ErrorMissingTitlekek
	ErrorInvalidRightsID
	ErrorMissingKeyAreaKey
	ErrorIncorrectKeyAreaKey
	ErrorIncorrectTitlekeyOrTitlekek
	ErrorXCIMissingProgramNCA
	ErrorNCANotProgram
	ErrorNoExeFS
	ErrorBadXCIHeader
	ErrorXCIMissingPartition
	ErrorNullFile
	ErrorMissingNPDM
	Error32BitISA
	ErrorUnableToParseKernelMetadata
	ErrorNoRomFS
	ErrorIncorrectELFFileSize
	ErrorLoadingNRO
	ErrorLoadingNSO
	ErrorNoIcon
	ErrorNoControl
	ErrorBadNAXHeader
	ErrorIncorrectNAXFileSize
	ErrorNAXKeyHMACFailed
	ErrorNAXValidationHMACFailed
	ErrorNAXKeyDerivationFailed
	ErrorNAXInconvertibleToNCA
	ErrorBadNAXFilePath
	ErrorMissingSDSeed
	ErrorMissingSDKEKSource
	ErrorMissingAESKEKGenerationSource
	ErrorMissingAESKeyGenerationSource
	ErrorMissingSDSaveKeySource
	ErrorMissingSDNCAKeySource
	ErrorNSPMissingProgramNCA
	ErrorBadBKTRHeader
	ErrorBKTRSubsectionNotAfterRelocation
	ErrorBKTRSubsectionNotAtEnd
	ErrorBadRelocationBlock
	ErrorBadSubsectionBlock
	ErrorBadRelocationBuckets
	ErrorBadSubsectionBuckets
	ErrorMissingBKTRBaseRomFS
	ErrorNoPackedUpdate
	ErrorBadKIPHeader
	ErrorBLZDecompressionFailed
	ErrorBadINIHeader
	ErrorINITooManyKIPs

	numResultStatus
)

var resultMessages = map[ResultStatus]string{
	Success:                               "The operation completed successfully.",
	ErrorAlreadyLoaded:                    "The loader requested to load is already loaded.",
	ErrorNotImplemented:                   "The operation is not implemented.",
	ErrorNotInitialized:                   "The loader is not initialized properly.",
	ErrorBadNPDMHeader:                    "The NPDM file has a bad header.",
	ErrorBadACIDHeader:                    "The NPDM has a bad ACID header.",
	ErrorBadACIHeader:                     "The NPDM has a bad ACI header.",
	ErrorBadFileAccessControl:             "The NPDM file has a bad file access control.",
	ErrorBadFileAccessHeader:              "The NPDM has a bad file access header.",
	ErrorBadKernelCapabilityDescriptors:   "The NPDM has bad kernel capability descriptors.",
	ErrorBadPFSHeader:                     "The PFS/HFS partition has a bad header.",
	ErrorIncorrectPFSFileSize:             "The PFS/HFS partition has incorrect size as determined by the header.",
	ErrorBadNCAHeader:                     "The NCA file has a bad header.",
	ErrorMissingProductionKeyFile:         "The general keyfile could not be found.",
	ErrorMissingHeaderKey:                 "The NCA Header key could not be found.",
	ErrorIncorrectHeaderKey:               "The NCA Header key is incorrect or the header is invalid.",
	ErrorNCA2:                             "Support for NCA2-type NCAs is not implemented.",
	ErrorNCA0:                             "Support for NCA0-type NCAs is not implemented.",
	ErrorMissingTitlekey:                  "The titlekey for this Rights ID could not be found.",
	ErrorMissingTitlekek:                  "The titlekek for this crypto revision could not be found.",
	ErrorInvalidRightsID:                  "The Rights ID in the header is invalid.",
	ErrorMissingKeyAreaKey:                "The key area key for this application type and crypto revision could not be found.",
	ErrorIncorrectKeyAreaKey:              "The key area key is incorrect or the section header is invalid.",
	ErrorIncorrectTitlekeyOrTitlekek:      "The titlekey and/or titlekek is incorrect or the section header is invalid.",
	ErrorXCIMissingProgramNCA:             "The XCI file is missing a Program-type NCA.",
	ErrorNCANotProgram:                    "The NCA file is not an application.",
	ErrorNoExeFS:                          "The ExeFS partition could not be found.",
	ErrorBadXCIHeader:                     "The XCI file has a bad header.",
	ErrorXCIMissingPartition:              "The XCI file is missing a partition.",
	ErrorNullFile:                         "The file could not be found or does not exist.",
	ErrorMissingNPDM:                      "The game is missing a program metadata file (main.npdm).",
	Error32BitISA:                         "The game uses the currently-unimplemented 32-bit architecture.",
	ErrorUnableToParseKernelMetadata:      "Unable to completely parse the kernel metadata when loading the emulated process.",
	ErrorNoRomFS:                          "The RomFS could not be found.",
	ErrorIncorrectELFFileSize:             "The ELF file has incorrect size as determined by the header.",
	ErrorLoadingNRO:                       "There was a general error loading the NRO into emulated memory.",
	ErrorLoadingNSO:                       "There was a general error loading the NSO into emulated memory.",
	ErrorNoIcon:                           "There is no icon available.",
	ErrorNoControl:                        "There is no control data available.",
	ErrorBadNAXHeader:                     "The NAX file has a bad header.",
	ErrorIncorrectNAXFileSize:             "The NAX file has incorrect size as determined by the header.",
	ErrorNAXKeyHMACFailed:                 "The HMAC to generated the NAX decryption keys failed.",
	ErrorNAXValidationHMACFailed:          "The HMAC to validate the NAX decryption keys failed.",
	ErrorNAXKeyDerivationFailed:           "The NAX key derivation failed.",
	ErrorNAXInconvertibleToNCA:            "The NAX file cannot be interpreted as an NCA file.",
	ErrorBadNAXFilePath:                   "The NAX file has an incorrect path.",
	ErrorMissingSDSeed:                    "The SD seed could not be found or derived.",
	ErrorMissingSDKEKSource:               "The SD KEK Source could not be found.",
	ErrorMissingAESKEKGenerationSource:    "The AES KEK Generation Source could not be found.",
	ErrorMissingAESKeyGenerationSource:    "The AES Key Generation Source could not be found.",
	ErrorMissingSDSaveKeySource:           "The SD Save Key Source could not be found.",
	ErrorMissingSDNCAKeySource:            "The SD NCA Key Source could not be found.",
	ErrorNSPMissingProgramNCA:             "The NSP file is missing a Program-type NCA.",
	ErrorBadBKTRHeader:                    "The BKTR-type NCA has a bad BKTR header.",
	ErrorBKTRSubsectionNotAfterRelocation: "The BKTR Subsection entry is not located immediately after the Relocation entry.",
	ErrorBKTRSubsectionNotAtEnd:           "The BKTR Subsection entry is not at the end of the media block.",
	ErrorBadRelocationBlock:               "The BKTR-type NCA has a bad Relocation block.",
	ErrorBadSubsectionBlock:               "The BKTR-type NCA has a bad Subsection block.",
	ErrorBadRelocationBuckets:             "The BKTR-type NCA has a bad Relocation bucket.",
	ErrorBadSubsectionBuckets:             "The BKTR-type NCA has a bad Subsection bucket.",
	ErrorMissingBKTRBaseRomFS:             "The BKTR-type NCA is missing the base RomFS.",
	ErrorNoPackedUpdate:                   "The NSP or XCI does not contain an update in addition to the base game.",
	ErrorBadKIPHeader:                     "The KIP file has a bad header.",
	ErrorBLZDecompressionFailed:           "The KIP BLZ decompression of the section failed unexpectedly.",
	ErrorBadINIHeader:                     "The INI file has a bad header.",
	ErrorINITooManyKIPs:                   "The INI file contains more than the maximum allowable number of KIP files.",
}

func init() {
	checkMessageTable("en", resultMessages)
}

// checkMessageTable panics unless table has exactly one entry per status.
func checkMessageTable(name string, table map[ResultStatus]string) {
	if len(table) != int(numResultStatus) {
		panic(fmt.Sprintf("models: %s result table has %d entries, want %d", name, len(table), numResultStatus))
	}
	for s := Success; s < numResultStatus; s++ {
		if table[s] == "" {
			panic(fmt.Sprintf("models: %s result table is missing status %d", name, s))
		}
	}
}

// Valid reports whether s is a declared status.
func (s ResultStatus) Valid() bool {
	return s < numResultStatus
}

// Message returns the diagnostic text for s. An undeclared status is a
// programming error and panics.
func (s ResultStatus) Message() string {
	if !s.Valid() {
		panic(fmt.Sprintf("models: invalid ResultStatus %d", uint16(s)))
	}
	return resultMessages[s]
}

func (s ResultStatus) String() string {
	return s.Message()
}

// NumResultStatus returns the number of declared statuses.
func NumResultStatus() int {
	return int(numResultStatus)
}
