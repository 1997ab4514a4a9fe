// Package loader identifies executable and container files and constructs
// the loader that maps them into a process.
package loader

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"

	"github.com/lunixbochs/nxcorn/go/keys"
	"github.com/lunixbochs/nxcorn/go/models"
	"github.com/lunixbochs/nxcorn/go/vfs"
)

// Identifier recognizes one file format by content. It returns its own
// FileType on a match and FileTypeError otherwise, and never mutates f.
type Identifier interface {
	Identify(f vfs.File) models.FileType
}

// IdentifierFunc adapts a plain function to Identifier.
type IdentifierFunc func(f vfs.File) models.FileType

func (fn IdentifierFunc) Identify(f vfs.File) models.FileType { return fn(f) }

// Options are shared by every loader a Registry constructs.
type Options struct {
	Keys *keys.Manager
	// Language selects control-data titles and icons.
	Language language.Tag
}

// Format binds a file type to its identifier and loader constructor.
type Format struct {
	Type       models.FileType
	Identifier Identifier
	New        func(f vfs.File, opts *Options) models.Loader
}

// Mismatch is a (filename, content type) pair that is expected to disagree
// with the filename heuristic.
type Mismatch struct {
	Name    string
	Content models.FileType
}

// Registry dispatches files to loaders. Formats are tried in order and the
// first match wins.
type Registry struct {
	Formats []Format
	// Exempt pairs do not log a type mismatch.
	Exempt  []Mismatch
	Options Options
}

// DefaultMismatches holds the SD card layout, where a NAX-wrapped archive is
// stored as a file named "00".
var DefaultMismatches = []Mismatch{{Name: "00", Content: models.FileTypeNAX}}

// NewRegistry returns a registry of every built-in format in dispatch order.
func NewRegistry(opts Options) *Registry {
	return &Registry{
		Formats: []Format{
			{models.FileTypeDeconstructedRomDirectory, IdentifierFunc(IdentifyDirectory), NewDirectoryLoader},
			{models.FileTypeELF, IdentifierFunc(IdentifyELF), NewElfLoader},
			{models.FileTypeNSO, IdentifierFunc(IdentifyNSO), NewNsoLoader},
			{models.FileTypeNRO, IdentifierFunc(IdentifyNRO), NewNroLoader},
			{models.FileTypeNCA, NCAIdentifier{Keys: opts.Keys}, NewNcaLoader},
			{models.FileTypeXCI, IdentifierFunc(IdentifyXCI), NewXciLoader},
			{models.FileTypeNAX, IdentifierFunc(IdentifyNAX), NewNaxLoader},
			{models.FileTypeNSP, NSPIdentifier{Keys: opts.Keys}, NewNspLoader},
			{models.FileTypeKIP, IdentifierFunc(IdentifyKIP), NewKipLoader},
		},
		Exempt:  append([]Mismatch(nil), DefaultMismatches...),
		Options: opts,
	}
}

var defaultRegistry = NewRegistry(Options{Language: language.AmericanEnglish})

// DefaultRegistry returns the registry used by the package-level functions.
func DefaultRegistry() *Registry { return defaultRegistry }

// identify runs one identifier, treating a panic as a miss.
func identify(id Identifier, f vfs.File) (t models.FileType) {
	defer func() {
		if r := recover(); r != nil {
			log.Debug().Str("file", f.Name()).Str("panic", fmt.Sprint(r)).Msg("identifier panicked")
			t = models.FileTypeError
		}
	}()
	return id.Identify(f)
}

// IdentifyFile returns the type of the first format that recognizes f, or
// FileTypeUnknown.
func (r *Registry) IdentifyFile(f vfs.File) models.FileType {
	if f == nil {
		return models.FileTypeUnknown
	}
	for _, format := range r.Formats {
		if t := identify(format.Identifier, f); t != models.FileTypeError {
			return t
		}
	}
	return models.FileTypeUnknown
}

func (r *Registry) exempt(name string, content models.FileType) bool {
	for _, m := range r.Exempt {
		if m.Name == name && m.Content == content {
			return true
		}
	}
	return false
}

// GetLoader identifies f and constructs its loader. Content identification
// wins over the filename; the filename is used only when content is
// unrecognized. It returns nil when no loader applies.
func (r *Registry) GetLoader(f vfs.File) models.Loader {
	if f == nil {
		return nil
	}
	t := r.IdentifyFile(f)
	guess := GuessFromFilename(f.Name())

	if t != guess && !r.exempt(f.Name(), t) {
		log.Warn().
			Str("file", f.Name()).
			Stringer("content", t).
			Stringer("filename", guess).
			Msg("file type differs from its extension")
	}
	if t == models.FileTypeUnknown {
		t = guess
	}
	log.Debug().Str("file", f.Name()).Stringer("type", t).Msg("loading file")

	for _, format := range r.Formats {
		if format.Type == t && format.New != nil {
			return format.New(f, &r.Options)
		}
	}
	return nil
}

var extensionTypes = map[string]models.FileType{
	"elf": models.FileTypeELF,
	"nro": models.FileTypeNRO,
	"nso": models.FileTypeNSO,
	"nca": models.FileTypeNCA,
	"xci": models.FileTypeXCI,
	"nsp": models.FileTypeNSP,
	"kip": models.FileTypeKIP,
}

// GuessFromFilename infers a type from the file name alone.
func GuessFromFilename(name string) models.FileType {
	switch name {
	case "main":
		return models.FileTypeDeconstructedRomDirectory
	case "00":
		return models.FileTypeNCA
	}
	if t, ok := extensionTypes[vfs.Extension(name)]; ok {
		return t
	}
	return models.FileTypeUnknown
}

// GetFileTypeString names a file type for display.
func GetFileTypeString(t models.FileType) string {
	return t.String()
}

// IdentifyFile and GetLoader use the default registry.
func IdentifyFile(f vfs.File) models.FileType { return defaultRegistry.IdentifyFile(f) }
func GetLoader(f vfs.File) models.Loader      { return defaultRegistry.GetLoader(f) }
