package loader

import (
	"bytes"
	"debug/elf"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/lunixbochs/nxcorn/go/models"
	"github.com/lunixbochs/nxcorn/go/vfs"
)

var elfMagic = []byte{0x7f, 0x45, 0x4c, 0x46}

// machines the console's CPU can run
var elfMachines = map[elf.Machine]bool{
	elf.EM_ARM:     true,
	elf.EM_AARCH64: true,
}

// IdentifyELF matches ARM and AArch64 ELF files by their e_ident and
// e_machine fields only.
func IdentifyELF(f vfs.File) models.FileType {
	if f == nil {
		return models.FileTypeError
	}
	hdr, err := vfs.ReadBytes(f, 0, 20)
	if err != nil || !bytes.Equal(hdr[:4], elfMagic) {
		return models.FileTypeError
	}
	var order binary.ByteOrder = binary.LittleEndian
	if elf.Data(hdr[elf.EI_DATA]) == elf.ELFDATA2MSB {
		order = binary.BigEndian
	}
	if elfMachines[elf.Machine(order.Uint16(hdr[18:]))] {
		return models.FileTypeELF
	}
	return models.FileTypeError
}

// ReadELF builds a module image from the PT_LOAD segments of an ELF. The
// image is rebased so the lowest segment starts at zero.
func ReadELF(f vfs.File) (*models.CodeSet, bool, error) {
	if f == nil {
		return nil, false, models.StatusErr(models.ErrorNullFile, nil)
	}
	file, err := elf.NewFile(f)
	if err != nil {
		return nil, false, models.StatusErr(models.ErrorIncorrectELFFileSize, err)
	}
	if !elfMachines[file.Machine] {
		return nil, false, models.StatusErr(models.ErrorIncorrectELFFileSize, errors.Errorf("unsupported machine %s", file.Machine))
	}
	is64 := file.Class == elf.ELFCLASS64

	var progs []*elf.Prog
	low := ^uint64(0)
	size := uint64(f.Size())
	for _, prog := range file.Progs {
		if prog.Type != elf.PT_LOAD || prog.Memsz == 0 {
			continue
		}
		if prog.Filesz > prog.Memsz || prog.Memsz > maxSegmentSize || prog.Off > size || prog.Filesz > size-prog.Off {
			return nil, is64, models.StatusErr(models.ErrorIncorrectELFFileSize, errors.Errorf("segment at %#x exceeds file", prog.Vaddr))
		}
		progs = append(progs, prog)
		if prog.Vaddr < low {
			low = prog.Vaddr
		}
	}
	if len(progs) == 0 {
		return nil, is64, models.StatusErr(models.ErrorIncorrectELFFileSize, errors.New("no loadable segments"))
	}
	low &^= models.PageSize - 1
	for _, prog := range progs {
		if err := checkSpan(progName(prog), prog.Vaddr-low, prog.Memsz); err != nil {
			return nil, is64, models.StatusErr(models.ErrorIncorrectELFFileSize, err)
		}
	}

	var img image
	for _, prog := range progs {
		data := make([]byte, prog.Memsz)
		// bss-only segments have nothing in the file
		if prog.Filesz > 0 {
			if _, err := prog.ReadAt(data[:prog.Filesz], 0); err != nil {
				return nil, is64, models.StatusErr(models.ErrorIncorrectELFFileSize, err)
			}
		}
		img.place(progName(prog), prog.Vaddr-low, data, progProt(prog.Flags))
	}
	cs := img.codeSet(f.Name())
	cs.Entry = file.Entry - low
	return cs, is64, nil
}

func progName(prog *elf.Prog) string {
	switch {
	case prog.Flags&elf.PF_X != 0:
		return ".text"
	case prog.Flags&elf.PF_W != 0:
		return ".data"
	}
	return ".rodata"
}

func progProt(flags elf.ProgFlag) int {
	var prot int
	if flags&elf.PF_R != 0 {
		prot |= models.PROT_READ
	}
	if flags&elf.PF_W != 0 {
		prot |= models.PROT_WRITE
	}
	if flags&elf.PF_X != 0 {
		prot |= models.PROT_EXEC
	}
	return prot
}

// ElfLoader loads a standalone ARM or AArch64 ELF as the only module.
type ElfLoader struct {
	LoaderBase
}

// NewElfLoader binds an ElfLoader to f. Nothing is read until Load.
func NewElfLoader(f vfs.File, opts *Options) models.Loader {
	return &ElfLoader{LoaderBase: LoaderBase{file: f}}
}

func (l *ElfLoader) FileType() models.FileType { return models.FileTypeELF }

func (l *ElfLoader) Load(p models.Process) models.ResultStatus {
	if l.loaded {
		return models.ErrorAlreadyLoaded
	}
	cs, is64, err := ReadELF(l.file)
	if err != nil {
		return l.finish(err, models.ErrorIncorrectELFFileSize)
	}
	meta := models.DefaultMetadata()
	if !is64 {
		meta.Is64Bit = false
		meta.AddressSpace = models.AddressSpace32Bit
	}
	return l.finish(loadExecutable(p, meta, cs), models.ErrorIncorrectELFFileSize)
}

func (l *ElfLoader) Is64Bit() (bool, models.ResultStatus) {
	if l.file == nil {
		return false, models.ErrorNullFile
	}
	file, err := elf.NewFile(l.file)
	if err != nil {
		return false, models.ErrorIncorrectELFFileSize
	}
	return file.Class == elf.ELFCLASS64, models.Success
}
