package state

import (
	"sort"

	"github.com/blacktop/go-dwarf"
)

// N_* stab type bytes this linker synthesizes. Subset of the classic a.out
// stab vocabulary that ld64 still emits into LINKEDIT for source-level
// debuggers (spec.md §4.7's "Function starts, data-in-code, ... stabs").
const (
	stabSO  uint8 = 0x64 // compilation unit path
	stabOSO uint8 = 0x66 // object file path + mtime
	stabFUN uint8 = 0x24 // function
	stabSOL uint8 = 0x84 // included source file
)

// BuildStabsFromDWARF walks a RelocatableFile's DWARF compile units (as
// decoded by the go-dwarf parser the file-parsing collaborator hands us)
// and emits, for each compile unit, an SO stab for its compilation
// directory, an SO stab for its source file and an OSO stab for objPath;
// after all compile units it emits one FUN stab per live function-symbol
// atom supplied by funcAddrs (name -> final address), sorted by name.
func BuildStabsFromDWARF(d *dwarf.Data, objPath string, objMtime uint64, funcAddrs map[string]uint64) ([]Stab, error) {
	if d == nil {
		return nil, nil
	}
	var stabs []Stab
	r := d.Reader()
	for {
		entry, err := r.Next()
		if err != nil {
			return stabs, err
		}
		if entry == nil {
			break
		}
		if entry.Tag != dwarf.TagCompileUnit {
			continue
		}
		name, _ := entry.Val(dwarf.AttrName).(string)
		compDir, _ := entry.Val(dwarf.AttrCompDir).(string)
		if name == "" {
			continue
		}
		stabs = append(stabs,
			Stab{Name: compDir, Type: stabSO},
			Stab{Name: name, Type: stabSO},
			Stab{Name: objPath, Type: stabOSO, Value: objMtime},
		)
	}
	names := make([]string, 0, len(funcAddrs))
	for n := range funcAddrs {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		stabs = append(stabs, Stab{Name: n, Type: stabFUN, Value: funcAddrs[n]})
	}
	return stabs, nil
}
