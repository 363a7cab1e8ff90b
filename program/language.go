package program

import (
	"slices"

	"github.com/pkg/errors"

	"memmap/addr"
)

// ErrUnknownLanguage is returned for language ids that are not defined.
var ErrUnknownLanguage = errors.New("unknown language")

type spaceDef struct {
	name      string
	byteWidth int
}

// Language describes the processor a program is written for, as far as
// address spaces are concerned. The first space is the default one.
type Language struct {
	ID          string
	Description string
	spaces      []spaceDef
}

var languages = []*Language{
	{
		ID:          "toy",
		Description: "Toy 32-bit processor",
		spaces:      []spaceDef{{"ram", 4}},
	},
	{
		ID:          "8051",
		Description: "Intel 8051 microcontroller",
		spaces:      []spaceDef{{"CODE", 2}, {"INTMEM", 1}, {"EXTMEM", 2}},
	},
	{
		ID:          "6502",
		Description: "MOS 6502",
		spaces:      []spaceDef{{"ram", 2}},
	},
	{
		ID:          "x86-64",
		Description: "x86 64-bit",
		spaces:      []spaceDef{{"ram", 8}},
	},
}

// LanguageByID returns the language with the given id.
func LanguageByID(id string) (*Language, error) {
	for _, l := range languages {
		if l.ID == id {
			return l, nil
		}
	}
	return nil, errors.Wrapf(ErrUnknownLanguage, "%q", id)
}

// LanguageIDs returns the ids of all known languages.
func LanguageIDs() []string {
	ids := make([]string, len(languages))
	for i, l := range languages {
		ids[i] = l.ID
	}
	slices.Sort(ids)
	return ids
}

func (l *Language) newFactory() (*addr.Factory, error) {
	f, err := addr.NewFactory()
	if err != nil {
		return nil, err
	}
	for _, sd := range l.spaces {
		if _, err := f.CreateSpace(sd.name, sd.byteWidth, 0, maxOffset(sd.byteWidth)); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func maxOffset(byteWidth int) uint64 {
	return ^uint64(0) >> (64 - 8*uint(byteWidth))
}
