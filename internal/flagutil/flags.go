// Package flagutil provides flag.Value implementations shared by cmd/dtree's
// subcommands, adapted from vegeta's internal/flagutil. attack/command.go
// registers the same File and StringList types for its -targets/-output and
// -root-certs flags; the HTTP-specific Header and IP types have no analogue
// in this domain and were dropped (see DESIGN.md's "Dropped teacher
// dependencies" section).
package flagutil

import (
	"os"
	"strings"
)

// A File implements the flag.Value interface for an *os.File, letting a flag
// accept "stdin"/"stdout" as well as a real path.
type File struct {
	*os.File
	Mode  os.FileMode
	Flags int
}

// Set parses the given value as filename to open with the defined Mode and
// Flags.
func (f *File) Set(value string) (err error) {
	var file *os.File
	switch value {
	case "stdin":
		file = os.Stdin
	case "stdout":
		file = os.Stdout
	default:
		file, err = os.OpenFile(value, f.Flags, f.Mode)
	}
	if err != nil {
		return err
	}
	*(f.File) = *file
	return nil
}

// String returns the filename of the file.
func (f File) String() string {
	if f.File == nil {
		return ""
	}
	return f.Name()
}

// StringList implements the flag.Value interface for a comma separated list
// of strings, used for -candidates and -reported-winners.
type StringList struct{ List *[]string }

// Set parses the given value as a comma separated list of values and sets it.
func (f *StringList) Set(value string) error {
	*(f.List) = strings.Split(value, ",")
	return nil
}

// String implements the fmt.Stringer interface.
func (f StringList) String() string {
	if f.List == nil {
		return ""
	}
	return strings.Join(*f.List, ",")
}
