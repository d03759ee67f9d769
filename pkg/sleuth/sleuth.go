// Package sleuth parses Sleuth-format coordinate files: plain-text lists of
// studies and their reported activation foci, the standard interchange format
// for coordinate-based meta-analysis.
//
// The format is block-oriented. Blank lines separate studies. Within a block,
// lines starting with "//" carry metadata: "// Reference=MNI" declares the
// coordinate space (usually once at the top of the file), "// Subjects=N"
// gives the study sample size, and any other comment line names the study or
// one of its contrasts. Remaining lines hold one focus per line as three
// whitespace-separated mm coordinates.
package sleuth

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Study is one experiment contributing foci to a meta-analysis.
type Study struct {
	// Name is the study label from the block's comment lines.
	Name string

	// Subjects is the sample size from the "// Subjects=N" line.
	Subjects int

	// Foci are the reported activation coordinates in mm.
	Foci [][3]float64
}

// Dataset is a parsed coordinate file. It is read-only after parsing.
type Dataset struct {
	// Space is the declared reference space, e.g. "MNI" or "Talairach".
	Space string

	// Studies holds every study block in file order.
	Studies []Study
}

// TotalFoci returns the number of foci across all studies.
func (d *Dataset) TotalFoci() int {
	n := 0
	for _, s := range d.Studies {
		n += len(s.Foci)
	}
	return n
}

// ParseError reports a malformed coordinate file with its location.
type ParseError struct {
	File string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
}

// ParseFile reads and parses a Sleuth coordinate file from disk.
func ParseFile(path string) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open coordinate file: %w", err)
	}
	defer file.Close()

	return Parse(file, path)
}

// Parse parses Sleuth-format text from r. The name is used in error messages
// only, typically the source file path.
func Parse(r io.Reader, name string) (*Dataset, error) {
	ds := &Dataset{}

	var current *Study
	flush := func() {
		if current != nil && (len(current.Foci) > 0 || current.Name != "") {
			ds.Studies = append(ds.Studies, *current)
		}
		current = nil
	}

	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Blank lines end the current study block.
		if line == "" {
			flush()
			continue
		}

		if strings.HasPrefix(line, "//") {
			meta := strings.TrimSpace(strings.TrimPrefix(line, "//"))
			switch {
			case strings.HasPrefix(meta, "Reference="):
				ds.Space = strings.TrimSpace(strings.TrimPrefix(meta, "Reference="))
			case strings.HasPrefix(meta, "Subjects="):
				n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(meta, "Subjects=")))
				if err != nil || n < 1 {
					return nil, &ParseError{File: name, Line: lineNum,
						Msg: fmt.Sprintf("invalid subject count %q", meta)}
				}
				if current == nil {
					current = &Study{}
				}
				current.Subjects = n
			default:
				if current == nil {
					current = &Study{}
				}
				// Multiple comment lines in one block list the study's
				// contrasts; the first one names the study.
				if current.Name == "" {
					current.Name = meta
				}
			}
			continue
		}

		// Coordinate line.
		if current == nil {
			current = &Study{}
		}
		if current.Subjects == 0 {
			return nil, &ParseError{File: name, Line: lineNum,
				Msg: "coordinates before a Subjects= line"}
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, &ParseError{File: name, Line: lineNum,
				Msg: fmt.Sprintf("expected 3 coordinates, got %d fields", len(fields))}
		}
		var focus [3]float64
		for i, f := range fields {
			val, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, &ParseError{File: name, Line: lineNum,
					Msg: fmt.Sprintf("invalid coordinate %q", f)}
			}
			focus[i] = val
		}
		current.Foci = append(current.Foci, focus)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read coordinate file: %w", err)
	}
	flush()

	if len(ds.Studies) == 0 {
		return nil, &ParseError{File: name, Line: lineNum, Msg: "no studies found"}
	}

	return ds, nil
}
