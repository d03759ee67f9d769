package sleuth

import (
	"errors"
	"strings"
	"testing"
)

const sampleFile = `// Reference=MNI
// Smith et al., 2010: Go > NoGo
// Subjects=14
-12	34	50
8	22	-6
40	-58	44

// Jones et al., 2012: Task > Rest
// Jones et al., 2012: Task > Baseline
// Subjects=21
0	-52	26
`

// TestParseSample parses a well-formed two-study file
func TestParseSample(t *testing.T) {
	ds, err := Parse(strings.NewReader(sampleFile), "sample.txt")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if ds.Space != "MNI" {
		t.Errorf("Expected MNI reference space, got %q", ds.Space)
	}
	if len(ds.Studies) != 2 {
		t.Fatalf("Expected 2 studies, got %d", len(ds.Studies))
	}

	first := ds.Studies[0]
	if first.Name != "Smith et al., 2010: Go > NoGo" {
		t.Errorf("Unexpected study name %q", first.Name)
	}
	if first.Subjects != 14 {
		t.Errorf("Expected 14 subjects, got %d", first.Subjects)
	}
	if len(first.Foci) != 3 {
		t.Fatalf("Expected 3 foci, got %d", len(first.Foci))
	}
	if first.Foci[0] != [3]float64{-12, 34, 50} {
		t.Errorf("Unexpected first focus %v", first.Foci[0])
	}

	second := ds.Studies[1]
	// Extra contrast comment lines do not start a new study
	if second.Name != "Jones et al., 2012: Task > Rest" {
		t.Errorf("Unexpected study name %q", second.Name)
	}
	if second.Subjects != 21 || len(second.Foci) != 1 {
		t.Errorf("Expected 21 subjects with 1 focus, got %d with %d",
			second.Subjects, len(second.Foci))
	}

	if ds.TotalFoci() != 4 {
		t.Errorf("Expected 4 foci in total, got %d", ds.TotalFoci())
	}
}

// TestParseErrors verifies that malformed input produces a located ParseError
func TestParseErrors(t *testing.T) {
	cases := []struct {
		name  string
		input string
		line  int
	}{
		{"coordinates before subjects", "// Study A\n-12 34 50\n", 2},
		{"wrong field count", "// Study A\n// Subjects=10\n-12 34\n", 3},
		{"non-numeric coordinate", "// Study A\n// Subjects=10\n-12 abc 50\n", 3},
		{"invalid subject count", "// Study A\n// Subjects=zero\n", 2},
		{"empty file", "", 0},
	}

	for _, tc := range cases {
		_, err := Parse(strings.NewReader(tc.input), "bad.txt")
		if err == nil {
			t.Errorf("%s: expected an error", tc.name)
			continue
		}
		var parseErr *ParseError
		if !errors.As(err, &parseErr) {
			t.Errorf("%s: expected a *ParseError, got %T", tc.name, err)
			continue
		}
		if parseErr.File != "bad.txt" {
			t.Errorf("%s: expected file bad.txt, got %q", tc.name, parseErr.File)
		}
		if tc.line > 0 && parseErr.Line != tc.line {
			t.Errorf("%s: expected error at line %d, got %d", tc.name, tc.line, parseErr.Line)
		}
	}
}

// TestParseWhitespaceVariants accepts spaces and tabs between coordinates
func TestParseWhitespaceVariants(t *testing.T) {
	input := "// Study\n// Subjects=8\n  -12.5   34  50.25 \n8\t22\t-6\n"
	ds, err := Parse(strings.NewReader(input), "ws.txt")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(ds.Studies) != 1 || len(ds.Studies[0].Foci) != 2 {
		t.Fatalf("Expected 1 study with 2 foci")
	}
	if ds.Studies[0].Foci[0] != [3]float64{-12.5, 34, 50.25} {
		t.Errorf("Fractional coordinates parsed incorrectly: %v", ds.Studies[0].Foci[0])
	}
}

// TestParseFileMissing surfaces the underlying open error
func TestParseFileMissing(t *testing.T) {
	if _, err := ParseFile("does-not-exist.txt"); err == nil {
		t.Errorf("Expected an error for a missing file")
	}
}
