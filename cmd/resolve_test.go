package cmd

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"github.com/flagged-dev/flagged/pkg/filter"
)

func TestReadLines(t *testing.T) {
	got, err := readLines(strings.NewReader("  @raj \n\n\tkim\n"))
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"@raj", "kim"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("readLines = %q, want %q", got, want)
	}
}

func TestPrintVerdicts(t *testing.T) {
	var buf bytes.Buffer
	printVerdicts(&buf, []filter.Verdict{
		{Handle: "raj", Known: true, Country: "India", Flag: "🇮🇳", ShowFlag: true, Hide: true, HideMode: "blur", Label: "user is from India"},
		{Handle: "ghost", Known: true, Flag: "🌐"},
		{Handle: "new"},
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	for i, want := range [][]string{
		{"@raj", "🇮🇳", "India", "blur: user is from India"},
		{"@ghost", "-", "(none)", "show"},
		{"@new", "-", "(pending)", "show"},
	} {
		for _, field := range want {
			if !strings.Contains(lines[i+1], field) {
				t.Errorf("line %d = %q, missing %q", i+1, lines[i+1], field)
			}
		}
	}
}

func TestDash(t *testing.T) {
	if dash("") != "-" || dash("IN") != "IN" {
		t.Fatalf("dash broken")
	}
}
