package snapshot

import (
	"regexp"

	"github.com/pmezard/go-difflib/difflib"
)

// Op is the kind of a diff part.
type Op string

const (
	OpEqual  Op = "equal"
	OpInsert Op = "insert"
	OpDelete Op = "delete"
)

// Part is a run of words with the same diff operation. Whitespace is kept
// so concatenating the equal and delete parts yields the original text.
type Part struct {
	Op   Op     `json:"op"`
	Text string `json:"text"`
}

var wordsAndSpace = regexp.MustCompile(`\s+|\S+`)

// Diff compares two texts word by word.
func Diff(original, revised string) []Part {
	a := wordsAndSpace.FindAllString(original, -1)
	b := wordsAndSpace.FindAllString(revised, -1)
	m := difflib.NewMatcherWithJunk(a, b, false, nil)

	var parts []Part
	add := func(op Op, words []string) {
		for _, w := range words {
			if n := len(parts); n > 0 && parts[n-1].Op == op {
				parts[n-1].Text += w
				continue
			}
			parts = append(parts, Part{Op: op, Text: w})
		}
	}
	for _, oc := range m.GetOpCodes() {
		switch oc.Tag {
		case 'e':
			add(OpEqual, a[oc.I1:oc.I2])
		case 'd':
			add(OpDelete, a[oc.I1:oc.I2])
		case 'i':
			add(OpInsert, b[oc.J1:oc.J2])
		case 'r':
			add(OpDelete, a[oc.I1:oc.I2])
			add(OpInsert, b[oc.J1:oc.J2])
		}
	}
	return parts
}

// Changed reports whether any part is an insertion or deletion.
func Changed(parts []Part) bool {
	for _, p := range parts {
		if p.Op != OpEqual {
			return true
		}
	}
	return false
}
