package model

import (
	"golang.org/x/text/cases"
)

var foldCaser = cases.Fold()

// caseFold performs Unicode case folding (not a plain ASCII lowercase),
// grounded on the golang.org/x/text dependency the teacher already carries.
func caseFold(s string) string {
	return foldCaser.String(s)
}
