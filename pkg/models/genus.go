package models

import "fmt"

// Genera lists the sixteen genus (SP0) aliases in index order; index 0 is unused.
var Genera = []string{"", "AC", "AT", "B", "C", "D", "E", "F", "H", "L", "MB", "PA", "PL", "PW", "PY", "S", "Y"}

// Hardwoods are the broadleaf genera.
var Hardwoods = map[string]bool{"AC": true, "AT": true, "D": true, "E": true, "MB": true}

// GenusIndex returns the 1-based index of a genus alias.
func GenusIndex(alias string) (int, error) {
	for i := 1; i < len(Genera); i++ {
		if Genera[i] == alias {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unrecognized genus %q", alias)
}
