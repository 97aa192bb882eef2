package standards

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/fyrsmithlabs/namingd/internal/catalog"
)

var abbrPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]*$`)

const (
	maxMorphemeName  = 128
	maxAbbr          = 64
	maxCompositeName = 256
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", catalog.ErrValidation, fmt.Sprintf(format, args...))
}

// ValidateMorpheme checks the fields a caller supplies.
func ValidateMorpheme(m *catalog.Morpheme) error {
	name := strings.TrimSpace(m.Name)
	abbr := strings.TrimSpace(m.Abbr)
	var errs []error
	switch {
	case name == "":
		errs = append(errs, invalid("name is required"))
	case utf8.RuneCountInString(name) > maxMorphemeName:
		errs = append(errs, invalid("name exceeds %d characters", maxMorphemeName))
	case strings.ContainsFunc(name, isSpace):
		errs = append(errs, invalid("name %q must be a single word", name))
	}
	switch {
	case abbr == "":
		errs = append(errs, invalid("abbr is required"))
	case len(abbr) > maxAbbr:
		errs = append(errs, invalid("abbr exceeds %d characters", maxAbbr))
	case !abbrPattern.MatchString(abbr):
		errs = append(errs, invalid("abbr %q must start with a letter and contain only letters and digits", abbr))
	}
	return errors.Join(errs...)
}

// ValidateComposite checks the fields a caller supplies. Whether the
// composition ids exist is checked against the catalog separately.
func ValidateComposite(c *catalog.CompositeEntity) error {
	name := strings.TrimSpace(c.Name)
	enName := strings.TrimSpace(c.EnName)
	var errs []error
	switch {
	case name == "":
		errs = append(errs, invalid("name is required"))
	case utf8.RuneCountInString(name) > maxCompositeName:
		errs = append(errs, invalid("name exceeds %d characters", maxCompositeName))
	}
	switch {
	case enName == "":
		errs = append(errs, invalid("en_name is required"))
	case len(enName) > maxCompositeName:
		errs = append(errs, invalid("en_name exceeds %d characters", maxCompositeName))
	}
	for _, id := range c.CompositionIDs {
		if id <= 0 {
			errs = append(errs, invalid("composition id %d is not positive", id))
			break
		}
	}
	return errors.Join(errs...)
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '　'
}
