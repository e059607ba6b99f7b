// metadata.go implements extraction of page variables.
//
// A page sets a variable with [{SET name=value}] or [{SET name='value'}].
// The caching page store uses Parser to fill in attributes of pages that
// were loaded without them.

package markup

import (
	"regexp"
	"strings"

	"github.com/jpl-au/wikid/internal/provider"
	"github.com/jpl-au/wikid/internal/validate"
)

var setDirective = regexp.MustCompile(`\[\{\s*SET\s+([A-Za-z0-9_.\-]+)\s*=\s*(?:'([^']*)'|([^}]*?))\s*\}\]`)

// Variables returns the variables set in text. A later SET of the same name
// wins.
func Variables(text string) map[string]string {
	vars := make(map[string]string)
	for _, m := range setDirective.FindAllStringSubmatch(text, -1) {
		v := m[2]
		if v == "" {
			v = strings.TrimSpace(m[3])
		}
		vars[m[1]] = v
	}
	return vars
}

// Parser implements provider.MetadataParser.
type Parser struct {
	Limits validate.Limits
}

var _ provider.MetadataParser = (*Parser)(nil)

// NewParser returns a parser enforcing l on the variables it extracts.
func NewParser(l validate.Limits) *Parser {
	return &Parser{Limits: l}
}

// ParseMetadata copies the variables set in text into p.Attributes. If the
// variables break the property limits nothing is copied.
func (ps *Parser) ParseMetadata(p *provider.Page, text string) error {
	vars := Variables(text)
	if err := validate.Properties(vars, ps.Limits); err != nil {
		return err
	}
	for k, v := range vars {
		p.SetAttribute(k, v)
	}
	return nil
}
