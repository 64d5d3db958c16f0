package rules

import (
	"errors"
	"fmt"
	"io"
	"os"

	"pault.ag/go/debian/control"
)

// stanza is the deb822 form of a rule:
//
//	Type: custom
//	Rule: remove
//	Selector: div.ad-unit
//	Status: active
//
// Pattern rules add Search-For and Replace-With; custom element rules may
// add a single-line Properties JSON object.
type stanza struct {
	Type        string `control:"Type"`
	Rule        string `control:"Rule"`
	Selector    string `control:"Selector"`
	Status      string `control:"Status"`
	SearchFor   string `control:"Search-For"`
	ReplaceWith string `control:"Replace-With"`
	Properties  string `control:"Properties"`
}

func (s stanza) rule() Rule {
	r := Rule{
		Type:     Type(s.Type),
		Rule:     s.Rule,
		Selector: s.Selector,
		Status:   Status(s.Status),
		Meta:     map[string]string{},
	}
	if s.SearchFor != "" {
		r.Meta[MetaSearchFor] = s.SearchFor
	}
	if s.ReplaceWith != "" {
		r.Meta[MetaReplaceWith] = s.ReplaceWith
	}
	if s.Properties != "" {
		r.Meta[MetaProperties] = s.Properties
	}
	r.Normalize()
	return r
}

func stanzaFor(r Rule) stanza {
	return stanza{
		Type:        string(r.Type),
		Rule:        r.Rule,
		Selector:    r.Selector,
		Status:      string(r.Status),
		SearchFor:   r.MetaValue(MetaSearchFor),
		ReplaceWith: r.MetaValue(MetaReplaceWith),
		Properties:  r.MetaValue(MetaProperties),
	}
}

// Read decodes deb822 rule stanzas. Every stanza is validated; the error
// names each rejected stanza by its 1-based position.
func Read(reader io.Reader) ([]Rule, error) {
	var stanzas []stanza
	if err := control.Unmarshal(&stanzas, reader); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	out := make([]Rule, 0, len(stanzas))
	var errs []error
	for i, s := range stanzas {
		r := s.rule()
		if err := r.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("stanza %d: %w", i+1, err))
			continue
		}
		out = append(out, r)
	}
	return out, errors.Join(errs...)
}

// ReadFile decodes a deb822 rules file.
func ReadFile(path string) ([]Rule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rules file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Read(f)
}

// Write encodes rules as deb822 stanzas separated by blank lines.
func Write(w io.Writer, rules []Rule) error {
	for i, r := range rules {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if err := control.Marshal(w, stanzaFor(r)); err != nil {
			return fmt.Errorf("encode rule %d: %w", r.ID, err)
		}
	}
	return nil
}
