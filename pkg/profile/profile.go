// Package profile stores confirmed dump settings, a layout plus a codec
// parameter set, in small text files so they can be reused by name.
package profile

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/OpenTraceLab/OpenTraceNAND/pkg/codec"
	"github.com/OpenTraceLab/OpenTraceNAND/pkg/nand"
)

// ErrNotFound is returned by Lookup for unknown names.
var ErrNotFound = errors.New("profile: not found")

// Profile is a named layout and parameter set.
type Profile struct {
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Layout      nand.Layout  `json:"layout"`
	Params      codec.Params `json:"params"`
	Offset      int64        `json:"offset"`
	Source      string       `json:"source,omitempty"`
}

func (p *Profile) String() string {
	return fmt.Sprintf("%s: %s %s offset=%d", p.Name, p.Layout, p.Params, p.Offset)
}

// Validate checks the layout and its pairing with the parameters.
func (p *Profile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("profile: empty name")
	}
	if err := p.Layout.Validate(); err != nil {
		return fmt.Errorf("profile %q: %w", p.Name, err)
	}
	if err := p.Params.CheckLayout(p.Layout); err != nil {
		return fmt.Errorf("profile %q: %w", p.Name, err)
	}
	if p.Offset < 0 {
		return fmt.Errorf("profile %q: negative offset %d", p.Name, p.Offset)
	}
	return nil
}

var required = []string{"page", "spare", "sector", "chunk", "ecc_offset", "ecc_length", "poly", "t"}

// Profiles converts every declaration of f and validates it.
func (f *File) Profiles() ([]*Profile, error) {
	out := make([]*Profile, 0, len(f.Decls))
	for _, d := range f.Decls {
		p, err := d.Profile()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Profile converts one declaration.
func (d *Decl) Profile() (*Profile, error) {
	p := &Profile{Name: d.Name, Source: d.Pos.Filename}
	seen := map[string]bool{}
	var m int
	for _, f := range d.Fields {
		if seen[f.Key] {
			return nil, fmt.Errorf("profile %q: %s: duplicate field %s", d.Name, f.Pos, f.Key)
		}
		seen[f.Key] = true
		if err := p.set(f, &m); err != nil {
			return nil, fmt.Errorf("profile %q: %s: %w", d.Name, f.Pos, err)
		}
	}
	for _, k := range required {
		if !seen[k] {
			return nil, fmt.Errorf("profile %q: missing field %s", d.Name, k)
		}
	}

	deg, err := codec.DegreeFromPoly(p.Params.Poly)
	if err != nil {
		return nil, fmt.Errorf("profile %q: %w", d.Name, err)
	}
	if m != 0 && m != deg {
		return nil, fmt.Errorf("profile %q: m = %d but poly 0x%X has degree %d", d.Name, m, p.Params.Poly, deg)
	}
	p.Params.M = deg
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Profile) set(f *Field, m *int) error {
	v := f.Value
	switch f.Key {
	case "description":
		s, err := v.str()
		p.Description = s
		return err
	case "transform":
		s, err := v.str()
		if err != nil {
			return err
		}
		p.Params.Transform, err = nand.ParseTransform(s)
		return err
	case "swap":
		b, err := v.boolean()
		p.Params.SwapBits = b
		return err
	}

	n, err := v.number()
	if err != nil {
		return fmt.Errorf("%s: %w", f.Key, err)
	}
	switch f.Key {
	case "page":
		p.Layout.PageSize = int(n)
	case "spare":
		p.Layout.SpareSize = int(n)
	case "sector":
		p.Layout.SectorSize = int(n)
	case "chunk":
		p.Layout.ChunkSize = int(n)
	case "ecc_offset":
		p.Layout.ECCOffset = int(n)
	case "ecc_length":
		p.Layout.ECCLength = int(n)
	case "poly":
		if n <= 0 || n > 0xFFFFFFFF {
			return fmt.Errorf("poly out of range: %d", n)
		}
		p.Params.Poly = uint32(n)
	case "m":
		*m = int(n)
	case "t":
		p.Params.T = int(n)
	case "extra":
		p.Params.ExtraBytes = int(n)
	case "offset":
		p.Offset = n
	default:
		return fmt.Errorf("unknown field %s", f.Key)
	}
	return nil
}

func (v *Value) number() (int64, error) {
	switch {
	case v.Hex != nil:
		return strconv.ParseInt(strings.TrimPrefix(strings.ToLower(*v.Hex), "0x"), 16, 64)
	case v.Integer != nil:
		return strconv.ParseInt(*v.Integer, 10, 64)
	}
	return 0, fmt.Errorf("want number, got %s", v.kind())
}

func (v *Value) str() (string, error) {
	if v.String == nil {
		return "", fmt.Errorf("want string, got %s", v.kind())
	}
	return *v.String, nil
}

func (v *Value) boolean() (bool, error) {
	if v.Bool == nil {
		return false, fmt.Errorf("want bool, got %s", v.kind())
	}
	return *v.Bool == "true", nil
}

// Format renders p in the profile file syntax.
func Format(p *Profile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "profile %q {\n", p.Name)
	if p.Description != "" {
		fmt.Fprintf(&b, "  description = %q\n", p.Description)
	}
	l := p.Layout
	fmt.Fprintf(&b, "  page = %d\n  spare = %d\n  sector = %d\n  chunk = %d\n", l.PageSize, l.SpareSize, l.SectorSize, l.ChunkSize)
	fmt.Fprintf(&b, "  ecc_offset = %d\n  ecc_length = %d\n", l.ECCOffset, l.ECCLength)
	fmt.Fprintf(&b, "  poly = 0x%X\n  t = %d\n", p.Params.Poly, p.Params.T)
	fmt.Fprintf(&b, "  transform = %q\n  extra = %d\n  swap = %t\n", p.Params.Transform.String(), p.Params.ExtraBytes, p.Params.SwapBits)
	if p.Offset != 0 {
		fmt.Fprintf(&b, "  offset = %d\n", p.Offset)
	}
	b.WriteString("}\n")
	return b.String()
}

func sortedNames(m map[string]*Profile) []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
