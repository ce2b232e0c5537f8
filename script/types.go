package script

import (
	"strconv"
	"strings"

	"github.com/wippyai/consteval/errors"
	"github.com/wippyai/consteval/layout"
)

// typeRef is the Ref carried by every type a scenario spells. It answers
// needs_drop.
type typeRef struct {
	drop bool
}

var primitives = map[string]func() layout.Layout{
	"u8":    layout.U8,
	"u16":   layout.U16,
	"u32":   layout.U32,
	"u64":   layout.U64,
	"u128":  layout.U128,
	"i8":    layout.I8,
	"i16":   layout.I16,
	"i32":   layout.I32,
	"i64":   layout.I64,
	"i128":  layout.I128,
	"usize": layout.Usize,
	"isize": layout.Isize,
	"bool":  layout.Bool,
	"ptr":   layout.Pointer,
}

// dropOracle reports drop glue for types built by parseType.
var dropOracle = layout.DropFunc(func(t layout.Type) bool {
	ref, ok := t.Ref.(typeRef)
	return ok && ref.drop
})

// parseType parses a type spelling: a primitive, a declared name, a tuple
// "(T, U)" or an array "[T; N]".
func parseType(src string, named map[string]layout.Type) (layout.Type, error) {
	p := &typeParser{src: src, named: named}
	t, err := p.parse()
	if err != nil {
		return layout.Type{}, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return layout.Type{}, p.errorf("unexpected %q", p.src[p.pos:])
	}
	return t, nil
}

type typeParser struct {
	named map[string]layout.Type
	src   string
	pos   int
}

func (p *typeParser) errorf(format string, args ...any) error {
	return errors.New(errors.PhaseScript, errors.KindInvalidInput).
		TypeName(p.src).
		Detail(format, args...).
		Build()
}

func (p *typeParser) skipSpace() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func (p *typeParser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *typeParser) expect(c byte) error {
	if p.peek() != c {
		return p.errorf("expected %q at offset %d", c, p.pos)
	}
	p.pos++
	return nil
}

func (p *typeParser) word() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c != '_' && !('a' <= c && c <= 'z') && !('A' <= c && c <= 'Z') && !('0' <= c && c <= '9') {
			break
		}
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *typeParser) parse() (layout.Type, error) {
	switch p.peek() {
	case '(':
		return p.tuple()
	case '[':
		return p.array()
	}

	name := p.word()
	if name == "" {
		return layout.Type{}, p.errorf("expected a type at offset %d", p.pos)
	}
	if mk, ok := primitives[name]; ok {
		return layout.Type{Name: name, Layout: mk(), Ref: typeRef{}}, nil
	}
	if t, ok := p.named[name]; ok {
		return t, nil
	}
	return layout.Type{}, p.errorf("unknown type %q", name)
}

func (p *typeParser) tuple() (layout.Type, error) {
	p.pos++
	var members []layout.Type
	trailing := false
	for p.peek() != ')' {
		t, err := p.parse()
		if err != nil {
			return layout.Type{}, err
		}
		members = append(members, t)
		trailing = false
		if p.peek() != ',' {
			break
		}
		p.pos++
		trailing = true
	}
	if err := p.expect(')'); err != nil {
		return layout.Type{}, err
	}

	// (T) is T itself; (T,) is a one-element tuple.
	if len(members) == 1 && !trailing {
		return members[0], nil
	}

	ls := make([]layout.Layout, len(members))
	names := make([]string, len(members))
	drop := false
	for i, m := range members {
		ls[i] = m.Layout
		names[i] = m.Name
		drop = drop || m.Ref.(typeRef).drop
	}
	name := "(" + strings.Join(names, ", ") + ")"
	if len(members) == 1 {
		name = "(" + names[0] + ",)"
	}
	return layout.Type{Name: name, Layout: layout.Tuple(ls...), Ref: typeRef{drop: drop}}, nil
}

func (p *typeParser) array() (layout.Type, error) {
	p.pos++
	elem, err := p.parse()
	if err != nil {
		return layout.Type{}, err
	}
	if err := p.expect(';'); err != nil {
		return layout.Type{}, err
	}
	lenText := p.word()
	n, err := strconv.ParseUint(lenText, 10, 64)
	if err != nil {
		return layout.Type{}, p.errorf("bad array length %q", lenText)
	}
	if err := p.expect(']'); err != nil {
		return layout.Type{}, err
	}

	drop := n > 0 && elem.Ref.(typeRef).drop
	return layout.Type{
		Name:   "[" + elem.Name + "; " + lenText + "]",
		Layout: layout.Array(elem.Layout, n),
		Ref:    typeRef{drop: drop},
	}, nil
}

// declareTypes resolves a scenario's named types.
func declareTypes(decls map[string]TypeDecl) (map[string]layout.Type, error) {
	named := make(map[string]layout.Type, len(decls))
	for name, d := range decls {
		if _, ok := primitives[name]; ok {
			return nil, errors.InvalidInput(errors.PhaseScript, "type "+name+" shadows a primitive")
		}
		t, err := parseType(d.Layout, nil)
		if err != nil {
			return nil, err
		}
		named[name] = layout.Type{Name: name, Layout: t.Layout, Ref: typeRef{drop: d.Drop || t.Ref.(typeRef).drop}}
	}
	return named, nil
}
