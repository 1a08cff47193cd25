package memdom

import (
	"strings"

	"golang.org/x/net/html"
)

// The matcher understands the selector subset the engine's strategies use:
// tag names, #id, .class, attribute tests ([a], [a=v], [a^=v], [a*=v]),
// compound selectors, the descendant combinator, and comma groups.

type attrTest struct {
	name string
	op   byte // 0 presence, '=' exact, '^' prefix, '*' substring
	val  string
}

type simpleSel struct {
	tag     string
	id      string
	classes []string
	attrs   []attrTest
}

// compoundSel is a chain of simple selectors joined by descendant combinators,
// rightmost element last.
type compoundSel []simpleSel

func parseSelector(expr string) ([]compoundSel, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, errBadExpr
	}
	var groups []compoundSel
	for _, part := range splitTopLevel(expr, ',') {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, errBadExpr
		}
		var comp compoundSel
		for _, word := range splitTopLevel(part, ' ') {
			word = strings.TrimSpace(word)
			if word == "" {
				continue
			}
			ss, err := parseSimple(word)
			if err != nil {
				return nil, err
			}
			comp = append(comp, ss)
		}
		if len(comp) == 0 {
			return nil, errBadExpr
		}
		groups = append(groups, comp)
	}
	return groups, nil
}

// splitTopLevel splits on sep while respecting [...] brackets and quotes.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	var quote byte
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '[':
			depth++
		case c == ']':
			depth--
		case c == sep && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}

func parseSimple(word string) (simpleSel, error) {
	var ss simpleSel
	i := 0
	readName := func() string {
		start := i
		for i < len(word) && (isNameByte(word[i])) {
			i++
		}
		return word[start:i]
	}
	if i < len(word) && isNameByte(word[i]) && word[i] != '-' {
		ss.tag = strings.ToLower(readName())
	}
	for i < len(word) {
		switch word[i] {
		case '#':
			i++
			ss.id = readName()
			if ss.id == "" {
				return ss, errBadExpr
			}
		case '.':
			i++
			cls := readName()
			if cls == "" {
				return ss, errBadExpr
			}
			ss.classes = append(ss.classes, cls)
		case '[':
			end := strings.IndexByte(word[i:], ']')
			if end < 0 {
				return ss, errBadExpr
			}
			at, err := parseAttrTest(word[i+1 : i+end])
			if err != nil {
				return ss, err
			}
			ss.attrs = append(ss.attrs, at)
			i += end + 1
		default:
			return ss, errBadExpr
		}
	}
	if ss.tag == "" && ss.id == "" && len(ss.classes) == 0 && len(ss.attrs) == 0 {
		return ss, errBadExpr
	}
	return ss, nil
}

func isNameByte(c byte) bool {
	return c == '-' || c == '_' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func parseAttrTest(body string) (attrTest, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return attrTest{}, errBadExpr
	}
	for _, op := range []string{"^=", "*=", "="} {
		if idx := strings.Index(body, op); idx > 0 {
			val := strings.TrimSpace(body[idx+len(op):])
			val = strings.Trim(val, `'"`)
			return attrTest{
				name: strings.ToLower(strings.TrimSpace(body[:idx])),
				op:   op[0],
				val:  val,
			}, nil
		}
	}
	if strings.ContainsAny(body, "=~|$<>") {
		return attrTest{}, errBadExpr
	}
	return attrTest{name: strings.ToLower(body)}, nil
}

func (ss simpleSel) matches(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if ss.tag != "" && ss.tag != strings.ToLower(n.Data) {
		return false
	}
	if ss.id != "" && attrValue(n, "id") != ss.id {
		return false
	}
	if len(ss.classes) > 0 {
		have := strings.Fields(attrValue(n, "class"))
		for _, want := range ss.classes {
			found := false
			for _, c := range have {
				if c == want {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	for _, at := range ss.attrs {
		got, present := lookupAttr(n, at.name)
		if !present {
			return false
		}
		switch at.op {
		case '=':
			if got != at.val {
				return false
			}
		case '^':
			if !strings.HasPrefix(got, at.val) {
				return false
			}
		case '*':
			if !strings.Contains(got, at.val) {
				return false
			}
		}
	}
	return true
}

func (cs compoundSel) matches(n *html.Node) bool {
	if len(cs) == 0 {
		return false
	}
	if !cs[len(cs)-1].matches(n) {
		return false
	}
	// Remaining selectors must match some chain of ancestors.
	rest := cs[:len(cs)-1]
	anc := n.Parent
	for i := len(rest) - 1; i >= 0; i-- {
		for anc != nil && !rest[i].matches(anc) {
			anc = anc.Parent
		}
		if anc == nil {
			return false
		}
		anc = anc.Parent
	}
	return true
}

func attrValue(n *html.Node, name string) string {
	v, _ := lookupAttr(n, name)
	return v
}

func lookupAttr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val, true
		}
	}
	return "", false
}
