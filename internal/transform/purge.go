package transform

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"golang.org/x/net/html"

	"git.home.luguber.info/inful/sitepipe/internal/util/sets"
)

// Usage is the set of class names, ids and bare words found in the final
// HTML and JavaScript output.
type Usage struct {
	Classes sets.Set[string]
	IDs     sets.Set[string]
	Words   sets.Set[string]
}

// NewUsage returns an empty usage surface.
func NewUsage() *Usage {
	return &Usage{Classes: sets.New[string](), IDs: sets.New[string](), Words: sets.New[string]()}
}

var wordPattern = regexp.MustCompile(`[A-Za-z0-9_\-:/]+`)

// AddHTML records class and id attributes plus words inside inline scripts.
func (u *Usage) AddHTML(data []byte) {
	z := html.NewTokenizer(bytes.NewReader(data))
	inScript := false
	for {
		switch z.Next() {
		case html.ErrorToken:
			return
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			inScript = string(name) == "script"
			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				switch string(key) {
				case "class":
					for _, c := range strings.Fields(string(val)) {
						u.Classes.Add(c)
					}
				case "id":
					u.IDs.Add(strings.TrimSpace(string(val)))
				default:
					u.addWords(val)
				}
			}
		case html.EndTagToken:
			inScript = false
		case html.TextToken:
			if inScript {
				u.addWords(z.Text())
			}
		}
	}
}

// AddScript records every identifier-like word in JavaScript source.
func (u *Usage) AddScript(data []byte) {
	u.addWords(data)
}

func (u *Usage) addWords(data []byte) {
	for _, w := range wordPattern.FindAll(data, -1) {
		u.Words.Add(string(w))
	}
}

func (u *Usage) hasClass(name string) bool { return u.Classes.Has(name) || u.Words.Has(name) }

func (u *Usage) hasID(name string) bool { return u.IDs.Has(name) || u.Words.Has(name) }

// Purger drops style rules whose class or id selectors never occur in Usage.
// Rules inside @keyframes, @font-face, @page and @counter-style are kept as is.
// Safelist entries are exact names or path.Match patterns.
type Purger struct {
	Usage    *Usage
	Safelist []string
}

func (p *Purger) Name() string { return "purge" }

var opaqueAtRules = map[string]bool{
	"@keyframes": true, "@-webkit-keyframes": true, "@-moz-keyframes": true,
	"@font-face": true, "@page": true, "@counter-style": true, "@font-feature-values": true,
}

type purgeBlock struct {
	buf      bytes.Buffer
	opaque   bool
	hasRules bool
	header   string
}

func (p *Purger) Apply(_ context.Context, a *Asset) error {
	parser := css.NewParser(parse.NewInput(bytes.NewReader(a.Data)), false)

	stack := []*purgeBlock{{}}
	top := func() *purgeBlock { return stack[len(stack)-1] }

	var selectors []string
	var keep bool
	var rule bytes.Buffer
	inRule := false

	for {
		gt, _, data := parser.Next()
		switch gt {
		case css.ErrorGrammar:
			if errors.Is(parser.Err(), io.EOF) {
				out := stack[0].buf.Bytes()
				a.Data = append(bytes.TrimSpace(out), '\n')
				return nil
			}
			return &TransformError{File: a.Source, Err: parser.Err()}

		case css.CommentGrammar:
			if !inRule {
				top().buf.Write(data)
				top().buf.WriteByte('\n')
			}

		case css.AtRuleGrammar:
			w := top()
			w.buf.Write(data)
			writeTokens(&w.buf, parser.Values(), true)
			w.buf.WriteString(";\n")
			w.hasRules = true

		case css.BeginAtRuleGrammar:
			name := strings.ToLower(string(data))
			var header bytes.Buffer
			header.Write(data)
			writeTokens(&header, parser.Values(), true)
			stack = append(stack, &purgeBlock{
				opaque: top().opaque || opaqueAtRules[name],
				header: strings.TrimSpace(header.String()),
			})

		case css.EndAtRuleGrammar:
			if len(stack) == 1 {
				continue
			}
			b := top()
			stack = stack[:len(stack)-1]
			if b.hasRules || b.opaque {
				w := top()
				w.buf.WriteString(b.header)
				w.buf.WriteString(" {\n")
				w.buf.Write(b.buf.Bytes())
				w.buf.WriteString("}\n")
				w.hasRules = true
			}

		case css.QualifiedRuleGrammar:
			selectors = append(selectors, selectorText(parser.Values()))

		case css.BeginRulesetGrammar:
			selectors = append(selectors, selectorText(parser.Values()))
			kept := selectors[:0:0]
			for _, s := range selectors {
				if top().opaque || p.used(s) {
					kept = append(kept, s)
				}
			}
			keep = len(kept) > 0
			rule.Reset()
			if keep {
				rule.WriteString(strings.Join(kept, ", "))
				rule.WriteString(" {\n")
			}
			selectors = selectors[:0]
			inRule = true

		case css.DeclarationGrammar, css.CustomPropertyGrammar:
			switch {
			case inRule && keep:
				writeDeclaration(&rule, gt, data, parser.Values())
			case !inRule:
				// descriptors directly inside @font-face and friends
				w := top()
				writeDeclaration(&w.buf, gt, data, parser.Values())
				w.hasRules = true
			}

		case css.EndRulesetGrammar:
			if keep {
				rule.WriteString("}\n")
				w := top()
				w.buf.Write(rule.Bytes())
				w.hasRules = true
			}
			inRule = false
			keep = false
		}
	}
}

func writeDeclaration(b *bytes.Buffer, gt css.GrammarType, name []byte, values []css.Token) {
	b.WriteString("  ")
	b.Write(name)
	if gt == css.CustomPropertyGrammar {
		b.WriteString(":")
		for _, v := range values {
			b.Write(v.Data)
		}
	} else {
		b.WriteString(": ")
		writeTokens(b, values, false)
	}
	b.WriteString(";\n")
}

func writeTokens(b *bytes.Buffer, tokens []css.Token, leadingSpace bool) {
	for i, t := range tokens {
		if i == 0 && leadingSpace && t.TokenType != css.WhitespaceToken {
			b.WriteByte(' ')
		}
		b.Write(t.Data)
	}
}

func selectorText(tokens []css.Token) string {
	var b bytes.Buffer
	for _, t := range tokens {
		b.Write(t.Data)
	}
	return strings.TrimSpace(b.String())
}

// used reports whether every class and id in the selector occurs in the
// usage surface. Names inside functional pseudo-classes such as :not() do not
// count as requirements.
func (p *Purger) used(selector string) bool {
	for _, name := range requiredNames(selector) {
		if p.safelisted(name[1:]) {
			continue
		}
		switch name[0] {
		case '.':
			if !p.Usage.hasClass(name[1:]) {
				return false
			}
		case '#':
			if !p.Usage.hasID(name[1:]) {
				return false
			}
		}
	}
	return true
}

func (p *Purger) safelisted(name string) bool {
	for _, entry := range p.Safelist {
		if entry == name {
			return true
		}
		if ok, _ := path.Match(entry, name); ok {
			return true
		}
	}
	return false
}

// requiredNames extracts .class and #id references at paren depth zero.
func requiredNames(selector string) []string {
	var names []string
	depth := 0
	inAttr := false
	for i := 0; i < len(selector); i++ {
		c := selector[i]
		switch {
		case c == '\\':
			i++
		case c == '[':
			inAttr = true
		case c == ']':
			inAttr = false
		case c == '(':
			depth++
		case c == ')':
			if depth > 0 {
				depth--
			}
		case (c == '.' || c == '#') && depth == 0 && !inAttr:
			j := i + 1
			var name strings.Builder
			for j < len(selector) {
				d := selector[j]
				if d == '\\' && j+1 < len(selector) {
					name.WriteByte(selector[j+1])
					j += 2
					continue
				}
				if !isNameByte(d) {
					break
				}
				name.WriteByte(d)
				j++
			}
			if name.Len() > 0 {
				names = append(names, string(c)+name.String())
			}
			i = j - 1
		}
	}
	return names
}

func isNameByte(c byte) bool {
	return c == '-' || c == '_' || c >= 0x80 ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
