package transform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"

	"github.com/spf13/afero"
	"github.com/tidwall/gjson"
)

const maxIncludeDepth = 32

// Includer flattens HTML built from partials. A directive has the form
//
//	@@include('header.html')
//	@@include("card.html", {"title": "Pricing", "page": {"id": 3}})
//
// Files resolve against PartialsDir first and the including file's directory
// second. The optional JSON object is visible inside the included file (and
// its own includes) as @@title or @@page.id; unknown variables stay as written.
type Includer struct {
	FS          afero.Fs
	Prefix      string
	PartialsDir string
}

func (in *Includer) Name() string { return "include" }

func (in *Includer) Apply(_ context.Context, a *Asset) error {
	out, err := in.expand(a.Data, a.Source, nil, []string{a.Source})
	if err != nil {
		return err
	}
	a.Data = out
	return nil
}

type includeDirective struct {
	start, end int
	file       string
	context    string
}

func (in *Includer) expand(data []byte, file string, scopes []string, stack []string) ([]byte, error) {
	if len(stack) > maxIncludeDepth {
		return nil, &TransformError{File: file, Err: fmt.Errorf("include depth exceeds %d", maxIncludeDepth)}
	}
	marker := []byte(in.Prefix + "include(")

	var out bytes.Buffer
	pos := 0
	for {
		idx := bytes.Index(data[pos:], marker)
		if idx < 0 {
			break
		}
		start := pos + idx
		d, err := parseDirective(data, start, len(marker))
		if err != nil {
			line, col := lineAt(data, start)
			return nil, &TransformError{File: file, Line: line, Column: col, Err: err}
		}
		out.Write(in.substitute(data[pos:start], scopes))

		target, err := in.resolve(d.file, file)
		if err != nil {
			line, col := lineAt(data, start)
			return nil, &TransformError{File: file, Line: line, Column: col, Err: err}
		}
		for _, seen := range stack {
			if seen == target {
				line, col := lineAt(data, start)
				return nil, &TransformError{File: file, Line: line, Column: col, Err: fmt.Errorf("include cycle through %s", d.file)}
			}
		}
		partial, err := afero.ReadFile(in.FS, target)
		if err != nil {
			line, col := lineAt(data, start)
			return nil, &TransformError{File: file, Line: line, Column: col, Err: fmt.Errorf("read %s: %w", d.file, err)}
		}

		childScopes := scopes
		if d.context != "" {
			childScopes = append([]string{d.context}, scopes...)
		}
		expanded, err := in.expand(partial, target, childScopes, append(stack, target))
		if err != nil {
			return nil, err
		}
		out.Write(expanded)
		pos = d.end
	}
	out.Write(in.substitute(data[pos:], scopes))
	return out.Bytes(), nil
}

func (in *Includer) resolve(name, from string) (string, error) {
	if name == "" {
		return "", errors.New("include without a file name")
	}
	candidates := []string{
		filepath.Join(in.PartialsDir, filepath.FromSlash(name)),
		filepath.Join(filepath.Dir(from), filepath.FromSlash(name)),
	}
	for _, c := range candidates {
		if info, err := in.FS.Stat(c); err == nil && !info.IsDir() {
			return c, nil
		}
	}
	return "", fmt.Errorf("unresolved include %q", name)
}

var varPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_.\-]*`)

// substitute replaces prefix+name with the innermost scope value defining name.
func (in *Includer) substitute(chunk []byte, scopes []string) []byte {
	if len(scopes) == 0 || !bytes.Contains(chunk, []byte(in.Prefix)) {
		return chunk
	}
	prefix := []byte(in.Prefix)
	var out bytes.Buffer
	for {
		idx := bytes.Index(chunk, prefix)
		if idx < 0 {
			out.Write(chunk)
			return out.Bytes()
		}
		out.Write(chunk[:idx])
		rest := chunk[idx+len(prefix):]
		loc := varPattern.FindIndex(rest)
		if loc == nil || loc[0] != 0 {
			out.Write(prefix)
			chunk = rest
			continue
		}
		name := string(rest[:loc[1]])
		if value, ok := lookupVar(scopes, name); ok {
			out.WriteString(value)
		} else {
			out.Write(prefix)
			out.WriteString(name)
		}
		chunk = rest[loc[1]:]
	}
}

func lookupVar(scopes []string, name string) (string, bool) {
	for _, scope := range scopes {
		if r := gjson.Get(scope, name); r.Exists() {
			return r.String(), true
		}
	}
	return "", false
}

// parseDirective reads `('file'[, {json}])` following the marker at start.
func parseDirective(data []byte, start, markerLen int) (includeDirective, error) {
	d := includeDirective{start: start}
	i := skipSpace(data, start+markerLen)
	if i >= len(data) || (data[i] != '\'' && data[i] != '"') {
		return d, errors.New("include expects a quoted file name")
	}
	quote := data[i]
	end := bytes.IndexByte(data[i+1:], quote)
	if end < 0 {
		return d, errors.New("unterminated include file name")
	}
	d.file = string(data[i+1 : i+1+end])
	i = skipSpace(data, i+end+2)

	if i < len(data) && data[i] == ',' {
		i = skipSpace(data, i+1)
		if i >= len(data) || data[i] != '{' {
			return d, errors.New("include context must be a JSON object")
		}
		objEnd, err := matchBrace(data, i)
		if err != nil {
			return d, err
		}
		d.context = string(data[i : objEnd+1])
		if !gjson.Valid(d.context) {
			return d, errors.New("include context is not valid JSON")
		}
		i = skipSpace(data, objEnd+1)
	}
	if i >= len(data) || data[i] != ')' {
		return d, errors.New("include is missing a closing parenthesis")
	}
	d.end = i + 1
	return d, nil
}

func skipSpace(data []byte, i int) int {
	for i < len(data) && (data[i] == ' ' || data[i] == '\t' || data[i] == '\n' || data[i] == '\r') {
		i++
	}
	return i
}

// matchBrace returns the index of the brace closing the one at open, skipping JSON strings.
func matchBrace(data []byte, open int) (int, error) {
	depth := 0
	inString := false
	for i := open; i < len(data); i++ {
		c := data[i]
		if inString {
			switch c {
			case '\\':
				i++
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return 0, errors.New("unterminated include context")
}
