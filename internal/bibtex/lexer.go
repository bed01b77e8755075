package bibtex

import "strings"

// Extract finds every @type{key, field = value, ...} entry in free text.
//
// LaTeX escapes are replaced before scanning. Field values keep their BibTeX
// delimiters; use Normalize to unwrap them. A value is a brace span (balanced,
// any depth), a double-quoted span, or a bare token ending at ',' or '}'.
// Text between entries is ignored.
//
// The second return value lists citation keys that occur more than once, in
// the order their second occurrence was seen.
func Extract(text string) ([]Entry, []string) {
	text = ReplaceSpecialChars(text)

	var entries []Entry
	var duplicates []string
	seen := make(map[string]bool)
	reported := make(map[string]bool)

	for pos := 0; pos < len(text); {
		at := strings.IndexByte(text[pos:], '@')
		if at < 0 {
			break
		}
		start := pos + at

		s := &scanner{src: text, pos: start + 1}
		entry, ok := s.entry()
		if !ok {
			pos = start + 1
			continue
		}
		pos = s.pos

		if entry.Key != "" {
			if seen[entry.Key] && !reported[entry.Key] {
				duplicates = append(duplicates, entry.Key)
				reported[entry.Key] = true
			}
			seen[entry.Key] = true
		}
		entries = append(entries, entry)
	}

	return entries, duplicates
}

// scanner walks one candidate entry. It never backtracks past its start;
// Extract restarts at the next '@' when an entry is malformed.
type scanner struct {
	src string
	pos int
}

func (s *scanner) eof() bool {
	return s.pos >= len(s.src)
}

func (s *scanner) peek() byte {
	if s.eof() {
		return 0
	}
	return s.src[s.pos]
}

// run consumes bytes while ok holds and returns them.
func (s *scanner) run(ok func(byte) bool) string {
	start := s.pos
	for !s.eof() && ok(s.src[s.pos]) {
		s.pos++
	}
	return s.src[start:s.pos]
}

func (s *scanner) skip(ok func(byte) bool) {
	s.run(ok)
}

// entry parses the text following '@'.
func (s *scanner) entry() (Entry, bool) {
	typ := s.run(isWordByte)
	if typ == "" {
		return Entry{}, false
	}
	if isBlank(s.peek()) {
		s.pos++
	}
	if s.peek() != '{' {
		return Entry{}, false
	}
	s.pos++

	s.skip(isBlank)
	key := s.run(func(c byte) bool { return c != ',' && !isSpace(c) })
	s.skip(isBlank)
	if s.peek() == ',' {
		s.pos++
	}

	e := Entry{Type: strings.ToLower(typ), Key: key}
	n := 0
	for {
		s.skip(isSpace)
		if s.eof() {
			return Entry{}, false
		}
		if s.peek() == '}' {
			s.pos++
			break
		}

		name, value, ok := s.field()
		if !ok {
			return Entry{}, false
		}
		n++

		// A body field named "type" would shadow the header type.
		if !strings.EqualFold(name, "type") {
			e.Set(strings.ToLower(name), value)
		}

		s.skip(isSpace)
		if s.peek() == ',' {
			s.pos++
		}
	}

	if n == 0 {
		return Entry{}, false
	}
	return e, true
}

// field parses name = value.
func (s *scanner) field() (string, string, bool) {
	name := s.run(func(c byte) bool {
		return c != '=' && c != ',' && c != '{' && c != '}' && c != '"' && !isSpace(c)
	})
	if name == "" {
		return "", "", false
	}
	s.skip(isSpace)
	if s.peek() != '=' {
		return "", "", false
	}
	s.pos++
	s.skip(isSpace)

	value, ok := s.value()
	if !ok {
		return "", "", false
	}
	return name, value, true
}

// value parses a braced, quoted, or bare value, delimiters included.
func (s *scanner) value() (string, bool) {
	start := s.pos
	switch s.peek() {
	case '"':
		end := strings.IndexByte(s.src[s.pos+1:], '"')
		if end < 0 {
			return "", false
		}
		s.pos += end + 2
		return s.src[start:s.pos], true

	case '{':
		depth := 0
		for !s.eof() {
			switch s.src[s.pos] {
			case '{':
				depth++
			case '}':
				depth--
			}
			s.pos++
			if depth == 0 {
				return s.src[start:s.pos], true
			}
		}
		return "", false

	default:
		s.skip(func(c byte) bool { return c != ',' && c != '}' })
		return s.src[start:s.pos], true
	}
}
