package rules

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// builtin fixes the spellings speech-to-text commonly produces for units the
// food and activity interpreters care about. User rules run after them.
var builtin = []string{
	`s/\b(\d+(?:\.\d+)?)\s*(?:grammes?|gms?)\b/$1 grams/g`,
	`s/\bk\s?cals?\b/calories/g`,
	`s/\b(\d+)\s*mins?\b/$1 minutes/g`,
	`s/\b(\d+)\s*hrs?\b/$1 hours/g`,
	`half an hour => 30 minutes`,
}

// Set is an ordered list of transcript substitutions applied until the text
// stops changing.
type Set struct {
	rules []rule
	limit int
}

type rule struct {
	re        *regexp.Regexp
	repl      string
	firstOnly bool
	literal   bool
}

// Load compiles the built-in rules followed by the rules file at path. A
// missing file is not an error.
func Load(path string, limit int) (*Set, error) {
	set, err := compile(strings.Join(builtin, "\n"), limit)
	if err != nil {
		return nil, fmt.Errorf("built-in rules: %w", err)
	}
	if strings.TrimSpace(path) == "" {
		return set, nil
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return set, nil
		}
		return nil, fmt.Errorf("failed to read rules file %q: %w", path, err)
	}
	user, err := compile(string(contents), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rules file %q: %w", path, err)
	}
	set.rules = append(set.rules, user.rules...)
	return set, nil
}

// Parse compiles rules from text without the built-ins.
func Parse(text string, limit int) (*Set, error) {
	return compile(text, limit)
}

func compile(text string, limit int) (*Set, error) {
	if limit <= 0 {
		limit = 30
	}
	set := &Set{limit: limit}
	for index, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parsed, err := parseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", index+1, err)
		}
		set.rules = append(set.rules, parsed)
	}
	return set, nil
}

// Len reports how many rules are loaded.
func (s *Set) Len() int {
	return len(s.rules)
}

// Apply rewrites text. The result is trimmed and internal whitespace runs are
// collapsed so rule authors do not have to care about spacing.
func (s *Set) Apply(text string) (string, error) {
	result := strings.Join(strings.Fields(text), " ")
	if len(s.rules) == 0 {
		return result, nil
	}

	for pass := 0; pass < s.limit; pass++ {
		before := result
		for _, r := range s.rules {
			result = r.apply(result)
		}
		if result == before {
			return result, nil
		}
	}
	return result, nil
}

func parseLine(line string) (rule, error) {
	if isSubstitution(line) {
		return parseSubstitution(line)
	}
	from, to, ok := strings.Cut(line, "=>")
	if !ok {
		return rule{}, errors.New("expected \"from => to\" or s/pattern/replacement/flags")
	}
	from = strings.TrimSpace(from)
	to = strings.TrimSpace(to)
	if from == "" {
		return rule{}, errors.New("rule source cannot be empty")
	}
	re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(from) + `\b`)
	if err != nil {
		return rule{}, fmt.Errorf("invalid rule source: %w", err)
	}
	return rule{re: re, repl: to, literal: true}, nil
}

func isSubstitution(line string) bool {
	return len(line) > 2 && line[0] == 's' && isDelimiter(line[1])
}

func isDelimiter(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return false
	case c == ' ', c == '\t', c == '\\':
		return false
	}
	return true
}

func parseSubstitution(line string) (rule, error) {
	delim := line[1]
	fields, rest, err := splitDelimited(line[2:], delim, 2)
	if err != nil {
		return rule{}, err
	}

	caseSensitive := false
	global := false
	mode := ""
	for _, flag := range strings.TrimSpace(rest) {
		switch flag {
		case 'i':
		case 'I':
			caseSensitive = true
		case 'g':
			global = true
		case 'm', 's':
			mode += string(flag)
		default:
			return rule{}, fmt.Errorf("unsupported flag %q", flag)
		}
	}
	if !caseSensitive {
		mode = "i" + mode
	}
	pattern := fields[0]
	if mode != "" {
		pattern = "(?" + mode + ")" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return rule{}, fmt.Errorf("invalid pattern: %w", err)
	}
	return rule{re: re, repl: fields[1], firstOnly: !global}, nil
}

// splitDelimited reads n delim-terminated fields from s. A backslash escapes
// the delimiter; other escapes are kept for the regexp compiler.
func splitDelimited(s string, delim byte, n int) ([]string, string, error) {
	fields := make([]string, 0, n)
	var field strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' && i+1 < len(s) {
			if s[i+1] == delim {
				field.WriteByte(delim)
			} else {
				field.WriteByte(c)
				field.WriteByte(s[i+1])
			}
			i++
			continue
		}
		if c != delim {
			field.WriteByte(c)
			continue
		}
		fields = append(fields, field.String())
		field.Reset()
		if len(fields) == n {
			return fields, s[i+1:], nil
		}
	}
	return nil, "", errors.New("unterminated substitution")
}

func (r rule) apply(input string) string {
	if !r.firstOnly {
		if r.literal {
			return r.re.ReplaceAllLiteralString(input, r.repl)
		}
		return r.re.ReplaceAllString(input, r.repl)
	}
	loc := r.re.FindStringSubmatchIndex(input)
	if loc == nil {
		return input
	}
	var out []byte
	out = r.re.ExpandString(out, r.repl, input, loc)
	return input[:loc[0]] + string(out) + input[loc[1]:]
}
