package roster

import (
	"regexp"
	"strconv"
	"strings"
)

// Strategy matches a name query against a single candidate name.
// Both arguments are already lower-cased.
type Strategy interface {
	Name() string
	Match(candidate, query string) bool
}

type strategyFunc struct {
	name string
	fn   func(candidate, query string) bool
}

func (s strategyFunc) Name() string                       { return s.name }
func (s strategyFunc) Match(candidate, query string) bool { return s.fn(candidate, query) }

var (
	Exact     Strategy = strategyFunc{"exact", func(c, q string) bool { return c == q }}
	Prefix    Strategy = strategyFunc{"prefix", strings.HasPrefix}
	Substring Strategy = strategyFunc{"substring", strings.Contains}
)

// DefaultStrategies is the precedence used for fuzzy player lookup.
var DefaultStrategies = []Strategy{Exact, Prefix, Substring}

// NameKey is the case-folded form of a player name. It backs the unique
// name constraint and name search, so "Émile" and "émile" collide.
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ResolveName returns the index of the first name matched by the earliest
// strategy, in strategy order and then in names order. ok is false when
// nothing matches.
func ResolveName(names []string, query string, strategies ...Strategy) (int, bool) {
	if len(strategies) == 0 {
		strategies = DefaultStrategies
	}
	q := NameKey(query)
	if q == "" {
		return -1, false
	}
	lowered := make([]string, len(names))
	for i, n := range names {
		lowered[i] = NameKey(n)
	}
	for _, s := range strategies {
		for i, n := range lowered {
			if s.Match(n, q) {
				return i, true
			}
		}
	}
	return -1, false
}

var mentionPattern = regexp.MustCompile(`^<@!?(\d+)>$`)

// ParseMention extracts the chat id from a "<@123>" or "<@!123>" mention.
func ParseMention(query string) (string, bool) {
	m := mentionPattern.FindStringSubmatch(strings.TrimSpace(query))
	if m == nil {
		return "", false
	}
	if _, err := strconv.ParseUint(m[1], 10, 64); err != nil {
		return "", false
	}
	return m[1], true
}
