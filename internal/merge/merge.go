package merge

import (
	"regexp"
	"sort"
	"strings"

	"github.com/ignite/dispatch-engine/internal/domain"
)

// AccountNameField is the placeholder every discovered mapping gets for the
// sender's display name.
const AccountNameField = "account_name"

// Field is one compiled entry of a Layout.
type Field struct {
	Name     string
	Kind     domain.MergeKind
	resolver fieldResolver
}

// Layout is a compiled merge-field mapping. Fields are kept sorted by name
// so resolution and substitution are deterministic.
type Layout struct {
	fields []Field
}

// Compile validates a template mapping and turns it into a Layout.
func Compile(mapping map[string]domain.MergeField) (*Layout, error) {
	names := make([]string, 0, len(mapping))
	for name := range mapping {
		names = append(names, name)
	}
	sort.Strings(names)

	l := &Layout{fields: make([]Field, 0, len(names))}
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			return nil, domain.Invalid("mergeFieldMapping", "empty field name")
		}
		mf := mapping[name]
		r, err := compileField(name, mf)
		if err != nil {
			return nil, err
		}
		l.fields = append(l.fields, Field{Name: name, Kind: mf.Kind, resolver: r})
	}
	return l, nil
}

// Fields returns the compiled fields in name order.
func (l *Layout) Fields() []Field {
	return l.fields
}

// Resolve builds the substitution map for one recipient.
func (l *Layout) Resolve(c *domain.Contact, a *domain.Account) map[string]string {
	out := make(map[string]string, len(l.fields))
	for _, f := range l.fields {
		out[f.Name] = f.resolver.resolve(c, a)
	}
	return out
}

// Resolve compiles mapping and resolves it in one step.
func Resolve(mapping map[string]domain.MergeField, c *domain.Contact, a *domain.Account) (map[string]string, error) {
	l, err := Compile(mapping)
	if err != nil {
		return nil, err
	}
	return l.Resolve(c, a), nil
}

var placeholderRe = regexp.MustCompile(`\{([^{}]+)\}`)

// Substitute replaces every {name} token whose name matches a key of values,
// ignoring case. Replacement is a single pass, so values that themselves
// contain {tokens} are inserted literally.
func Substitute(text string, values map[string]string) string {
	if len(values) == 0 || !strings.Contains(text, "{") {
		return text
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	folded := make(map[string]string, len(values))
	for _, k := range keys {
		lk := strings.ToLower(k)
		if _, ok := folded[lk]; !ok {
			folded[lk] = values[k]
		}
	}

	return placeholderRe.ReplaceAllStringFunc(text, func(tok string) string {
		if v, ok := folded[strings.ToLower(tok[1:len(tok)-1])]; ok {
			return v
		}
		return tok
	})
}

// Discover lists the distinct {placeholder} names in text, in first-seen order.
func Discover(text string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range placeholderRe.FindAllStringSubmatch(text, -1) {
		if seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		names = append(names, m[1])
	}
	return names
}

// Propose builds a starting mapping for a template body: every discovered
// placeholder becomes an unbound column, and account_name is always mapped
// to the sender's display name.
func Propose(body string) map[string]domain.MergeField {
	mapping := make(map[string]domain.MergeField)
	for _, name := range Discover(body) {
		if name == AccountNameField {
			continue
		}
		mapping[name] = domain.MergeField{Kind: domain.MergeColumn}
	}
	mapping[AccountNameField] = domain.MergeField{
		Kind:        domain.MergeAccountName,
		Value:       AccountNameField,
		Description: "Sender account display name",
	}
	return mapping
}
