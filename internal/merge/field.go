package merge

import (
	"strings"

	"github.com/ignite/dispatch-engine/internal/domain"
)

// fieldResolver produces the value of one merge field.
type fieldResolver interface {
	resolve(c *domain.Contact, a *domain.Account) string
}

// columnField reads a contact attribute, trying the exact name, then
// lowercase, then uppercase. The first non-empty value wins.
type columnField struct {
	column string
}

func (f columnField) resolve(c *domain.Contact, _ *domain.Account) string {
	if c == nil {
		return ""
	}
	for _, name := range []string{f.column, strings.ToLower(f.column), strings.ToUpper(f.column)} {
		if v := c.Attribute(name); v != "" {
			return v
		}
	}
	return ""
}

// textField is a literal value.
type textField struct {
	text string
}

func (f textField) resolve(*domain.Contact, *domain.Account) string { return f.text }

// accountNameField is the sending account's display name.
type accountNameField struct{}

func (accountNameField) resolve(_ *domain.Contact, a *domain.Account) string {
	if a == nil {
		return ""
	}
	return a.DisplayName
}

// accountInfoField derives one part of the sending account's identity.
type accountInfoField struct {
	part string
}

func (f accountInfoField) resolve(_ *domain.Contact, a *domain.Account) string {
	if a == nil {
		return ""
	}
	switch f.part {
	case domain.AccountEmail:
		return a.Email
	case domain.AccountFullName:
		if a.DisplayName != "" {
			return a.DisplayName
		}
		return a.Name
	}

	name := a.Name
	if name == "" {
		name = a.DisplayName
	}
	first, rest, _ := strings.Cut(name, " ")
	if f.part == domain.AccountFirstName {
		return first
	}
	return rest
}

func compileField(name string, mf domain.MergeField) (fieldResolver, error) {
	switch mf.Kind {
	case domain.MergeColumn:
		return columnField{column: mf.Value}, nil
	case domain.MergeText:
		return textField{text: mf.Value}, nil
	case domain.MergeAccountName:
		// "auto" has a single variant today.
		if mf.Value != "" && mf.Value != "account_name" {
			return nil, domain.Invalid("mergeFieldMapping."+name, "unknown auto field %q", mf.Value)
		}
		return accountNameField{}, nil
	case domain.MergeAccountInfo:
		switch mf.Value {
		case domain.AccountFirstName, domain.AccountLastName, domain.AccountFullName, domain.AccountEmail:
			return accountInfoField{part: mf.Value}, nil
		}
		return nil, domain.Invalid("mergeFieldMapping."+name, "unknown account_info part %q", mf.Value)
	}
	return nil, domain.Invalid("mergeFieldMapping."+name, "unknown kind %q", mf.Kind)
}
