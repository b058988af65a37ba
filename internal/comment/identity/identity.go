// Package identity maps the different principal shapes the CMS can hand us
// (regular users, SSO users, the account owner, organizations) onto the
// display name and contact email stored as a comment's author.
package identity

import (
	"context"
	"strings"

	"github.com/marcelofinamorvieira/record-comments/internal/comment/model"
)

type Kind string

const (
	KindUser         Kind = "user"
	KindSSOUser      Kind = "sso_user"
	KindAccount      Kind = "account"
	KindOrganization Kind = "organization"
)

// Principal is the acting identity as reported by the host. Which name
// fields are populated depends on Kind.
type Principal struct {
	Kind      Kind
	ID        string
	FullName  string
	FirstName string
	LastName  string
	Name      string
	Username  string
	Email     string
}

type Identity struct {
	DisplayName string `json:"display_name"`
	ContactKey  string `json:"contact_key"`
}

func (i Identity) Author() model.Author {
	return model.Author{Name: i.DisplayName, Email: i.ContactKey}
}

const placeholderDomain = "users.noreply.invalid"

// Resolve never fails: every kind, known or not, maps to a usable identity.
func Resolve(p Principal) Identity {
	email := strings.TrimSpace(p.Email)

	var name string
	switch p.Kind {
	case KindUser:
		name = firstNonEmpty(p.FullName, joinName(p.FirstName, p.LastName), localPart(email))
	case KindSSOUser:
		name = firstNonEmpty(joinName(p.FirstName, p.LastName), p.Username, localPart(email))
	case KindAccount:
		name = firstNonEmpty(joinName(p.FirstName, p.LastName), localPart(email))
	case KindOrganization:
		name = firstNonEmpty(p.Name, "Organization")
		email = ""
	default:
		name = firstNonEmpty(p.FullName, p.Name, joinName(p.FirstName, p.LastName), p.Username, localPart(email))
	}

	if email == "" {
		email = placeholderEmail(p)
	}
	if name == "" {
		name = "Unknown user"
	}

	return Identity{DisplayName: name, ContactKey: email}
}

func placeholderEmail(p Principal) string {
	kind := string(p.Kind)
	if kind == "" {
		kind = "unknown"
	}
	id := strings.ToLower(strings.TrimSpace(p.ID))
	if id == "" {
		return kind + "@" + placeholderDomain
	}
	return kind + "-" + id + "@" + placeholderDomain
}

func localPart(email string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}

func joinName(first, last string) string {
	return strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}
