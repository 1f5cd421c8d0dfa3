// Package content exposes the CRUD collections of the CMS: blogs, pages,
// sections, inquiries, users, newsletter subscribers and campaigns,
// components, and layouts.
package content

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/fentro/cms-console/internal/apperr"
)

// Collection names a CRUD resource.
type Collection string

const (
	Blogs       Collection = "blogs"
	Pages       Collection = "pages"
	Sections    Collection = "sections"
	Inquiries   Collection = "inquiries"
	Users       Collection = "users"
	Subscribers Collection = "subscribers"
	Campaigns   Collection = "campaigns"
	Components  Collection = "components"
	Layouts     Collection = "layouts"
)

// Spec describes how a collection is reached and validated.
type Spec struct {
	Name        Collection
	Path        string
	Publishable bool
	// Required maps a document field to its validator tag.
	Required map[string]string
}

var specs = map[Collection]Spec{
	Blogs:       {Name: Blogs, Path: "blogs", Publishable: true, Required: map[string]string{"title": "required"}},
	Pages:       {Name: Pages, Path: "pages", Publishable: true, Required: map[string]string{"title": "required"}},
	Sections:    {Name: Sections, Path: "sections", Required: map[string]string{"name": "required"}},
	Inquiries:   {Name: Inquiries, Path: "inquiries", Required: map[string]string{"email": "required,email"}},
	Users:       {Name: Users, Path: "users", Required: map[string]string{"email": "required,email"}},
	Subscribers: {Name: Subscribers, Path: "newsletter/subscribers", Required: map[string]string{"email": "required,email"}},
	Campaigns:   {Name: Campaigns, Path: "newsletter/campaigns", Publishable: true, Required: map[string]string{"subject": "required"}},
	Components:  {Name: Components, Path: "components", Required: map[string]string{"name": "required"}},
	Layouts:     {Name: Layouts, Path: "layouts", Required: map[string]string{"name": "required"}},
}

var validate = validator.New()

// ErrUnknownCollection is returned for names outside the registry.
var ErrUnknownCollection = apperr.New(apperr.KindNotFound, "collection_unknown", "Unknown collection")

// Lookup returns the spec registered under name.
func Lookup(name string) (Spec, error) {
	spec, ok := specs[Collection(strings.ToLower(strings.TrimSpace(name)))]
	if !ok {
		return Spec{}, ErrUnknownCollection
	}
	return spec, nil
}

// Names lists every registered collection, sorted.
func Names() []Collection {
	names := make([]Collection, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Document is an opaque resource record.
type Document map[string]any

// ID returns the record id, accepting `_id`.
func (d Document) ID() string {
	for _, key := range []string{"id", "_id"} {
		if value, ok := d[key].(string); ok && value != "" {
			return value
		}
	}
	return ""
}

// String returns a string field or "".
func (d Document) String(key string) string {
	value, _ := d[key].(string)
	return value
}

// Check validates the fields required by spec. Partial updates only check
// the fields they carry.
func (s Spec) Check(document Document, partial bool) error {
	if len(document) == 0 {
		return apperr.Validation("document_empty", "Nothing to save")
	}
	fields := make([]string, 0, len(s.Required))
	for field := range s.Required {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		value, present := document[field]
		if partial && !present {
			continue
		}
		text, _ := value.(string)
		if err := validate.Var(strings.TrimSpace(text), s.Required[field]); err != nil {
			return apperr.Validation(field+"_invalid", fmt.Sprintf("%s is missing or invalid", field))
		}
	}
	return nil
}
