// Package resources defines the fixed allow-list of content collections the
// engine may touch, along with the static traits of each collection.
package resources

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownResource is returned by Parse for names outside the allow-list.
var ErrUnknownResource = errors.New("unknown resource")

// ResourceName identifies one allow-listed document collection.
type ResourceName string

const (
	Articles       ResourceName = "articles"
	Projects       ResourceName = "projects"
	Experiences    ResourceName = "experiences"
	Skills         ResourceName = "skills"
	Education      ResourceName = "education"
	Certifications ResourceName = "certifications"
	Testimonials   ResourceName = "testimonials"
	Services       ResourceName = "services"
	FAQs           ResourceName = "faqs"
	SocialLinks    ResourceName = "social_links"
)

// Traits describes how the snapshot reporter summarizes a collection.
type Traits struct {
	// DescriptionField is previewed in snapshots.
	DescriptionField string
	// Publishable collections carry a boolean "published" field.
	Publishable bool
	// Stales collections are counted as stale when "updated_at" is old.
	Stales bool
	// Required fields are counted when missing or empty.
	Required []string
}

// registry is the build-time allow-list. Nothing adds to it at runtime.
var registry = map[ResourceName]Traits{
	Articles: {
		DescriptionField: "excerpt",
		Publishable:      true,
		Stales:           true,
		Required:         []string{"title", "slug", "content"},
	},
	Projects: {
		DescriptionField: "description",
		Publishable:      true,
		Stales:           true,
		Required:         []string{"title", "description"},
	},
	Experiences: {
		DescriptionField: "description",
		Stales:           true,
		Required:         []string{"company", "role", "start_date"},
	},
	Skills: {
		DescriptionField: "name",
		Required:         []string{"name", "category"},
	},
	Education: {
		DescriptionField: "description",
		Required:         []string{"institution", "degree"},
	},
	Certifications: {
		DescriptionField: "name",
		Required:         []string{"name", "issuer"},
	},
	Testimonials: {
		DescriptionField: "quote",
		Publishable:      true,
		Required:         []string{"author", "quote"},
	},
	Services: {
		DescriptionField: "description",
		Publishable:      true,
		Stales:           true,
		Required:         []string{"title", "description"},
	},
	FAQs: {
		DescriptionField: "question",
		Publishable:      true,
		Required:         []string{"question", "answer"},
	},
	SocialLinks: {
		DescriptionField: "platform",
		Required:         []string{"platform", "url"},
	},
}

// IsAllowed reports whether name is in the allow-list.
func IsAllowed(name string) bool {
	_, ok := registry[ResourceName(name)]
	return ok
}

// Valid reports whether r is in the allow-list.
func (r ResourceName) Valid() bool {
	return IsAllowed(string(r))
}

func (r ResourceName) String() string {
	return string(r)
}

// Parse converts a raw name into a ResourceName.
func Parse(name string) (ResourceName, error) {
	if !IsAllowed(name) {
		return "", fmt.Errorf("%w: %q", ErrUnknownResource, name)
	}
	return ResourceName(name), nil
}

// Lookup returns the traits of an allow-listed resource.
func Lookup(r ResourceName) (Traits, bool) {
	t, ok := registry[r]
	return t, ok
}

// All returns every allow-listed resource in name order.
func All() []ResourceName {
	names := make([]ResourceName, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
