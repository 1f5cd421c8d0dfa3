package shell

import (
	"strings"

	"github.com/fentro/cms-console/internal/guard"
)

// SectionName labels a sidebar group.
type SectionName string

const (
	SectionMain       SectionName = "MAIN"
	SectionManagement SectionName = "MANAGEMENT"
	SectionContent    SectionName = "CONTENT"
	SectionTools      SectionName = "TOOLS"
	SectionProfile    SectionName = "PROFILE"
)

// MenuItem is one sidebar link.
type MenuItem struct {
	Label     string `json:"label"`
	Path      string `json:"path"`
	AdminOnly bool   `json:"adminOnly,omitempty"`
	Active    bool   `json:"active,omitempty"`
}

// Section is a titled group of links.
type Section struct {
	Name  SectionName `json:"name"`
	Items []MenuItem  `json:"items"`
}

type entry struct {
	label string
	path  string
}

var layout = []struct {
	name    SectionName
	entries []entry
}{
	{SectionMain, []entry{
		{"Dashboard", "/dashboard"},
		{"Notifications", "/dashboard/notifications"},
	}},
	{SectionManagement, []entry{
		{"Leads", "/dashboard/leads"},
		{"Inquiries", "/dashboard/inquiries"},
		{"Users", "/dashboard/users"},
		{"Activity History", "/dashboard/activity-history"},
	}},
	{SectionContent, []entry{
		{"Pages", "/dashboard/pages"},
		{"Blogs", "/dashboard/blogs"},
		{"Media", "/dashboard/media"},
		{"Newsletter", "/dashboard/newsletter"},
		{"Content", "/dashboard/content"},
		{"Components", "/dashboard/components"},
		{"Layouts", "/dashboard/layouts"},
		{"Forms", "/dashboard/forms"},
	}},
	{SectionTools, []entry{
		{"API Playground", "/dashboard/api-playground"},
	}},
	{SectionProfile, []entry{
		{"Profile", "/dashboard/profile"},
		{"Settings", "/dashboard/settings"},
	}},
}

// Menu builds the sidebar for the operator. Admin-only links are dropped for
// non-admins, and so are sections left empty. The item matching current is
// marked active.
func Menu(isAdmin bool, current string) []Section {
	current = "/" + strings.Trim(current, "/")
	sections := make([]Section, 0, len(layout))
	for _, group := range layout {
		section := Section{Name: group.name}
		for _, item := range group.entries {
			adminOnly := guard.Classify(item.path) == guard.AccessAdmin
			if adminOnly && !isAdmin {
				continue
			}
			section.Items = append(section.Items, MenuItem{
				Label:     item.label,
				Path:      item.path,
				AdminOnly: adminOnly,
				Active:    isActive(item.path, current),
			})
		}
		if len(section.Items) > 0 {
			sections = append(sections, section)
		}
	}
	return sections
}

func isActive(path, current string) bool {
	if path == guard.DashboardPath {
		return current == path
	}
	return current == path || strings.HasPrefix(current, path+"/")
}
