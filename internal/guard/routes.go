package guard

import "strings"

// Access is the protection level of a route.
type Access string

const (
	AccessPublic  Access = "public"
	AccessPrivate Access = "private"
	AccessAdmin   Access = "admin"
)

// Route is one entry of the console routing surface.
type Route struct {
	Pattern string
	Access  Access
}

// PublicRoutes are reachable without a session.
var PublicRoutes = []Route{
	{Pattern: "/login", Access: AccessPublic},
	{Pattern: "/register", Access: AccessPublic},
	{Pattern: "/forgot-password", Access: AccessPublic},
	{Pattern: "/reset-password", Access: AccessPublic},
	{Pattern: "/set-password/:token", Access: AccessPublic},
	{Pattern: "/pages/:slug", Access: AccessPublic},
	{Pattern: "/blog/:slug", Access: AccessPublic},
	{Pattern: "/newsletter/subscribe", Access: AccessPublic},
	{Pattern: "/newsletter/lead-form", Access: AccessPublic},
	{Pattern: "/inquiries", Access: AccessPublic},
}

// AdminSections are the /dashboard children gated by AdminGuard.
var AdminSections = []string{
	"leads",
	"inquiries",
	"users",
	"pages",
	"blogs",
	"media",
	"newsletter",
	"components",
	"layouts",
	"content",
	"forms",
	"api-playground",
	"activity-history",
}

// Classify returns the access level for a request path.
func Classify(path string) Access {
	path = "/" + strings.Trim(path, "/")
	if path != DashboardPath && !strings.HasPrefix(path, DashboardPath+"/") {
		return AccessPublic
	}
	rest := strings.TrimPrefix(strings.TrimPrefix(path, DashboardPath), "/")
	section, _, _ := strings.Cut(rest, "/")
	if IsAdminSection(section) {
		return AccessAdmin
	}
	return AccessPrivate
}

// IsAdminSection reports whether a /dashboard child is admin-only.
func IsAdminSection(section string) bool {
	for _, candidate := range AdminSections {
		if candidate == section {
			return true
		}
	}
	return false
}
