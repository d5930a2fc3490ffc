package app

import "mailboxapi/pkg/domain"

func expanded(v bool) *bool { return &v }

// NavigationItems returns the sidebar tree shown by the client.
func (a *App) NavigationItems() []domain.NavigationItem {
	return []domain.NavigationItem{
		{ID: "analytics", Name: "Analytics", Icon: "bar-chart", Path: "/analytics"},
		{ID: "business", Name: "Business", Icon: "briefcase", Path: "/business"},
		{ID: "project", Name: "Project", Icon: "clipboard", Path: "/project"},
		{ID: "hrm", Name: "HRM", Icon: "users", Path: "/hrm"},
		{ID: "mobile-app", Name: "Mobile App", Icon: "smartphone", Path: "/mobile-app"},
		{ID: "landingpage", Name: "Landingpage", Icon: "rocket", Path: "/landingpage"},
		{ID: "components", Name: "Components", Icon: "puzzle", IsExpanded: expanded(false)},
		{ID: "pages", Name: "Pages", Icon: "file-text", IsExpanded: expanded(false)},
		{ID: "apps", Name: "Apps", Icon: "grid", IsExpanded: expanded(true), Children: []domain.NavigationItem{
			{ID: "calendar", Name: "Calendar", Icon: "calendar", Path: "/apps/calendar"},
			{ID: "email", Name: "Email", Icon: "mail", Path: "/apps/email"},
			{ID: "invoice", Name: "Invoice", Icon: "receipt", Path: "/apps/invoice"},
			{ID: "charts", Name: "Charts", Icon: "trending-up", Path: "/apps/charts"},
			{ID: "widgets", Name: "Widgets", Icon: "box", Path: "/apps/widgets"},
		}},
		{ID: "content", Name: "Content", Icon: "file-text", IsExpanded: expanded(false)},
		{ID: "users", Name: "Users", Icon: "user", IsExpanded: expanded(false)},
		{ID: "documentation", Name: "Documentation", Icon: "book", IsExpanded: expanded(false)},
	}
}

func (a *App) UpgradeInfo() domain.UpgradeInfo {
	return domain.UpgradeInfo{
		Title:       "Upgrade to Pro",
		Description: "Are you looking for more features? Check out our Pro version.",
		ButtonText:  "Upgrade Now",
		ButtonIcon:  "arrow-right",
	}
}
