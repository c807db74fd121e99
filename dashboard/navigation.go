package dashboard

import "context"

// NavItem is one link in the sidebar.
type NavItem struct {
	Label  string
	Path   string
	Icon   string
	Active bool
}

// Navigation is everything the sidebar needs to render.
type Navigation struct {
	Home    NavItem
	Items   []NavItem
	Role    Role
	Loading bool
	Sidebar Sidebar
}

// HomePath is the dashboard landing page.
const HomePath = "/dashboard"

// MyTasksPath is the buyer's task collection view.
const MyTasksPath = "/dashboard/my-tasks"

type roleMenus struct{}

func (roleMenus) Worker() []NavItem {
	return []NavItem{
		{Label: "Task List", Path: "/dashboard/task-list", Icon: "list"},
		{Label: "My Submissions", Path: "/dashboard/my-submissions", Icon: "send"},
		{Label: "Withdrawals", Path: "/dashboard/withdrawals", Icon: "wallet"},
	}
}

func (roleMenus) Buyer() []NavItem {
	return []NavItem{
		{Label: "Add New Task", Path: "/dashboard/add-task", Icon: "plus"},
		{Label: "My Tasks", Path: MyTasksPath, Icon: "clipboard"},
		{Label: "Purchase Coin", Path: "/dashboard/purchase-coin", Icon: "coins"},
		{Label: "Payment History", Path: "/dashboard/payment-history", Icon: "receipt"},
	}
}

func (roleMenus) Admin() []NavItem {
	return []NavItem{
		{Label: "Manage Users", Path: "/dashboard/manage-users", Icon: "users"},
		{Label: "Manage Tasks", Path: "/dashboard/manage-tasks", Icon: "briefcase"},
	}
}

func (roleMenus) Loading() []NavItem { return nil }

// BuildNavigation returns the constant Home entry plus the block for role.
// While the role is loading no navigation is produced at all.
func BuildNavigation(role Role, activePath string, sidebar Sidebar) Navigation {
	nav := Navigation{Role: role, Sidebar: sidebar}
	if role == RoleLoading {
		nav.Loading = true
		return nav
	}

	nav.Home = NavItem{Label: "Home", Path: HomePath, Icon: "layout-dashboard", Active: activePath == HomePath}
	for _, item := range DispatchRole[[]NavItem](role, roleMenus{}) {
		item.Active = activePath == item.Path || hasPathPrefix(activePath, item.Path)
		nav.Items = append(nav.Items, item)
	}
	return nav
}

func hasPathPrefix(path, prefix string) bool {
	return len(path) > len(prefix) && path[:len(prefix)] == prefix && path[len(prefix)] == '/'
}

// Allows reports whether role may open path. Home is open to everyone with a
// resolved role.
func Allows(role Role, path string) bool {
	nav := BuildNavigation(role, path, Sidebar{})
	if nav.Loading {
		return false
	}
	if path == HomePath {
		return true
	}
	for _, item := range nav.Items {
		if item.Active {
			return true
		}
	}
	return false
}

// SessionEnder ends the current session.
type SessionEnder interface {
	LogOut(ctx context.Context)
}

// SessionEnderFunc adapts a function to SessionEnder.
type SessionEnderFunc func(ctx context.Context)

func (f SessionEnderFunc) LogOut(ctx context.Context) { f(ctx) }

// Logout ends the session and tells the user.
func Logout(ctx context.Context, session SessionEnder, n Notifier) {
	session.LogOut(ctx)
	n.NotifySuccess(ctx, "Successfully Logout!")
}
