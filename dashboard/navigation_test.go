package dashboard

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func labels(items []NavItem) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Label
	}
	return out
}

func TestParseRole(t *testing.T) {
	assert.Equal(t, RoleWorker, ParseRole("worker"))
	assert.Equal(t, RoleBuyer, ParseRole(" Buyer "))
	assert.Equal(t, RoleAdmin, ParseRole("admin"))
	assert.Equal(t, RoleLoading, ParseRole(""))
	assert.Equal(t, RoleLoading, ParseRole("guest"))

	assert.Equal(t, "buyer", RoleBuyer.String())
	assert.Equal(t, "loading", RoleLoading.String())
}

func TestBuildNavigation_OneBlockPerRole(t *testing.T) {
	tests := []struct {
		role Role
		want []string
	}{
		{RoleWorker, []string{"Task List", "My Submissions", "Withdrawals"}},
		{RoleBuyer, []string{"Add New Task", "My Tasks", "Purchase Coin", "Payment History"}},
		{RoleAdmin, []string{"Manage Users", "Manage Tasks"}},
	}
	for _, tt := range tests {
		nav := BuildNavigation(tt.role, HomePath, Sidebar{})
		assert.False(t, nav.Loading)
		assert.Equal(t, "Home", nav.Home.Label, tt.role.String())
		assert.True(t, nav.Home.Active)
		assert.Equal(t, tt.want, labels(nav.Items), tt.role.String())
	}
}

func TestBuildNavigation_LoadingHasNoLinks(t *testing.T) {
	nav := BuildNavigation(RoleLoading, HomePath, Sidebar{})
	assert.True(t, nav.Loading)
	assert.Empty(t, nav.Items)
	assert.Empty(t, nav.Home.Label)
}

func TestBuildNavigation_ActiveItem(t *testing.T) {
	nav := BuildNavigation(RoleBuyer, MyTasksPath+"/abc/edit", Sidebar{})
	assert.False(t, nav.Home.Active)
	for _, item := range nav.Items {
		assert.Equal(t, item.Path == MyTasksPath, item.Active, item.Label)
	}
}

func TestAllows(t *testing.T) {
	assert.True(t, Allows(RoleBuyer, MyTasksPath))
	assert.True(t, Allows(RoleBuyer, MyTasksPath+"/abc/delete"))
	assert.True(t, Allows(RoleWorker, HomePath))
	assert.False(t, Allows(RoleWorker, MyTasksPath))
	assert.False(t, Allows(RoleAdmin, MyTasksPath))
	assert.False(t, Allows(RoleLoading, HomePath))
}

func TestLogout(t *testing.T) {
	ended := false
	notes := &recordingNotifier{}

	Logout(context.Background(), SessionEnderFunc(func(context.Context) { ended = true }), notes)

	assert.True(t, ended)
	require.Len(t, notes.successes, 1)
	assert.Equal(t, "Successfully Logout!", notes.successes[0])
}

func TestSidebar(t *testing.T) {
	var s Sidebar
	assert.Equal(t, ModePanel, s.Mode())

	s.Open()
	assert.False(t, s.DrawerOpen, "drawer never opens on wide viewports")

	s.Resize(NarrowBreakpoint - 1)
	assert.Equal(t, ModeToggle, s.Mode())

	s.Open()
	assert.Equal(t, ModeDrawer, s.Mode())

	s.ClickOutside()
	assert.Equal(t, ModeToggle, s.Mode())

	s.Open()
	s.Close()
	assert.Equal(t, ModeToggle, s.Mode())

	s.Open()
	s.Resize(NarrowBreakpoint)
	assert.Equal(t, ModePanel, s.Mode())
	assert.False(t, s.DrawerOpen)

	s.Resize(0)
	assert.False(t, s.Narrow)
}

func TestPagination(t *testing.T) {
	assert.Equal(t, 0, PageCount(0))
	assert.Equal(t, 1, PageCount(1))
	assert.Equal(t, 1, PageCount(10))
	assert.Equal(t, 2, PageCount(11))
	assert.Equal(t, 3, PageCount(25))

	for n := 0; n <= 35; n++ {
		tasks := makeTasks(n)
		for p := 0; p < PageCount(n); p++ {
			got := Paginate(tasks, p)
			start, end := 10*p, min(10*p+10, n)
			assert.Equal(t, ids(tasks[start:end]), ids(got), "n=%d p=%d", n, p)
		}
	}

	assert.Empty(t, Paginate(makeTasks(5), 3))
	assert.Equal(t, 0, ClampPage(4, 0))
	assert.Equal(t, 2, ClampPage(9, 21))
}

func pagerString(items []PageItem) string {
	var out []byte
	for _, it := range items {
		switch {
		case it.Break:
			out = append(out, "..."...)
		case it.Active:
			out = append(out, fmt.Sprintf("[%d]", it.Number)...)
		default:
			out = append(out, fmt.Sprintf("%d", it.Number)...)
		}
		out = append(out, ' ')
	}
	return string(out)
}

func TestPageItems(t *testing.T) {
	assert.Nil(t, PageItems(0, 0, 3))
	assert.Equal(t, "[1] ", pagerString(PageItems(0, 1, 3)))
	assert.Equal(t, "1 [2] ", pagerString(PageItems(1, 2, 3)))
	assert.Equal(t, "[1] 2 3 ... 10 ", pagerString(PageItems(0, 10, 3)))
	assert.Equal(t, "1 ... 4 [5] 6 ... 10 ", pagerString(PageItems(4, 10, 3)))
	assert.Equal(t, "1 ... 8 9 [10] ", pagerString(PageItems(9, 10, 3)))
	assert.Equal(t, "1 [2] 3 ... 10 ", pagerString(PageItems(1, 10, 3)))
	assert.Equal(t, "1 2 [3] 4 ... 10 ", pagerString(PageItems(2, 10, 3)))
}
