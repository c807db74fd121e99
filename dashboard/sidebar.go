package dashboard

// NarrowBreakpoint is the viewport width, in CSS pixels, below which the
// navigation moves into a drawer.
const NarrowBreakpoint = 1024

// SidebarMode is how the navigation is presented.
type SidebarMode int

const (
	// ModePanel is the always visible fixed panel of wide viewports.
	ModePanel SidebarMode = iota
	// ModeToggle is a narrow viewport with the drawer closed: only the
	// toggle button shows.
	ModeToggle
	// ModeDrawer is a narrow viewport with the drawer open.
	ModeDrawer
)

func (m SidebarMode) String() string {
	switch m {
	case ModeToggle:
		return "toggle"
	case ModeDrawer:
		return "drawer"
	default:
		return "panel"
	}
}

// Sidebar is the responsive state of the navigation. It is not persisted;
// every render starts from the zero value.
type Sidebar struct {
	DrawerOpen bool
	Narrow     bool
}

// Resize recomputes the viewport class. A width of zero means unknown and is
// treated as wide. A drawer left open while the viewport widens is closed.
func (s *Sidebar) Resize(width int) {
	s.Narrow = width > 0 && width < NarrowBreakpoint
	if !s.Narrow {
		s.DrawerOpen = false
	}
}

// Open shows the drawer. It has no effect on wide viewports.
func (s *Sidebar) Open() {
	if s.Narrow {
		s.DrawerOpen = true
	}
}

// Close hides the drawer.
func (s *Sidebar) Close() {
	s.DrawerOpen = false
}

// ClickOutside handles a click on the backdrop around the drawer.
func (s *Sidebar) ClickOutside() {
	s.Close()
}

// Mode derives the presentation from the current state.
func (s Sidebar) Mode() SidebarMode {
	switch {
	case !s.Narrow:
		return ModePanel
	case s.DrawerOpen:
		return ModeDrawer
	default:
		return ModeToggle
	}
}
