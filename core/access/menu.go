package access

// MenuItem is either a link (Href set) or a section holding Children.
type MenuItem struct {
	Label    string     `json:"label"`
	Icon     string     `json:"icon"`
	Href     string     `json:"href,omitempty"`
	Children []MenuItem `json:"children,omitempty"`
}

// Icon names
const (
	IconDashboard     = "LayoutDashboard"
	IconHome          = "Home"
	IconUsers         = "Users"
	IconBookMarked    = "BookMarked"
	IconBookOpen      = "BookOpen"
	IconFileText      = "FileText"
	IconClipboardList = "ClipboardList"
	IconSettings      = "Settings"
	IconGraduationCap = "GraduationCap"
	IconMessageSquare = "MessageSquare"
)

var (
	adminMenu = []MenuItem{
		{Label: "Dashboard", Icon: IconDashboard, Href: "/dashboard"},
		{Label: "Manajemen Sekolah", Icon: IconUsers, Children: []MenuItem{
			{Label: "Semua Sekolah", Icon: IconBookMarked, Href: "/admin/schools"},
			{Label: "Staff Sekolah", Icon: IconUsers, Href: "/admin/staff"},
		}},
		{Label: "Kursus Global", Icon: IconBookOpen, Children: []MenuItem{
			{Label: "Semua Kursus", Icon: IconBookOpen, Href: "/courses"},
			{Label: "Buat Kursus", Icon: IconFileText, Href: "/courses/create"},
		}},
		{Label: "Laporan", Icon: IconClipboardList, Href: "/admin/reports"},
		{Label: "Pengaturan", Icon: IconSettings, Href: "/settings"},
	}

	staffMenu = []MenuItem{
		{Label: "Dashboard", Icon: IconDashboard, Href: "/dashboard"},
		{Label: "Manajemen Kursus", Icon: IconBookOpen, Children: []MenuItem{
			{Label: "Semua Kursus", Icon: IconBookOpen, Href: "/courses"},
			{Label: "Buat Kursus", Icon: IconFileText, Href: "/courses/create"},
		}},
		{Label: "Guru & Siswa", Icon: IconUsers, Children: []MenuItem{
			{Label: "Daftar Guru", Icon: IconUsers, Href: "/staff/teachers"},
			{Label: "Daftar Siswa", Icon: IconGraduationCap, Href: "/staff/students"},
		}},
		{Label: "Laporan Sekolah", Icon: IconClipboardList, Href: "/staff/reports"},
		{Label: "Pengaturan", Icon: IconSettings, Href: "/settings"},
	}

	teacherMenu = []MenuItem{
		{Label: "Dashboard", Icon: IconDashboard, Href: "/dashboard"},
		{Label: "Kursus Saya", Icon: IconBookOpen, Children: []MenuItem{
			{Label: "Semua Kursus", Icon: IconBookOpen, Href: "/courses"},
			{Label: "Buat Kursus", Icon: IconFileText, Href: "/courses/create"},
		}},
		{Label: "Siswa", Icon: IconUsers, Href: "/students"},
		{Label: "Tugas", Icon: IconClipboardList, Href: "/assignments"},
		{Label: "Diskusi", Icon: IconMessageSquare, Href: "/discussions"},
		{Label: "Pengaturan", Icon: IconSettings, Href: "/settings"},
	}

	studentMenu = []MenuItem{
		{Label: "Dashboard", Icon: IconHome, Href: "/dashboard"},
		{Label: "Kursus Saya", Icon: IconBookOpen, Href: "/courses"},
		{Label: "Pembelajaran", Icon: IconGraduationCap, Children: []MenuItem{
			{Label: "Materi", Icon: IconFileText, Href: "/lessons"},
			{Label: "Tugas", Icon: IconClipboardList, Href: "/assignments"},
			{Label: "Kuis", Icon: IconBookMarked, Href: "/quizzes"},
		}},
		{Label: "Diskusi", Icon: IconMessageSquare, Href: "/discussions"},
		{Label: "Pengaturan", Icon: IconSettings, Href: "/settings"},
	}

	roleMenus = map[Role][]MenuItem{
		RoleAdmin:          adminMenu,
		RoleFoundationHead: adminMenu,
		RolePrincipal:      staffMenu,
		RoleStaff:          staffMenu,
		RoleTeacher:        teacherMenu,
		RoleStudent:        studentMenu,
	}
)

// MenuFor returns the navigation menu of a role.
// Unknown roles get nil and must be sent to the forbidden state.
func MenuFor(role Role) []MenuItem {
	menu, ok := roleMenus[role]
	if !ok {
		return nil
	}
	return copyMenu(menu)
}

// Hrefs flattens the links of a menu in display order.
func Hrefs(menu []MenuItem) []string {
	var hrefs []string
	for _, item := range menu {
		if item.Href != "" {
			hrefs = append(hrefs, item.Href)
		}
		hrefs = append(hrefs, Hrefs(item.Children)...)
	}
	return hrefs
}

func copyMenu(menu []MenuItem) []MenuItem {
	if menu == nil {
		return nil
	}
	out := make([]MenuItem, len(menu))
	for i, item := range menu {
		out[i] = item
		out[i].Children = copyMenu(item.Children)
	}
	return out
}
