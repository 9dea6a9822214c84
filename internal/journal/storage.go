package journal

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DateLayout 与浏览器 Date.prototype.toDateString 的输出一致，例如 "Mon Jan 13 2025"。
const DateLayout = "Mon Jan 02 2006"

// Storage 是进程内的反思/项目存储，按插入顺序返回列表。
type Storage struct {
	mu sync.RWMutex

	reflections     map[string]Reflection
	reflectionOrder []string
	projects        map[string]Project
	projectOrder    []string

	now func() time.Time
}

// NewStorage 返回一个空存储。
func NewStorage() *Storage {
	return &Storage{
		reflections: make(map[string]Reflection),
		projects:    make(map[string]Project),
		now:         time.Now,
	}
}

// NewSeededStorage 返回预置示例数据的存储。
func NewSeededStorage() *Storage {
	s := NewStorage()
	s.seed()
	return s
}

// Reflections 返回全部反思。
func (s *Storage) Reflections() []Reflection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Reflection, 0, len(s.reflectionOrder))
	for _, id := range s.reflectionOrder {
		out = append(out, s.reflections[id])
	}
	return out
}

// Reflection 按 id 查找反思。
func (s *Storage) Reflection(id string) (Reflection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reflections[id]
	return r, ok
}

// CreateReflection 保存反思，日期取服务端当前日期。
func (s *Storage) CreateReflection(in NewReflection) Reflection {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := Reflection{
		ID:         uuid.NewString(),
		Name:       in.Name,
		Date:       s.now().Format(DateLayout),
		Reflection: in.Reflection,
		Week:       in.Week,
	}
	s.reflections[r.ID] = r
	s.reflectionOrder = append(s.reflectionOrder, r.ID)
	return r
}

// UpdateReflection 按 patch 更新反思，id 和日期不变。
func (s *Storage) UpdateReflection(id string, patch ReflectionPatch) (Reflection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reflections[id]
	if !ok {
		return Reflection{}, false
	}
	if patch.Name != nil {
		r.Name = *patch.Name
	}
	if patch.Reflection != nil {
		r.Reflection = *patch.Reflection
	}
	switch {
	case patch.ClearWeek:
		r.Week = nil
	case patch.Week != nil:
		r.Week = intPtr(*patch.Week)
	}
	s.reflections[id] = r
	return r, true
}

// DeleteReflection 删除反思，返回它是否存在。
func (s *Storage) DeleteReflection(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reflections[id]; !ok {
		return false
	}
	delete(s.reflections, id)
	s.reflectionOrder = slices.DeleteFunc(s.reflectionOrder, func(v string) bool { return v == id })
	return true
}

// Projects 返回全部项目。
func (s *Storage) Projects() []Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Project, 0, len(s.projectOrder))
	for _, id := range s.projectOrder {
		out = append(out, s.projects[id])
	}
	return out
}

// Project 按 id 查找项目。
func (s *Storage) Project(id string) (Project, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	return p, ok
}

// CreateProject 保存项目。
func (s *Storage) CreateProject(in NewProject) Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertProject(in)
}

func (s *Storage) insertProject(in NewProject) Project {
	p := Project{
		ID:           uuid.NewString(),
		Title:        in.Title,
		Description:  in.Description,
		Technologies: append([]string{}, in.Technologies...),
		ImageURL:     in.ImageURL,
		DemoURL:      in.DemoURL,
		Date:         in.Date,
	}
	s.projects[p.ID] = p
	s.projectOrder = append(s.projectOrder, p.ID)
	return p
}

// DeleteProject 删除项目，返回它是否存在。
func (s *Storage) DeleteProject(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[id]; !ok {
		return false
	}
	delete(s.projects, id)
	s.projectOrder = slices.DeleteFunc(s.projectOrder, func(v string) bool { return v == id })
	return true
}

func (s *Storage) seed() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range seedReflections {
		r.ID = uuid.NewString()
		s.reflections[r.ID] = r
		s.reflectionOrder = append(s.reflectionOrder, r.ID)
	}
	for _, p := range seedProjects {
		s.insertProject(p)
	}
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

var seedReflections = []Reflection{
	{
		Name:       "Student",
		Date:       "Mon Jan 13 2025",
		Reflection: "This week I learned about HTML structure and semantic elements. I found it interesting how proper semantic HTML improves both accessibility and SEO. The most challenging part was understanding when to use section vs article elements.",
		Week:       intPtr(1),
	},
	{
		Name:       "Student",
		Date:       "Mon Jan 20 2025",
		Reflection: "Explored CSS Flexbox and Grid layouts. Grid is incredibly powerful for creating complex layouts with minimal code. I spent extra time practicing media queries to ensure my Learning Journal is fully responsive across all device sizes.",
		Week:       intPtr(2),
	},
	{
		Name:       "Student",
		Date:       "Mon Jan 27 2025",
		Reflection: "JavaScript DOM manipulation was the focus this week. I implemented a dynamic navigation menu and theme switcher. The event handling concepts finally clicked after building the form validation feature.",
		Week:       intPtr(3),
	},
}

var seedProjects = []NewProject{
	{
		Title:        "Learning Journal PWA",
		Description:  "A Progressive Web App for documenting weekly learning reflections with offline support, installability, and dynamic data fetching.",
		Technologies: []string{"HTML5", "CSS3", "JavaScript", "React", "PWA"},
		DemoURL:      strPtr("/"),
		Date:         "Jan 2025",
	},
	{
		Title:        "Responsive Portfolio",
		Description:  "A mobile-first responsive portfolio website showcasing projects and skills with CSS Grid and Flexbox layouts.",
		Technologies: []string{"HTML5", "CSS3", "Flexbox", "Grid"},
		Date:         "Dec 2024",
	},
	{
		Title:        "Theme Switcher Component",
		Description:  "A reusable dark/light mode toggle component using CSS custom properties and localStorage for persistence.",
		Technologies: []string{"JavaScript", "CSS", "LocalStorage"},
		Date:         "Nov 2024",
	},
	{
		Title:        "Flask REST API",
		Description:  "Backend API for the Learning Journal using Flask framework with JSON file storage for reflections data.",
		Technologies: []string{"Python", "Flask", "REST API", "JSON"},
		Date:         "Feb 2025",
	},
	{
		Title:        "Service Worker Demo",
		Description:  "Implementation of service workers for offline caching and background sync capabilities.",
		Technologies: []string{"JavaScript", "Service Workers", "Cache API"},
		Date:         "Mar 2025",
	},
	{
		Title:        "Form Validation Library",
		Description:  "A lightweight form validation library with custom rules and real-time feedback using the Validation API.",
		Technologies: []string{"JavaScript", "Validation API", "DOM"},
		Date:         "Oct 2024",
	},
}
