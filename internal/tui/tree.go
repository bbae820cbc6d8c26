package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/tree"
	"github.com/raphaelgruber/syllabus-go/internal/syllabus"
)

// TreeOptions controls RenderTree.
type TreeOptions struct {
	// Slides lists slide titles under each class.
	Slides bool
	Theme  Theme
}

// RenderTree draws modules as a module → class → slide tree.
func RenderTree(title string, modules []syllabus.Module, opts TreeOptions) string {
	theme := opts.Theme
	root := tree.Root(theme.titleStyle().Render(title)).
		Enumerator(tree.RoundedEnumerator).
		EnumeratorStyle(lipgloss.NewStyle().Foreground(theme.Hint))

	if len(modules) == 0 {
		root.Child(theme.hintStyle().Render("(no modules)"))
		return root.String()
	}

	for _, m := range modules {
		mod := tree.Root(theme.statusStyle().Render(m.Title)).
			Enumerator(tree.RoundedEnumerator)

		for i, c := range m.Classes {
			label := fmt.Sprintf("Class %d: %s (%s)", c.ClassNo, c.Title, plural(c.SlideCount, "slide"))
			if !opts.Slides || i >= len(m.Slides) || len(m.Slides[i]) == 0 {
				mod.Child(label)
				continue
			}
			class := tree.Root(label).Enumerator(tree.RoundedEnumerator)
			for _, s := range m.Slides[i] {
				class.Child(fmt.Sprintf("%d. %s", s.Number, slideTitle(s)))
			}
			mod.Child(class)
		}
		root.Child(mod)
	}
	return root.String()
}

func slideTitle(s syllabus.Slide) string {
	if s.Title == "" {
		return "(untitled)"
	}
	return s.Title
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
