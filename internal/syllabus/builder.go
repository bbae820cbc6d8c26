package syllabus

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultGroupSize is the number of classes per module.
const DefaultGroupSize = 4

// isoLayout matches the millisecond ISO-8601 form the web client produced.
const isoLayout = "2006-01-02T15:04:05.000Z07:00"

// SuffixFunc returns a short random token used in synthetic ids.
type SuffixFunc func() string

// RandomSuffix returns four random hex characters.
func RandomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:4]
}

// Builder converts backend payloads into modules.
// The zero value is not usable; use NewBuilder.
type Builder struct {
	GroupSize int
	Suffix    SuffixFunc
	Now       func() time.Time
}

// NewBuilder returns a builder with the default group size, random suffixes
// and the wall clock.
func NewBuilder() *Builder {
	return &Builder{
		GroupSize: DefaultGroupSize,
		Suffix:    RandomSuffix,
		Now:       time.Now,
	}
}

var defaultBuilder = NewBuilder()

// BuildFromFlatResult groups a flat result with the default builder.
func BuildFromFlatResult(items []ResultItem) []Module {
	return defaultBuilder.BuildFromFlatResult(items)
}

// BuildFromCourseClasses groups course-edit classes with the default builder.
func BuildFromCourseClasses(classes []CourseClass) []Module {
	return defaultBuilder.BuildFromCourseClasses(classes)
}

// BuildFromFlatResult sorts items by class number, splits them into runs of
// GroupSize and builds one module per run. A trailing short run becomes its
// own module. Empty input yields an empty, non-nil slice.
func (b *Builder) BuildFromFlatResult(items []ResultItem) []Module {
	classes := make([]CourseClass, len(items))
	for i, item := range items {
		classes[i] = fromResultItem(item)
	}
	// Results never carry ids, so nothing is preserved.
	return b.build(classes)
}

// BuildFromCourseClasses performs the same grouping as BuildFromFlatResult
// but keeps ids and timestamps already present on the input, generating
// only the missing ones.
func (b *Builder) BuildFromCourseClasses(classes []CourseClass) []Module {
	return b.build(classes)
}

func fromResultItem(item ResultItem) CourseClass {
	c := CourseClass{
		ClassNo:      item.ClassNo,
		ClassTitle:   item.ClassTitle,
		CoreConcepts: item.CoreConcepts,
	}
	for _, s := range item.Slides {
		c.Slides = append(c.Slides, CourseSlide{SlideSpec: s})
	}
	for _, f := range item.FAQs {
		c.FAQs = append(c.FAQs, CourseFAQ{FAQSpec: f})
	}
	return c
}

// buildState tracks ids issued during one build so they stay unique.
type buildState struct {
	b      *Builder
	issued map[string]struct{}
	now    string
}

func (b *Builder) build(classes []CourseClass) []Module {
	modules := []Module{}
	if len(classes) == 0 {
		return modules
	}

	size := b.GroupSize
	if size <= 0 {
		size = DefaultGroupSize
	}

	sorted := slices.Clone(classes)
	slices.SortStableFunc(sorted, func(a, c CourseClass) int {
		return cmp.Compare(a.ClassNo, c.ClassNo)
	})

	st := &buildState{
		b:      b,
		issued: make(map[string]struct{}),
		now:    b.now().UTC().Format(isoLayout),
	}

	// Reserve ids supplied by the caller first so generated ones never clash.
	for _, c := range sorted {
		st.reserve(c.ID)
		for _, s := range c.Slides {
			st.reserve(s.ID)
		}
		for _, f := range c.FAQs {
			st.reserve(f.ID)
		}
	}

	for start, index := 0, 1; start < len(sorted); start, index = start+size, index+1 {
		end := min(start+size, len(sorted))
		modules = append(modules, st.module(index, sorted[start:end]))
	}
	return modules
}

func (b *Builder) now() time.Time {
	if b.Now == nil {
		return time.Now()
	}
	return b.Now()
}

func (b *Builder) suffix() string {
	if b.Suffix == nil {
		return RandomSuffix()
	}
	return b.Suffix()
}

func (st *buildState) reserve(id string) {
	if id != "" {
		st.issued[id] = struct{}{}
	}
}

// newID returns "<prefix>-<suffix>", retrying on collision. After a few
// attempts a counter is appended so a constant suffix source still terminates.
func (st *buildState) newID(prefix string) string {
	for attempt := 0; ; attempt++ {
		id := prefix + "-" + st.b.suffix()
		if attempt >= 3 {
			id = fmt.Sprintf("%s-%d", id, attempt)
		}
		if _, taken := st.issued[id]; !taken {
			st.issued[id] = struct{}{}
			return id
		}
	}
}

func (st *buildState) keepOrNew(id, prefix string) string {
	if id != "" {
		return id
	}
	return st.newID(prefix)
}

func (st *buildState) timestamp(ts string) string {
	if strings.TrimSpace(ts) == "" {
		return st.now
	}
	return ts
}

func (st *buildState) module(index int, chunk []CourseClass) Module {
	m := Module{
		ID:      st.newID(fmt.Sprintf("module-%d", index)),
		Title:   moduleTitle(chunk[0].ClassTitle, index),
		Classes: make([]Class, 0, len(chunk)),
		Slides:  make([][]Slide, 0, len(chunk)),
		FAQs:    make([][]FAQ, 0, len(chunk)),
		Lessons: []Lesson{},
	}

	for _, c := range chunk {
		class := Class{
			ID:           st.keepOrNew(c.ID, fmt.Sprintf("class-%d", c.ClassNo)),
			ClassNo:      c.ClassNo,
			Title:        c.ClassTitle,
			CoreConcepts: concepts(c),
			SlideCount:   len(c.Slides),
		}

		slides := make([]Slide, 0, len(c.Slides))
		for i, s := range c.Slides {
			slide := st.slide(class, i+1, s)
			slides = append(slides, slide)

			title := slide.Title
			if title == "" {
				title = class.Title
			}
			m.Lessons = append(m.Lessons, Lesson{
				ID:      st.newID("lesson"),
				Title:   title,
				ClassID: class.ID,
				SlideID: slide.ID,
				Order:   len(m.Lessons) + 1,
			})
		}

		faqs := make([]FAQ, 0, len(c.FAQs))
		for _, f := range c.FAQs {
			faqs = append(faqs, FAQ{
				ID:       st.keepOrNew(f.ID, fmt.Sprintf("faq-%d", c.ClassNo)),
				Question: f.Question,
				Answer:   f.Answer,
			})
		}

		m.Classes = append(m.Classes, class)
		m.Slides = append(m.Slides, slides)
		m.FAQs = append(m.FAQs, faqs)
	}
	return m
}

func (st *buildState) slide(class Class, number int, s CourseSlide) Slide {
	bullets := s.BulletPoints
	if bullets == nil {
		bullets = []string{}
	}
	var image *string
	if s.ImageURL != nil && strings.TrimSpace(*s.ImageURL) != "" {
		u := *s.ImageURL
		image = &u
	}
	return Slide{
		ID:           st.keepOrNew(s.ID, fmt.Sprintf("slide-%d-%d", class.ClassNo, number)),
		Number:       number,
		Title:        s.Title,
		Content:      s.Content,
		BulletPoints: bullets,
		SpeakerNotes: s.SpeakerNotes,
		ImagePrompt:  s.ImagePrompt,
		ImageURL:     image,
		ClassID:      class.ID,
		CreatedAt:    st.timestamp(s.CreatedAt),
		UpdatedAt:    st.timestamp(s.UpdatedAt),
	}
}

// concepts prefers the server's coreConcepts and falls back to the
// client-side "concepts" field found on edited courses.
func concepts(c CourseClass) []string {
	switch {
	case len(c.CoreConcepts) > 0:
		return c.CoreConcepts
	case len(c.Concepts) > 0:
		return c.Concepts
	default:
		return []string{}
	}
}

// moduleTitle takes the text before the first colon of the first class
// title, e.g. "Intro: Basics" → "Intro".
func moduleTitle(classTitle string, index int) string {
	title, _, _ := strings.Cut(classTitle, ":")
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Sprintf("Module %d", index)
	}
	return title
}

// Flatten returns every class of modules in module order.
func Flatten(modules []Module) []Class {
	var out []Class
	for _, m := range modules {
		out = append(out, m.Classes...)
	}
	return out
}
