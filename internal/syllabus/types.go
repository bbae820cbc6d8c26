// Package syllabus reshapes generated course outlines into the
// module → class → slide tree the client renders.
//
// Server payloads (ResultItem, CourseClass) and view models (Module, Class,
// Slide) are distinct types joined by the Builder; view models carry the
// synthetic identifiers, payloads never do.
package syllabus

// =============================================================================
// WIRE TYPES (as returned by the backend)
// =============================================================================

// ResultItem is one generated class in the flat result returned by
// GET /user/latest-syllabus.
type ResultItem struct {
	ClassNo      int         `json:"classNo" yaml:"classNo"`
	ClassTitle   string      `json:"classTitle" yaml:"classTitle"`
	CoreConcepts []string    `json:"coreConcepts" yaml:"coreConcepts"`
	Slides       []SlideSpec `json:"slides" yaml:"slides"`
	FAQs         []FAQSpec   `json:"faqs,omitempty" yaml:"faqs,omitempty"`
}

// SlideSpec is a generated slide. Every field is optional.
type SlideSpec struct {
	Title        string   `json:"title,omitempty" yaml:"title,omitempty"`
	Content      string   `json:"content,omitempty" yaml:"content,omitempty"`
	BulletPoints []string `json:"bulletPoints,omitempty" yaml:"bulletPoints,omitempty"`
	SpeakerNotes string   `json:"speakerNotes,omitempty" yaml:"speakerNotes,omitempty"`
	ImagePrompt  string   `json:"imagePrompt,omitempty" yaml:"imagePrompt,omitempty"`
	ImageURL     *string  `json:"imageUrl,omitempty" yaml:"imageUrl,omitempty"`
	CreatedAt    string   `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
	UpdatedAt    string   `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
}

// FAQSpec is a question/answer pair attached to a class.
type FAQSpec struct {
	Question string `json:"question" yaml:"question"`
	Answer   string `json:"answer" yaml:"answer"`
}

// CourseClass is a class as returned when editing an existing course. Slides
// and FAQs may already be nested and may already carry identifiers.
type CourseClass struct {
	ID           string        `json:"id,omitempty" yaml:"id,omitempty"`
	ClassNo      int           `json:"classNo" yaml:"classNo"`
	ClassTitle   string        `json:"classTitle" yaml:"classTitle"`
	CoreConcepts []string      `json:"coreConcepts,omitempty" yaml:"coreConcepts,omitempty"`
	Concepts     []string      `json:"concepts,omitempty" yaml:"concepts,omitempty"`
	Slides       []CourseSlide `json:"slides,omitempty" yaml:"slides,omitempty"`
	FAQs         []CourseFAQ   `json:"faqs,omitempty" yaml:"faqs,omitempty"`
}

// CourseSlide is a slide of an existing course.
type CourseSlide struct {
	ID string `json:"id,omitempty" yaml:"id,omitempty"`
	SlideSpec `yaml:",inline"`
}

// CourseFAQ is a FAQ entry of an existing course.
type CourseFAQ struct {
	ID      string `json:"id,omitempty" yaml:"id,omitempty"`
	FAQSpec `yaml:",inline"`
}

// =============================================================================
// VIEW MODELS
// =============================================================================

// Module groups up to GroupSize consecutive classes.
// Slides[i] and FAQs[i] always belong to Classes[i].
type Module struct {
	ID      string    `json:"id" yaml:"id"`
	Title   string    `json:"title" yaml:"title"`
	Classes []Class   `json:"classes" yaml:"classes"`
	Slides  [][]Slide `json:"slides" yaml:"slides"`
	FAQs    [][]FAQ   `json:"faqs" yaml:"faqs"`

	// Lessons is the legacy flat view: one entry per slide, in module order.
	Lessons []Lesson `json:"lessons" yaml:"lessons"`
}

// Class is a single class within a module.
type Class struct {
	ID           string   `json:"id" yaml:"id"`
	ClassNo      int      `json:"classNo" yaml:"classNo"`
	Title        string   `json:"title" yaml:"title"`
	CoreConcepts []string `json:"coreConcepts" yaml:"coreConcepts"`
	SlideCount   int      `json:"slideCount" yaml:"slideCount"`
}

// Slide is a renderable slide. Timestamps are ISO-8601 strings.
type Slide struct {
	ID           string   `json:"id" yaml:"id"`
	Number       int      `json:"number" yaml:"number"`
	Title        string   `json:"title" yaml:"title"`
	Content      string   `json:"content" yaml:"content"`
	BulletPoints []string `json:"bulletPoints" yaml:"bulletPoints"`
	SpeakerNotes string   `json:"speakerNotes" yaml:"speakerNotes"`
	ImagePrompt  string   `json:"imagePrompt" yaml:"imagePrompt"`
	ImageURL     *string  `json:"imageUrl" yaml:"imageUrl"`
	ClassID      string   `json:"classId" yaml:"classId"`
	CreatedAt    string   `json:"createdAt" yaml:"createdAt"`
	UpdatedAt    string   `json:"updatedAt" yaml:"updatedAt"`
}

// FAQ is a question/answer pair with a synthetic id.
type FAQ struct {
	ID       string `json:"id" yaml:"id"`
	Question string `json:"question" yaml:"question"`
	Answer   string `json:"answer" yaml:"answer"`
}

// Lesson is the legacy per-slide entry kept for older consumers.
type Lesson struct {
	ID      string `json:"id" yaml:"id"`
	Title   string `json:"title" yaml:"title"`
	ClassID string `json:"classId" yaml:"classId"`
	SlideID string `json:"slideId" yaml:"slideId"`
	Order   int    `json:"order" yaml:"order"`
}
