// Package outline writes course trees as Markdown outlines and parses edited
// outlines back into course classes.
//
// Layout:
//
//	---
//	title: Go course
//	modules: 2
//	---
//
//	# Go course
//
//	## Basics {#module-1-ab12}
//
//	### Class 1: Basics: values {#class-1-ab12}
//
//	Concepts: values, variables
//
//	#### Overview {#slide-1-1-ab12}
//
//	Slide content.
//
//	- bullet
//
//	> Notes: speaker notes
//	> Image: image prompt
//	> Image URL: https://...
//	> Created: 2024-01-01T00:00:00.000Z
//	> Updated: 2024-01-01T00:00:00.000Z
//
//	#### FAQ {#faq}
//
//	Q: question {#faq-1-ab12}
//	A: answer
//
// Identifiers in {#...} are optional and preserved on parse. Slide content
// lines that would read as structure (headings, bullets, quotes) are written
// with a leading backslash, which Parse removes.
package outline

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/raphaelgruber/syllabus-go/internal/syllabus"
	"gopkg.in/yaml.v3"
)

const (
	faqHeading = "FAQ"
	faqAnchor  = "faq"
)

// Quoted slide fields.
const (
	keyNotes    = "Notes"
	keyImage    = "Image"
	keyImageURL = "Image URL"
	keyCreated  = "Created"
	keyUpdated  = "Updated"
)

var quoteKeys = []string{keyNotes, keyImageURL, keyImage, keyCreated, keyUpdated}

var (
	headingRegex = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)
	anchorRegex  = regexp.MustCompile(`\s*\{#([^}\s]+)\}\s*$`)
	classRegex   = regexp.MustCompile(`^Class\s+(\d+)\s*:\s*(.*)$`)
)

// Frontmatter is the metadata block at the top of an outline.
type Frontmatter struct {
	Title   string `yaml:"title"`
	Modules int    `yaml:"modules"`
	Classes int    `yaml:"classes"`
}

// Document is a parsed outline.
type Document struct {
	Frontmatter Frontmatter
	Classes     []syllabus.CourseClass
}

// =============================================================================
// WRITE
// =============================================================================

// Write renders modules as a Markdown outline.
func Write(w io.Writer, title string, modules []syllabus.Module) error {
	fm := Frontmatter{Title: title, Modules: len(modules), Classes: len(syllabus.Flatten(modules))}
	head, err := yaml.Marshal(fm)
	if err != nil {
		return fmt.Errorf("marshal frontmatter: %w", err)
	}

	var b bytes.Buffer
	b.WriteString("---\n")
	b.Write(head)
	b.WriteString("---\n\n")
	fmt.Fprintf(&b, "# %s\n", title)

	for _, m := range modules {
		fmt.Fprintf(&b, "\n## %s%s\n", m.Title, anchor(m.ID))
		for i, c := range m.Classes {
			fmt.Fprintf(&b, "\n### Class %d: %s%s\n", c.ClassNo, c.Title, anchor(c.ID))
			if len(c.CoreConcepts) > 0 {
				fmt.Fprintf(&b, "\nConcepts: %s\n", strings.Join(c.CoreConcepts, ", "))
			}
			if i < len(m.Slides) {
				for _, s := range m.Slides[i] {
					writeSlide(&b, s)
				}
			}
			if i < len(m.FAQs) && len(m.FAQs[i]) > 0 {
				fmt.Fprintf(&b, "\n#### %s {#%s}\n\n", faqHeading, faqAnchor)
				for _, f := range m.FAQs[i] {
					fmt.Fprintf(&b, "Q: %s%s\nA: %s\n", f.Question, anchor(f.ID), f.Answer)
				}
			}
		}
	}

	if _, err := w.Write(b.Bytes()); err != nil {
		return fmt.Errorf("write outline: %w", err)
	}
	return nil
}

func writeSlide(b *bytes.Buffer, s syllabus.Slide) {
	title := s.Title
	if title == "" {
		title = fmt.Sprintf("Slide %d", s.Number)
	}
	fmt.Fprintf(b, "\n#### %s%s\n", title, anchor(s.ID))
	if s.Content != "" {
		b.WriteString("\n")
		for _, line := range strings.Split(s.Content, "\n") {
			b.WriteString(escapeLine(line))
			b.WriteString("\n")
		}
	}
	if len(s.BulletPoints) > 0 {
		b.WriteString("\n")
		for _, p := range s.BulletPoints {
			fmt.Fprintf(b, "- %s\n", p)
		}
	}

	var quoted []string
	quote := func(key, value string) {
		if value == "" {
			return
		}
		lines := strings.Split(value, "\n")
		quoted = append(quoted, fmt.Sprintf("> %s: %s", key, lines[0]))
		for _, l := range lines[1:] {
			quoted = append(quoted, "> "+l)
		}
	}
	quote(keyNotes, s.SpeakerNotes)
	quote(keyImage, s.ImagePrompt)
	if s.ImageURL != nil {
		quote(keyImageURL, *s.ImageURL)
	}
	quote(keyCreated, s.CreatedAt)
	quote(keyUpdated, s.UpdatedAt)
	if len(quoted) > 0 {
		b.WriteString("\n")
		b.WriteString(strings.Join(quoted, "\n"))
		b.WriteString("\n")
	}
}

func anchor(id string) string {
	if id == "" {
		return ""
	}
	return " {#" + id + "}"
}

// escapeLine guards content lines that Parse would otherwise read as
// structure.
func escapeLine(line string) string {
	t := strings.TrimLeft(line, " \t")
	if strings.HasPrefix(t, "#") || strings.HasPrefix(t, "- ") || t == "-" ||
		strings.HasPrefix(t, ">") || strings.HasPrefix(t, `\`) {
		return `\` + line
	}
	return line
}

// =============================================================================
// PARSE
// =============================================================================

// section is a heading and the lines under it.
type section struct {
	level   int
	heading string
	anchor  string
	lines   []string
}

// Parse reads an outline. Module headings are ignored; modules are rebuilt
// from the classes.
func Parse(content string) (*Document, error) {
	doc := &Document{}

	remaining := content
	if strings.HasPrefix(content, "---\n") {
		endIdx := strings.Index(content[4:], "\n---")
		if endIdx >= 0 {
			if err := yaml.Unmarshal([]byte(content[4:4+endIdx]), &doc.Frontmatter); err != nil {
				return nil, fmt.Errorf("parse frontmatter: %w", err)
			}
			remaining = strings.TrimPrefix(content[4+endIdx+4:], "\n")
		}
	}

	sections := parseSections(remaining)

	var class *syllabus.CourseClass
	flushClass := func() {
		if class != nil {
			doc.Classes = append(doc.Classes, *class)
			class = nil
		}
	}

	for _, s := range sections {
		switch s.level {
		case 1:
			if doc.Frontmatter.Title == "" {
				doc.Frontmatter.Title = s.heading
			}
		case 3:
			m := classRegex.FindStringSubmatch(s.heading)
			if m == nil {
				return nil, fmt.Errorf("class heading %q: want \"Class N: title\"", s.heading)
			}
			flushClass()
			no, _ := strconv.Atoi(m[1])
			class = &syllabus.CourseClass{ID: s.anchor, ClassNo: no, ClassTitle: strings.TrimSpace(m[2])}
			class.CoreConcepts = parseConcepts(s.lines)
		case 4:
			if class == nil {
				return nil, fmt.Errorf("slide %q appears before any class", s.heading)
			}
			if s.heading == faqHeading && (s.anchor == faqAnchor || s.anchor == "") {
				class.FAQs = append(class.FAQs, parseFAQs(s.lines)...)
				continue
			}
			class.Slides = append(class.Slides, parseSlide(s))
		}
	}
	flushClass()

	return doc, nil
}

// parseSections splits content at headings.
func parseSections(content string) []section {
	var sections []section
	var current *section

	flush := func() {
		if current != nil {
			sections = append(sections, *current)
		}
	}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if match := headingRegex.FindStringSubmatch(line); match != nil {
			flush()
			heading, id := splitAnchor(strings.TrimSpace(match[2]))
			current = &section{level: len(match[1]), heading: heading, anchor: id}
			continue
		}
		if current != nil {
			current.lines = append(current.lines, line)
		}
	}
	flush()

	return sections
}

func splitAnchor(heading string) (string, string) {
	if m := anchorRegex.FindStringSubmatchIndex(heading); m != nil {
		return strings.TrimSpace(heading[:m[0]]), heading[m[2]:m[3]]
	}
	return heading, ""
}

func parseConcepts(lines []string) []string {
	for _, line := range lines {
		rest, ok := strings.CutPrefix(strings.TrimSpace(line), "Concepts:")
		if !ok {
			continue
		}
		var out []string
		for _, c := range strings.Split(rest, ",") {
			if c = strings.TrimSpace(c); c != "" {
				out = append(out, c)
			}
		}
		return out
	}
	return nil
}

func parseSlide(s section) syllabus.CourseSlide {
	slide := syllabus.CourseSlide{ID: s.anchor}
	slide.Title = s.heading

	var content []string
	var last *string
	var imageURL *string
	for _, raw := range s.lines {
		line := strings.TrimRight(raw, " \t")
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, `\`):
			content = append(content, line[1:])
			last = nil
		case trimmed == "":
			content = append(content, "")
			last = nil
		case strings.HasPrefix(trimmed, "- "):
			slide.BulletPoints = append(slide.BulletPoints, strings.TrimSpace(trimmed[2:]))
			last = nil
		case strings.HasPrefix(trimmed, ">"):
			quoted := strings.TrimPrefix(strings.TrimPrefix(trimmed, ">"), " ")
			key, value, ok := splitQuote(quoted)
			if !ok {
				if last != nil {
					*last += "\n" + quoted
				}
				continue
			}
			switch key {
			case keyNotes:
				last = &slide.SpeakerNotes
			case keyImage:
				last = &slide.ImagePrompt
			case keyImageURL:
				imageURL = new(string)
				last = imageURL
			case keyCreated:
				last = &slide.CreatedAt
			case keyUpdated:
				last = &slide.UpdatedAt
			}
			*last = value
		default:
			content = append(content, line)
			last = nil
		}
	}
	slide.ImageURL = imageURL
	slide.Content = strings.Join(trimBlank(content), "\n")
	return slide
}

// splitQuote splits "Key: value" for the known quoted slide fields.
func splitQuote(line string) (string, string, bool) {
	for _, key := range quoteKeys {
		if rest, ok := strings.CutPrefix(line, key+":"); ok {
			return key, strings.TrimPrefix(rest, " "), true
		}
	}
	return "", "", false
}

// trimBlank drops leading and trailing empty lines.
func trimBlank(lines []string) []string {
	for len(lines) > 0 && lines[0] == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func parseFAQs(lines []string) []syllabus.CourseFAQ {
	var out []syllabus.CourseFAQ
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if q, ok := strings.CutPrefix(line, "Q:"); ok {
			question, id := splitAnchor(strings.TrimSpace(q))
			out = append(out, syllabus.CourseFAQ{ID: id})
			out[len(out)-1].Question = question
			continue
		}
		if a, ok := strings.CutPrefix(line, "A:"); ok && len(out) > 0 {
			out[len(out)-1].Answer = strings.TrimSpace(a)
		}
	}
	return out
}
