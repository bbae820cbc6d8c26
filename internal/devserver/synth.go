package devserver

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/raphaelgruber/syllabus-go/internal/syllabus"
)

var unitNames = []string{
	"Foundations",
	"Core Techniques",
	"Applied Practice",
	"Advanced Topics",
	"Capstone",
}

var slideTemplates = []struct {
	title string
	body  string
}{
	{"Overview", "What %s covers and why it matters."},
	{"Key Ideas", "The central concepts behind %s."},
	{"Practice", "Exercises that apply %s."},
}

// subjectFromFile turns "intro_to-statistics.pdf" into "Intro To Statistics".
func subjectFromFile(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	words := strings.FieldsFunc(base, func(r rune) bool {
		return r == '_' || r == '-' || r == ' ' || r == '.'
	})
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	if len(words) == 0 {
		return "Uploaded Document"
	}
	return strings.Join(words, " ")
}

// synthesize produces a flat result of n classes about subject. Class titles
// carry a "<unit>: " prefix shared by each group of four.
func synthesize(subject string, n int, now time.Time) []syllabus.ResultItem {
	ts := now.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	items := make([]syllabus.ResultItem, 0, n)
	for i := range n {
		classNo := i + 1
		unit := unitNames[min(i/4, len(unitNames)-1)]
		topic := fmt.Sprintf("%s part %d", subject, classNo)

		item := syllabus.ResultItem{
			ClassNo:      classNo,
			ClassTitle:   fmt.Sprintf("%s: %s", unit, topic),
			CoreConcepts: []string{strings.ToLower(unit), fmt.Sprintf("topic %d", classNo)},
			FAQs: []syllabus.FAQSpec{{
				Question: fmt.Sprintf("What should I know before %s?", topic),
				Answer:   "Review the previous class and its practice exercises.",
			}},
		}
		for j, tpl := range slideTemplates {
			slide := syllabus.SlideSpec{
				Title:        tpl.title,
				Content:      fmt.Sprintf(tpl.body, topic),
				BulletPoints: []string{fmt.Sprintf("%s point %d", tpl.title, 1), fmt.Sprintf("%s point %d", tpl.title, 2)},
				SpeakerNotes: fmt.Sprintf("Spend about %d minutes here.", 5*(j+1)),
				ImagePrompt:  fmt.Sprintf("Minimal illustration of %s", strings.ToLower(tpl.title)),
				CreatedAt:    ts,
				UpdatedAt:    ts,
			}
			item.Slides = append(item.Slides, slide)
		}
		items = append(items, item)
	}
	return items
}
