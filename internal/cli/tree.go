package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/raphaelgruber/syllabus-go/internal/outline"
	"github.com/raphaelgruber/syllabus-go/internal/syllabus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	treeCourse bool
	treeOutput outputOptions
)

var treeCmd = &cobra.Command{
	Use:   "tree <result-file>",
	Short: "Build the course tree from a saved result",
	Long: `Rebuild the module → class → slide tree from a saved flat result.

The file holds either a list of classes or the {"syllabus": [...]} response
body, as JSON or YAML. With --course the entries are classes of an existing
course, whose identifiers are preserved. A Markdown outline written with
--format markdown is read back as an existing course.

Examples:
  syllabus tree result.json
  syllabus tree course.yaml --course --format json
  syllabus tree course.md --slides`,
	Args: cobra.ExactArgs(1),
	RunE: runTree,
}

func init() {
	treeCmd.Flags().BoolVar(&treeCourse, "course", false, "input holds classes of an existing course")
	treeCmd.Flags().StringVarP(&treeOutput.format, "format", "f", formatText, "output format: text, json, yaml or markdown")
	treeCmd.Flags().StringVarP(&treeOutput.out, "out", "o", "", "write the result to a file")
	treeCmd.Flags().BoolVar(&treeOutput.slides, "slides", false, "list slides in the text tree")
}

func runTree(cmd *cobra.Command, args []string) error {
	if err := treeOutput.validate(); err != nil {
		return err
	}

	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read result file: %w", err)
	}

	var modules []syllabus.Module
	switch ext := strings.ToLower(filepath.Ext(path)); {
	case ext == ".md" || ext == ".markdown":
		doc, err := outline.Parse(string(data))
		if err != nil {
			return fmt.Errorf("parse outline: %w", err)
		}
		modules = syllabus.BuildFromCourseClasses(doc.Classes)
	case treeCourse:
		var classes []syllabus.CourseClass
		if err := decodeResult(path, data, &classes); err != nil {
			return err
		}
		modules = syllabus.BuildFromCourseClasses(classes)
	default:
		var items []syllabus.ResultItem
		if err := decodeResult(path, data, &items); err != nil {
			return err
		}
		modules = syllabus.BuildFromFlatResult(items)
	}

	return writeModules(os.Stdout, filepath.Base(path), modules, treeOutput)
}

// decodeResult reads a list, or a {"syllabus": list} wrapper, from JSON or
// YAML chosen by file extension.
func decodeResult[T any](path string, data []byte, out *[]T) error {
	var wrapped struct {
		Syllabus []T `json:"syllabus" yaml:"syllabus"`
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, out); err == nil {
			return nil
		}
		if err := yaml.Unmarshal(data, &wrapped); err != nil {
			return fmt.Errorf("parse yaml: %w", err)
		}
	default:
		if bytes.HasPrefix(bytes.TrimSpace(data), []byte("[")) {
			if err := json.Unmarshal(data, out); err != nil {
				return fmt.Errorf("parse json: %w", err)
			}
			return nil
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return fmt.Errorf("parse json: %w", err)
		}
	}
	*out = wrapped.Syllabus
	return nil
}
