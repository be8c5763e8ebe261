package features

import (
	"context"
	"io/fs"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Workflow classifications.
const (
	ClassVerify = "verify"
	ClassMerge  = "merge"
	ClassOther  = "other"
)

const (
	filenameMatchScore = 3
	contentMatchScore  = 1
)

// Workflow is the static analysis of one workflow file.
type Workflow struct {
	Name           string   `json:"name"`
	Classification string   `json:"classification"`
	Triggers       []string `json:"triggers"`
	Jobs           int      `json:"jobs"`
}

// WorkflowClassifier scores workflow files against verify and merge name fragments.
type WorkflowClassifier struct {
	verify []string
	merge  []string
}

// NewWorkflowClassifier lower-cases the patterns once.
func NewWorkflowClassifier(verify, merge []string) *WorkflowClassifier {
	return &WorkflowClassifier{verify: lowerAll(verify), merge: lowerAll(merge)}
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}

	return out
}

// Classify scores a file: a fragment in the file name adds 3, otherwise a
// whole-word occurrence in the content adds 1. Merge wins only with a strictly
// higher score than verify; verify needs a positive score.
func (c *WorkflowClassifier) Classify(filename, content string) string {
	name := strings.ToLower(filename)
	body := strings.ToLower(content)

	verify := score(c.verify, name, body)
	merge := score(c.merge, name, body)

	switch {
	case merge > verify:
		return ClassMerge
	case verify > 0:
		return ClassVerify
	default:
		return ClassOther
	}
}

func score(patterns []string, name, body string) int {
	total := 0

	for _, p := range patterns {
		if p == "" {
			continue
		}

		if strings.Contains(name, p) {
			total += filenameMatchScore
		} else if containsWord(body, p) {
			total += contentMatchScore
		}
	}

	return total
}

func containsWord(body, word string) bool {
	re, err := regexp.Compile(`\b` + regexp.QuoteMeta(word) + `\b`)
	if err != nil {
		return false
	}

	return re.MatchString(body)
}

// Analyze classifies a workflow and extracts its triggers and job count.
func (c *WorkflowClassifier) Analyze(filename string, content []byte) Workflow {
	wf := Workflow{
		Name:           filename,
		Classification: c.Classify(filename, string(content)),
		Triggers:       []string{},
	}

	var doc struct {
		On   yaml.Node `yaml:"on"`
		Jobs yaml.Node `yaml:"jobs"`
	}

	if yaml.Unmarshal(content, &doc) != nil {
		return wf
	}

	wf.Triggers = triggerNames(&doc.On)

	if doc.Jobs.Kind == yaml.MappingNode {
		wf.Jobs = len(doc.Jobs.Content) / 2
	}

	return wf
}

// triggerNames handles the three shapes of `on`: a scalar, a sequence and a mapping.
func triggerNames(node *yaml.Node) []string {
	names := []string{}

	switch node.Kind {
	case yaml.ScalarNode:
		if node.Value != "" {
			names = append(names, node.Value)
		}
	case yaml.SequenceNode:
		for _, item := range node.Content {
			if item.Kind == yaml.ScalarNode {
				names = append(names, item.Value)
			}
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			names = append(names, node.Content[i].Value)
		}
	}

	return names
}

func (c *WorkflowClassifier) check(_ context.Context, t Target) (Result, error) {
	classified := map[string]int{ClassVerify: 0, ClassMerge: 0, ClassOther: 0}
	files := []Workflow{}
	names := []string{}

	for _, path := range workflowFiles(t.FS) {
		content, err := fs.ReadFile(t.FS, path)
		if err != nil {
			content = nil
		}

		wf := c.Analyze(baseName(path), content)
		files = append(files, wf)
		names = append(names, wf.Name)
		classified[wf.Classification]++
	}

	return Result{
		KeyPresent:       len(files) > 0,
		"count":          len(files),
		"classified":     classified,
		"files":          files,
		"workflow_names": names,
	}, nil
}
