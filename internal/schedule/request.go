package schedule

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"gopkg.in/yaml.v3"

	"github.com/caesarsage/mini-pm/internal/task"
)

// Request is the body accepted by the schedule endpoint and the document
// format of JSON and YAML task files.
type Request struct {
	Tasks []task.Spec `json:"tasks" yaml:"tasks" validate:"dive"`
}

// Response wraps a successful order.
type Response struct {
	RecommendedOrder []string `json:"recommendedOrder"`
}

// hclDocument mirrors a task file written as
//
//	task "Design" {
//	  estimated_hours = 4
//	  depends_on      = ["Research"]
//	}
type hclDocument struct {
	Tasks []hclTask `hcl:"task,block"`
}

type hclTask struct {
	Title          string   `hcl:"title,label"`
	EstimatedHours *int     `hcl:"estimated_hours,optional"`
	DueDate        *string  `hcl:"due_date,optional"`
	DependsOn      []string `hcl:"depends_on,optional"`
}

// LoadFile reads task specs from a .json, .yaml/.yml or .hcl file.
func LoadFile(path string) ([]task.Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read task file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ParseJSON(bytes.NewReader(data))
	case ".yaml", ".yml":
		return ParseYAML(bytes.NewReader(data))
	case ".hcl":
		return ParseHCL(data, path)
	default:
		return nil, fmt.Errorf("unsupported task file extension %q", filepath.Ext(path))
	}
}

func ParseJSON(r io.Reader) ([]task.Spec, error) {
	var req Request
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("decode json tasks: %w", err)
	}
	return req.Tasks, nil
}

func ParseYAML(r io.Reader) ([]task.Spec, error) {
	var req Request
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&req); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decode yaml tasks: %w", err)
	}
	return req.Tasks, nil
}

func ParseHCL(src []byte, filename string) ([]task.Spec, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}

	var doc hclDocument
	diags = gohcl.DecodeBody(file.Body, nil, &doc)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}

	specs := make([]task.Spec, 0, len(doc.Tasks))
	for _, t := range doc.Tasks {
		spec := task.Spec{Title: t.Title, Dependencies: t.DependsOn}
		if t.EstimatedHours != nil {
			spec.EstimatedHours = *t.EstimatedHours
		}
		if t.DueDate != nil {
			spec.DueDate = *t.DueDate
		}
		specs = append(specs, spec)
	}
	return specs, nil
}
