// Package seed loads job templates from a YAML file and registers them at startup.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/artpar/jobtemplates/internal/core/domain"
	"github.com/artpar/jobtemplates/internal/core/validation"
)

// File is the root structure of a seed file.
//
//	templates:
//	  - name: nightly-backup
//	    template:
//	      image: restic/restic
//	      schedule: "0 3 * * *"
type File struct {
	Templates []TemplateDef `yaml:"templates"`
}

// TemplateDef is a single seeded template. The body may be any YAML mapping.
type TemplateDef struct {
	Name     string                 `yaml:"name"`
	Template map[string]interface{} `yaml:"template"`
}

// Creator registers a template. *registry.Registry satisfies it.
type Creator interface {
	Create(ctx context.Context, cmd domain.JobTemplateCreate) (domain.BoolResult, error)
}

// Load reads and parses the seed file at path.
func Load(path string) ([]domain.JobTemplateCreate, error) {
	return LoadFS(os.DirFS(filepath.Dir(path)), filepath.Base(path))
}

// LoadFS reads and parses a seed file from fsys.
func LoadFS(fsys fs.FS, name string) ([]domain.JobTemplateCreate, error) {
	content, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	cmds, err := Parse(content)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	return cmds, nil
}

// Parse converts seed YAML into create commands, validating every entry.
func Parse(content []byte) ([]domain.JobTemplateCreate, error) {
	var file File
	if err := yaml.Unmarshal(content, &file); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(file.Templates))
	cmds := make([]domain.JobTemplateCreate, 0, len(file.Templates))
	for i, def := range file.Templates {
		if seen[def.Name] {
			return nil, fmt.Errorf("template %d (%s): duplicate name", i, def.Name)
		}
		seen[def.Name] = true

		var body json.RawMessage
		if def.Template != nil {
			raw, err := json.Marshal(normalize(def.Template))
			if err != nil {
				return nil, fmt.Errorf("template %d (%s): %w", i, def.Name, err)
			}
			body = raw
		}

		if _, msg := validation.ValidateCreateFields(def.Name, body); msg != "" {
			return nil, fmt.Errorf("template %d (%s): %s", i, def.Name, msg)
		}

		cmds = append(cmds, domain.JobTemplateCreate{Name: def.Name, Template: body})
	}
	return cmds, nil
}

// Apply registers every command. Create overwrites, so applying the same
// seed twice leaves the registry unchanged.
func Apply(ctx context.Context, c Creator, cmds []domain.JobTemplateCreate, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	for _, cmd := range cmds {
		if _, err := c.Create(ctx, cmd); err != nil {
			return fmt.Errorf("seed %s: %w", cmd.Name, err)
		}
	}

	logger.Info("seeded job templates", "count", len(cmds))
	return nil
}

// BodyFromYAML converts a YAML mapping into a JSON template body.
func BodyFromYAML(content []byte) (json.RawMessage, error) {
	var body map[string]interface{}
	if err := yaml.Unmarshal(content, &body); err != nil {
		return nil, err
	}
	if body == nil {
		return nil, fmt.Errorf("template is empty")
	}
	return json.Marshal(normalize(body))
}

// normalize rewrites nested YAML mappings with non-string keys into
// map[string]interface{} so they can be encoded as JSON.
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	default:
		return v
	}
}
