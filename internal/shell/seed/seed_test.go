package seed

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/artpar/jobtemplates/internal/core/domain"
	"github.com/artpar/jobtemplates/internal/shell/registry"
	"github.com/artpar/jobtemplates/internal/shell/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
templates:
  - name: nightly-backup
    template:
      image: restic/restic
      schedule: "0 3 * * *"
      args: [backup, /data]
      env:
        1: one
  - name: empty
    template: {}
`

func TestParse(t *testing.T) {
	cmds, err := Parse([]byte(sample))
	require.NoError(t, err)
	require.Len(t, cmds, 2)

	assert.Equal(t, "nightly-backup", cmds[0].Name)
	assert.JSONEq(t, `{
		"image": "restic/restic",
		"schedule": "0 3 * * *",
		"args": ["backup", "/data"],
		"env": {"1": "one"}
	}`, string(cmds[0].Template))

	assert.Equal(t, "empty", cmds[1].Name)
	assert.JSONEq(t, `{}`, string(cmds[1].Template))
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"malformed", "templates: [", "yaml"},
		{"missing name", "templates:\n  - template: {a: 1}\n", "name is required"},
		{"missing template", "templates:\n  - name: x\n", "template is required"},
		{"duplicate", "templates:\n  - name: x\n    template: {}\n  - name: x\n    template: {}\n", "duplicate name"},
		{"template not a mapping", "templates:\n  - name: x\n    template: [1]\n", "yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParse_Empty(t *testing.T) {
	cmds, err := Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, cmds)
}

func TestLoadFS(t *testing.T) {
	fsys := fstest.MapFS{
		"seed.yaml": &fstest.MapFile{Data: []byte(sample)},
	}

	cmds, err := LoadFS(fsys, "seed.yaml")
	require.NoError(t, err)
	assert.Len(t, cmds, 2)

	_, err = LoadFS(fsys, "missing.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read missing.yaml")
}

func TestApply_Idempotent(t *testing.T) {
	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer s.Close()
	reg := registry.New(s, nil)
	ctx := context.Background()

	cmds, err := Parse([]byte(sample))
	require.NoError(t, err)

	require.NoError(t, Apply(ctx, reg, cmds, nil))
	require.NoError(t, Apply(ctx, reg, cmds, nil))

	templates, err := reg.List(ctx)
	require.NoError(t, err)
	require.Len(t, templates, 2)
	assert.Equal(t, "empty", templates[0].Name)
	assert.Equal(t, "nightly-backup", templates[1].Name)
}

type failingCreator struct{}

func (failingCreator) Create(context.Context, domain.JobTemplateCreate) (domain.BoolResult, error) {
	return domain.BoolResult{}, domain.NewError(domain.ErrCodeUnableToStore, "disk full")
}

func TestApply_StopsOnError(t *testing.T) {
	cmds := []domain.JobTemplateCreate{{Name: "a", Template: []byte(`{}`)}}

	err := Apply(context.Background(), failingCreator{}, cmds, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "seed a")
	var derr *domain.Error
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, domain.ErrCodeUnableToStore, derr.Code)
}

func TestBodyFromYAML(t *testing.T) {
	body, err := BodyFromYAML([]byte("image: restic\nretries: 3\nlabels:\n  tier: gold\n"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"image":"restic","retries":3,"labels":{"tier":"gold"}}`, string(body))

	_, err = BodyFromYAML([]byte(""))
	assert.Error(t, err)

	_, err = BodyFromYAML([]byte("- a\n- b\n"))
	assert.Error(t, err)
}
