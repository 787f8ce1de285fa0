package plugin

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOutputPath(t *testing.T) {
	dir := filepath.Join("/src", "model")
	target := &Target{Name: "UserInfo", PackageName: "model", FilePath: filepath.Join(dir, "user.go")}

	pkgDefault := &PackageConfig{PackageDir: dir, DefaultOutput: "pkg_gen.go", PluginOutputs: map[string]string{}}
	pkgPlugin := &PackageConfig{PackageDir: dir, DefaultOutput: "pkg_gen.go", PluginOutputs: map[string]string{"clonegen": "clone_gen.go"}}

	tests := []struct {
		name     string
		ann      string
		fallback string
		pkg      *PackageConfig
		cmd      string
		want     string
	}{
		{name: "default", want: filepath.Join(dir, "user_derive.go")},
		{name: "generator default", fallback: "$FILE_x.go", want: filepath.Join(dir, "user_x.go")},
		{name: "command line", cmd: "all_gen.go", fallback: "$FILE_x.go", want: filepath.Join(dir, "all_gen.go")},
		{name: "package default", pkg: pkgDefault, cmd: "all_gen.go", want: filepath.Join(dir, "pkg_gen.go")},
		{name: "package plugin", pkg: pkgPlugin, cmd: "all_gen.go", want: filepath.Join(dir, "clone_gen.go")},
		{name: "annotation wins", ann: "$TYPE_clone", pkg: pkgPlugin, cmd: "all_gen.go", want: filepath.Join(dir, "user_info_clone.go")},
		{name: "package variable", ann: "$PACKAGE_gen.go", want: filepath.Join(dir, "model_gen.go")},
		{name: "template", ann: "{{ .Package }}_{{ .Type | snakecase }}.go", want: filepath.Join(dir, "model_user_info.go")},
		{name: "template with file", ann: "gen/{{ .File | upper }}.go", want: filepath.Join(dir, "gen", "USER.go")},
		{name: "absolute", ann: "/tmp/out.go", want: filepath.Clean("/tmp/out.go")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GetOutputPath(target, tt.ann, tt.fallback, tt.pkg, "clonegen", tt.cmd)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetOutputPath_TemplateErrors(t *testing.T) {
	target := &Target{Name: "A", PackageName: "model", FilePath: "/src/a.go"}
	for _, pattern := range []string{"{{ .Missing }}.go", "{{ .Type "} {
		t.Run(pattern, func(t *testing.T) {
			_, err := GetOutputPath(target, pattern, "", nil, "clonegen", "")
			assert.Error(t, err)
		})
	}
}

func TestPackageConfig_GetPluginOutput(t *testing.T) {
	var nilCfg *PackageConfig
	assert.Empty(t, nilCfg.GetPluginOutput("clonegen"))

	cfg := &PackageConfig{DefaultOutput: "d.go", PluginOutputs: map[string]string{"defaultgen": "x.go"}}
	assert.Equal(t, "x.go", cfg.GetPluginOutput("defaultgen"))
	assert.Equal(t, "d.go", cfg.GetPluginOutput("clonegen"))
}
