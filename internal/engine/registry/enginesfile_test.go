package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleEngines = `
engines:
  - name: Tesseract
    type: tesseract
    file_types: [PNG, .jpg, pdf]
    options:
      lang: eng+deu
      psm: 3
  - name: Cloud
    type: vision
    disabled: true
    file_types: [.png]
    options:
      endpoint: https://ocr.example.com/v1/recognize
      oauth:
        client_id: abc
  - name: Sidecar
    type: plugin
    options:
      binary: plugins/sidecar
`

func TestParseEnginesFile(t *testing.T) {
	t.Run("decodes specs in order", func(t *testing.T) {
		file, err := ParseEnginesFile([]byte(sampleEngines))

		require.NoError(t, err)
		require.Len(t, file.Engines, 3)

		tess := file.Engines[0]
		assert.Equal(t, "Tesseract", tess.Name)
		assert.Equal(t, TypeTesseract, tess.Type)
		assert.Equal(t, []string{".png", ".jpg", ".pdf"}, tess.FileTypes)
		assert.Equal(t, "eng+deu", tess.Options.GetString("lang", ""))
		assert.Equal(t, 3, tess.Options.GetInt("psm", 1))

		cloud := file.Engines[1]
		assert.True(t, cloud.Disabled)
		assert.Equal(t, "abc", cloud.Options.GetOptions("oauth").GetString("client_id", ""))
	})

	t.Run("Enabled drops disabled specs", func(t *testing.T) {
		file, err := ParseEnginesFile([]byte(sampleEngines))
		require.NoError(t, err)

		enabled := file.Enabled()

		require.Len(t, enabled, 2)
		assert.Equal(t, "Sidecar", enabled[1].Name)
	})

	t.Run("rejects empty files", func(t *testing.T) {
		_, err := ParseEnginesFile([]byte("engines: []"))
		assert.Error(t, err)
	})

	t.Run("rejects specs without type", func(t *testing.T) {
		_, err := ParseEnginesFile([]byte("engines:\n  - name: x\n"))
		assert.ErrorContains(t, err, "type is required")
	})

	t.Run("rejects plugins without binary", func(t *testing.T) {
		_, err := ParseEnginesFile([]byte("engines:\n  - name: x\n    type: plugin\n"))
		assert.ErrorContains(t, err, "binary")
	})

	t.Run("rejects malformed yaml", func(t *testing.T) {
		_, err := ParseEnginesFile([]byte("engines: [unclosed"))
		assert.Error(t, err)
	})
}

func TestLoadEnginesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engines.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleEngines), 0o600))

	file, err := LoadEnginesFile(path)

	require.NoError(t, err)
	assert.Equal(t, dir, file.Dir())
	assert.Equal(t, filepath.Join(dir, "plugins", "sidecar"), file.Engines[2].Options.GetString("binary", ""))

	_, err = LoadEnginesFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestDefaultEnginesFile(t *testing.T) {
	file := DefaultEnginesFile()

	require.Len(t, file.Engines, 1)
	assert.Equal(t, TypeTesseract, file.Engines[0].Type)
	assert.NoError(t, file.Validate())
}

func TestDiscovery(t *testing.T) {
	root := t.TempDir()
	writeSpec := func(dir, content string) {
		require.NoError(t, os.MkdirAll(filepath.Join(root, dir), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(root, dir, DefaultManifestFilename), []byte(content), 0o600))
	}
	writeSpec("alpha", "name: Alpha\nfile_types: [.png]\n")
	writeSpec("beta", "name: Beta\noptions:\n  binary: bin/beta-ocr\n")
	writeSpec("broken", "name: [")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0o755))

	d := NewDiscovery([]string{root, filepath.Join(root, "does-not-exist")}, testLogger())
	specs := d.Discover()

	require.Len(t, specs, 2)
	assert.Equal(t, "Alpha", specs[0].Name)
	assert.Equal(t, TypePlugin, specs[0].Type)
	assert.Equal(t, filepath.Join(root, "alpha", "alpha"), specs[0].Options.GetString("binary", ""))
	assert.Equal(t, filepath.Join(root, "beta", "bin", "beta-ocr"), specs[1].Options.GetString("binary", ""))
}
