package metadata

import (
	"os"
	"path/filepath"
	"testing"

	"girbind/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeGir(t *testing.T, dir string, file string, repoVersion string, namespace string, includes ...string) string {
	t.Helper()
	body := `<?xml version="1.0"?>
<repository version="` + repoVersion + `" xmlns="http://www.gtk.org/introspection/core/1.0">
`
	for _, inc := range includes {
		body += inc + "\n"
	}
	body += `<namespace name="` + namespace + `" version="1.0"/>
</repository>`
	path := filepath.Join(dir, file)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestFindPicksHighestVersion(t *testing.T) {
	dir := t.TempDir()
	writeGir(t, dir, "Gtk-3.0.gir", "1.2", "Gtk")
	writeGir(t, dir, "Gtk-4.0.gir", "1.2", "Gtk")
	writeGir(t, dir, "Gtk-10.0.gir", "1.2", "Gtk")

	locator := NewLocator(NewReader(), dir)
	path, err := locator.Find("Gtk", "")
	require.NoError(t, err)
	assert.Equal(t, "Gtk-10.0.gir", filepath.Base(path))

	path, err = locator.Find("Gtk", "3.0")
	require.NoError(t, err)
	assert.Equal(t, "Gtk-3.0.gir", filepath.Base(path))

	_, err = locator.Find("Gtk", "2.0")
	assert.Error(t, err)
	_, err = locator.Find("Pango", "")
	assert.Error(t, err)
}

func TestLoadFollowsIncludesOnce(t *testing.T) {
	dir := t.TempDir()
	writeGir(t, dir, "GLib-2.0.gir", "1.2", "GLib")
	writeGir(t, dir, "GObject-2.0.gir", "1.2", "GObject", `<include name="GLib" version="2.0"/>`)
	main := writeGir(t, dir, "Demo-1.0.gir", "1.2", "Demo",
		`<include name="GObject" version="2.0"/>`, `<include name="GLib" version="2.0"/>`)

	repos, err := NewLocator(NewReader(), dir).Load(main)
	require.NoError(t, err)
	require.Len(t, repos, 3)
	assert.Equal(t, "GLib", repos[0].Namespaces[0].Name)
	assert.Equal(t, "GObject", repos[1].Namespaces[0].Name)
	assert.Equal(t, "Demo", repos[2].Namespaces[0].Name)
}

func TestLoadRejectsOldRepositories(t *testing.T) {
	dir := t.TempDir()
	main := writeGir(t, dir, "Old-1.0.gir", "1.0", "Old")

	_, err := NewLocator(NewReader(), dir).Load(main)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnsupportedVersion))
}

func TestLoadReportsMissingInclude(t *testing.T) {
	dir := t.TempDir()
	main := writeGir(t, dir, "Demo-1.0.gir", "1.2", "Demo", `<include name="Missing" version="1.0"/>`)

	_, err := NewLocator(NewReader(), dir).Load(main)
	assert.Error(t, err)
}
