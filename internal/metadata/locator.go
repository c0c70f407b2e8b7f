package metadata

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"girbind/internal/errors"
	"girbind/internal/logger"

	"github.com/hashicorp/go-version"
)

// Oldest repository format the reader understands
const minimumRepositoryVersion = ">= 1.2"

// Locator finds introspection files for included namespaces in a list of
// search directories.
type Locator struct {
	SearchPaths []string
	reader      *GirReader
	constraint  version.Constraints
}

// NewLocator creates a locator reading files with reader.
func NewLocator(reader *GirReader, searchPaths ...string) *Locator {
	constraint, err := version.NewConstraint(minimumRepositoryVersion)
	if err != nil {
		panic(err)
	}
	return &Locator{SearchPaths: searchPaths, reader: reader, constraint: constraint}
}

// Finds the file for namespace name. An empty wanted version picks the
// highest version available across all search paths.
func (locator *Locator) Find(name string, wanted string) (string, error) {
	if wanted != "" {
		for _, dir := range locator.SearchPaths {
			path := filepath.Join(dir, name+"-"+wanted+".gir")
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}
		return "", errors.WithHintf(errors.Newf("no introspection file for %s-%s", name, wanted),
			"searched %s", strings.Join(locator.SearchPaths, ", "))
	}

	candidates := map[*version.Version]string{}
	var versions []*version.Version
	for _, dir := range locator.SearchPaths {
		matches, err := filepath.Glob(filepath.Join(dir, name+"-*.gir"))
		if err != nil {
			return "", errors.Wrapf(err, "failed to search %s", dir)
		}
		for _, match := range matches {
			raw := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(match), name+"-"), ".gir")
			v, err := version.NewVersion(raw)
			if err != nil {
				logger.Debugw("skipping file with unparsable version", "path", match)
				continue
			}
			candidates[v] = match
			versions = append(versions, v)
		}
	}
	if len(versions) == 0 {
		return "", errors.WithHintf(errors.Newf("no introspection file for %s", name),
			"searched %s", strings.Join(locator.SearchPaths, ", "))
	}

	sort.Sort(version.Collection(versions))
	return candidates[versions[len(versions)-1]], nil
}

// Loads the repositories under paths together with all repositories they
// include, transitively. Each namespace is loaded once; the result lists
// included repositories before the ones including them.
func (locator *Locator) Load(paths ...string) ([]*Repository, error) {
	var ordered []*Repository
	loaded := map[string]bool{}

	var load func(path string) error
	load = func(path string) error {
		abs, err := filepath.Abs(path)
		if err != nil {
			return errors.Wrapf(err, "failed to resolve %s", path)
		}
		if loaded[abs] {
			return nil
		}
		loaded[abs] = true

		repo, err := locator.reader.ReadFile(path)
		if err != nil {
			return err
		}
		if err := locator.checkVersion(repo, path); err != nil {
			return err
		}

		for _, inc := range repo.Includes {
			if locator.hasNamespace(ordered, inc.Name) {
				continue
			}
			incPath, err := locator.Find(inc.Name, inc.Version)
			if err != nil {
				return errors.Wrapf(err, "include of %s", path)
			}
			if err := load(incPath); err != nil {
				return err
			}
		}

		logger.Debugw("loaded repository", "path", path, "namespaces", len(repo.Namespaces))
		ordered = append(ordered, repo)
		return nil
	}

	for _, path := range paths {
		if err := load(path); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}

func (locator *Locator) checkVersion(repo *Repository, path string) error {
	v, err := version.NewVersion(repo.Version)
	if err != nil {
		return errors.Wrapf(errors.ErrUnsupportedVersion, "%s: invalid repository version %q", path, repo.Version)
	}
	if !locator.constraint.Check(v) {
		return errors.Wrapf(errors.ErrUnsupportedVersion, "%s: repository version %s", path, repo.Version)
	}
	return nil
}

func (locator *Locator) hasNamespace(repos []*Repository, name string) bool {
	for _, repo := range repos {
		for _, ns := range repo.Namespaces {
			if ns.Name == name {
				return true
			}
		}
	}
	return false
}
