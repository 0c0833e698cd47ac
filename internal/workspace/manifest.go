package workspace

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// manifest is the subset of a repo manifest the checker needs. Elements are
// kept in document order since remove-project only affects projects
// declared before it.
type manifest struct {
	XMLName  xml.Name          `xml:"manifest"`
	Elements []manifestElement `xml:",any"`
}

type manifestElement struct {
	XMLName xml.Name
	Name    string `xml:"name,attr"`
	Path    string `xml:"path,attr"`
	Groups  string `xml:"groups,attr"`
}

type manifestProject struct {
	Name   string
	Path   string
	Groups string
}

// dir returns the checkout-relative directory of the project
func (p manifestProject) dir() string {
	if p.Path != "" {
		return p.Path
	}
	return p.Name
}

func (p manifestProject) inDefaultGroup() bool {
	for _, g := range strings.FieldsFunc(p.Groups, func(r rune) bool { return r == ',' || r == ' ' }) {
		if g == "notdefault" {
			return false
		}
	}
	return true
}

// manifestPath returns the top-level manifest of a repo checkout
func manifestPath(repoDir string) (string, error) {
	for _, candidate := range []string{
		filepath.Join(repoDir, "manifest.xml"),
		filepath.Join(repoDir, "manifests", "default.xml"),
	} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no manifest found under %s", repoDir)
}

// localManifests returns .repo/local_manifests/*.xml in name order
func localManifests(repoDir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(repoDir, "local_manifests", "*.xml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// manifestLoader accumulates projects across the top-level manifest, its
// includes and the local manifests
type manifestLoader struct {
	manifestsDir string
	projects     []manifestProject
	// stack holds the manifests currently being read, for cycle detection
	stack []string
}

// loadProjects reads the manifest at path followed by the local manifests
// of repoDir, following includes, and returns the default-group projects in
// manifest order.
func loadProjects(path, repoDir string) ([]manifestProject, error) {
	l := &manifestLoader{manifestsDir: filepath.Join(repoDir, "manifests")}
	if err := l.read(path); err != nil {
		return nil, err
	}

	locals, err := localManifests(repoDir)
	if err != nil {
		return nil, err
	}
	for _, local := range locals {
		if err := l.read(local); err != nil {
			return nil, err
		}
	}

	var kept []manifestProject
	for _, p := range l.projects {
		if p.inDefaultGroup() {
			kept = append(kept, p)
		}
	}
	return kept, nil
}

func (l *manifestLoader) read(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	for _, open := range l.stack {
		if open == abs {
			return fmt.Errorf("manifest include cycle at %s", path)
		}
	}
	l.stack = append(l.stack, abs)
	defer func() { l.stack = l.stack[:len(l.stack)-1] }()

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var m manifest
	if err := xml.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("parse manifest %s: %w", path, err)
	}

	for _, e := range m.Elements {
		switch e.XMLName.Local {
		case "include":
			if err := l.read(filepath.Join(l.manifestsDir, e.Name)); err != nil {
				return err
			}
		case "project":
			l.projects = append(l.projects, manifestProject{Name: e.Name, Path: e.Path, Groups: e.Groups})
		case "remove-project":
			l.remove(e.Name)
		}
	}
	return nil
}

func (l *manifestLoader) remove(name string) {
	kept := l.projects[:0]
	for _, p := range l.projects {
		if p.Name != name {
			kept = append(kept, p)
		}
	}
	l.projects = kept
}
