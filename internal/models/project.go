package models

// Project is one git working tree of the checkout
type Project struct {
	// Path relative to the checkout root ("." for a plain git checkout)
	Path string
	// Dir is the absolute directory of the working tree
	Dir string
	// Name is the manifest project name, empty for a plain git checkout
	Name string
}

// NewProject creates a new Project
func NewProject(path, dir, name string) Project {
	return Project{
		Path: path,
		Dir:  dir,
		Name: name,
	}
}

// Qualify prefixes a project-relative file path with the project path
func (p Project) Qualify(file string) string {
	if p.Path == "" || p.Path == "." {
		return file
	}
	return p.Path + "/" + file
}
