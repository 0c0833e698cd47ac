package models

import "strings"

// Experiment identifies the branch under test
type Experiment struct {
	// Code is the experiment code name given on the command line
	Code string
	// Branch is the resolved branch, e.g. "aosp/experiment/android-5.1.1_r3/12/foo"
	Branch string
	// Ref is the full reference name passed to git
	Ref string
	// Remote is true when Branch is a remote-tracking ref
	Remote bool
}

// ShortName returns the branch without its namespace and remote prefix
func (e Experiment) ShortName(namespace string) string {
	i := strings.Index(e.Branch, namespace+"/")
	if i < 0 {
		return e.Branch
	}
	return e.Branch[i+len(namespace)+1:]
}
