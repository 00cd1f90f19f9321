package utils

import "regexp"

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// ValidSlug reports whether s is a usable URL slug: lowercase letters,
// digits, and single hyphens between segments.
func ValidSlug(s string) bool {
	return len(s) <= 100 && slugPattern.MatchString(s)
}

var projectKeyPattern = regexp.MustCompile(`^[A-Z][A-Z0-9]{1,9}$`)

// ValidProjectKey reports whether s is a usable project key: 2-10 uppercase
// letters or digits, starting with a letter.
func ValidProjectKey(s string) bool {
	return projectKeyPattern.MatchString(s)
}
