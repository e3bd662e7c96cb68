package checker

import (
	"strings"
	"unicode/utf8"

	"mockly/internal/model"
	"mockly/internal/utils/sort"
)

// ExperienceLevels are the accepted experience brackets.
var ExperienceLevels = []string{"0-1", "2-3", "4-6", "7-10", "10+"}

const (
	minPositionLength    = 2
	minDescriptionLength = 10
)

// ValidateJobSpec checks the creation input of an interview. Lengths are
// counted in characters after trimming.
func ValidateJobSpec(spec model.JobSpec) error {
	if utf8.RuneCountInString(strings.TrimSpace(spec.Position)) < minPositionLength {
		return &model.ValidationError{Field: "jobPosition", Message: "must be at least 2 characters"}
	}
	if utf8.RuneCountInString(strings.TrimSpace(spec.Description)) < minDescriptionLength {
		return &model.ValidationError{Field: "jobDescription", Message: "must be at least 10 characters"}
	}
	if !sort.Contains(ExperienceLevels, spec.Experience) {
		return &model.ValidationError{Field: "experienceLevel", Message: "must be one of 0-1, 2-3, 4-6, 7-10, 10+"}
	}
	return nil
}

// CheckOwner fails with ErrUnauthenticated when no owner is known.
func CheckOwner(ownerID string) error {
	if strings.TrimSpace(ownerID) == "" {
		return model.ErrUnauthenticated
	}
	return nil
}
