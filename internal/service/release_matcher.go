package service

import "github.com/noah-isme/gema-gate-api/internal/models"

// MatchRelease picks the first pending release for the student. Releases keyed by the raw token are
// accepted too, since some coordinators authorise by enrolment code instead of student id.
func MatchRelease(student models.Student, token string, pending []models.AuthorizedRelease) (models.AuthorizedRelease, bool) {
	for _, release := range pending {
		if release.IsPending() && release.StudentID == student.ID {
			return release, true
		}
	}
	if token == "" {
		return models.AuthorizedRelease{}, false
	}
	for _, release := range pending {
		if release.IsPending() && release.StudentID == token {
			return release, true
		}
	}
	return models.AuthorizedRelease{}, false
}
