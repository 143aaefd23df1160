package api

import (
	"regexp"
	"strconv"
)

// maxUsernameLen caps admin usernames.
const maxUsernameLen = 64

// minPasswordLen is the shortest accepted admin password.
const minPasswordLen = 8

// maxPasswordLen caps admin passwords.
const maxPasswordLen = 256

// emailRe is a basic email format regex. Not exhaustive; validates structure only.
var emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// e164Re validates dialable destinations in E.164 form.
var e164Re = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

func validateUsername(value string) string {
	if value == "" {
		return "username is required"
	}
	if len(value) > maxUsernameLen {
		return "username exceeds maximum length"
	}
	return ""
}

func validatePassword(value string) string {
	if len(value) < minPasswordLen {
		return "password must be at least 8 characters"
	}
	if len(value) > maxPasswordLen {
		return "password exceeds maximum length"
	}
	return ""
}

// validateSettings checks every section present in a PUT /settings body.
// Returns an error message if invalid, empty string if OK.
func validateSettings(req *settingsRequest) string {
	if req.Pickup != nil {
		switch req.Pickup.Mode {
		case "immediate", "after_rings":
		default:
			return "pickup mode must be immediate or after_rings"
		}
		if n, err := strconv.Atoi(req.Pickup.Rings); err != nil || n < 1 || n > 10 {
			return "pickup rings must be between 1 and 10"
		}
		switch req.Pickup.MachineDetection {
		case "on", "off":
		default:
			return "machine detection must be on or off"
		}
	}
	if req.Routing != nil {
		if req.Routing.HumanLine != "" && !e164Re.MatchString(req.Routing.HumanLine) {
			return "human line must be an E.164 number"
		}
		switch req.Routing.FailPolicy {
		case "open", "closed":
		default:
			return "fail policy must be open or closed"
		}
	}
	if req.Retention != nil && req.Retention.Days != "" {
		if n, err := strconv.Atoi(req.Retention.Days); err != nil || n < 0 || n > 3650 {
			return "retention days must be between 0 and 3650"
		}
	}
	if req.Notify != nil && req.Notify.Email != "" {
		if !emailRe.MatchString(req.Notify.Email) {
			return "notify email is not a valid email address"
		}
	}
	if req.Language != nil {
		switch req.Language.Default {
		case "en", "es":
		default:
			return "default language must be en or es"
		}
	}
	return ""
}
