package leads

import (
	"errors"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/fentro/cms-console/internal/apperr"
)

// Duration is one of the bookable meeting lengths.
type Duration string

const (
	Duration30m Duration = "30m"
	Duration1h  Duration = "1h"
	Duration90m Duration = "1.5h"
	Duration2h  Duration = "2h"
)

// DefaultLength is used when the form leaves duration blank.
const DefaultLength = Duration30m

// LocationType separates online from in-person meetings.
type LocationType string

const (
	LocationVirtual LocationType = "virtual"
	LocationOffline LocationType = "offline"
)

// Platform is the video-call provider of a virtual meeting.
type Platform string

const (
	PlatformMeet Platform = "meet"
	PlatformZoom Platform = "zoom"
)

var validate = validator.New()

var meetingLinkPatterns = map[Platform]*regexp.Regexp{
	PlatformMeet: regexp.MustCompile(`(?i)^https://meet\.google\.com/[a-z0-9\-]+$`),
	PlatformZoom: regexp.MustCompile(`(?i)^https://[a-z0-9\-.]+\.zoom\.us/j/[0-9]+$`),
}

// MatchesPlatform reports whether link is a valid join URL for platform.
func MatchesPlatform(platform Platform, link string) bool {
	pattern, ok := meetingLinkPatterns[platform]
	if !ok {
		return false
	}
	return pattern.MatchString(link)
}

// MeetingRequest is the form and the POST body.
type MeetingRequest struct {
	LeadID       string       `json:"leadId" validate:"required"`
	Title        string       `json:"title" validate:"required"`
	Description  string       `json:"description" validate:"required"`
	Date         string       `json:"date" validate:"required,datetime=2006-01-02"`
	Time         string       `json:"time" validate:"required,len=5,datetime=15:04"`
	Duration     Duration     `json:"duration" validate:"oneof=30m 1h 1.5h 2h"`
	LocationType LocationType `json:"locationType" validate:"oneof=virtual offline"`
	Platform     Platform     `json:"platform,omitempty"`
	MeetingLink  string       `json:"meetingLink,omitempty"`
	Location     string       `json:"location,omitempty"`
	Agenda       string       `json:"agenda,omitempty"`
}

// FieldErrors maps a form field (JSON name) to its inline message.
type FieldErrors map[string]string

func (f FieldErrors) Error() string {
	fields := make([]string, 0, len(f))
	for field := range f {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+f[field])
	}
	return strings.Join(parts, "; ")
}

var fieldMessages = map[string]string{
	"leadId":       "Lead is required",
	"title":        "Title is required",
	"description":  "Description is required",
	"date":         "Date must be YYYY-MM-DD",
	"time":         "Time must be HH:MM (24-hour)",
	"duration":     "Duration must be 30m, 1h, 1.5h or 2h",
	"locationType": "Choose virtual or offline",
}

// Normalize trims text fields and fills the default duration.
func (r MeetingRequest) Normalize() MeetingRequest {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	r.Date = strings.TrimSpace(r.Date)
	r.Time = strings.TrimSpace(r.Time)
	r.MeetingLink = strings.TrimSpace(r.MeetingLink)
	r.Location = strings.TrimSpace(r.Location)
	r.Platform = Platform(strings.ToLower(strings.TrimSpace(string(r.Platform))))
	if r.Duration == "" {
		r.Duration = DefaultLength
	}
	if r.LocationType == LocationOffline {
		r.Platform = ""
		r.MeetingLink = ""
	}
	if r.LocationType == LocationVirtual {
		r.Location = ""
	}
	return r
}

// Validate returns every field-level failure; an empty map means valid.
func (r MeetingRequest) Validate() FieldErrors {
	problems := FieldErrors{}
	if err := validate.Struct(r); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			for _, fieldErr := range validationErrors {
				field := jsonFieldName(fieldErr.StructField())
				problems[field] = fieldMessages[field]
			}
		}
	}

	switch r.LocationType {
	case LocationVirtual:
		switch {
		case r.Platform != PlatformMeet && r.Platform != PlatformZoom:
			problems["platform"] = "Choose Google Meet or Zoom"
		case r.MeetingLink == "":
			problems["meetingLink"] = "Meeting link is required"
		case !MatchesPlatform(r.Platform, r.MeetingLink):
			problems["meetingLink"] = linkHint(r.Platform)
		}
	case LocationOffline:
		if r.Location == "" {
			problems["location"] = "Location is required"
		}
	}
	return problems
}

func linkHint(platform Platform) string {
	if platform == PlatformZoom {
		return "Enter a Zoom link like https://company.zoom.us/j/123456789"
	}
	return "Enter a Google Meet link like https://meet.google.com/abc-defg-hij"
}

func jsonFieldName(structField string) string {
	if structField == "" {
		return structField
	}
	switch structField {
	case "LeadID":
		return "leadId"
	case "LocationType":
		return "locationType"
	case "MeetingLink":
		return "meetingLink"
	}
	return strings.ToLower(structField[:1]) + structField[1:]
}

// invalidMeeting wraps problems so callers can recover the field map with errors.As.
func invalidMeeting(problems FieldErrors) error {
	message := "Please fix the highlighted fields"
	return apperr.Wrap(apperr.KindValidation, "invalid_meeting", message, problems)
}
