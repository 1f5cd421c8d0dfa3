package notifications

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

const (
	absoluteLayout = "Jan 2, 2006 at 3:04 PM"
	meetingLayout  = "Mon, Jan 2 at 3:04 PM"

	// The CMS raises upcoming reminders a fixed lead time before the send.
	upcomingPhrase = "Scheduled to send in 10 minutes"
)

// Row is the drawer rendering of one notification.
type Row struct {
	ID      string   `json:"id"`
	Kind    Kind     `json:"kind"`
	Variant string   `json:"variant"`
	Title   string   `json:"title"`
	Lines   []string `json:"lines"`
	When    string   `json:"when"`
	Unread  bool     `json:"unread"`
}

// Render lays out n for display relative to now.
func Render(n Notification, now time.Time) Row {
	row := Row{
		ID:     n.ID,
		Kind:   n.Kind,
		Title:  n.Title,
		Unread: !n.Read,
		When:   humanize.RelTime(n.CreatedAt, now, "ago", "from now"),
	}
	if n.Data != nil {
		row.Variant = string(n.Data.PayloadKind())
	}

	switch payload := n.Data.(type) {
	case NewsletterUpcoming:
		row.Lines = []string{
			payload.Subject,
			upcomingPhrase,
			payload.NextSendDate.Local().Format(absoluteLayout),
		}
	case NewsletterSent:
		row.Lines = []string{payload.Subject, "Newsletter sent successfully"}
	case SubscriberEvent:
		row.Lines = []string{payload.Email, subscriberPhrase(payload)}
	case MeetingScheduled:
		row.Lines = meetingLines(payload)
	case LeadCaptured:
		lead := payload.LeadName
		if payload.LeadEmail != "" {
			lead = strings.TrimSpace(fmt.Sprintf("%s <%s>", payload.LeadName, payload.LeadEmail))
		}
		row.Lines = []string{lead}
		if payload.LeadCompany != "" {
			row.Lines = append(row.Lines, payload.LeadCompany)
		}
	}
	if len(row.Lines) == 0 && n.Message != "" {
		row.Lines = []string{n.Message}
	}
	return row
}

func subscriberPhrase(payload SubscriberEvent) string {
	switch payload.Kind {
	case PayloadUnsubscription:
		return "Unsubscribed from the newsletter"
	case PayloadReactivation:
		return "Reactivated their subscription"
	default:
		return "Subscribed to the newsletter"
	}
}

func meetingLines(payload MeetingScheduled) []string {
	lines := []string{payload.MeetingTitle}
	if payload.LeadName != "" {
		lines = append(lines, "With "+payload.LeadName)
	}
	when := payload.MeetingDateTime.Local().Format(meetingLayout)
	if payload.MeetingDuration != "" {
		when += " · " + payload.MeetingDuration
	}
	lines = append(lines, when)

	switch {
	case payload.LocationType == "virtual" && payload.Platform != "":
		lines = append(lines, platformLabel(payload.Platform))
	case payload.Location != "":
		lines = append(lines, payload.Location)
	}
	if payload.ScheduledBy != "" {
		lines = append(lines, "Scheduled by "+payload.ScheduledBy)
	}
	return lines
}

func platformLabel(platform string) string {
	switch strings.ToLower(platform) {
	case "google-meet", "google_meet", "googlemeet", "meet":
		return "Google Meet"
	case "zoom":
		return "Zoom"
	default:
		return platform
	}
}
