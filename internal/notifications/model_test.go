package notifications

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNotificationDecodesPayloadVariants(t *testing.T) {
	testCases := []struct {
		name string
		raw  string
		want PayloadKind
	}{
		{name: "upcoming", raw: `{"kind":"upcoming","subject":"July","nextSendDate":"2024-07-01T10:00:00Z"}`, want: PayloadUpcoming},
		{name: "sent", raw: `{"kind":"sent","subject":"July"}`, want: PayloadSent},
		{name: "subscription", raw: `{"kind":"subscription","email":"a@b.co","subscribedAt":"2024-07-01T10:00:00Z"}`, want: PayloadSubscription},
		{name: "unsubscription", raw: `{"kind":"unsubscription","email":"a@b.co"}`, want: PayloadUnsubscription},
		{name: "reactivation legacy type", raw: `{"type":"reactivation","email":"a@b.co"}`, want: PayloadReactivation},
		{name: "meeting", raw: `{"kind":"meeting","meetingTitle":"Intro","leadName":"Kim","meetingDateTime":"2024-07-01T10:00:00Z"}`, want: PayloadMeeting},
		{name: "lead", raw: `{"kind":"lead","leadName":"Kim","leadEmail":"kim@x.io"}`, want: PayloadLead},
		{name: "unknown falls back to lead", raw: `{"kind":"mystery","leadName":"Kim"}`, want: PayloadLead},
		{name: "missing data", raw: `null`, want: PayloadLead},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			var n Notification
			body := `{"id":"n1","title":"t","createdAt":"2024-01-01T00:00:00Z","data":` + testCase.raw + `}`
			if err := json.Unmarshal([]byte(body), &n); err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			if n.Data == nil || n.Data.PayloadKind() != testCase.want {
				t.Fatalf("expected payload %s, got %#v", testCase.want, n.Data)
			}
		})
	}
}

func TestNotificationAcceptsLegacyMembers(t *testing.T) {
	var n Notification
	body := `{"_id":"n9","type":"warning","read":true,"createdAt":"2024-01-01T00:00:00Z","data":{"kind":"meeting","meetingTitle":"Demo","platform":"zoom","locationType":"virtual"}}`
	if err := json.Unmarshal([]byte(body), &n); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if n.ID != "n9" || n.Kind != KindWarning || !n.Read {
		t.Fatalf("unexpected decode %+v", n)
	}
	meeting, ok := n.Data.(MeetingScheduled)
	if !ok || meeting.MeetingTitle != "Demo" || meeting.Platform != "zoom" {
		t.Fatalf("unexpected meeting payload %#v", n.Data)
	}
	if !n.CreatedAt.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected createdAt %v", n.CreatedAt)
	}
}

func TestNotificationEncodesPayloadTag(t *testing.T) {
	original := Notification{ID: "n1", Kind: KindInfo, Data: NewsletterSent{Kind: PayloadSent, Subject: "July"}}
	encoded, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	var decoded Notification
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	sent, ok := decoded.Data.(NewsletterSent)
	if !ok || sent.Subject != "July" {
		t.Fatalf("expected sent payload after round trip, got %#v", decoded.Data)
	}
}
