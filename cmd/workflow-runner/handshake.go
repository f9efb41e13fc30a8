package main

import (
	"encoding/json"
	"net/http"

	"github.com/slack-go/slack/slackevents"
)

// Documentation: https://api.slack.com/apis/events-api#handshake
const slackbotUserAgent = "Slackbot 1.0 (+https://api.slack.com/robots)"

// slackURLVerificationResponse answers Slack's URL-verification
// handshake by echoing the challenge, and returns nil for every other
// request so normal webhook processing continues.
func slackURLVerificationResponse(headers http.Header, body []byte) *slackevents.ChallengeResponse {
	if headers.Get("User-Agent") != slackbotUserAgent {
		return nil
	}

	var event slackevents.EventsAPIURLVerificationEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil
	}
	if event.Type != slackevents.URLVerification || event.Challenge == "" {
		return nil
	}
	return &slackevents.ChallengeResponse{Challenge: event.Challenge}
}
