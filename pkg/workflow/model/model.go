// Package model holds the core domain entities shared across every
// component: Workflow, Action, ActionType, Integration, and the OAuth
// token record shapes. These are the design terms from spec.md §3,
// expressed as Go structs with explicit field accessors rather than
// ad-hoc map navigation (per the DESIGN NOTES re-architecture guidance).
package model

import "encoding/json"

// ReferenceHandle is a short stable identifier for a node within a
// workflow; it is the key used by the reference language and for edges.
type ReferenceHandle = string

// ActionType is the closed set of recognised action type tags stored in
// actions.action_type.
type ActionType string

const (
	ActionTypeWebhook     ActionType = "WEBHOOK"
	ActionTypeManualStart ActionType = "MANUAL_START"
	ActionTypeHTTPRequest ActionType = "HTTP_REQUEST"
	ActionTypeIfCondition ActionType = "IF_CONDITION"
	ActionTypeAIInference ActionType = "AI_INFERENCE"
	ActionTypeSendEmail   ActionType = "SEND_EMAIL"
	ActionTypeIntegration ActionType = "INTEGRATION"
)

// Action is the persistent record of one workflow node: identifier,
// display name, reference handle, type tag, and the type-specific
// definition (left as raw JSON until the matching ActionNode is built).
type Action struct {
	ActionID        string
	WorkflowID      string
	ActionName      string
	ReferenceHandle ReferenceHandle
	ActionType      ActionType
	ActionDefinition json.RawMessage
}

// Workflow is a directed graph of actions: a reference-handle-keyed
// action map plus an adjacency list of successor handles. Invariant:
// every handle in AdjList's values exists as a key in Actions.
type Workflow struct {
	WorkflowID   string
	WorkflowName string
	IsLive       bool
	Actions      map[ReferenceHandle]*Action
	AdjList      map[ReferenceHandle][]ReferenceHandle
}

// Run is one execution instance of a Workflow.
type Run struct {
	RunID              string
	WorkflowID         string
	RunState           json.RawMessage
	LastUpdatedAt      int64
	CompletedAt        *int64
}

// Credential is the stored ciphertext blob plus its optional plaintext
// integration-type tag.
type Credential struct {
	WorkflowID      string
	CredentialName  string
	EncryptedSecret string
	CredentialType  *string
}

// OAuthToken is the Mode-A (refresh-token flow) stored token record.
type OAuthToken struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
	Scope        string `json:"scope"`
	TokenType    string `json:"token_type"`
}

// OAuthAccessToken is the Mode-B (client-credentials flow) cached
// access-only token.
type OAuthAccessToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresAt   int64  `json:"expires_at"`
}

// IntegrationType is the closed enumeration of third-party providers an
// Integration action can target (supplemented per SPEC_FULL.md §12.1 to
// the full 13-member set from the original source).
type IntegrationType string

const (
	IntegrationVirusTotal         IntegrationType = "VIRUS_TOTAL"
	IntegrationAlienvaultOtx      IntegrationType = "ALIENVAULT_OTX"
	IntegrationThreatpost         IntegrationType = "THREATPOST"
	IntegrationYaraify            IntegrationType = "YARAIFY"
	IntegrationPhishReport        IntegrationType = "PHISH_REPORT"
	IntegrationSlack              IntegrationType = "SLACK"
	IntegrationJira               IntegrationType = "JIRA"
	IntegrationMSTeams            IntegrationType = "MS_TEAMS"
	IntegrationMSDefenderForCloud IntegrationType = "MS_DEFENDER_FOR_CLOUD"
	IntegrationPulsedive          IntegrationType = "PULSEDIVE"
	IntegrationMSDefender         IntegrationType = "MS_DEFENDER"
	IntegrationGreyNoise          IntegrationType = "GREY_NOISE"
	IntegrationOpsgenie           IntegrationType = "OPSGENIE"
)

// Integration is the Action-level definition of an Integration node:
// provider tag, API tag, parameters (values may contain reference
// templates), and an optional credential name.
type Integration struct {
	IntegrationType IntegrationType
	API             string
	Params          map[string]json.RawMessage
	Credential      *string
}

// OAuthMode names the OAuth flow an integration type uses: Mode-A
// (refresh-token), Mode-B (client-credentials), or none.
type OAuthMode int

const (
	OAuthModeNone OAuthMode = iota
	OAuthModeA
	OAuthModeB
)

// OAuthModeOf reports which OAuth flow integrationType uses, and
// OAuthModeNone for integration types that don't use OAuth at all.
func OAuthModeOf(integrationType string) OAuthMode {
	switch integrationType {
	case string(IntegrationMSTeams):
		return OAuthModeA
	case string(IntegrationMSDefenderForCloud), string(IntegrationMSDefender):
		return OAuthModeB
	default:
		return OAuthModeNone
	}
}
