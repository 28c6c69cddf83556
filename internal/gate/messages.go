package gate

import "github.com/noah-isme/gema-gate-api/internal/dto"

// Message types exchanged with gate devices.
const (
	TypeDecode       = "decode"
	TypeDecision     = "decision"
	TypeDecoderError = "decoder_error"

	TypeDecoder = "decoder"
	TypePrompt  = "prompt"
	TypeResult  = "result"
	TypePending = "pending"
)

// Decoder actions sent to the device camera.
const (
	ActionStart  = "start"
	ActionPause  = "pause"
	ActionResume = "resume"
	ActionStop   = "stop"
)

// Decoder error phases. An error without a phase counts as a start failure until the first decode.
const (
	PhaseStart   = "start"
	PhaseRuntime = "runtime"
)

// Scan outcomes reported in result messages.
const (
	OutcomeReleased  = "released"
	OutcomeNotFound  = "not_found"
	OutcomeNoMatch   = "no_match"
	OutcomeCancelled = "cancelled"
	OutcomeError     = "error"
	OutcomeDisabled  = "disabled"
)

// Inbound is any message sent by the device.
type Inbound struct {
	Type      string `json:"type"`
	Token     string `json:"token,omitempty"`
	PromptID  string `json:"prompt_id,omitempty"`
	Confirmed *bool  `json:"confirmed,omitempty"`
	Error     string `json:"error,omitempty"`
	Phase     string `json:"phase,omitempty"`
}

// DecoderCommand drives the device camera.
type DecoderCommand struct {
	Type   string `json:"type"`
	Action string `json:"action"`
}

// Prompt asks the operator to confirm a release.
type Prompt struct {
	Type         string              `json:"type"`
	PromptID     string              `json:"prompt_id"`
	ReleaseID    string              `json:"release_id,omitempty"`
	Title        string              `json:"title"`
	Message      string              `json:"message"`
	PhotoURL     string              `json:"photo_url,omitempty"`
	ConfirmLabel string              `json:"confirm_label"`
	CancelLabel  string              `json:"cancel_label"`
	Student      dto.StudentResponse `json:"student"`
}

// Result reports how a scan ended.
type Result struct {
	Type      string               `json:"type"`
	Outcome   string               `json:"outcome"`
	Message   string               `json:"message"`
	ReleaseID string               `json:"release_id,omitempty"`
	Student   *dto.StudentResponse `json:"student,omitempty"`
	Warning   bool                 `json:"warning,omitempty"`
}

// PendingSnapshot carries the unit's pending releases.
type PendingSnapshot struct {
	Type     string                `json:"type"`
	Releases []dto.ReleaseResponse `json:"releases"`
}
