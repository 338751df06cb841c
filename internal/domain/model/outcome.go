package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ArtifactKind names the logical namespace an artifact is stored under.
type ArtifactKind string

const (
	// ArtifactScreenshot is the final page screenshot (PNG).
	ArtifactScreenshot ArtifactKind = "screenshot"
	// ArtifactAnimation is the replay of the whole run (GIF).
	ArtifactAnimation ArtifactKind = "animation"
)

// ArtifactKinds lists every supported kind in persistence order.
func ArtifactKinds() []ArtifactKind {
	return []ArtifactKind{ArtifactScreenshot, ArtifactAnimation}
}

// Valid returns true if the ArtifactKind is known.
func (k ArtifactKind) Valid() bool {
	return k == ArtifactScreenshot || k == ArtifactAnimation
}

// Ext returns the file extension (without dot) for artifacts of kind k.
func (k ArtifactKind) Ext() string {
	switch k {
	case ArtifactScreenshot:
		return "png"
	case ArtifactAnimation:
		return "gif"
	default:
		return "bin"
	}
}

// ContentType returns the MIME type served for artifacts of kind k.
func (k ArtifactKind) ContentType() string {
	switch k {
	case ArtifactScreenshot:
		return "image/png"
	case ArtifactAnimation:
		return "image/gif"
	default:
		return "application/octet-stream"
	}
}

// Filename returns the locator used for the artifact of kind k produced by jobID.
func (k ArtifactKind) Filename(jobID string) string {
	return jobID + "." + k.Ext()
}

// ValidArtifactName reports whether name is a plain file name that cannot escape its namespace.
// Hidden names are never artifact locators.
func ValidArtifactName(name string) bool {
	if name == "" || strings.HasPrefix(name, ".") {
		return false
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return false
	}
	return true
}

// RawArtifact is artifact content returned by an executor before it is persisted.
type RawArtifact struct {
	Kind ArtifactKind
	Data []byte
}

// Outcome is the terminal result of one executor invocation.
// A non-nil Err marks a failure; Result and Artifacts are ignored in that case.
type Outcome struct {
	Result    json.RawMessage
	Artifacts []RawArtifact
	Err       error
}

// Success builds a successful Outcome.
func Success(result json.RawMessage, artifacts ...RawArtifact) Outcome {
	return Outcome{Result: result, Artifacts: artifacts}
}

// Failure builds a failed Outcome.
func Failure(err error) Outcome {
	if err == nil {
		err = fmt.Errorf("executor reported failure without a description")
	}
	return Outcome{Err: err}
}

// Failed reports whether the outcome is a failure.
func (o Outcome) Failed() bool {
	return o.Err != nil
}

// AgentParams are the browser agent settings read when a job starts.
type AgentParams struct {
	APIBase        string `json:"api_base"`
	Model          string `json:"model"`
	ViewportWidth  int    `json:"viewport_width"`
	ViewportHeight int    `json:"viewport_height"`
	Headless       bool   `json:"headless"`
	Homepage       string `json:"homepage"`
}
