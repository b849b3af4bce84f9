// Package apperr defines the error kinds shared by the metronome packages.
// Errors are built with fault so they carry an internal message, a
// user-facing message and a kind tag that callers switch on.
package apperr

import (
	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
)

const (
	// AudioUnavailable means the audio output could not be opened or resumed.
	AudioUnavailable ftag.Kind = "audio_unavailable"
	// RecordingUnsupported means capture or the requested encoding is not available.
	RecordingUnsupported ftag.Kind = "recording_unsupported"
	// SynthesisFailure is reported on the side channel, never returned to the scheduler.
	SynthesisFailure ftag.Kind = "synthesis_failure"
	InvalidInput     ftag.Kind = "invalid_input"
	NotFound         ftag.Kind = "not_found"
)

// New creates a tagged error. user is the message shown to a person.
func New(kind ftag.Kind, msg, user string) error {
	return fault.New(msg, fmsg.WithDesc(msg, user), ftag.With(kind))
}

// Wrap tags err with kind. A nil err stays nil.
func Wrap(err error, kind ftag.Kind, msg, user string) error {
	if err == nil {
		return nil
	}
	return fault.Wrap(err, fmsg.WithDesc(msg, user), ftag.With(kind))
}

// Is reports whether err carries kind.
func Is(err error, kind ftag.Kind) bool {
	if err == nil {
		return false
	}
	return ftag.Get(err) == kind
}

// Kind returns the kind tag of err, or "" when untagged.
func Kind(err error) ftag.Kind {
	if err == nil {
		return ""
	}
	return ftag.Get(err)
}

// UserMessage returns the message meant for the person at the controls.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if issue := fmsg.GetIssue(err); issue != "" {
		return issue
	}
	return err.Error()
}
