// Package render maps session state to what the page displays.
package render

import (
	"github.com/example/age-gate/internal/assurance"
	"github.com/example/age-gate/internal/session"
)

// Widget configures the face-capture widget.
type Widget struct {
	Secure bool `json:"secure"`
}

// Options describes the controls shown under the widget.
type Options struct {
	Levels        []assurance.Level `json:"levels"`
	SelectedLevel assurance.Level   `json:"selected_level"`
	Secure        bool              `json:"secure"`
}

// Result describes the panel shown under the captured image.
type Result struct {
	Loading bool   `json:"loading"`
	Title   string `json:"title,omitempty"`
	Text    string `json:"text,omitempty"`
	Error   bool   `json:"error"`
	CheckID string `json:"check_id,omitempty"`
}

// View is the complete display state of a session.
type View struct {
	SessionID string       `json:"session_id"`
	Mode      session.Mode `json:"mode"`
	Widget    *Widget      `json:"widget,omitempty"`
	Options   *Options     `json:"options,omitempty"`
	Image     string       `json:"image,omitempty"`
	Result    *Result      `json:"result,omitempty"`
	CanReset  bool         `json:"can_reset"`
}

// Render builds the view for snap. It owns no state.
func Render(snap session.Snapshot) View {
	view := View{SessionID: snap.ID, Mode: snap.Mode}

	if snap.Mode == session.Capturing {
		view.Widget = &Widget{Secure: snap.Secure}
		view.Options = &Options{
			Levels:        assurance.Levels,
			SelectedLevel: snap.Level,
			Secure:        snap.Secure,
		}
		return view
	}

	view.Image = snap.Image
	view.CanReset = true
	switch snap.Outcome.Kind {
	case session.Success:
		view.Result = &Result{Title: "Response", Text: snap.Outcome.Text, CheckID: snap.Outcome.CheckID}
	case session.Failure:
		view.Result = &Result{Title: "Error", Text: snap.Outcome.Text, Error: true, CheckID: snap.Outcome.CheckID}
	default:
		view.Result = &Result{Loading: true}
	}
	return view
}
