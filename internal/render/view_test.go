package render

import (
	"testing"

	"github.com/example/age-gate/internal/assurance"
	"github.com/example/age-gate/internal/session"
)

func TestRenderCapturingShowsWidgetAndOptions(t *testing.T) {
	view := Render(session.Snapshot{ID: "s1", Mode: session.Capturing, Level: assurance.Low, Secure: true})

	if view.Widget == nil || !view.Widget.Secure {
		t.Fatalf("expected secure widget, got %+v", view.Widget)
	}
	if view.Options == nil || view.Options.SelectedLevel != assurance.Low || len(view.Options.Levels) != 3 {
		t.Fatalf("unexpected options: %+v", view.Options)
	}
	if view.Result != nil || view.Image != "" || view.CanReset {
		t.Fatalf("expected no review content while capturing, got %+v", view)
	}
}

func TestRenderReviewingPendingShowsSpinner(t *testing.T) {
	view := Render(session.Snapshot{ID: "s1", Mode: session.Reviewing, Image: "img", Outcome: session.Outcome{Kind: session.Pending}})

	if view.Widget != nil || view.Options != nil {
		t.Fatal("expected widget hidden while reviewing")
	}
	if view.Image != "img" || view.Result == nil || !view.Result.Loading {
		t.Fatalf("expected image with loading indicator, got %+v", view)
	}
}

func TestRenderReviewingOutcomes(t *testing.T) {
	success := Render(session.Snapshot{Mode: session.Reviewing, Image: "img", Outcome: session.Outcome{Kind: session.Success, Text: "Access Denied"}})
	if success.Result.Title != "Response" || success.Result.Error || success.Result.Text != "Access Denied" {
		t.Fatalf("unexpected success result: %+v", success.Result)
	}

	failure := Render(session.Snapshot{Mode: session.Reviewing, Image: "img", Outcome: session.Outcome{Kind: session.Failure, Text: "bad request"}})
	if failure.Result.Title != "Error" || !failure.Result.Error || failure.Result.Text != "bad request" {
		t.Fatalf("unexpected failure result: %+v", failure.Result)
	}
	if !failure.CanReset {
		t.Fatal("expected reset control while reviewing")
	}
}
