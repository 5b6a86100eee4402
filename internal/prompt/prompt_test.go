package prompt

import (
	"strings"
	"testing"

	"github.com/socialcapitalacademy/coach/internal/session"
)

func TestCompose_NilProfile(t *testing.T) {
	got, err := Compose(nil)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if !strings.Contains(got, "SCA Coach") {
		t.Fatalf("missing coaching prompt")
	}
	if strings.Contains(got, "STUDENT CONTEXT") {
		t.Fatalf("context block present without a profile")
	}
}

func TestCompose_RendersOnlySetFields(t *testing.T) {
	firstGen := true
	got, err := Compose(&session.Profile{
		FirstGen:   &firstGen,
		Interests:  []string{"nursing", "public health"},
		Confidence: "medium",
	})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}

	for _, want := range []string{
		"STUDENT CONTEXT",
		`"firstGen": true`,
		`"confidence": "medium"`,
		"nursing",
		"public health",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q in composed prompt", want)
		}
	}
	if strings.Contains(got, "identityNotes") {
		t.Fatalf("unset field rendered")
	}
	if !strings.HasPrefix(got, "\nYou are SCA Coach") {
		t.Fatalf("coaching prompt must come first")
	}
}

func TestCompose_FirstGenFalseStillRendered(t *testing.T) {
	firstGen := false
	got, err := Compose(&session.Profile{FirstGen: &firstGen})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if !strings.Contains(got, `"firstGen": false`) {
		t.Fatalf("explicit false must be rendered, got:\n%s", got)
	}
}
