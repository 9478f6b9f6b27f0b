package marker

import (
	"errors"
	"testing"

	"github.com/starford/skilltally/internal/apperr"
)

func TestApply_BlockList(t *testing.T) {
	in := "---\ntitle: Acme\ntags:\n  - jobs\n  - remote\nsource: linkedin\n---\nBody [[Go]]\n"
	want := "---\ntitle: Acme\ntags:\n  - jobs\n  - remote\n  - processed\nsource: linkedin\n---\nBody [[Go]]\n"
	out, changed, err := Apply([]byte(in), "processed")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !changed {
		t.Fatal("expected change")
	}
	if string(out) != want {
		t.Errorf("got:\n%q\nwant:\n%q", out, want)
	}
}

func TestApply_ReusesItemIndent(t *testing.T) {
	in := "---\ntags:\n- jobs\n---\n"
	want := "---\ntags:\n- jobs\n- processed\n---\n"
	out, _, err := Apply([]byte(in), "processed")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if string(out) != want {
		t.Errorf("got %q, want %q", out, want)
	}
}

func TestApply_AlreadyMarkedIsNoop(t *testing.T) {
	in := []byte("---\ntags:\n  - jobs\n  - processed\n---\nbody\n")
	out, changed, err := Apply(in, "processed")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if changed {
		t.Error("expected no change")
	}
	if string(out) != string(in) {
		t.Errorf("content changed: %q", out)
	}
}

func TestApply_NoHeaderSkipped(t *testing.T) {
	in := []byte("Just [[Go]] here\n")
	out, changed, err := Apply(in, "processed")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if changed || string(out) != string(in) {
		t.Errorf("header-less note must be left alone, got %q", out)
	}
}

func TestApply_FlowList(t *testing.T) {
	cases := map[string]string{
		"---\ntags: [jobs, reject]\n---\nx\n": "---\ntags: [jobs, reject, processed]\n---\nx\n",
		"---\ntags: []\n---\nx\n":             "---\ntags: [processed]\n---\nx\n",
		"---\ntags: jobs\n---\nx\n":           "---\ntags: [jobs, processed]\n---\nx\n",
	}
	for in, want := range cases {
		out, changed, err := Apply([]byte(in), "processed")
		if err != nil {
			t.Fatalf("Apply(%q): %v", in, err)
		}
		if !changed || string(out) != want {
			t.Errorf("Apply(%q) = %q, want %q", in, out, want)
		}
	}
}

func TestApply_EmptyTagsField(t *testing.T) {
	in := "---\ntags:\ntitle: x\n---\n"
	want := "---\ntags:\n  - processed\ntitle: x\n---\n"
	out, _, err := Apply([]byte(in), "processed")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if string(out) != want {
		t.Errorf("got %q, want %q", out, want)
	}
}

func TestApply_HeaderWithoutTagsField(t *testing.T) {
	in := "---\ntitle: Acme\n---\n[[Go]]\n"
	want := "---\ntitle: Acme\ntags:\n  - processed\n---\n[[Go]]\n"
	out, changed, err := Apply([]byte(in), "processed")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !changed || string(out) != want {
		t.Errorf("got %q, want %q", out, want)
	}
}

func TestApply_EmptyHeader(t *testing.T) {
	in := "---\n---\nbody\n"
	want := "---\ntags:\n  - processed\n---\nbody\n"
	out, _, err := Apply([]byte(in), "processed")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if string(out) != want {
		t.Errorf("got %q, want %q", out, want)
	}
}

func TestApply_PreservesCRLF(t *testing.T) {
	in := "---\r\ntags:\r\n  - jobs\r\n---\r\nbody\r\n"
	want := "---\r\ntags:\r\n  - jobs\r\n  - processed\r\n---\r\nbody\r\n"
	out, _, err := Apply([]byte(in), "processed")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if string(out) != want {
		t.Errorf("got %q, want %q", out, want)
	}
}

func TestApply_SubstringIsNotMarker(t *testing.T) {
	in := "---\ntags:\n  - jobs\nnote: already processed elsewhere\n---\n"
	_, changed, err := Apply([]byte(in), "processed")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !changed {
		t.Error("only an exact tag counts as the marker")
	}
}

func TestApply_Idempotent(t *testing.T) {
	in := []byte("---\ntags:\n  - jobs\n---\nbody\n")
	once, _, err := Apply(in, "processed")
	if err != nil {
		t.Fatal(err)
	}
	twice, changed, err := Apply(once, "processed")
	if err != nil {
		t.Fatal(err)
	}
	if changed || string(once) != string(twice) {
		t.Errorf("second Apply changed content: %q", twice)
	}
}

func TestApply_KeepsTrailingComment(t *testing.T) {
	cases := map[string]string{
		"---\ntags: jobs # from clipper\ntitle: x\n---\n[[Go]]\n":   "---\ntags: [jobs, processed] # from clipper\ntitle: x\n---\n[[Go]]\n",
		"---\ntags: [jobs]  # from clipper\ntitle: x\n---\n[[Go]]\n": "---\ntags: [jobs, processed]  # from clipper\ntitle: x\n---\n[[Go]]\n",
		"---\ntags: # list\n  - jobs\n---\n":                         "---\ntags: # list\n  - jobs\n  - processed\n---\n",
	}
	for in, want := range cases {
		out, changed, err := Apply([]byte(in), "processed")
		if err != nil {
			t.Fatalf("Apply(%q): %v", in, err)
		}
		if !changed || string(out) != want {
			t.Errorf("Apply(%q) = %q, want %q", in, out, want)
		}
	}
}

func TestApply_MultiLineFlowListRefused(t *testing.T) {
	in := []byte("---\ntags: [jobs,\n  remote]\n---\n[[Go]]\n")
	out, changed, err := Apply(in, "processed")
	if !errors.Is(err, apperr.ErrNotMarked) {
		t.Fatalf("err = %v, want ErrNotMarked", err)
	}
	if changed || string(out) != string(in) {
		t.Errorf("content must be left untouched, got %q", out)
	}
}

func TestApply_RefusesEditThatChangesFields(t *testing.T) {
	// A quoted scalar would become a one-item flow list with different tags.
	in := []byte("---\ntags: \"jobs, remote\"\ntitle: x\n---\n")
	out, changed, err := Apply(in, "processed")
	if !errors.Is(err, apperr.ErrNotMarked) {
		t.Fatalf("err = %v, want ErrNotMarked", err)
	}
	if changed || string(out) != string(in) {
		t.Errorf("content must be left untouched, got %q", out)
	}
}
