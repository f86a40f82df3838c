package extract

import (
	"encoding/json"
	"errors"
	"testing"
	"unicode/utf8"

	"github.com/kailas-cloud/jobrag/internal/domain"
)

func TestDetectMIME(t *testing.T) {
	tests := []struct {
		name     string
		declared string
		file     string
		data     []byte
		want     string
	}{
		{"declared wins", "application/pdf; charset=binary", "cv.txt", nil, MIMEPDF},
		{"octet stream falls through", "application/octet-stream", "cv.docx", nil, MIMEDocx},
		{"extension", "", "CV.PDF", nil, MIMEPDF},
		{"sniffed text", "", "cv", []byte("plain resume text"), MIMEPlain},
		{"sniffed pdf", "", "", []byte("%PDF-1.7\n"), MIMEPDF},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := DetectMIME(tc.declared, tc.file, tc.data); got != tc.want {
				t.Errorf("DetectMIME = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestText_Plain(t *testing.T) {
	got, err := Text(MIMEPlain, []byte("  Go developer\nfive years  \n"))
	if err != nil {
		t.Fatal(err)
	}
	if got != "Go developer\nfive years" {
		t.Errorf("unexpected text %q", got)
	}
}

func TestText_InvalidUTF8IsReplaced(t *testing.T) {
	got, err := Text(MIMEPlain, []byte("Go\xff\xfeRust, K\xc3\xb6ln"))
	if err != nil {
		t.Fatal(err)
	}
	if !utf8.ValidString(got) || got != "Go\uFFFDRust, K\u00f6ln" {
		t.Fatalf("unexpected text %q", got)
	}

	raw, err := json.Marshal(got)
	if err != nil {
		t.Fatal(err)
	}
	var back string
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatal(err)
	}
	if back != got {
		t.Errorf("text changed through JSON: %q -> %q", got, back)
	}
}

func TestText_PlainWhitespaceIsEmpty(t *testing.T) {
	got, err := Text(MIMEPlain, []byte(" \n\t "))
	if err != nil || got != "" {
		t.Errorf("expected empty text, got %q, %v", got, err)
	}
}

func TestText_Unsupported(t *testing.T) {
	_, err := Text("image/png", []byte{0x89, 'P', 'N', 'G'})
	if !errors.Is(err, domain.ErrUnreadableDocument) {
		t.Errorf("expected unreadable document, got %v", err)
	}
}

func TestText_CorruptPDF(t *testing.T) {
	_, err := Text(MIMEPDF, []byte("%PDF-1.4 not really"))
	if !errors.Is(err, domain.ErrUnreadableDocument) {
		t.Errorf("expected unreadable document, got %v", err)
	}
}

func TestText_CorruptDocx(t *testing.T) {
	_, err := Text(MIMEDocx, []byte("PK not a zip"))
	if !errors.Is(err, domain.ErrUnreadableDocument) {
		t.Errorf("expected unreadable document, got %v", err)
	}
}
