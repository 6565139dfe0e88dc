package importer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestFromFile_PlainText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reading.txt")
	if err := os.WriteFile(path, []byte("El perro corre rápido."), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	text, err := FromFile(path)
	if err != nil {
		t.Fatalf("FromFile: %v", err)
	}
	if text != "El perro corre rápido." {
		t.Errorf("text = %q", text)
	}
}

func TestFromFile_HTML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "article.html")
	doc := `<html><head><style>p{color:red}</style><script>var x=1;</script></head>
<body><h1>Titulo</h1><p>El gato duerme.</p></body></html>`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	text, err := FromFile(path)
	if err != nil {
		t.Fatalf("FromFile: %v", err)
	}
	if !strings.Contains(text, "El gato duerme.") {
		t.Errorf("text %q missing body content", text)
	}
	if strings.Contains(text, "var x=1") || strings.Contains(text, "color:red") {
		t.Errorf("text %q contains script/style content", text)
	}
}

func TestFromURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><body><p>Una casa grande.</p></body></html>`))
	}))
	defer srv.Close()

	text, err := FromURL(context.Background(), srv.Client(), srv.URL)
	if err != nil {
		t.Fatalf("FromURL: %v", err)
	}
	if !strings.Contains(text, "Una casa grande.") {
		t.Errorf("text = %q", text)
	}
}

func TestFromURL_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := FromURL(context.Background(), srv.Client(), srv.URL); err == nil {
		t.Fatal("expected error for 404 response")
	}
}

func TestCandidateWords(t *testing.T) {
	content := "El perro corre. El gato duerme. 42 es un número."
	got := CandidateWords("spanish", content, 0)
	want := []string{"el", "perro", "corre", "gato", "duerme", "es", "un", "número"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("CandidateWords = %v, want %v", got, want)
	}
}

func TestCandidateWords_Limit(t *testing.T) {
	got := CandidateWords("spanish", "uno dos tres cuatro", 2)
	if len(got) != 2 {
		t.Fatalf("got %d words, want 2", len(got))
	}
	if got[0] != "uno" || got[1] != "dos" {
		t.Errorf("got %v, want [uno dos]", got)
	}
}
