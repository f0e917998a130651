package display

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jonwraymond/toolshelf/catalog"
	"github.com/jonwraymond/toolshelf/kv"
)

func TestTerminal_RenderCards(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf)

	term.Render(catalog.View{Cards: []catalog.Card{
		{Name: "Regex101", URL: "https://regex101.com", Description: "Test regexes", Tags: []string{"regex", "dev"}, Favorited: true},
		{Name: "Squoosh"},
	}})

	want := "★ Regex101\n" +
		"  Test regexes\n" +
		"  https://regex101.com\n" +
		"  [regex] [dev]\n" +
		"☆ Squoosh\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{0, 4}, term.CardTops()); diff != "" {
		t.Errorf("CardTops mismatch (-want +got):\n%s", diff)
	}
}

func TestTerminal_RenderMessage(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf)
	msg := catalog.MsgNoTools

	term.Render(catalog.View{Message: &msg})

	if got := buf.String(); got != "No Tools Found\n  Try a different search term.\n" {
		t.Errorf("output = %q", got)
	}
	if len(term.CardTops()) != 0 {
		t.Error("message view has no cards")
	}
}

func TestTerminal_WithoutURLs(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf, WithURLs(false))
	term.Render(catalog.View{Cards: []catalog.Card{{Name: "A", URL: "https://a.test"}}})
	if strings.Contains(buf.String(), "https://a.test") {
		t.Errorf("URL printed: %q", buf.String())
	}
}

func TestTerminal_Toggle(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf)
	term.SetFavoritesToggle(catalog.ToggleState{Active: true, Icon: catalog.StarSolid, Label: " Show All"})
	term.SetFavoritesToggle(catalog.ToggleState{Icon: catalog.StarRegular, Label: " Show Favorites"})

	if got := buf.String(); got != "[★ Show All]\n[☆ Show Favorites]\n" {
		t.Errorf("output = %q", got)
	}
}

func TestTerminal_DrivesController(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	term := NewTerminal(&buf, WithViewportRows(4))

	tools := []catalog.Tool{
		{Name: "A", Description: "first", Tags: []string{"x"}},
		{Name: "B", Description: "second", Tags: []string{"y"}},
		{Name: "C", Description: "third", Tags: []string{"z"}},
	}
	src := catalog.SourceFunc(func(context.Context) ([]catalog.Tool, error) { return tools, nil })
	store, err := kv.OpenFile(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatal(err)
	}
	ctrl, err := catalog.New(ctx, src, term, store)
	if err != nil {
		t.Fatal(err)
	}
	if err := ctrl.Load(ctx); err != nil {
		t.Fatal(err)
	}

	// Cards are three lines each; only the first top (0) is above 3 rows.
	if err := ctrl.HandleScroll(); err != nil {
		t.Fatal(err)
	}
	if term.Revealed() != 1 {
		t.Errorf("Revealed() = %d, want 1", term.Revealed())
	}

	buf.Reset()
	term.SetSearch("second")
	_ = ctrl.Dispatch(ctx, catalog.Event{Type: catalog.EventInput})
	if got := buf.String(); got != "☆ B\n  second\n  [y]\n" {
		t.Errorf("filtered output = %q", got)
	}
}

func TestWriterOpener(t *testing.T) {
	var buf bytes.Buffer
	if err := (WriterOpener{W: &buf}).Open(context.Background(), "https://a.test"); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "https://a.test\n" {
		t.Errorf("output = %q", buf.String())
	}
}

func TestBrowserOpener(t *testing.T) {
	ctx := context.Background()
	if err := (BrowserOpener{Command: []string{"true"}}).Open(ctx, "https://a.test"); err != nil {
		t.Skipf("no usable launcher: %v", err)
	}
	if err := (BrowserOpener{Command: []string{"false"}}).Open(ctx, "https://a.test"); err == nil {
		t.Error("failing launcher should error")
	}
	if err := (BrowserOpener{Command: []string{"true"}}).Open(ctx, ""); err == nil {
		t.Error("empty URL should error")
	}
}

func TestDefaultBrowserCommand(t *testing.T) {
	tests := map[string]string{"darwin": "open", "linux": "xdg-open", "windows": "rundll32", "freebsd": "xdg-open"}
	for goos, want := range tests {
		if got := DefaultBrowserCommand(goos)[0]; got != want {
			t.Errorf("DefaultBrowserCommand(%s) = %s, want %s", goos, got, want)
		}
	}
}
