package display

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"

	"github.com/jonwraymond/toolshelf/catalog"
)

// BrowserOpener opens URLs with the platform's default handler.
type BrowserOpener struct {
	// Command overrides the launcher; the URL is appended as the last
	// argument.
	Command []string
}

// DefaultBrowserCommand returns the launcher for goos.
func DefaultBrowserCommand(goos string) []string {
	switch goos {
	case "darwin":
		return []string{"open"}
	case "windows":
		return []string{"rundll32", "url.dll,FileProtocolHandler"}
	default:
		return []string{"xdg-open"}
	}
}

func (o BrowserOpener) Open(ctx context.Context, url string) error {
	argv := o.Command
	if len(argv) == 0 {
		argv = DefaultBrowserCommand(runtime.GOOS)
	}
	if url == "" {
		return errors.New("display: empty url")
	}

	cmd := exec.CommandContext(ctx, argv[0], append(argv[1:len(argv):len(argv)], url)...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("display: %s: %w: %s", argv[0], err, out)
	}
	return nil
}

// WriterOpener prints URLs instead of opening them.
type WriterOpener struct {
	W io.Writer
}

func (o WriterOpener) Open(_ context.Context, url string) error {
	_, err := fmt.Fprintln(o.W, url)
	return err
}

var (
	_ catalog.Opener = BrowserOpener{}
	_ catalog.Opener = WriterOpener{}
)
