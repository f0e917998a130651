package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/toolshelf/catalog"
	"github.com/jonwraymond/toolshelf/display"
)

func newListCmd(opts *cliOptions) *cobra.Command {
	var favoritesOnly, noURLs bool
	cmd := &cobra.Command{
		Use:   "list [terms...]",
		Short: "List tools matching every search term, favorites first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				term := display.NewTerminal(cmd.OutOrStdout(), display.WithURLs(!noURLs))
				term.SetSearch(strings.Join(args, " "))
				_, err := a.controller(cmd.Context(), term, catalog.WithFavoritesView(favoritesOnly))
				return err
			})
		},
	}
	cmd.Flags().BoolVarP(&favoritesOnly, "favorites", "f", false, "show favorites only")
	cmd.Flags().BoolVar(&noURLs, "no-urls", false, "omit tool URLs")
	return cmd
}

func newFavCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "fav <name>",
		Short: "Toggle a tool in the favorites set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				ctrl, err := a.controller(cmd.Context(), display.NewTerminal(io.Discard))
				if err != nil {
					return err
				}
				name := args[0]
				if err := ctrl.ToggleFavorite(cmd.Context(), name); err != nil {
					return err
				}
				verb := "removed from"
				for _, f := range ctrl.Favorites() {
					if f == name {
						verb = "added to"
						break
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s favorites\n", name, verb)
				return nil
			})
		},
	}
}

func newOpenCmd(opts *cliOptions) *cobra.Command {
	var printOnly bool
	cmd := &cobra.Command{
		Use:   "open <terms...>",
		Short: "Open the tool when exactly one matches the search",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(a *app) error {
				var opener catalog.Opener = display.BrowserOpener{}
				if printOnly {
					opener = display.WriterOpener{W: cmd.OutOrStdout()}
				}
				term := display.NewTerminal(io.Discard)
				term.SetSearch(strings.Join(args, " "))
				ctrl, err := a.controller(cmd.Context(), term, catalog.WithOpener(opener))
				if err != nil {
					return err
				}
				opened, err := ctrl.HandleEnter(cmd.Context())
				if err != nil {
					return err
				}
				if !opened {
					n := len(catalog.Filter(ctrl.Tools(), term.SearchText(), false, nil))
					return exitWith(2, fmt.Sprintf("%d tools match %q; refine the search", n, term.SearchText()))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&printOnly, "print", false, "print the URL instead of opening it")
	return cmd
}

func newBrowseCmd(opts *cliOptions) *cobra.Command {
	var rows int
	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Interactive search: type terms, :fav NAME, :view, :scroll, empty line opens",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(a *app) error {
				out := cmd.OutOrStdout()
				term := display.NewTerminal(out, display.WithViewportRows(rows))
				ctrl, err := a.controller(cmd.Context(), term,
					catalog.WithOpener(display.BrowserOpener{}),
				)
				if err != nil {
					return err
				}
				return browse(cmd, ctrl, term, cmd.InOrStdin(), out)
			})
		},
	}
	cmd.Flags().IntVar(&rows, "rows", display.DefaultViewportRows, "terminal rows used for reveal decisions")
	return cmd
}

type browseAction int

const (
	actionSearch browseAction = iota
	actionEvent
	actionQuit
)

// browseCommand is one parsed input line.
type browseCommand struct {
	action browseAction
	search string
	event  catalog.Event
}

// parseBrowseLine maps an input line to a controller event. Lines starting
// with ':' are commands; anything else replaces the search text.
func parseBrowseLine(line string) (browseCommand, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return browseCommand{action: actionEvent, event: catalog.Event{Type: catalog.EventEnter}}, nil
	}
	if !strings.HasPrefix(trimmed, ":") {
		return browseCommand{action: actionSearch, search: line}, nil
	}

	name, arg, _ := strings.Cut(trimmed[1:], " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case "q", "quit":
		return browseCommand{action: actionQuit}, nil
	case "enter":
		return browseCommand{action: actionEvent, event: catalog.Event{Type: catalog.EventEnter}}, nil
	case "view":
		return browseCommand{action: actionEvent, event: catalog.Event{Type: catalog.EventToggleView}}, nil
	case "scroll":
		return browseCommand{action: actionEvent, event: catalog.Event{Type: catalog.EventScroll}}, nil
	case "clear":
		return browseCommand{action: actionSearch, search: ""}, nil
	case "fav":
		if arg == "" {
			return browseCommand{}, errors.New("usage: :fav NAME")
		}
		return browseCommand{action: actionEvent, event: catalog.Event{Type: catalog.EventToggleFavorite, Name: arg}}, nil
	default:
		return browseCommand{}, fmt.Errorf("unknown command :%s", name)
	}
}

func browse(cmd *cobra.Command, ctrl *catalog.Controller, term *display.Terminal, in io.Reader, out io.Writer) error {
	ctx := cmd.Context()
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		bc, err := parseBrowseLine(scanner.Text())
		if err != nil {
			fmt.Fprintln(out, err)
			continue
		}

		switch bc.action {
		case actionQuit:
			return nil
		case actionSearch:
			term.SetSearch(bc.search)
			err = ctrl.Dispatch(ctx, catalog.Event{Type: catalog.EventInput})
		case actionEvent:
			err = ctrl.Dispatch(ctx, bc.event)
			if bc.event.Type == catalog.EventScroll {
				fmt.Fprintf(out, "%d cards revealed\n", term.Revealed())
			}
		}

		switch {
		case errors.Is(err, catalog.ErrCatalogUnavailable), errors.Is(err, catalog.ErrNotLoaded):
			return err
		case err != nil:
			fmt.Fprintln(out, err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}
