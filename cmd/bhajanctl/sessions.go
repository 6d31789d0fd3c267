package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/derWhity/bhajanbook/internal/festival"
	"github.com/derWhity/bhajanbook/internal/models"
	"github.com/derWhity/bhajanbook/internal/playlist"
)

// printSession writes the session header and its playlist
func printSession(w io.Writer, s *models.Session) {
	fmt.Fprintf(w, "Session %s on %s [%s]\n", s.ID, s.Date.Format(festival.DateLayout), s.Status)
	if s.Notes != "" {
		fmt.Fprintf(w, "Notes: %s\n", s.Notes)
	}
	if len(s.Entries) == 0 {
		fmt.Fprintln(w, "The playlist is empty")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tTITLE\tLOCAL TITLE\tSONG\tNOTE")
	for _, e := range s.Entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", e.Position, e.Title, e.LocalTitle, e.SongID, e.Note)
	}
	tw.Flush()
}

// parsePosition converts a 1-based playlist position into an index
func parsePosition(arg string, entries []models.PlaylistEntry) (int, error) {
	pos, err := strconv.Atoi(arg)
	if err != nil || pos < 1 || pos > len(entries) {
		return 0, fmt.Errorf("'%s' is no position inside the playlist (1-%d)", arg, len(entries))
	}
	return pos - 1, nil
}

// editPlaylist loads the session, applies the change through a playlist manager and waits for the server to store
// it. If the server refuses the change, the reconciled playlist is printed and the error is returned
func (a *app) editPlaylist(
	cmd *cobra.Command,
	sessionID string,
	edit func(m *playlist.Manager, s *models.Session) (*models.Session, error),
) error {
	ctx := cmd.Context()
	s, err := a.client.FindByID(ctx, sessionID)
	if err != nil {
		return err
	}
	var outcome playlist.Outcome
	m := playlist.New(a.client, a.logger,
		playlist.WithTimeout(a.timeout),
		playlist.WithNotify(func(o playlist.Outcome) { outcome = o }),
	)
	if _, err := edit(m, s); err != nil {
		return err
	}
	m.Wait()
	if outcome.Err != nil {
		if outcome.Reconciled {
			fmt.Fprintln(cmd.ErrOrStderr(), "The server refused the change - this is the stored playlist:")
			printSession(cmd.ErrOrStderr(), outcome.Session)
		}
		return outcome.Err
	}
	printSession(cmd.OutOrStdout(), outcome.Session)
	return nil
}

func newSessionCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Plan the sessions of a gathering and their playlists",
	}

	list := &cobra.Command{
		Use:   "list <gathering-id>",
		Short: "List the sessions of a gathering",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessions, err := a.client.Sessions(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tDATE\tSTATUS\tNOTES")
			for _, s := range sessions {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.ID, s.Date.Format(festival.DateLayout), s.Status, s.Notes)
			}
			return tw.Flush()
		},
	}

	var festivalDate, notes string
	create := &cobra.Command{
		Use:   "create <gathering-id> [date]",
		Short: "Plan a session on the given date (YYYY-MM-DD) or for a festival",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				date time.Time
				err  error
			)
			switch {
			case len(args) == 2 && festivalDate != "":
				return fmt.Errorf("either give a date or --festival, not both")
			case len(args) == 2:
				date, err = festival.ParseDate(args[1])
			case festivalDate != "":
				if date, err = festival.ParseDate(festivalDate); err == nil {
					date, err = a.client.SuggestDate(cmd.Context(), date)
				}
			default:
				return fmt.Errorf("a date or --festival is required")
			}
			if err != nil {
				return err
			}
			s, err := a.client.CreateSession(cmd.Context(), args[0], date, notes)
			if err != nil {
				return err
			}
			printf(cmd, "Created session %s on %s\n", s.ID, s.Date.Format(festival.DateLayout))
			return nil
		},
	}
	create.Flags().StringVar(&festivalDate, "festival", "", "Festival date to derive the session date from")
	create.Flags().StringVar(&notes, "notes", "", "Notes for the session")

	show := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Print a session with its playlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.client.FindByID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printSession(cmd.OutOrStdout(), s)
			return nil
		},
	}

	var entryNote string
	add := &cobra.Command{
		Use:   "add <session-id> <song-id>",
		Short: "Append a song to the playlist",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			song, err := a.client.GetSong(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			return a.editPlaylist(cmd, args[0], func(m *playlist.Manager, s *models.Session) (*models.Session, error) {
				return m.AddEntry(cmd.Context(), s, song, entryNote)
			})
		},
	}
	add.Flags().StringVar(&entryNote, "note", "", "Note for this entry, like the singer")

	remove := &cobra.Command{
		Use:   "remove <session-id> <position>",
		Short: "Remove the entry at the given position (starting at 1)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.editPlaylist(cmd, args[0], func(m *playlist.Manager, s *models.Session) (*models.Session, error) {
				index, err := parsePosition(args[1], s.Entries)
				if err != nil {
					return nil, err
				}
				return m.RemoveEntry(cmd.Context(), s, index)
			})
		},
	}

	reorder := &cobra.Command{
		Use:   "reorder <session-id> <position>...",
		Short: "Bring the playlist into a new order given as the current positions",
		Long: `Bring the playlist into a new order. Every current position has to be named exactly once.
"bhajanctl session reorder <id> 3 1 2" moves the third song to the top.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.editPlaylist(cmd, args[0], func(m *playlist.Manager, s *models.Session) (*models.Session, error) {
				order := make([]string, 0, len(args)-1)
				for _, arg := range args[1:] {
					index, err := parsePosition(arg, s.Entries)
					if err != nil {
						return nil, err
					}
					order = append(order, s.Entries[index].ID)
				}
				return m.Reorder(cmd.Context(), s, order)
			})
		},
	}

	status := &cobra.Command{
		Use:   "status <session-id> <UPCOMING|COMPLETED|CANCELLED>",
		Short: "Change the status of a session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := models.SessionStatus(strings.ToUpper(args[1]))
			s, err := a.client.UpdateSession(cmd.Context(), args[0], &st, nil)
			if err != nil {
				return err
			}
			printf(cmd, "Session %s is %s\n", s.ID, s.Status)
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Remove a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.DeleteSession(cmd.Context(), args[0]); err != nil {
				return err
			}
			printf(cmd, "Deleted session %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(list, create, show, add, remove, reorder, status, del)
	return cmd
}
