package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/derWhity/bhajanbook/internal/catalog"
	"github.com/derWhity/bhajanbook/internal/festival"
	"github.com/derWhity/bhajanbook/internal/filter"
	"github.com/derWhity/bhajanbook/internal/models"
)

// printSongs writes a song table and the bodies if they have been loaded
func printSongs(w io.Writer, songs []models.Song, withBody bool) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tLOCAL TITLE\tCATEGORY")
	for _, s := range songs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.ID, s.Title, s.LocalTitle, s.Category)
	}
	tw.Flush()
	if !withBody {
		return
	}
	for _, s := range songs {
		fmt.Fprintf(w, "\n== %s ==\n%s\n", s.Title, s.Body)
	}
}

// describeSource explains where a degraded result came from
func describeSource(res catalog.Result, hasSnapshot bool) string {
	switch {
	case res.Status == catalog.StatusOffline:
		return fmt.Sprintf("Server catalog not reachable - showing the offline snapshot taken at %s",
			res.TakenAt.Local().Format(festival.DateLayout+" 15:04"))
	case hasSnapshot:
		return "Server catalog not reachable and the offline snapshot could not be read"
	}
	return "Server catalog not reachable and no offline snapshot available - run 'bhajanctl download' while online"
}

func newSearchCmd(a *app) *cobra.Command {
	var (
		category string
		full     bool
	)
	cmd := &cobra.Command{
		Use:   "search [text]",
		Short: "Search the catalog by title, local title, keyword or body text",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) > 0 {
				query = args[0]
			}
			return a.withCatalog(func(cat *catalog.Catalog) error {
				res := cat.QueryFilter(cmd.Context(), filter.New(query, category), full)
				if cat.Offline() {
					fmt.Fprintln(cmd.ErrOrStderr(), describeSource(res, cat.HasSnapshot()))
				}
				if res.Status == catalog.StatusUnavailable {
					return res.Err
				}
				if res.Empty() {
					printf(cmd, "No songs found\n")
					return nil
				}
				printSongs(cmd.OutOrStdout(), res.Songs, full)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", models.CategoryAll, "Only list songs of this category")
	cmd.Flags().BoolVar(&full, "full", false, "Print the song texts as well")
	return cmd
}

func newDownloadCmd(a *app) *cobra.Command {
	var serverSide bool
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Store the full catalog in the offline snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if serverSide {
				n, err := a.client.RefreshServerSnapshot(cmd.Context())
				if err != nil {
					return err
				}
				printf(cmd, "Server snapshot refreshed with %d songs\n", n)
				return nil
			}
			return a.withCatalog(func(cat *catalog.Catalog) error {
				n, err := cat.Download(cmd.Context())
				if err != nil {
					return err
				}
				printf(cmd, "Stored %d songs in the offline snapshot\n", n)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&serverSide, "server-side", false, "Refresh the server's own snapshot instead of the local one")
	return cmd
}

// readBody reads a song text from the given file. An empty name or "-" reads from stdin
func readBody(cmd *cobra.Command, file string) (string, error) {
	var (
		body []byte
		err  error
	)
	if file == "" || file == "-" {
		body, err = io.ReadAll(cmd.InOrStdin())
	} else {
		body, err = os.ReadFile(file)
	}
	return string(body), err
}

func newSongCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "song",
		Short: "Show, add and remove songs",
	}

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a song including its text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.client.GetSong(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printf(cmd, "%s (%s)\nCategory: %s\n", s.Title, s.LocalTitle, s.Category)
			if len(s.Keywords) > 0 {
				printf(cmd, "Keywords: %s\n", strings.Join(s.Keywords, ", "))
			}
			printf(cmd, "\n%s\n", s.Body)
			return nil
		},
	}

	var (
		song     models.Song
		bodyFile string
	)
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a song to the catalog. The text is read from --body-file or stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, err := readBody(cmd, bodyFile)
			if err != nil {
				return err
			}
			song.Body = body
			created, err := a.client.CreateSong(cmd.Context(), &song)
			if err != nil {
				return err
			}
			printf(cmd, "Created song %s in category %s\n", created.ID, created.Category)
			return nil
		},
	}
	add.Flags().StringVar(&song.Title, "title", "", "Transliterated title")
	add.Flags().StringVar(&song.LocalTitle, "local-title", "", "Title in the original script")
	add.Flags().StringVar(&song.Category, "category", "", "Category of the song (defaults to the community category)")
	add.Flags().StringSliceVar(&song.Keywords, "keyword", nil, "Search keyword. May be given multiple times")
	add.Flags().StringVar(&song.AudioURL, "audio-url", "", "Link to a recording")
	add.Flags().StringVar(&bodyFile, "body-file", "", "File holding the song text")

	var (
		edited   models.Song
		editBody string
	)
	edit := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change a community song. Only the given fields are changed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch models.SongPatch
			flags := cmd.Flags()
			if flags.Changed("title") {
				patch.Title = &edited.Title
			}
			if flags.Changed("local-title") {
				patch.LocalTitle = &edited.LocalTitle
			}
			if flags.Changed("keyword") {
				patch.Keywords = &edited.Keywords
			}
			if flags.Changed("audio-url") {
				patch.AudioURL = &edited.AudioURL
			}
			if flags.Changed("body-file") {
				body, err := readBody(cmd, editBody)
				if err != nil {
					return err
				}
				patch.Body = &body
			}
			if patch == (models.SongPatch{}) {
				return fmt.Errorf("nothing to change - give at least one field")
			}
			updated, err := a.client.UpdateSong(cmd.Context(), args[0], patch)
			if err != nil {
				return err
			}
			printf(cmd, "Updated song %s (%s)\n", updated.ID, updated.Title)
			return nil
		},
	}
	edit.Flags().StringVar(&edited.Title, "title", "", "New transliterated title")
	edit.Flags().StringVar(&edited.LocalTitle, "local-title", "", "New title in the original script")
	edit.Flags().StringSliceVar(&edited.Keywords, "keyword", nil, "Search keyword replacing the old ones. May be given multiple times")
	edit.Flags().StringVar(&edited.AudioURL, "audio-url", "", "New link to a recording")
	edit.Flags().StringVar(&editBody, "body-file", "", "File holding the new song text, '-' for stdin")

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a community song",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.DeleteSong(cmd.Context(), args[0]); err != nil {
				return err
			}
			printf(cmd, "Deleted song %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(show, add, edit, del)
	return cmd
}

func newCategoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "category",
		Short: "List and add song categories",
	}
	list := &cobra.Command{
		Use:   "list",
		Short: "List the known categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cats, err := a.client.Categories(cmd.Context())
			if err != nil {
				return err
			}
			printf(cmd, "%s\n", strings.Join(cats, "\n"))
			return nil
		},
	}
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Register a new category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.client.AddCategory(cmd.Context(), args[0]); err != nil {
				return err
			}
			printf(cmd, "Category %s added\n", strings.ToLower(args[0]))
			return nil
		},
	}
	cmd.AddCommand(list, add)
	return cmd
}
