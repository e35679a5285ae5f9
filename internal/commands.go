package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/starford/filerecords/internal/apperr"
	"github.com/starford/filerecords/internal/manifest"
	"github.com/starford/filerecords/internal/mcpserver"
	"github.com/starford/filerecords/internal/models"
	"github.com/starford/filerecords/internal/registry"
	"github.com/starford/filerecords/internal/watch"
)

// ExportLayout formats the timestamp of default export names.
const ExportLayout = "2006-01-02_15-04-05"

// Export formats.
const (
	FormatYAML     = "yaml"
	FormatMarkdown = "md"
	FormatSQLite   = "sqlite"
	FormatBoth     = "both"
	FormatAll      = "all"
)

var exportExt = map[string]string{
	FormatYAML:     ".yaml",
	FormatMarkdown: ".md",
	FormatSQLite:   ".db",
}

var errNeedsConfirmation = errors.New("refusing to proceed without --yes")

// NewCommand returns the records command tree.
func NewCommand(opts ...Option) *cli.Command {
	a := newApplication(opts)

	// Flags keep parse state, so every command gets its own instances.
	commentFlag := func() cli.Flag {
		return &cli.StringFlag{Name: "comment", Aliases: []string{"c"}, Usage: "comment text"}
	}
	flagsFlag := func() cli.Flag {
		return &cli.StringSliceFlag{Name: "flag", Aliases: []string{"f"}, Usage: "flag or group label; repeatable"}
	}
	groupFlag := func() cli.Flag {
		return &cli.StringSliceFlag{Name: "group", Aliases: []string{"g"}, Usage: "define a flag group as label:flag1,flag2; repeatable"}
	}
	keepFlag := func() cli.Flag {
		return &cli.BoolFlag{Name: "keep", Aliases: []string{"k"}, Usage: "leave the file on disk untouched"}
	}
	yesFlag := func() cli.Flag {
		return &cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "confirm the operation"}
	}
	searchFlags := func(extra ...cli.Flag) []cli.Flag {
		return append([]cli.Flag{
			&cli.StringFlag{Name: "flag", Aliases: []string{"f"}, Usage: "only records carrying this flag"},
			&cli.StringFlag{Name: "pattern", Aliases: []string{"e"}, Usage: "regular expression matched against the file name"},
			&cli.StringFlag{Name: "glob", Aliases: []string{"g"}, Usage: "glob matched against the path, e.g. data/**/*.csv"},
		}, extra...)
	}

	return &cli.Command{
		Name:      "records",
		Usage:     "Keep comments and flags about the files in a directory",
		Version:   Version,
		Writer:    a.stdout,
		ErrWriter: a.stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Usage:       "Path to config file",
				DefaultText: "$HOME/.config/filerecords/config.yaml",
				Value:       DefaultConfigPath(),
				Sources:     cli.EnvVars(ConfigEnv),
			},
			&cli.StringFlag{
				Name:  "user",
				Usage: "name recorded with comments instead of the environment's user",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "init",
				Usage:  "Create a registry in the current directory",
				Flags:  []cli.Flag{commentFlag(), groupFlag()},
				Action: a.action(a.initRegistry),
			},
			{
				Name:   "destroy",
				Usage:  "Remove the registry; tracked files are kept",
				Flags:  []cli.Flag{yesFlag()},
				Action: a.action(a.destroy),
			},
			{
				Name:   "clear",
				Usage:  "Remove every record but keep the registry",
				Flags:  []cli.Flag{yesFlag()},
				Action: a.action(a.clear),
			},
			{
				Name:      "comment",
				Usage:     "Comment on a file, or on the registry when no file is given",
				ArgsUsage: "[file]",
				Flags:     []cli.Flag{commentFlag(), flagsFlag()},
				Action:    a.action(a.comment),
			},
			{
				Name:      "flag",
				Usage:     "Flag a file, or the registry when no file is given",
				ArgsUsage: "[file]",
				Flags:     []cli.Flag{flagsFlag(), groupFlag()},
				Action:    a.action(a.flag),
			},
			{
				Name:      "mv",
				Usage:     "Move a file and its record",
				ArgsUsage: "<current> <new>",
				Flags:     []cli.Flag{keepFlag()},
				Action:    a.action(a.move),
			},
			{
				Name:      "rm",
				Usage:     "Remove files and their records",
				ArgsUsage: "<file>...",
				Flags:     []cli.Flag{keepFlag()},
				Action:    a.action(a.remove),
			},
			{
				Name:      "undo",
				Usage:     "Remove the given flags, or the latest comment when no flags are given",
				ArgsUsage: "[file]",
				Flags:     []cli.Flag{flagsFlag()},
				Action:    a.action(a.undo),
			},
			{
				Name:   "list",
				Usage:  "Search the whole registry",
				Flags:  searchFlags(),
				Action: a.action(a.list(false)),
			},
			{
				Name:   "ls",
				Usage:  "Search the records of files in the current directory",
				Flags:  searchFlags(),
				Action: a.action(a.list(true)),
			},
			{
				Name:      "lookup",
				Usage:     "Show the latest comment of a file or of the registry",
				ArgsUsage: "[file]",
				Action:    a.action(a.lookup),
			},
			{
				Name:      "read",
				Usage:     "Show every comment and flag of files, or of the registry",
				ArgsUsage: "[file]...",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "plain", Usage: "print Markdown without styling"},
				},
				Action: a.action(a.read),
			},
			{
				Name:      "export",
				Usage:     "Write a manifest of the registry",
				ArgsUsage: "<yaml|md|sqlite|both|all>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "filename", Aliases: []string{"f"}, Usage: "file name without extension"},
				},
				Action: a.action(a.export),
			},
			{
				Name:  "screen",
				Usage: "Report recorded files that are missing on disk",
				Flags: searchFlags(
					&cli.BoolFlag{Name: "watch", Aliases: []string{"w"}, Usage: "keep watching until interrupted"},
				),
				Action: a.action(a.screen),
			},
			{
				Name:   "mcp",
				Usage:  "Serve read-only registry tools over stdio (Model Context Protocol)",
				Action: a.action(a.serveMCP),
			},
		},
	}
}

func (a *application) initRegistry(_ context.Context, cmd *cli.Command) error {
	env, err := a.env(cmd)
	if err != nil {
		return err
	}
	reg, err := registry.Init(env.Workdir, env)
	if err != nil {
		return err
	}
	groups, err := parseGroups(cmd.StringSlice("group"))
	if err != nil {
		return err
	}
	comment := cmd.String("comment")
	if comment == "" && len(groups) == 0 {
		return nil
	}
	if comment != "" {
		if _, err := reg.AddComment(comment); err != nil {
			return err
		}
	}
	if err := defineGroups(reg, groups); err != nil {
		return err
	}
	return reg.Save()
}

func (a *application) destroy(_ context.Context, cmd *cli.Command) error {
	if !cmd.Bool("yes") {
		return fmt.Errorf("destroy: %w", errNeedsConfirmation)
	}
	reg, err := a.open(cmd)
	if err != nil {
		return err
	}
	return reg.Destroy()
}

func (a *application) clear(_ context.Context, cmd *cli.Command) error {
	if !cmd.Bool("yes") {
		return fmt.Errorf("clear: %w", errNeedsConfirmation)
	}
	reg, err := a.open(cmd)
	if err != nil {
		return err
	}
	_, err = reg.Clear()
	return err
}

func (a *application) comment(_ context.Context, cmd *cli.Command) error {
	reg, err := a.open(cmd)
	if err != nil {
		return err
	}
	text, flags := cmd.String("comment"), cmd.StringSlice("flag")
	if cmd.Args().Len() == 0 {
		return a.recordOnRegistry(reg, text, flags)
	}
	_, err = reg.Comment(cmd.Args().First(), text, flags)
	return err
}

func (a *application) flag(_ context.Context, cmd *cli.Command) error {
	reg, err := a.open(cmd)
	if err != nil {
		return err
	}
	groups, err := parseGroups(cmd.StringSlice("group"))
	if err != nil {
		return err
	}
	flags := cmd.StringSlice("flag")
	if len(flags) == 0 && len(groups) == 0 {
		return fmt.Errorf("flag: %w", apperr.ErrNothingToRecord)
	}
	if err := defineGroups(reg, groups); err != nil {
		return err
	}
	if cmd.Args().Len() == 0 || len(flags) == 0 {
		if len(flags) > 0 {
			reg.AddFlags(flags...)
		}
		return reg.Save()
	}
	_, err = reg.Comment(cmd.Args().First(), "", flags)
	return err
}

func (a *application) recordOnRegistry(reg *registry.Registry, text string, flags []string) error {
	if text == "" && len(flags) == 0 {
		return fmt.Errorf("registry: %w", apperr.ErrNothingToRecord)
	}
	if text != "" {
		if _, err := reg.AddComment(text); err != nil {
			return err
		}
	}
	if len(flags) > 0 {
		reg.AddFlags(flags...)
	}
	if err := reg.Save(); err != nil {
		return err
	}
	a.logger.Info("registry updated")
	return nil
}

func (a *application) move(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 2 {
		return fmt.Errorf("mv: expected <current> <new>, got %d arguments", cmd.Args().Len())
	}
	reg, err := a.open(cmd)
	if err != nil {
		return err
	}
	_, err = reg.Move(cmd.Args().Get(0), cmd.Args().Get(1), cmd.Bool("keep"))
	return err
}

func (a *application) remove(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() == 0 {
		return errors.New("rm: no files given")
	}
	reg, err := a.open(cmd)
	if err != nil {
		return err
	}
	for _, file := range cmd.Args().Slice() {
		_, err := reg.Remove(file, cmd.Bool("keep"))
		if apperr.IsSoft(err) {
			a.logger.Warn(softMessage(err), slog.String("file", file))
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (a *application) undo(_ context.Context, cmd *cli.Command) error {
	reg, err := a.open(cmd)
	if err != nil {
		return err
	}
	target := &reg.BaseRecord
	save := reg.Save
	if cmd.Args().Len() > 0 {
		rec, err := reg.Record(cmd.Args().First())
		if err != nil {
			return err
		}
		target, save = &rec.BaseRecord, rec.Save
	}

	if flags := cmd.StringSlice("flag"); len(flags) > 0 {
		if err := target.RemoveFlags(flags...); err != nil {
			return err
		}
		a.logger.Info("flags removed", slog.Any("flags", flags))
	} else {
		c, err := target.UndoComment()
		if err != nil {
			return err
		}
		a.logger.Info("comment removed", slog.String("comment", c.String()))
	}
	return save()
}

func searchQuery(cmd *cli.Command) registry.Query {
	return registry.Query{
		Flag:    cmd.String("flag"),
		Pattern: cmd.String("pattern"),
		Glob:    cmd.String("glob"),
	}
}

func (a *application) list(local bool) func(context.Context, *cli.Command) error {
	return func(_ context.Context, cmd *cli.Command) error {
		reg, err := a.open(cmd)
		if err != nil {
			return err
		}
		search := reg.Search
		if local {
			search = reg.Local
		}
		recs, err := search(searchQuery(cmd))
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			fmt.Fprintln(a.stdout, "No records found")
			return nil
		}
		for _, rec := range recs {
			fmt.Fprintln(a.stdout, formatListing(reg, rec, local))
		}
		return nil
	}
}

// formatListing renders "path (flag, flag)". Local listings show paths
// relative to the working directory.
func formatListing(reg *registry.Registry, rec *registry.FileRecord, local bool) string {
	path := rec.Path()
	if local {
		if rel, err := filepath.Rel(reg.Workdir(), rec.AbsPath()); err == nil {
			path = filepath.ToSlash(rel)
		}
	}
	if flags := rec.Flags(); len(flags) > 0 {
		return fmt.Sprintf("%s (%s)", path, strings.Join(flags, ", "))
	}
	return path
}

func (a *application) lookup(_ context.Context, cmd *cli.Command) error {
	reg, err := a.open(cmd)
	if err != nil {
		return err
	}
	last, ok := reg.LastComment()
	if cmd.Args().Len() > 0 {
		rec, err := reg.Record(cmd.Args().First())
		if err != nil {
			return err
		}
		last, ok = rec.LastComment()
	}
	if !ok {
		fmt.Fprintln(a.stdout, "No comments")
		return nil
	}
	fmt.Fprint(a.stdout, a.renderer(false).Render(fmt.Sprintf("**%s** (%s): %s\n", last.User, last.Timestamp.Local().Format(models.DisplayLayout), last.Text)))
	return nil
}

func (a *application) read(_ context.Context, cmd *cli.Command) error {
	reg, err := a.open(cmd)
	if err != nil {
		return err
	}
	r := a.renderer(cmd.Bool("plain"))
	if cmd.Args().Len() == 0 {
		fmt.Fprint(a.stdout, r.Render(manifest.RegistryMarkdown(reg.Directory, reg.Meta())))
		return nil
	}
	for _, file := range cmd.Args().Slice() {
		rec, err := reg.Record(file)
		if apperr.IsSoft(err) {
			a.logger.Warn(softMessage(err), slog.String("file", file))
			continue
		}
		if err != nil {
			return err
		}
		fmt.Fprint(a.stdout, r.Render(manifest.RecordMarkdown(manifest.NewEntry(rec))))
	}
	return nil
}

func (a *application) export(_ context.Context, cmd *cli.Command) error {
	format := cmd.Args().First()
	var formats []string
	switch format {
	case FormatYAML, FormatMarkdown, FormatSQLite:
		formats = []string{format}
	case FormatBoth:
		formats = []string{FormatYAML, FormatMarkdown}
	case FormatAll:
		formats = []string{FormatYAML, FormatMarkdown, FormatSQLite}
	default:
		return fmt.Errorf("export: format %q: %w", format, apperr.ErrUnsupportedValue)
	}

	reg, err := a.open(cmd)
	if err != nil {
		return err
	}
	m, err := manifest.Build(reg)
	if err != nil {
		return err
	}
	name := cmd.String("filename")
	if name == "" {
		name = a.config.Store.ExportName + "-" + m.Generated.Local().Format(ExportLayout)
	}
	if !filepath.IsAbs(name) {
		name = filepath.Join(reg.Workdir(), name)
	}

	for _, f := range formats {
		path := name
		if ext := exportExt[f]; !strings.HasSuffix(path, ext) {
			path += ext
		}
		switch f {
		case FormatYAML:
			err = m.WriteYAML(path)
		case FormatMarkdown:
			err = m.WriteMarkdown(path)
		case FormatSQLite:
			err = m.WriteSQLite(path)
		}
		if err != nil {
			return err
		}
		a.logger.Info("manifest written", slog.String("format", f), slog.String("path", path))
	}
	return nil
}

func (a *application) screen(ctx context.Context, cmd *cli.Command) error {
	reg, err := a.open(cmd)
	if err != nil {
		return err
	}
	missing, err := reg.Screen(searchQuery(cmd))
	if err != nil {
		return err
	}
	for _, rec := range missing {
		fmt.Fprintf(a.stdout, "File %s does not exist!\n", rec.Path())
	}
	if !cmd.Bool("watch") {
		return nil
	}
	return a.watch(ctx, reg)
}

// watch reports tracked files disappearing or coming back until interrupted.
func (a *application) watch(ctx context.Context, reg *registry.Registry) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return watch.Watch(gCtx, reg, a.logger, func(ev watch.Event) {
			switch ev.Kind {
			case watch.Missing:
				fmt.Fprintf(a.stdout, "File %s does not exist!\n", ev.Path)
			case watch.Restored:
				fmt.Fprintf(a.stdout, "File %s is back.\n", ev.Path)
			}
		})
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			a.logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
			cancel()
		case <-gCtx.Done():
		}
		return nil
	})

	return g.Wait()
}

func (a *application) serveMCP(_ context.Context, cmd *cli.Command) error {
	env, err := a.env(cmd)
	if err != nil {
		return err
	}
	srv := mcpserver.New(func() (*registry.Registry, error) {
		return registry.Load(env.Workdir, env)
	}, Version)
	a.logger.Info("MCP server starting on stdio")
	return srv.ServeStdio()
}

type groupDef struct {
	label string
	flags []string
}

// parseGroups reads "label:flag1,flag2" definitions. The slice flag may have
// split a definition at its commas already; values without a label continue
// the previous definition.
func parseGroups(values []string) ([]groupDef, error) {
	var out []groupDef
	for _, v := range values {
		label, rest, hasLabel := strings.Cut(v, ":")
		if !hasLabel {
			if len(out) == 0 {
				return nil, fmt.Errorf("group %q: expected label:flag1,flag2: %w", v, apperr.ErrUnsupportedValue)
			}
			out[len(out)-1].flags = appendFlags(out[len(out)-1].flags, v)
			continue
		}
		label = strings.TrimSpace(label)
		if label == "" {
			return nil, fmt.Errorf("group %q: empty label: %w", v, apperr.ErrUnsupportedValue)
		}
		out = append(out, groupDef{label: label, flags: appendFlags(nil, rest)})
	}
	return out, nil
}

func appendFlags(dst []string, list string) []string {
	for _, f := range strings.Split(list, ",") {
		if f = strings.TrimSpace(f); f != "" {
			dst = append(dst, f)
		}
	}
	return dst
}

func defineGroups(reg *registry.Registry, groups []groupDef) error {
	for _, g := range groups {
		if _, err := reg.AddGroup(g.label, g.flags...); err != nil {
			return err
		}
	}
	return nil
}
