package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/debemdeboas/locs-review/internal/app"
	"github.com/debemdeboas/locs-review/internal/config"
	"github.com/debemdeboas/locs-review/internal/logger"
	"github.com/debemdeboas/locs-review/internal/model"
	"github.com/debemdeboas/locs-review/internal/repository"
	"github.com/debemdeboas/locs-review/internal/workflow"
)

var (
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)
	idStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	outcomeStyle = map[workflow.Outcome]lipgloss.Style{
		workflow.Applied:        okStyle,
		workflow.AlreadyApplied: dimStyle,
		workflow.Failed:         errorStyle,
	}
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "locsctl",
		Short:         "Inspect and moderate the pending location queue",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "config.yaml", "path to the YAML config file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level for store diagnostics")

	root.AddCommand(
		newListCmd(opts),
		newEnqueueCmd(opts),
		newApproveCmd(opts),
		newRejectCmd(opts),
		newGenerateConfigCmd(),
	)
	return root
}

func (o *rootOptions) open(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	app.SetLogger(logger.New(o.logLevel))
	return app.Open(ctx, cfg)
}

func newListCmd(opts *rootOptions) *cobra.Command {
	var published bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pending (or published) items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			if published {
				items, err := a.Meta.ListPublished(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("%d published", len(items))))
				for _, item := range items {
					printRow(out, item.ID, item.Coordinate, a.Blobs.PublicURL(a.Layout.PublishedKey(item.ID)))
				}
				return nil
			}

			items, err := a.Meta.ListPending(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("%d pending", len(items))))
			for _, item := range items {
				printRow(out, item.ID, item.Coordinate, a.Blobs.PublicURL(a.Layout.PendingKey(item.ID)))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&published, "published", false, "list published items instead")
	return cmd
}

func printRow(w io.Writer, id model.ItemID, c model.Coordinate, url string) {
	fmt.Fprintf(w, "%s  %s  %s\n", idStyle.Render(string(id)), c, dimStyle.Render(url))
}

func newEnqueueCmd(opts *rootOptions) *cobra.Command {
	var lat, lng float64
	cmd := &cobra.Command{
		Use:   "enqueue <image>",
		Short: "Upload an image and add it to the pending queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			coord := model.Coordinate{Lat: lat, Lng: lng}
			if err := coord.Validate(); err != nil {
				return err
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			a, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			item := repository.NewPendingItem(coord)
			// The blob goes first so a pending record never points at nothing.
			if err := a.Blobs.PutBlob(cmd.Context(), a.Layout.PendingKey(item.ID), data, http.DetectContentType(data)); err != nil {
				return fmt.Errorf("upload: %w", err)
			}
			if err := a.Meta.InsertPending(cmd.Context(), item); err != nil {
				return fmt.Errorf("queue: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("queued"), idStyle.Render(string(item.ID)))
			return nil
		},
	}
	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude")
	cmd.Flags().Float64Var(&lng, "lng", 0, "longitude")
	cmd.MarkFlagRequired("lat")
	cmd.MarkFlagRequired("lng")
	return cmd
}

func newApproveCmd(opts *rootOptions) *cobra.Command {
	var lat, lng float64
	cmd := &cobra.Command{
		Use:   "approve <id>",
		Short: "Publish a pending item, optionally at a corrected position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			latSet, lngSet := cmd.Flags().Changed("lat"), cmd.Flags().Changed("lng")
			if latSet != lngSet {
				return errors.New("--lat and --lng must be given together")
			}

			id := model.ItemID(args[0])
			coord, err := approvalCoordinate(cmd.Context(), a.Meta, id)
			if err != nil {
				return err
			}
			if latSet {
				coord = model.Coordinate{Lat: lat, Lng: lng}.Truncate()
			}

			report, err := a.Workflow.Approve(cmd.Context(), id, coord)
			printReport(cmd.OutOrStdout(), report)
			return err
		},
	}
	cmd.Flags().Float64Var(&lat, "lat", 0, "corrected latitude")
	cmd.Flags().Float64Var(&lng, "lng", 0, "corrected longitude")
	return cmd
}

// approvalCoordinate returns the stored coordinate of id. An id that was
// already published resolves to its published record so the approval can be
// repeated; an id in neither table is ErrNotFound.
func approvalCoordinate(ctx context.Context, meta *repository.DBMetadataStore, id model.ItemID) (model.Coordinate, error) {
	item, err := meta.GetPending(ctx, id)
	if err == nil {
		return item.Coordinate, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return model.Coordinate{}, err
	}

	published, perr := meta.GetPublished(ctx, id)
	if perr != nil {
		if errors.Is(perr, repository.ErrNotFound) {
			return model.Coordinate{}, err
		}
		return model.Coordinate{}, perr
	}
	return published.Coordinate, nil
}

func newRejectCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reject <id>",
		Short: "Remove a pending item and its image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.Workflow.Reject(cmd.Context(), model.ItemID(args[0]))
			printReport(cmd.OutOrStdout(), report)
			if errors.Is(err, workflow.ErrCleanupIncomplete) {
				fmt.Fprintln(cmd.OutOrStdout(), warnStyle.Render("warning: "+err.Error()))
				return nil
			}
			return err
		},
	}
}

func printReport(w io.Writer, r *workflow.Report) {
	if r == nil {
		return
	}
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%s %s", r.Action, r.ID)))
	for _, s := range r.Steps {
		fmt.Fprintf(w, "  %-9s %s\n", s.Step, outcomeStyle[s.Outcome].Render(s.Outcome.String()))
	}
	if r.AlreadyPublished() {
		fmt.Fprintln(w, warnStyle.Render("  already published"))
	}
}

func newGenerateConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate-config [file|-]",
		Short: "Write an example config with every default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := config.Example()
			if err != nil {
				return err
			}

			outputFile := "config.example.yaml"
			if len(args) > 0 {
				outputFile = args[0]
			}
			if outputFile == "-" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(outputFile, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Generated example config: %s\n", outputFile)
			return nil
		},
	}
}
