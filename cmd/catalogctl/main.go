// Command catalogctl is a debug/demo CLI for the catalog coordinator,
// grounded in mutagen's cobra root-command/subcommand structure
// (cmd/mutagen/main.go in the wider pack): one root command, each
// operation its own subcommand, flags scoped to the subcommand that
// needs them.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"photocatalog/internal/config"
	"photocatalog/internal/coordinator"
	"photocatalog/internal/decoder"
	"photocatalog/internal/derivativecache"
	"photocatalog/internal/logger"
	"photocatalog/internal/model"
	"photocatalog/internal/persistence/handlestore"
	"photocatalog/internal/persistence/postgres"
	"photocatalog/internal/pipeline"
	"photocatalog/internal/scanner"
)

func init() {
	cobra.EnableCommandSorting = false
}

var rootCommand = &cobra.Command{
	Use:          "catalogctl",
	Short:        "Debug and demo CLI for the photo catalog engine",
	SilenceUsage: true,
}

func main() {
	rootCommand.AddCommand(selectCommand, scanCommand, listCommand, flagCommand, recentCommand)
	if err := rootCommand.Execute(); err != nil {
		os.Exit(1)
	}
}

// buildEngine wires a full Coordinator against the configured Postgres
// and bbolt backends, the same stack cmd/server uses, so catalogctl
// exercises the real engine rather than a separate code path. pickerPath
// stands in for the interactive folder picker: a subcommand that never
// calls SelectFolder can pass "".
func buildEngine(pickerPath string) (*coordinator.Coordinator, func(), error) {
	cfg := config.Load()
	log := logger.Init("catalogctl", cfg.Env, logger.ParseLevelFromEnv())

	db, err := postgres.New(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to catalog database: %w", err)
	}

	handles, err := handlestore.Open(cfg.HandleStorePath)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("open handle store: %w", err)
	}

	thumbStore := derivativecache.NewDiskBlobStore(filepath.Join(cfg.CacheDir, "thumbnails"), ".thumb")
	previewStore := derivativecache.NewDiskBlobStore(filepath.Join(cfg.CacheDir, "previews"), ".preview")
	thumbCache := derivativecache.New("thumbnail", cfg.ThumbnailCapacity, thumbStore, log)
	previewCache := derivativecache.New("preview", cfg.PreviewCapacity, previewStore, log)

	dec := decoder.NewLocalDecoder()
	thumbPipeline := pipeline.New("thumbnail", decoder.TargetSize{Kind: "thumbnail", LongEdge: 512}, dec, thumbCache, cfg.PipelineConcurrency, log)
	previewPipeline := pipeline.New("preview", decoder.TargetSize{Kind: "preview", LongEdge: 2560}, dec, previewCache, cfg.PipelineConcurrency, log)

	scan := scanner.New(cfg.ScanBatchSize, log)

	engine := coordinator.New(coordinator.Deps{
		Folders:    postgres.NewFolderRepository(db),
		Assets:     postgres.NewAssetRepository(db),
		EditStates: postgres.NewEditStateRepository(db),
		Handles:    handles,
		Scanner:    scan,
		Picker:     coordinator.NewLocalFolderPicker(pickerPath),
		Thumbnails: thumbPipeline,
		Previews:   previewPipeline,
		Log:        log,
	})

	ctx, cancel := context.WithCancel(context.Background())
	engine.Start(ctx)

	cleanup := func() {
		cancel()
		engine.Close()
		handles.Close()
		db.Close()
	}
	return engine, cleanup, nil
}

var selectCommand = &cobra.Command{
	Use:   "select <path>",
	Short: "Select a folder by filesystem path and scan it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, cleanup, err := buildEngine(args[0])
		if err != nil {
			return err
		}
		defer cleanup()

		engine.SetCallbacks(coordinator.Callbacks{
			OnAssetsAdded: func(batch []model.Asset) {
				fmt.Printf("discovered %d assets\n", len(batch))
			},
		})

		folder, err := engine.SelectFolder(cmd.Context())
		if err != nil {
			return err
		}
		if folder == nil {
			fmt.Println("selection cancelled")
			return nil
		}
		fmt.Printf("selected folder %s (%s)\n", folder.Name, folder.InternalKey)
		recursive, _ := cmd.Flags().GetBool("recursive")
		return engine.Scan(cmd.Context(), recursive)
	},
}

var scanCommand = &cobra.Command{
	Use:   "scan",
	Short: "Rescan the currently selected folder",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, cleanup, err := buildEngine("")
		if err != nil {
			return err
		}
		defer cleanup()
		if _, err := engine.LoadFromPersistence(cmd.Context()); err != nil {
			return err
		}
		recursive, _ := cmd.Flags().GetBool("recursive")
		return engine.Rescan(cmd.Context(), recursive)
	},
}

func init() {
	selectCommand.Flags().Bool("recursive", true, "descend into subdirectories")
	scanCommand.Flags().Bool("recursive", true, "descend into subdirectories")
}

var listCommand = &cobra.Command{
	Use:   "list",
	Short: "List assets in the currently selected folder",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, cleanup, err := buildEngine("")
		if err != nil {
			return err
		}
		defer cleanup()
		if _, err := engine.LoadFromPersistence(cmd.Context()); err != nil {
			return err
		}
		assets := engine.ListAssets()
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(assets)
	},
}

var recentCommand = &cobra.Command{
	Use:   "recent",
	Short: "List recently opened folders",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, cleanup, err := buildEngine("")
		if err != nil {
			return err
		}
		defer cleanup()
		folders, err := engine.ListRecentFolders(cmd.Context(), 20)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(folders)
	},
}

var flagCommand = &cobra.Command{
	Use:   "flag <asset-id> <none|pick|reject>",
	Short: "Set an asset's flag",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, cleanup, err := buildEngine("")
		if err != nil {
			return err
		}
		defer cleanup()
		if _, err := engine.LoadFromPersistence(cmd.Context()); err != nil {
			return err
		}
		return engine.SetFlag(cmd.Context(), args[0], model.Flag(args[1]))
	},
}
