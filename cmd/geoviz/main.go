package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/paulmach/orb/maptile"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-geoviz/internal/datagen"
	"github.com/joeblew999/plat-geoviz/internal/layers"
	"github.com/joeblew999/plat-geoviz/internal/persist"
	"github.com/joeblew999/plat-geoviz/internal/server"
	"github.com/joeblew999/plat-geoviz/internal/state"
	"github.com/joeblew999/plat-geoviz/internal/tiles"
)

// Options defines all CLI flags and env vars for the geoviz server.
// Flags: --host, --port, --data-dir, --web-dir, --kv, --points, ...
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, SERVICE_KV, ...
type Options struct {
	Host         string `doc:"Host to bind to" default:"0.0.0.0"`
	Port         int    `doc:"Port to listen on" short:"p" default:"8087"`
	DataDir      string `doc:"Directory for persisted state and the analytical database" default:".data"`
	WebDir       string `doc:"Path to web/ directory" default:""`
	KV           string `doc:"Settings cache backend: badger, file or memory" default:"badger"`
	Points       int    `doc:"Points in the initial dataset" short:"n" default:"2000"`
	Distribution string `doc:"Initial distribution: uniform, clustered or hotspot" default:"hotspot"`
	Region       string `doc:"Initial region: us or eu" default:"us"`
	Seed         int    `doc:"Dataset random seed; 0 picks one from the clock" default:"0"`
	PersistDelay int    `doc:"Autosave debounce delay in milliseconds" default:"1000"`
	DuckDB       bool   `doc:"Mirror the dataset into DuckDB for /api/v1/query" default:"true"`
	Debug        bool   `doc:"Enable debug logging" default:"false"`
}

func newLogger(opts *Options) *slog.Logger {
	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func serverConfig(opts *Options) server.Config {
	seed := uint64(opts.Seed)
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return server.Config{
		Host:         opts.Host,
		Port:         fmt.Sprintf("%d", opts.Port),
		DataDir:      opts.DataDir,
		WebDir:       opts.WebDir,
		KV:           persist.Backend(opts.KV),
		PersistDelay: time.Duration(opts.PersistDelay) * time.Millisecond,
		Points:       opts.Points,
		Distribution: datagen.Distribution(opts.Distribution),
		Region:       datagen.RegionID(opts.Region),
		Seed:         seed,
		DuckDB:       opts.DuckDB,
		Logger:       newLogger(opts),
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func main() {
	var srv *server.Server
	var httpSrv *http.Server

	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		hooks.OnStart(func() {
			var err error
			srv, err = server.New(serverConfig(opts))
			if err != nil {
				fatal("Server setup failed: %v", err)
			}

			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("plat-geoviz API server starting...\n")
			fmt.Printf("  Server:  %s\n", baseURL)
			fmt.Printf("  Data:    %s (%s)\n", opts.DataDir, opts.KV)
			fmt.Printf("  Dataset: %d %s points over %s\n", opts.Points, opts.Distribution, opts.Region)
			fmt.Println()
			if opts.WebDir != "" {
				fmt.Printf("  Pages:   %s/viewer\n", baseURL)
			}
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Printf("  Metrics: %s/metrics\n", baseURL)
			fmt.Println()

			httpSrv = &http.Server{Addr: addr, Handler: srv, ReadHeaderTimeout: 10 * time.Second}
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				fatal("Server error: %v", err)
			}
		})

		hooks.OnStop(func() {
			if httpSrv != nil {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				httpSrv.Shutdown(ctx)
			}
			if srv != nil {
				if err := srv.Close(); err != nil {
					fmt.Fprintf(os.Stderr, "Close: %v\n", err)
				}
			}
		})
	})

	cli.Root().Use = "geoviz"
	cli.Root().Short = "Reactive map visualization server"
	cli.Root().Version = "0.1.0"

	cli.Root().AddCommand(specCommand(), generateCommand(), tilesCommand(), snapshotCommand())
	cli.Run()
}

// specCommand exports the OpenAPI spec. It builds the API without touching
// the data dir.
func specCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			cfg := serverConfig(opts)
			cfg.KV = persist.BackendMemory
			cfg.Points = 0
			cfg.DuckDB = false
			cfg.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
			srv, err := server.New(cfg)
			if err != nil {
				fatal("Error building server: %v", err)
			}
			defer srv.Close()
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fatal("Error marshaling spec: %v", err)
			}
			fmt.Println(string(output))
		}),
	}
	cmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	return cmd
}

// generateCommand writes a dataset as GeoJSON.
func generateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a synthetic dataset as GeoJSON",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			cfg := serverConfig(opts)
			res, err := datagen.New(cfg.Seed).Generate(cfg.Points, cfg.Distribution, cfg.Region)
			if err != nil {
				fatal("Error generating dataset: %v", err)
			}
			data, err := res.Collection.MarshalJSON()
			if err != nil {
				fatal("Error encoding GeoJSON: %v", err)
			}

			out, _ := cmd.Flags().GetString("output")
			if out == "" || out == "-" {
				os.Stdout.Write(data)
				fmt.Println()
				return
			}
			if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
				fatal("Error creating output dir: %v", err)
			}
			if err := os.WriteFile(out, data, 0644); err != nil {
				fatal("Error writing %s: %v", out, err)
			}
			fmt.Fprintf(os.Stderr, "Wrote %d points (%s) to %s\n", len(res.Points), res.ID, out)
		}),
	}
	cmd.Flags().StringP("output", "o", "-", "Output file, - for stdout")
	return cmd
}

// tilesCommand writes a dataset as a PMTiles vector tile archive.
func tilesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tiles",
		Short: "Generate a synthetic dataset as a PMTiles archive",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			cfg := serverConfig(opts)
			res, err := datagen.New(cfg.Seed).Generate(cfg.Points, cfg.Distribution, cfg.Region)
			if err != nil {
				fatal("Error generating dataset: %v", err)
			}

			out, _ := cmd.Flags().GetString("output")
			minZoom, _ := cmd.Flags().GetUint("min-zoom")
			maxZoom, _ := cmd.Flags().GetUint("max-zoom")
			if minZoom > maxZoom {
				fatal("--min-zoom %d is above --max-zoom %d", minZoom, maxZoom)
			}

			f, err := os.Create(out)
			if err != nil {
				fatal("Error creating %s: %v", out, err)
			}
			defer f.Close()
			n, err := tiles.WriteArchive(f, res.Collection, maptile.Zoom(minZoom), maptile.Zoom(maxZoom), layers.SourceID)
			if err != nil {
				fatal("Error writing tiles: %v", err)
			}
			fmt.Fprintf(os.Stderr, "Wrote %d tiles for %d points to %s\n", n, len(res.Points), out)
		}),
	}
	cmd.Flags().StringP("output", "o", "locations.pmtiles", "Output PMTiles file")
	cmd.Flags().Uint("min-zoom", 0, "Lowest zoom level")
	cmd.Flags().Uint("max-zoom", 10, "Highest zoom level (at most 14)")
	return cmd
}

// snapshotCommand prints the persisted settings as YAML.
func snapshotCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Print the persisted settings snapshot as YAML",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			kv, err := persist.OpenBackend(persist.Backend(opts.KV), filepath.Join(opts.DataDir, "kv"), persist.DefaultConfig())
			if err != nil {
				fatal("Error opening %s cache: %v", opts.KV, err)
			}
			defer kv.Close()

			snap, err := persist.New(state.New(), kv).Load(context.Background())
			if errors.Is(err, persist.ErrNotFound) {
				fmt.Fprintln(os.Stderr, "No persisted snapshot; showing defaults")
				snap = state.DefaultSnapshot()
			} else if err != nil {
				fatal("Error loading snapshot: %v", err)
			}

			out, err := yaml.Marshal(snap)
			if err != nil {
				fatal("Error marshaling snapshot: %v", err)
			}
			fmt.Print(string(out))
		}),
	}
}
