package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/eventreduce/internal/archive"
	"github.com/vango-dev/eventreduce/internal/config"
	"github.com/vango-dev/eventreduce/internal/errors"
	"github.com/vango-dev/eventreduce/pkg/devtools"
)

func archiveCmd(configPath *string) *cobra.Command {
	var fromServer bool

	cmd := &cobra.Command{
		Use:   "archive [recording.json]",
		Short: "Archive a recorded devtools session",
		Long: `Compress a devtools session recording and store it in the configured
archive (an S3 bucket or a local directory).

The recording is read from a file, from stdin when the argument is "-",
or fetched from a running devtools server with --from-server.

Examples:
  eventreduce archive session.json
  eventreduce archive --from-server`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			var rec devtools.Recording
			switch {
			case fromServer:
				rec, err = fetchRecording(cmd.Context(), cfg.DevtoolsURL()+"/api/recording")
			case len(args) == 1 && args[0] == "-":
				rec, err = decodeRecording(cmd.InOrStdin())
			case len(args) == 1:
				rec, err = readRecording(args[0])
			default:
				return errors.New("E121").
					WithDetail("No recording given").
					WithSuggestion("Pass a recording file or --from-server")
			}
			if err != nil {
				return errors.New("E142").Wrap(err)
			}

			return archiveRecording(cmd.Context(), cfg, rec)
		},
	}

	cmd.Flags().BoolVar(&fromServer, "from-server", false, "Fetch the recording from the running devtools server")

	return cmd
}

// newArchiver builds the archiver configured by cfg.
func newArchiver(ctx context.Context, cfg *config.Config) (*archive.Archiver, error) {
	switch {
	case cfg.Archive.Dir != "":
		return archive.New(archive.DirStore{Dir: cfg.ArchiveDir()}, cfg.Archive.Prefix), nil
	case cfg.Archive.Bucket != "":
		client, err := archive.NewS3Client(ctx, cfg.Archive.Region)
		if err != nil {
			return nil, err
		}
		return archive.New(archive.NewS3Store(client, cfg.Archive.Bucket), cfg.Archive.Prefix), nil
	default:
		return nil, errors.New("E121").
			WithDetail("archive.bucket or archive.dir must be set").
			WithSuggestion("Add an archive section to eventreduce.yaml")
	}
}

func archiveRecording(ctx context.Context, cfg *config.Config, rec devtools.Recording) error {
	a, err := newArchiver(ctx, cfg)
	if err != nil {
		return err
	}
	if len(rec.Changes) == 0 {
		warn("Recording %s has no changes", rec.ID)
	}
	key, err := a.Archive(ctx, rec)
	if err != nil {
		return errors.New("E142").Wrap(err)
	}
	success("Archived %d changes as %s", len(rec.Changes), key)
	return nil
}

func readRecording(path string) (devtools.Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return devtools.Recording{}, err
	}
	defer f.Close()
	return decodeRecording(f)
}

func decodeRecording(r io.Reader) (devtools.Recording, error) {
	var rec devtools.Recording
	if err := json.NewDecoder(r).Decode(&rec); err != nil {
		return rec, fmt.Errorf("decode recording: %w", err)
	}
	return rec, nil
}

func fetchRecording(ctx context.Context, url string) (devtools.Recording, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return devtools.Recording{}, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return devtools.Recording{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return devtools.Recording{}, fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	return decodeRecording(resp.Body)
}
