// g2k-replay replays an ATPCAP01 capture file through a freshly constructed Engine and
// compares the resulting NDJSON transcript against a golden transcript, for the
// deterministic-replay property described in spec.md §4.11/§8 (C11).
package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/glasstokey/glasstokey/internal/core"
	"github.com/glasstokey/glasstokey/internal/dispatch"
	"github.com/glasstokey/glasstokey/internal/engine"
	"github.com/glasstokey/glasstokey/internal/frame"
	"github.com/glasstokey/glasstokey/internal/keymap"
	"github.com/glasstokey/glasstokey/internal/replay"
)

// Exit codes: 0 replay succeeded (and matched the expected transcript, if given); 1 the
// capture file or expected transcript could not be read, or the replay itself failed; 2 the
// transcript was produced but did not match --expected-transcript.
const (
	exitOK       = 0
	exitIOError  = 1
	exitMismatch = 2
)

func main() {
	var fixturePath, outputPath, expectedPath, preset string

	root := &cobra.Command{
		Use:           "g2k-replay",
		Short:         "Replay an ATPCAP01 capture file through the touch processing engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			code := run(fixturePath, outputPath, expectedPath, preset)
			if code != exitOK {
				os.Exit(code)
			}
			return nil
		},
	}

	root.Flags().StringVar(&fixturePath, "fixture", "", "path to an ATPCAP01 capture file (required)")
	root.Flags().StringVar(&outputPath, "output", "", "path to write the NDJSON transcript (defaults to stdout)")
	root.Flags().StringVar(&expectedPath, "expected-transcript", "", "golden NDJSON transcript to compare against")
	root.Flags().StringVar(&preset, "preset", "6x3", "keymap preset used to build the session's layouts")
	_ = root.MarkFlagRequired("fixture")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitIOError)
	}
}

// run performs one fixture replay and returns the process exit code it warrants, leaving the
// decision to actually terminate the process to the caller so it can be exercised by tests.
func run(fixturePath, outputPath, expectedPath, preset string) int {
	sessionID := uuid.NewString()
	log := logrus.NewEntry(logrus.StandardLogger()).WithField("session_id", sessionID)

	in, err := os.Open(fixturePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open fixture: %v\n", err)
		return exitIOError
	}
	defer in.Close()

	presets := keymap.DefaultPresets()
	p, ok := presets[preset]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown preset %q\n", preset)
		return exitIOError
	}
	left, right := keymap.BuildLayouts(p, nil)
	layouts := map[frame.Side]keymap.KeyLayout{frame.SideLeft: left, frame.SideRight: right}
	km, err := keymap.Load([]byte(`{"version":1,"layouts":{"` + preset + `":{"mappings":{},"custom_buttons":{}}}}`))
	if err != nil {
		fmt.Fprintf(os.Stderr, "build default keymap: %v\n", err)
		return exitIOError
	}

	dispatchQ := dispatch.NewQueue(dispatch.DefaultCapacity)
	eng := engine.New(core.DefaultConfig(preset), km, layouts, 0.05, dispatchQ, log)
	harness := replay.NewHarness(eng)

	var buf bytes.Buffer
	if err := harness.Run(in, &buf); err != nil {
		fmt.Fprintf(os.Stderr, "replay failed: %v\n", err)
		return exitIOError
	}

	if outputPath == "" {
		os.Stdout.Write(buf.Bytes())
	} else {
		if err := os.WriteFile(outputPath, buf.Bytes(), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "write output: %v\n", err)
			return exitIOError
		}
	}

	if expectedPath == "" {
		return exitOK
	}

	expected, err := os.ReadFile(expectedPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read expected transcript: %v\n", err)
		return exitIOError
	}
	if !bytes.Equal(expected, buf.Bytes()) {
		fmt.Fprintln(os.Stderr, "transcript does not match expected-transcript")
		return exitMismatch
	}
	return exitOK
}
