// Command audioprint computes chroma fingerprints of audio files.
//
// Usage:
//
//	audioprint [flags] <command> [args]
//
// Commands:
//
//	fingerprint  - Fingerprint audio files
//	chroma       - Render a file's chromagram or spectrogram as a heatmap
//	inspect      - Decode a fingerprint string
//	compare      - Bit error rate between two fingerprints or files
//	catalog      - Store and look up fingerprints (add, get, list, delete, find)
//	serve        - Fingerprint websocket streams
//	config       - Show or change ~/.audioprint/config.yaml
//	version      - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/haivivi/audioprint/cmd/audioprint/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
