// Package cli holds the pieces shared by the audioprint command: the YAML
// configuration file, result output in yaml/json/raw form, slog setup and
// lipgloss rendering of feature images.
//
// Configuration lives in ~/.audioprint/config.yaml:
//
//	engine: gonum
//	sample_rate: 11025
//	mode: chroma
//	hash_bits: 16
//	catalog: ~/.audioprint/catalog
//	storage:
//	  kind: s3
//	  bucket: prints
//	  endpoint: http://localhost:9000
//
// Command-line flags override file values.
package cli
