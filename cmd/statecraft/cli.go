// Package main defines the CLI structure using kong.
package main

// CLI defines the command-line interface.
type CLI struct {
	Run     RunCmd     `cmd:"" help:"Ask the model and apply its response as one turn"`
	Apply   ApplyCmd   `cmd:"" help:"Apply a pre-recorded model response offline"`
	Inspect InspectCmd `cmd:"" help:"Dump the persisted state"`
	Version VersionCmd `cmd:"" help:"Show version information"`

	Config string `help:"Config file path (default: statecraft.toml)"`
}

// RunCmd runs one full query turn against the configured model.
type RunCmd struct {
	Query string `arg:"" help:"User query"`
}

// ApplyCmd applies a response from a file without any model call. Recovery
// and verification are skipped: both need a live model.
type ApplyCmd struct {
	File  string `arg:"" help:"File holding the model response text"`
	Query string `short:"q" default:"" help:"Query the response answers (recorded with the turn)"`
}

// InspectCmd dumps the four entity stores as YAML.
type InspectCmd struct {
	Payloads bool `help:"Include vault payloads"`
}

// VersionCmd shows version information.
type VersionCmd struct{}
