// Command wireinspect pretty-prints raw wirecodec bytes for debugging,
// successor to the teacher's cmd/glint default "inspect" mode
// (glint.go's InspectCmd). Unlike the teacher's format, a wirecodec stream
// carries no embedded schema, so this tool walks purely structurally
// (wirecodec.Printer) and never needs the application's Go types.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/pelletier/go-toml"

	"github.com/hollowcore/wirecodec"
)

// config is the optional TOML settings file's shape. Section 6 of the core
// spec is explicit that no config/files/env vars are part of the core
// itself; this file only ever configures the CLI layer on top of it.
type config struct {
	MaxDepth int    `toml:"max_depth"`
	Output   string `toml:"output"` // "tree" (default) or "raw"
}

func main() {
	configPath := flag.String("config", "", "optional TOML config file (max_depth, output)")
	flag.Parse()

	cfg := config{Output: "tree"}
	if *configPath != "" {
		if err := loadConfig(*configPath, &cfg); err != nil {
			fmt.Fprintln(os.Stderr, "wireinspect:", err)
			os.Exit(1)
		}
	}

	data, err := readInput(flag.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, "wireinspect:", err)
		os.Exit(1)
	}

	if cfg.Output == "raw" {
		fmt.Printf("% x\n", data)
		return
	}

	out, err := wirecodec.NewPrinterDepth(nil, cfg.MaxDepth).Sprint(data)
	if err != nil {
		fmt.Fprintln(os.Stderr, "wireinspect:", err)
		os.Exit(1)
	}
	fmt.Println(out)
}

func loadConfig(path string, cfg *config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening config: %w", err)
	}
	defer f.Close()

	return toml.NewDecoder(f).Decode(cfg)
}

func readInput(args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(args[0])
}
