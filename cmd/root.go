package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/btf2json/btf2json/pkg/btf"
	"github.com/btf2json/btf2json/pkg/elf"
	"github.com/btf2json/btf2json/pkg/isf"
	"github.com/btf2json/btf2json/pkg/symbols"
)

var (
	btfPath   string
	mapPath   string
	banner    string
	arch      string
	imagePath string
	verbose   bool
	debug     bool
)

var rootCmd = &cobra.Command{
	Use:     "btf2json",
	Short:   "Generate Volatility 3 ISF files from BTF type information",
	Version: isf.Version,
	Long: `btf2json generates Volatility 3 ISF files for Linux kernels from
BTF type information and a System.map symbol table.

Example: btf2json --btf vmlinux --map System.map > profile.json
This will print the generated profile to standard output.`,
	SilenceUsage: true,
	RunE:         generate,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetVersionTemplate("v{{.Version}}\n")

	flags := rootCmd.Flags()
	flags.StringVar(&btfPath, "btf", "", "BTF file for obtaining type information (can also be a kernel image)")
	flags.StringVar(&mapPath, "map", "", "System.map file for obtaining symbol names and addresses")
	flags.StringVar(&banner, "banner", "", "Linux banner (takes precedence over all other sources)")
	flags.StringVar(&arch, "arch", string(symbols.ArchX8664), "kernel architecture (x86_64 or arm64)")
	flags.StringVar(&imagePath, "image", "", "memory image to extract type and/or symbol information from (not implemented)")

	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "display debug output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "display more debug output")
}

// setupLogging gates the stdlib log tracing behind the verbosity flags.
func setupLogging() {
	if !verbose && !debug {
		log.SetOutput(io.Discard)
		return
	}
	log.SetOutput(os.Stderr)
	if debug {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}
}

func generate(cmd *cobra.Command, args []string) error {
	setupLogging()

	f, err := loadBTF()
	if err != nil {
		return fmt.Errorf("Unable to gather information for ISF generation: %w", err)
	}
	syms, err := buildSymbols(f)
	if err != nil {
		return fmt.Errorf("Unable to gather information for ISF generation: %w", err)
	}

	doc, err := isf.Generate(f, syms)
	if err != nil {
		return fmt.Errorf("Unable to generate ISF file: %w", err)
	}

	// Broken symbol types are tolerated, the affected symbols fall back
	// to void.
	if err := isf.FixSymbolTypes(doc); err != nil {
		log.Printf("Symbol type fixup: %v", err)
	}
	if debug {
		if err := isf.CheckUserTypes(doc); err != nil {
			log.Printf("User type check: %v", err)
		}
	}

	out, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("Unable to generate ISF file: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func loadBTF() (*btf.File, error) {
	if btfPath == "" {
		if imagePath != "" {
			return nil, errors.New("BTF extraction from memory image is not implemented")
		}
		return nil, errors.New("No source for BTF information provided")
	}
	return btf.Load(btfPath)
}

func buildSymbols(f *btf.File) (*symbols.Symbols, error) {
	if mapPath == "" {
		if imagePath != "" {
			return nil, errors.New("Extraction of symbols from memory image is not implemented")
		}
		return nil, errors.New("No source for symbol information provided")
	}

	b := symbols.NewBuilder()
	if err := b.SetBaseOffset(symbols.Arch(arch)); err != nil {
		return nil, err
	}
	if err := b.AddSystemMap(mapPath); err != nil {
		return nil, err
	}
	b.AddSymdbTypes().AddBTFTypes(f)

	bnr, err := resolveBanner(f)
	if err != nil {
		return nil, err
	}
	log.Printf("Found banner: %s", bnr)
	if err := b.AddBanner(bnr); err != nil {
		return nil, err
	}

	syms := b.Build()
	log.Printf("Got %d symbols (%d with types)", syms.Len(), syms.WithTypes())
	return syms, nil
}

// resolveBanner prefers the banner given on the command line, then the
// one stored in the kernel image the BTF information came from.
func resolveBanner(f *btf.File) (string, error) {
	if banner != "" {
		return banner, nil
	}
	if elf.IsELF(f.Raw()) {
		if bnr, err := elf.Banner(f.Raw()); err == nil {
			return bnr, nil
		}
	}
	return "", errors.New("Unable to find Linux banner")
}
