package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/macsym/macsym/pkg/addr"
	"github.com/macsym/macsym/pkg/demangler"
	"github.com/macsym/macsym/pkg/image"
	"github.com/macsym/macsym/pkg/symbolicate"
	"github.com/macsym/macsym/pkg/utils"
)

var cfgFile string

var (
	objectPath   string
	archTag      string
	loadAddress  string
	slideValue   string
	asOffsets    bool
	inlineFrames bool
	fullPath     bool
	addrFile     string
	printHeader  bool
	delimiter    string
	verbose      bool
)

// RootCmd is the whole CLI; like atos, macsym is a single command driven by
// flags and positional addresses
var RootCmd = &cobra.Command{
	Use:   "macsym [flags] [address ...]",
	Short: "Symbolicate addresses in Mach-O images",
	Long: `Macsym converts runtime addresses into symbol names and source locations
using the DWARF debug information of a Mach-O binary image or dSYM, falling
back to the symbol table where no debug info covers an address.

Addresses are given on the command line or read from a file (-f), in decimal
or 0x-prefixed hex. Without -l or -s they are looked up as-is against the
image's link-time addresses; with --offset they are offsets into the image.

Examples:
  macsym -o app.dSYM/Contents/Resources/DWARF/app 0x100001020
  macsym -o app -l 0x104f60000 -i 0x104f6a0c4 0x104f6a1b8
  macsym -o app --printHeader`,
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	RunE:         run,
}

// Execute runs the root command. It only needs to be called once, by main.
func Execute() {
	err := RootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initLogging)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.macsym.yaml)")

	flags := RootCmd.Flags()
	flags.StringVarP(&objectPath, "object", "o", "", "path to the binary image or dSYM to look up symbols in")
	flags.StringVar(&archTag, "arch", "arm64", "architecture slice to symbolicate, one of: "+utils.FormatSlice(image.SupportedArchs(), ", "))
	flags.StringVarP(&loadAddress, "loadAddress", "l", "", "load address of the binary image, assumed hex with or without 0x")
	flags.StringVarP(&slideValue, "slide", "s", "", "loader slide of the binary image, assumed hex with or without 0x")
	flags.BoolVar(&asOffsets, "offset", false, "treat all given addresses as offsets into the image")
	flags.BoolVarP(&inlineFrames, "inlineFrames", "i", false, "expand inlined call chains, innermost frame first")
	flags.BoolVar(&fullPath, "fullPath", false, "print full source file paths")
	flags.StringVarP(&addrFile, "file", "f", "", "read whitespace-separated addresses from this file")
	flags.BoolVar(&printHeader, "printHeader", false, "print the image UUID, architecture and path instead of symbolicating")
	flags.StringVarP(&delimiter, "delimiter", "d", "\n", "delimiter printed after each address group when expanding inline frames")
	flags.BoolVarP(&verbose, "verbose", "v", false, "debug logging and DIE tracing on stderr")

	viper.BindPFlag("arch", flags.Lookup("arch"))
	viper.BindPFlag("delimiter", flags.Lookup("delimiter"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".macsym" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".macsym")
	}

	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// initLogging routes slog to stderr (and a log file when configured), so
// stdout stays reserved for symbolication output
func initLogging() {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	handlers := []slog.Handler{
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}),
	}

	if logFile := viper.GetString("log-file"); logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err == nil {
			handlers = append(handlers, slog.NewJSONHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug}))
		} else {
			fmt.Fprintln(os.Stderr, "cannot open log file:", err)
		}
	}

	slog.SetDefault(slog.New(slogmulti.Fanout(handlers...)))
}

func run(cmd *cobra.Command, args []string) error {
	if objectPath == "" {
		return errors.New("no object file specified (use -o)")
	}

	arch, err := image.ParseArch(viper.GetString("arch"))
	if err != nil {
		return err
	}

	img, err := image.Open(objectPath, arch)
	if err != nil {
		return err
	}
	defer img.Close()

	if printHeader {
		return symbolicate.PrintHeader(os.Stdout, img)
	}

	context, err := buildContext(args)
	if err != nil {
		return err
	}

	vmaddr, err := img.VMAddr()
	if err != nil {
		return err
	}

	translator, err := symbolicate.NewTranslator(context.Base, vmaddr)
	if err != nil {
		return err
	}

	translated, err := translator.TranslateAll(context.Addrs)
	if err != nil {
		return err
	}

	var resolver symbolicate.AddrResolver
	if data, err := img.DWARF(); err != nil {
		slog.Warn("image has no usable DWARF data, symbol table only", "err", err)
	} else {
		locator, err := symbolicate.NewUnitLocator(img)
		if err != nil {
			return err
		}

		dwarfResolver := symbolicate.NewResolver(data, locator, demangler.Demangle)
		if verbose {
			dwarfResolver.SetTrace(symbolicate.Tracer(os.Stderr))
		}
		resolver = dwarfResolver
	}

	symbolicator := symbolicate.NewSymbolicator(resolver, img.SymbolMap(), demangler.Demangle)
	symbolicator.Run(os.Stdout, context, translated)

	return nil
}

// buildContext assembles the invocation context from flags, positional
// addresses and the optional address file
func buildContext(args []string) (*symbolicate.Context, error) {
	base, err := baseMode()
	if err != nil {
		return nil, err
	}

	tokens := args
	if addrFile != "" {
		data, err := os.ReadFile(addrFile)
		if err != nil {
			return nil, fmt.Errorf("cannot read address file: %w", err)
		}
		tokens = append(tokens, strings.Fields(string(data))...)
	}

	addrs := make([]addr.Addr, len(tokens))
	for i, token := range tokens {
		if addrs[i], err = addr.Parse(token); err != nil {
			return nil, err
		}
	}

	return &symbolicate.Context{
		ObjectPath:     objectPath,
		Arch:           viper.GetString("arch"),
		Addrs:          addrs,
		Base:           base,
		IncludeInlined: inlineFrames,
		ShowFullPath:   fullPath,
		Delimiter:      viper.GetString("delimiter"),
		Mode:           symbolicate.ModeSymbolicate,
	}, nil
}

// baseMode derives the address translation mode from the -l / -s / --offset
// flags, which are mutually exclusive. With none of them, addresses are
// looked up unchanged.
func baseMode() (symbolicate.BaseMode, error) {
	given := 0
	for _, set := range []bool{loadAddress != "", slideValue != "", asOffsets} {
		if set {
			given++
		}
	}
	if given > 1 {
		return symbolicate.BaseMode{}, errors.New("only one of -l, -s and --offset can be used at a time")
	}

	switch {
	case loadAddress != "":
		value, err := parseBaseAddr(loadAddress)
		if err != nil {
			return symbolicate.BaseMode{}, fmt.Errorf("invalid load address: %w", err)
		}
		return symbolicate.LoadAddrBase(value), nil

	case slideValue != "":
		value, err := parseBaseAddr(slideValue)
		if err != nil {
			return symbolicate.BaseMode{}, fmt.Errorf("invalid slide value: %w", err)
		}
		return symbolicate.SlideBase(value), nil

	case asOffsets:
		return symbolicate.OffsetBase(), nil

	default:
		return symbolicate.SlideBase(0), nil
	}
}

// parseBaseAddr reads a base address, which atos treats as hex even without
// the 0x prefix
func parseBaseAddr(s string) (addr.Addr, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}

	return addr.Parse(strings.Replace(s, "0X", "0x", 1))
}
