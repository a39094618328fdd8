// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"listener/internal/config"
	"listener/pkg/build"
)

// Command names selected by ParseArgs. The empty command runs live capture.
const (
	CommandLive    = ""
	CommandList    = "list"
	CommandAnalyze = "analyze"
	CommandVersion = "version"
)

// Options is the parsed command line.
type Options struct {
	Command     string
	ConfigPath  string
	File        string // analyze input
	Interactive bool   // list with the device picker
	Monitor     bool
	LogFile     string
	Verbose     bool

	selected bool

	// overrides hold the flags the user actually set; they win over the
	// config file and environment.
	overrides []func(*config.Config)
}

// Config loads the configuration file and applies flag overrides.
func (o *Options) Config() (*config.Config, error) {
	cfg, err := config.LoadConfig(o.ConfigPath)
	if err != nil {
		return nil, err
	}
	if len(o.overrides) == 0 {
		return cfg, nil
	}
	for _, override := range o.overrides {
		override(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, nil
}

// ParseArgs parses args (without the program name).
func ParseArgs(args []string) (*Options, error) {
	buildInfo := build.GetBuildFlags()
	options := &Options{}

	var (
		deviceID   int
		sampleRate float64
		blockSize  int
		windowSize int
		lowLatency bool
	)

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			flags := cmd.Flags()
			if flags.Changed("device") {
				options.overrides = append(options.overrides, func(c *config.Config) { c.Audio.InputDevice = deviceID })
			}
			if flags.Changed("sample-rate") {
				options.overrides = append(options.overrides, func(c *config.Config) { c.Audio.SampleRate = sampleRate })
			}
			if flags.Changed("block-size") {
				options.overrides = append(options.overrides, func(c *config.Config) { c.Audio.BlockSize = blockSize })
			}
			if flags.Changed("window-size") {
				options.overrides = append(options.overrides, func(c *config.Config) { c.Audio.WindowSize = windowSize })
			}
			if flags.Changed("low-latency") {
				options.overrides = append(options.overrides, func(c *config.Config) { c.Audio.LowLatency = lowLatency })
			}
			if options.Verbose {
				options.overrides = append(options.overrides, func(c *config.Config) { c.LogLevel = "debug" })
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = CommandLive
			options.selected = true
			return nil
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = CommandList
			options.selected = true
		},
	}
	listCmd.Flags().BoolVarP(&options.Interactive, "interactive", "i", false,
		"Pick an input device and sample rate and print the matching config")
	rootCmd.AddCommand(listCmd)

	// Analyze command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "analyze <file.wav>",
		Short: "Run the analysis over a WAV file and summarise tempo and phrases",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = CommandAnalyze
			options.selected = true
			options.File = args[0]
		},
	})

	// Version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			options.Command = CommandVersion
			options.selected = true
		},
	})

	// Configuration
	rootCmd.PersistentFlags().StringVar(&options.ConfigPath, "config", "",
		"Path to a YAML config file (default: ./config.yaml if present)")

	// Audio Device Configuration
	rootCmd.PersistentFlags().IntVarP(&deviceID, "device", "d", config.DefaultDeviceID,
		"Specify input device ID. Use 'list' command to see available devices.")
	rootCmd.PersistentFlags().Float64VarP(&sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	rootCmd.PersistentFlags().IntVarP(&blockSize, "block-size", "b", config.DefaultBlockSize,
		"The number of frames per capture block (affects latency)")
	rootCmd.PersistentFlags().IntVarP(&windowSize, "window-size", "w", config.DefaultWindowSize,
		"FFT analysis window length, a power of two")
	rootCmd.PersistentFlags().BoolVarP(&lowLatency, "low-latency", "l", config.DefaultLowLatency,
		"Use low latency mode for real-time processing")

	// Output Configuration
	rootCmd.PersistentFlags().BoolVarP(&options.Monitor, "monitor", "m", false,
		"Show the live terminal monitor")
	rootCmd.PersistentFlags().StringVar(&options.LogFile, "log-file", "",
		"Write logs to this file instead of stderr")

	// Debug Configuration
	rootCmd.PersistentFlags().BoolVarP(&options.Verbose, "verbose", "v", false,
		"Show verbose output")

	// Execute the CLI. A nil slice would make cobra fall back to os.Args.
	if args == nil {
		args = []string{}
	}
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}

	// --help and --version are answered by cobra without running a command.
	if !options.selected {
		return nil, nil
	}
	return options, nil
}
