package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rmacdonaldsmith/meshchat-go/internal/config"
	"github.com/rmacdonaldsmith/meshchat-go/internal/observability"
)

const (
	// Application info
	appName    = "MeshChat"
	appVersion = "0.1.0"
)

// runOptions are command-line overrides applied on top of the loaded config
type runOptions struct {
	configPath string
	port       int
	bindHost   string
	advertise  string
	seeds      []string
	httpPort   int
	noHTTP     bool
	noAuth     bool
	grpcAddr   string
	logLevel   string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &runOptions{}

	rootCmd := &cobra.Command{
		Use:   "meshchat",
		Short: "Full-mesh peer-to-peer chat node",
		Long: `meshchat runs one member of a full-mesh chat. Every member holds a direct
TCP connection to every other member; joining through any member connects the
newcomer to the whole chat.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNode(cmd, opts)
		},
	}

	runCmd := &cobra.Command{
		Use:          "run",
		Short:        "Start the chat node (default)",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNode(cmd, opts)
		},
	}

	bindRunFlags(rootCmd, opts)
	bindRunFlags(runCmd, opts)

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s v%s\n", appName, appVersion)
		},
	}

	rootCmd.AddCommand(runCmd, versionCmd)
	return rootCmd
}

func bindRunFlags(cmd *cobra.Command, opts *runOptions) {
	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", "", "Path to config file (default: search ., ./configs, ~/.meshchat)")
	flags.IntVar(&opts.port, "port", 0, "Chat listen port (overrides node.port)")
	flags.StringVar(&opts.bindHost, "bind", "", "Interface to listen on (overrides node.bind_host)")
	flags.StringVar(&opts.advertise, "advertise", "", "IP address announced to peers when bound to all interfaces")
	flags.StringSliceVar(&opts.seeds, "seed", nil, "Member endpoint to join on startup (repeatable)")
	flags.IntVar(&opts.httpPort, "http-port", 0, "HTTP API port (overrides http.port)")
	flags.BoolVar(&opts.noHTTP, "no-http", false, "Disable the HTTP API")
	flags.BoolVar(&opts.noAuth, "no-auth", false, "Disable HTTP authentication (development only)")
	flags.StringVar(&opts.grpcAddr, "grpc", "", "Enable the gRPC API on this address")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
}

// loadConfig reads the config file and applies the flags that were set
func loadConfig(cmd *cobra.Command, opts *runOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Node.Port = opts.port
	}
	if flags.Changed("bind") {
		cfg.Node.BindHost = opts.bindHost
	}
	if flags.Changed("advertise") {
		cfg.Node.AdvertiseAddress = opts.advertise
	}
	if flags.Changed("seed") {
		cfg.Node.Seeds = opts.seeds
	}
	if flags.Changed("http-port") {
		cfg.HTTP.Port = opts.httpPort
	}
	if opts.noHTTP {
		cfg.HTTP.Enabled = false
	}
	if opts.noAuth {
		cfg.HTTP.NoAuth = true
	}
	if opts.grpcAddr != "" {
		cfg.GRPC.Enabled = true
		cfg.GRPC.Address = opts.grpcAddr
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	return cfg, nil
}

func runNode(cmd *cobra.Command, opts *runOptions) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	logger, err := observability.SetupLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}

	a.start(ctx)
	waitErr := a.wait(ctx)
	if waitErr != nil {
		logger.Error("node stopped unexpectedly", zap.Error(waitErr))
	}

	if err := a.shutdown(); err != nil && waitErr == nil {
		return err
	}
	return waitErr
}
