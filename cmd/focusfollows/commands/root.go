package commands

import (
	"fmt"
	"os"

	"github.com/bryanchriswhite/focusfollows/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "focusfollows",
		Short: "focusfollows - raise the window under the mouse",
		Long: `focusfollows gives keyboard focus to the window under the mouse pointer.

It watches pointer movement, works out which top-level window the pointer is
over, decides whether that window should receive focus, and raises it.

Features:
  • Built-in rules for desktops, taskbars, task switchers and browsers
  • Extra allow, block, pause and pair rules from the config file
  • Optional external window list (komorebi's komorebi.hwnd.json)
  • Drag detection: nothing is raised while a mouse button is held
  • Local status API with a live decision stream`,
		SilenceUsage: true,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/focusfollows/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().String("backend", "", "window system backend (auto, x11, windows)")
	rootCmd.PersistentFlags().String("hwnds", "", "external window list; only windows listed in it are raised")
	rootCmd.PersistentFlags().Int("port", 0, "serve the status API on this port")

	// Bind flags to viper
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("backend", rootCmd.PersistentFlags().Lookup("backend"))
	viper.BindPFlag("external_source_path", rootCmd.PersistentFlags().Lookup("hwnds"))
	viper.BindPFlag("status.port", rootCmd.PersistentFlags().Lookup("port"))
}

// initConfig lets FOCUSFOLLOWS_LOG_LEVEL, FOCUSFOLLOWS_BACKEND and
// FOCUSFOLLOWS_EXTERNAL_SOURCE_PATH stand in for their flags
func initConfig() {
	viper.SetEnvPrefix("FOCUSFOLLOWS")
	viper.AutomaticEnv()
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}

// loadConfig opens the config file and applies flag overrides on top of it
func loadConfig() (*config.Manager, error) {
	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if level := viper.GetString("log_level"); level != "" {
		configMgr.SetLogLevel(level)
	}
	if backend := viper.GetString("backend"); backend != "" {
		configMgr.SetBackend(backend)
	}
	if path := viper.GetString("external_source_path"); path != "" {
		configMgr.SetExternalSourcePath(path)
	}
	if port := viper.GetInt("status.port"); port > 0 {
		configMgr.SetPort(port)
	}
	return configMgr, nil
}
