package commands

import (
	"github.com/at2-network/at2-node/src/at2"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

//NewRunCmd returns the command that starts an AT2 node
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run node",
		PreRunE: loadConfig,
		RunE:    runAT2,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runAT2(cmd *cobra.Command, args []string) error {
	engine := at2.NewAT2(_config)

	if err := engine.Init(); err != nil {
		_config.Logger().Error("Cannot initialize engine:", err)
		return err
	}

	return engine.Run()
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

//AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {

	cmd.Flags().String("log", _config.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("moniker", _config.Moniker, "Optional name")

	// Network
	cmd.Flags().StringP("listen", "l", _config.BindAddr, "Listen IP:Port for the broadcast transport")
	cmd.Flags().StringP("advertise", "a", _config.AdvertiseAddr, "Advertise IP:Port for the broadcast transport")
	cmd.Flags().DurationP("timeout", "t", _config.TCPTimeout, "TCP Timeout")
	cmd.Flags().Int("max-pool", _config.MaxPool, "Connection pool size max")
	cmd.Flags().Int("bootstrap-retries", _config.BootstrapRetries, "Max connection attempts per peer at bootstrap")
	cmd.Flags().Int("send-retries", _config.SendRetries, "Max attempts for broadcast sends")
	cmd.Flags().Duration("retry-backoff", _config.RetryBackoff, "Initial delay between connection retries")

	// Service
	cmd.Flags().StringP("service-listen", "s", _config.ServiceAddr, "Listen IP:Port for HTTP API service")
	cmd.Flags().Bool("no-service", _config.NoService, "Disable the HTTP API service")

	// Cache
	cmd.Flags().Int("cache-size", _config.CacheSize, "Number of entries in the recent-transaction cache")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	_config.Logger().WithFields(logrus.Fields{
		"DataDir":          _config.DataDir,
		"BindAddr":         _config.BindAddr,
		"AdvertiseAddr":    _config.AdvertiseAddr,
		"ServiceAddr":      _config.ServiceAddr,
		"NoService":        _config.NoService,
		"MaxPool":          _config.MaxPool,
		"TCPTimeout":       _config.TCPTimeout,
		"CacheSize":        _config.CacheSize,
		"BootstrapRetries": _config.BootstrapRetries,
		"SendRetries":      _config.SendRetries,
		"RetryBackoff":     _config.RetryBackoff,
		"LogLevel":         _config.LogLevel,
		"Moniker":          _config.Moniker,
	}).Debug("RUN")

	return nil
}

// Bind all flags and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	// Register flags with viper. Include flags from this command and all other
	// persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	if err := viper.BindPFlags(cmd.Parent().PersistentFlags()); err != nil {
		return err
	}

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// look for config file in [datadir]/at2.toml (.json, .yaml also work)
	viper.SetConfigName("at2")           // name of config file (without extension)
	viper.AddConfigPath(_config.DataDir) // search root directory

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Logger().Debugf("No config file found in: %s", _config.DataDir)
	} else {
		return err
	}

	// second unmarshal to read from config file
	return viper.Unmarshal(_config)
}
