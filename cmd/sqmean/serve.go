package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/codefionn/sqmean/internal/config"
	"github.com/codefionn/sqmean/internal/lockfile"
	"github.com/codefionn/sqmean/internal/logger"
	"github.com/codefionn/sqmean/internal/pidfile"
	"github.com/codefionn/sqmean/internal/server"
	"github.com/spf13/cobra"
)

var (
	serveHost         string
	servePort         int
	serveDumpPath     string
	serveDumpInterval string
	serveStatusAddr   string
	serveDumpOnExit   bool
)

// serveCmd runs the server until SIGINT or SIGTERM.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sqmean server",
	Long: `Start the TCP server. The first SIGINT or SIGTERM starts a graceful
shutdown: every client receives stop, the server waits for all connections
to close and then stops the dumper. A second signal exits immediately.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Interface to listen on")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "TCP port to listen on")
	serveCmd.Flags().StringVar(&serveDumpPath, "dump-path", "", "Snapshot file")
	serveCmd.Flags().StringVar(&serveDumpInterval, "dump-interval", "", "Time between snapshots, e.g. 10s")
	serveCmd.Flags().StringVar(&serveStatusAddr, "status-addr", "", "Serve /health and /stats over HTTP on this address")
	serveCmd.Flags().BoolVar(&serveDumpOnExit, "dump-on-exit", false, "Write one more snapshot after shutdown")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, cfgPath, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyServeFlags(cmd, cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := logger.Init(cfg.Level(), cfg.LogPath); err != nil {
		return err
	}
	log := logger.Global()
	defer log.Close()

	lock := lockfile.ForResource(cfg.DumpPath)
	if err := lock.TryAcquire(cfg.Addr()); err != nil {
		return err
	}
	defer lock.Release()

	owner := lock.Owner()
	log.Debug("holding %s for pid %d since %s", lock.Path(), owner.PID, owner.Since.Format(time.RFC3339))

	pid := pidfile.New(cfg.PIDPath)
	if err := pid.Write(); err != nil {
		log.Warn("%v", err)
		pid = nil
	} else {
		defer pid.Remove()
	}

	srv := server.New(server.Config{
		Addr:              cfg.Addr(),
		DumpPath:          cfg.DumpPath,
		DumpInterval:      cfg.DumpInterval.Std(),
		WriteTimeout:      cfg.WriteTimeout.Std(),
		DrainPoll:         cfg.DrainPoll.Std(),
		DrainTimeout:      cfg.DrainTimeout.Std(),
		DumperStopTimeout: cfg.DumperStopTimeout.Std(),
		StatusAddr:        cfg.StatusAddr,
		Logger:            log,
	})

	watchCtx, cancelWatch := context.WithCancel(cmd.Context())
	defer cancelWatch()
	err = config.Watch(watchCtx, cfgPath, func(c *config.Config) {
		if err := c.Validate(); err != nil {
			log.Warn("ignoring config change: %v", err)
			return
		}
		if c.Level() != log.GetLevel() {
			log.SetLevel(c.Level())
			log.Info("log level changed to %s", c.Level())
		}
	})
	if err != nil {
		log.Debug("config reload disabled: %v", err)
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		sig := <-sigCh
		log.Info("received %s, shutting down", sig)
		srv.StopAsync()

		sig = <-sigCh
		log.Error("received %s during shutdown, exiting", sig)
		if err := releaseRunFiles(lock, pid); err != nil {
			log.Warn("%v", err)
		}
		log.Close()
		os.Exit(1)
	}()

	startErr := srv.Start(cmd.Context())

	if serveDumpOnExit {
		if err := srv.DumpOnce(); err != nil {
			log.Warn("final snapshot failed: %v", err)
		}
	}
	if errors.Is(startErr, server.ErrFatal) {
		log.Error("%v", startErr)
	}
	return startErr
}

func applyServeFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Host = serveHost
	}
	if flags.Changed("port") {
		cfg.Port = servePort
	}
	if flags.Changed("dump-path") {
		cfg.DumpPath = serveDumpPath
	}
	if flags.Changed("dump-interval") {
		d, err := time.ParseDuration(serveDumpInterval)
		if err != nil {
			return fmt.Errorf("invalid --dump-interval: %w", err)
		}
		cfg.DumpInterval = config.Duration(d)
	}
	if flags.Changed("status-addr") {
		cfg.StatusAddr = serveStatusAddr
	}
	return nil
}

// releaseRunFiles removes the lock and the pid file. The deferred cleanup in
// runServe does the same, but os.Exit skips it. A nil pid is ignored.
func releaseRunFiles(lock *lockfile.Lockfile, pid *pidfile.Pidfile) error {
	var errs []error
	if lock.Locked() {
		errs = append(errs, lock.Release())
	}
	if pid != nil {
		errs = append(errs, pid.Remove())
	}
	return errors.Join(errs...)
}
