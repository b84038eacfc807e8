package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Daemon-level operations",
}

var saveCmd = &cobra.Command{
	Use:   "save",
	Short: "Persist the current process list for resurrection",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := newManager()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout())
		defer cancel()

		if err := mgr.Save(ctx); err != nil {
			return err
		}
		fmt.Println("✓ Process list saved")
		return nil
	},
}

var resurrectCmd = &cobra.Command{
	Use:   "resurrect",
	Short: "Restore the previously saved process list",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := newManager()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout())
		defer cancel()

		procs, err := mgr.Resurrect(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Resurrected %d process(es)\n", len(procs))
		if len(procs) > 0 {
			printProcessTable(procs)
		}
		return nil
	},
}

var killCmd = &cobra.Command{
	Use:   "kill",
	Short: "Terminate the pm2 daemon and everything it manages",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := newManager()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout())
		defer cancel()

		if err := mgr.KillDaemon(ctx); err != nil {
			return err
		}
		fmt.Println("✓ Daemon killed; start a new one with any pm2 command")
		return nil
	},
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check whether the pm2 daemon is up",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := newManager()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout())
		defer cancel()

		if mgr.IsRunning(ctx) {
			fmt.Println("daemon is up")
			return nil
		}
		fmt.Println("daemon is down")
		return nil
	},
}

func init() {
	daemonCmd.AddCommand(saveCmd)
	daemonCmd.AddCommand(resurrectCmd)
	daemonCmd.AddCommand(killCmd)
	daemonCmd.AddCommand(pingCmd)
	rootCmd.AddCommand(daemonCmd)
}
