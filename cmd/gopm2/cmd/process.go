package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/gopm2/gopm2/pkg/pm2"
	"github.com/gopm2/gopm2/pkg/types"
)

// identFromArg turns a CLI argument into an identifier: numeric values
// target the pm_id, anything else the process name.
func identFromArg(arg string) pm2.Ident {
	if n, err := strconv.Atoi(arg); err == nil {
		return pm2.ByPMID(n)
	}
	return pm2.ByName(arg)
}

var listProcessesCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List all managed processes",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := newManager()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout())
		defer cancel()

		procs, err := mgr.List(ctx)
		if err != nil {
			return fmt.Errorf("failed to list processes: %w", err)
		}
		if len(procs) == 0 {
			fmt.Println("No processes found")
			return nil
		}

		printProcessTable(procs)
		return nil
	},
}

var getProcessCmd = &cobra.Command{
	Use:   "get <name|pm_id>",
	Short: "Show one process",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := newManager()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout())
		defer cancel()

		proc, err := mgr.Get(ctx, identFromArg(args[0]))
		if err != nil {
			return err
		}

		fmt.Printf("Name:      %s\n", proc.Name)
		fmt.Printf("PM ID:     %d\n", proc.PMID)
		if proc.PID != 0 {
			fmt.Printf("PID:       %d\n", proc.PID)
		}
		fmt.Printf("Status:    %s\n", proc.Status)
		fmt.Printf("Mode:      %s\n", proc.ExecMode)
		fmt.Printf("Uptime:    %s\n", formatUptime(proc.UptimeSec))
		fmt.Printf("Restarts:  %d\n", proc.RestartCount)
		fmt.Printf("CPU:       %.1f%%\n", proc.Metrics.CPU)
		fmt.Printf("Memory:    %.1f MB\n", proc.Metrics.MemoryMB())
		if proc.WorkingDirectory != "" {
			fmt.Printf("Cwd:       %s\n", proc.WorkingDirectory)
		}
		if proc.ExecPath != "" {
			fmt.Printf("Script:    %s\n", proc.ExecPath)
		}
		if proc.OutLogPath != "" {
			fmt.Printf("Out log:   %s\n", proc.OutLogPath)
		}
		if proc.ErrLogPath != "" {
			fmt.Printf("Err log:   %s\n", proc.ErrLogPath)
		}
		return nil
	},
}

var startProcessCmd = &cobra.Command{
	Use:   "start <script> [-- script args...]",
	Short: "Start a new process",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		instances, _ := cmd.Flags().GetString("instances")
		env, _ := cmd.Flags().GetStringToString("env")
		cwd, _ := cmd.Flags().GetString("cwd")
		interpreter, _ := cmd.Flags().GetString("interpreter")
		maxMemory, _ := cmd.Flags().GetString("max-memory-restart")
		watch, _ := cmd.Flags().GetBool("watch")

		opts := pm2.StartOptions{
			Name:             name,
			Env:              env,
			Args:             args[1:],
			Cwd:              cwd,
			Interpreter:      interpreter,
			MaxMemoryRestart: maxMemory,
			Watch:            watch,
		}
		if instances != "" {
			if instances == "max" {
				opts.Instances = types.MaxInstances
			} else {
				n, err := strconv.Atoi(instances)
				if err != nil || n <= 0 {
					return fmt.Errorf("invalid instances value %q: expected a positive integer or max", instances)
				}
				opts.Instances = types.Instances(n)
			}
		}

		mgr, err := newManager()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout())
		defer cancel()

		proc, err := mgr.Start(ctx, args[0], opts)
		if err != nil {
			return err
		}

		fmt.Printf("✓ Started %s (pm_id %d, status %s)\n", proc.Name, proc.PMID, proc.Status)
		return nil
	},
}

var stopProcessCmd = &cobra.Command{
	Use:   "stop <name|pm_id>",
	Short: "Stop a process",
	Args:  cobra.ExactArgs(1),
	RunE:  lifecycleRunE("stop", (*pm2.Manager).Stop),
}

var restartProcessCmd = &cobra.Command{
	Use:   "restart <name|pm_id>",
	Short: "Restart a process",
	Args:  cobra.ExactArgs(1),
	RunE:  lifecycleRunE("restart", (*pm2.Manager).Restart),
}

var reloadProcessCmd = &cobra.Command{
	Use:   "reload <name|pm_id>",
	Short: "Reload a process without downtime (cluster mode)",
	Args:  cobra.ExactArgs(1),
	RunE:  lifecycleRunE("reload", (*pm2.Manager).Reload),
}

var deleteProcessCmd = &cobra.Command{
	Use:     "delete <name|pm_id>",
	Aliases: []string{"rm"},
	Short:   "Remove a process from the daemon (irreversible)",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := newManager()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout())
		defer cancel()

		if err := mgr.Delete(ctx, identFromArg(args[0])); err != nil {
			return err
		}
		fmt.Printf("✓ Deleted %s\n", args[0])
		return nil
	},
}

func lifecycleRunE(verb string, op func(*pm2.Manager, context.Context, pm2.Ident) (*types.Process, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		mgr, err := newManager()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout())
		defer cancel()

		proc, err := op(mgr, ctx, identFromArg(args[0]))
		if err != nil {
			return err
		}
		fmt.Printf("✓ %s %s (pm_id %d, status %s)\n", verb, proc.Name, proc.PMID, proc.Status)
		return nil
	}
}

func printProcessTable(procs []types.Process) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PM_ID\tNAME\tSTATUS\tMODE\tPID\tUPTIME\tRESTARTS\tCPU\tMEMORY")
	for i := range procs {
		p := &procs[i]
		pid := ""
		if p.PID != 0 {
			pid = strconv.Itoa(p.PID)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%d\t%.1f%%\t%.1f MB\n",
			p.PMID, p.Name, p.Status, p.ExecMode, pid,
			formatUptime(p.UptimeSec), p.RestartCount, p.Metrics.CPU, p.Metrics.MemoryMB())
	}
	w.Flush()
}

func formatUptime(sec int64) string {
	if sec <= 0 {
		return "-"
	}
	d := time.Duration(sec) * time.Second
	switch {
	case d >= 24*time.Hour:
		return fmt.Sprintf("%dd%dh", int(d.Hours())/24, int(d.Hours())%24)
	case d >= time.Hour:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	case d >= time.Minute:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%ds", sec)
	}
}

func init() {
	startProcessCmd.Flags().String("name", "", "Process name")
	startProcessCmd.Flags().StringP("instances", "i", "", "Instance count or 'max'")
	startProcessCmd.Flags().StringToString("env", nil, "Environment variables (key=value)")
	startProcessCmd.Flags().String("cwd", "", "Working directory")
	startProcessCmd.Flags().String("interpreter", "", "Script interpreter")
	startProcessCmd.Flags().String("max-memory-restart", "", "Restart above this memory usage, e.g. 150M")
	startProcessCmd.Flags().Bool("watch", false, "Restart on file changes")

	rootCmd.AddCommand(listProcessesCmd)
	rootCmd.AddCommand(getProcessCmd)
	rootCmd.AddCommand(startProcessCmd)
	rootCmd.AddCommand(stopProcessCmd)
	rootCmd.AddCommand(restartProcessCmd)
	rootCmd.AddCommand(reloadProcessCmd)
	rootCmd.AddCommand(deleteProcessCmd)
}
