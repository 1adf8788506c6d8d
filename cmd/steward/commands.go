package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/districtops/steward/pkg/config"
	"github.com/districtops/steward/pkg/orchestrator"
	"github.com/districtops/steward/pkg/storage"
	"github.com/districtops/steward/pkg/types"
)

// Job commands
var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Manage reconciliation jobs",
}

var jobStartCmd = &cobra.Command{
	Use:   "start <district> <period>",
	Short: "Start reconciliation for a district's reporting period",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		initLogging(cmd)
		orch, store, err := openOrchestrator(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		overridePath, _ := cmd.Flags().GetString("config-override")
		var override *config.Override
		if overridePath != "" {
			data, err := os.ReadFile(overridePath)
			if err != nil {
				return fmt.Errorf("failed to read override file: %w", err)
			}
			override = &config.Override{}
			if err := yaml.Unmarshal(data, override); err != nil {
				return fmt.Errorf("failed to parse override file: %w", err)
			}
		}

		job, err := orch.StartJob(args[0], args[1], override, types.TriggerManual)
		if err != nil {
			return err
		}

		fmt.Printf("✓ Job %s active until %s\n", job.ID, job.MaxEndDate.Format("2006-01-02"))
		return nil
	},
}

var jobStatusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show the derived status of a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		initLogging(cmd)
		orch, store, err := openOrchestrator(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		status, err := orch.Status(args[0])
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

var jobExtendCmd = &cobra.Command{
	Use:   "extend <job-id> <days>",
	Short: "Extend a job's monitoring window",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		initLogging(cmd)
		orch, store, err := openOrchestrator(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		var days int
		if _, err := fmt.Sscanf(args[1], "%d", &days); err != nil {
			return fmt.Errorf("invalid day count %q", args[1])
		}

		if err := orch.ExtendJob(args[0], days); err != nil {
			return err
		}

		info, err := orch.ExtensionInfo(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("✓ Extension applied (%d of %d days used, %d remaining)\n",
			info.CurrentExtensionDays, info.MaxExtensionDays, info.RemainingExtensionDays)
		return nil
	},
}

var jobCancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Cancel an active job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		initLogging(cmd)
		orch, store, err := openOrchestrator(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := orch.CancelJob(args[0]); err != nil {
			return err
		}
		fmt.Println("✓ Job cancelled")
		return nil
	},
}

var jobFinalizeCmd = &cobra.Command{
	Use:   "finalize <job-id>",
	Short: "Finalize a job whose data has stabilized",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		initLogging(cmd)
		orch, store, err := openOrchestrator(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := orch.FinalizeJob(args[0]); err != nil {
			return err
		}
		fmt.Println("✓ Period finalized")
		return nil
	},
}

// Config commands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage reconciliation configuration",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate a config override file against the defaults",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		initLogging(cmd)

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		var override config.Override
		if err := yaml.Unmarshal(data, &override); err != nil {
			return fmt.Errorf("failed to parse file: %w", err)
		}

		result := config.Validate(&override, config.Default())
		for _, e := range result.Errors {
			fmt.Printf("error: %s\n", e)
		}
		for _, w := range result.Warnings {
			fmt.Printf("warning: %s\n", w)
		}
		if !result.IsValid {
			return fmt.Errorf("configuration is invalid")
		}
		fmt.Println("✓ Configuration is valid")
		return nil
	},
}

func init() {
	jobStartCmd.Flags().String("config-override", "", "YAML file with per-job config overrides")

	jobCmd.AddCommand(jobStartCmd)
	jobCmd.AddCommand(jobStatusCmd)
	jobCmd.AddCommand(jobExtendCmd)
	jobCmd.AddCommand(jobCancelCmd)
	jobCmd.AddCommand(jobFinalizeCmd)

	configCmd.AddCommand(configValidateCmd)
}

// openOrchestrator opens the store in the data dir and wires an orchestrator
// around it for one-shot CLI commands
func openOrchestrator(cmd *cobra.Command) (*orchestrator.Orchestrator, storage.Store, error) {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	bolt, err := storage.NewBoltStore(dataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open store: %w", err)
	}

	orch, err := buildOrchestrator(bolt, config.Default())
	if err != nil {
		bolt.Close()
		return nil, nil, err
	}
	return orch, bolt, nil
}
